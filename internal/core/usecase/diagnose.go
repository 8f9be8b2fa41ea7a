package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vectorscan/fault-diagnosis/internal/core/diagnosis"
	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
	"github.com/vectorscan/fault-diagnosis/internal/core/equipment"
	"github.com/vectorscan/fault-diagnosis/internal/core/ports"
	"github.com/vectorscan/fault-diagnosis/internal/core/textnorm"
)

const (
	defaultTopK = 3
	maxTopK     = diagnosis.MaxContextRecords

	auditTimeout = 5 * time.Second
)

type DiagnoseLimits struct {
	TopK            int
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

// DiagnoseUseCase runs the retrieval-augmented diagnosis pipeline for one fault report.
// It holds no per-request state and is safe for concurrent use.
type DiagnoseUseCase struct {
	normalizer *textnorm.Normalizer
	classifier *equipment.Classifier
	embedder   ports.Embedder
	index      ports.FaultIndex
	generator  *diagnosis.Generator
	mock       *diagnosis.MockGenerator
	auditLog   ports.DiagnosisLog
	recorder   ports.DiagnosisRecorder
	limits     DiagnoseLimits
	now        func() time.Time
}

// NewDiagnoseUseCase wires the pipeline. A nil embedder, index or generator means no
// provider is configured and every request is answered by the mock generator.
func NewDiagnoseUseCase(
	normalizer *textnorm.Normalizer,
	classifier *equipment.Classifier,
	embedder ports.Embedder,
	index ports.FaultIndex,
	generator *diagnosis.Generator,
	mock *diagnosis.MockGenerator,
	limits DiagnoseLimits,
) *DiagnoseUseCase {
	if limits.TopK <= 0 {
		limits.TopK = defaultTopK
	}
	if limits.TopK > maxTopK {
		limits.TopK = maxTopK
	}
	if limits.EmbedTimeout <= 0 {
		limits.EmbedTimeout = 10 * time.Second
	}
	if limits.SearchTimeout <= 0 {
		limits.SearchTimeout = 5 * time.Second
	}
	if limits.GenerateTimeout <= 0 {
		limits.GenerateTimeout = 60 * time.Second
	}
	if normalizer == nil {
		normalizer = textnorm.Default()
	}
	if classifier == nil {
		classifier = equipment.NewClassifier()
	}
	if mock == nil {
		mock = diagnosis.NewMockGenerator()
	}

	return &DiagnoseUseCase{
		normalizer: normalizer,
		classifier: classifier,
		embedder:   embedder,
		index:      index,
		generator:  generator,
		mock:       mock,
		limits:     limits,
		now:        time.Now,
	}
}

// WithAuditLog persists every diagnosis. Write failures are logged only.
func (uc *DiagnoseUseCase) WithAuditLog(log ports.DiagnosisLog) *DiagnoseUseCase {
	uc.auditLog = log
	return uc
}

func (uc *DiagnoseUseCase) WithRecorder(recorder ports.DiagnosisRecorder) *DiagnoseUseCase {
	uc.recorder = recorder
	return uc
}

func (uc *DiagnoseUseCase) Diagnose(ctx context.Context, faultText, scope string) (*domain.Diagnosis, error) {
	started := uc.now()

	query, err := uc.normalizer.Normalize(faultText)
	if err != nil {
		return nil, err
	}
	query.Scope = domain.ScopeLabel(scope)

	classification := uc.classifier.Classify(query.NormalizedText)
	query.Equipment = classification.Category
	query.EquipmentAliases = classification.Aliases

	result, retrieved := uc.run(ctx, query)

	d := assembleDiagnosis(query, result, started)
	uc.audit(ctx, query, d)

	duration := uc.now().Sub(started)
	if uc.recorder != nil {
		uc.recorder.RecordDiagnosis(d, retrieved, duration)
	}
	slog.Info("diagnosis_completed",
		"trace_id", d.TraceID,
		"ship", d.Ship,
		"equipment", d.Equipment,
		"provenance", d.Provenance,
		"retrieved", retrieved,
		"fallback_reason", d.FallbackReason,
		"duration_ms", duration.Milliseconds(),
	)
	return d, nil
}

func (uc *DiagnoseUseCase) run(ctx context.Context, query domain.FaultQuery) (domain.DiagnosisResult, int) {
	empty := diagnosis.AssembleContext(nil)
	if uc.embedder == nil || uc.index == nil || uc.generator == nil {
		return uc.fallback(query, empty, diagnosis.ReasonNoCredentials, nil), 0
	}

	vector, err := uc.embed(ctx, query.NormalizedText)
	if err != nil {
		return uc.fallback(query, empty, diagnosis.GenerationFailedReason(err), err), 0
	}

	records, err := uc.search(ctx, vector, domain.NewSearchFilter(query.EquipmentAliases, query.Scope))
	if err != nil {
		return uc.fallback(query, empty, diagnosis.GenerationFailedReason(err), err), 0
	}
	block := diagnosis.AssembleContext(records)

	genCtx, cancel := context.WithTimeout(ctx, uc.limits.GenerateTimeout)
	defer cancel()
	result, err := uc.generator.Generate(genCtx, query, block)
	if err != nil {
		return uc.fallback(query, block, diagnosis.GenerationFailedReason(err), err), len(block.Records)
	}
	return result, len(block.Records)
}

func (uc *DiagnoseUseCase) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, uc.limits.EmbedTimeout)
	defer cancel()

	vector, err := uc.embedder.EmbedQuery(embedCtx, text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "embed query", fmt.Errorf("empty vector"))
	}
	return vector, nil
}

func (uc *DiagnoseUseCase) search(ctx context.Context, vector []float32, filter domain.SearchFilter) ([]domain.RetrievedRecord, error) {
	searchCtx, cancel := context.WithTimeout(ctx, uc.limits.SearchTimeout)
	defer cancel()

	records, err := uc.index.Search(searchCtx, vector, uc.limits.TopK, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "search fault index", err)
	}
	return records, nil
}

func (uc *DiagnoseUseCase) fallback(query domain.FaultQuery, block diagnosis.ContextBlock, reason string, cause error) domain.DiagnosisResult {
	if cause != nil {
		slog.Warn("diagnosis_fallback",
			"equipment", query.Equipment,
			"ship", query.Scope,
			"reason", reason,
			"error", cause.Error(),
		)
	}
	return uc.mock.Generate(query.RawText, block, reason)
}

func (uc *DiagnoseUseCase) audit(ctx context.Context, query domain.FaultQuery, d *domain.Diagnosis) {
	if uc.auditLog == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	entry := domain.DiagnosisLogEntry{
		TraceID:        d.TraceID,
		Ship:           d.Ship,
		Equipment:      d.Equipment,
		Provenance:     d.Provenance,
		FallbackReason: d.FallbackReason,
		FaultText:      query.RawText,
		Result:         d.DiagnosisResult,
		CreatedAt:      d.CreatedAt,
	}
	if err := uc.auditLog.Append(auditCtx, entry); err != nil {
		slog.Warn("diagnosis_audit_failed", "trace_id", d.TraceID, "error", err.Error())
	}
}
