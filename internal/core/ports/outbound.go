package ports

import (
	"context"
	"time"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

// Embedder builds vectors for fault records and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// FaultIndex is the fault-history vector index. Search never mutates it.
type FaultIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedRecord, error)
	Upsert(ctx context.Context, records []domain.FaultRecord, vectors [][]float32) error
}

type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	JSON        bool
}

// LanguageModel is the generative model used to produce diagnoses.
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// DiagnosisLog persists diagnosis audit entries.
type DiagnosisLog interface {
	Append(ctx context.Context, entry domain.DiagnosisLogEntry) error
}

// DiagnosisRecorder receives per-request pipeline observations.
type DiagnosisRecorder interface {
	RecordDiagnosis(d *domain.Diagnosis, retrieved int, duration time.Duration)
}

// FaultQueue carries fault-history records from ingestion tooling to the indexing worker.
type FaultQueue interface {
	PublishFaultRecord(ctx context.Context, record domain.FaultRecord) error
	SubscribeFaultRecords(ctx context.Context, handler func(context.Context, domain.FaultRecord) error) error
}

// TokenService issues and verifies session tokens carrying the caller's scope.
type TokenService interface {
	Issue(user domain.User) (string, time.Time, error)
	Verify(token string) (*domain.User, error)
}
