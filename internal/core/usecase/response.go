package usecase

import (
	"time"

	"github.com/google/uuid"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

// assembleDiagnosis attaches request metadata to a result without altering its fields.
func assembleDiagnosis(query domain.FaultQuery, result domain.DiagnosisResult, at time.Time) *domain.Diagnosis {
	if result.Provenance == "" {
		result.Provenance = domain.ProvenanceMock
	}
	return &domain.Diagnosis{
		TraceID:          uuid.NewString(),
		Ship:             domain.ScopeLabel(query.Scope),
		Title:            query.DisplayText,
		FaultDescription: query.NormalizedText,
		Equipment:        query.Equipment,
		CreatedAt:        at.UTC(),
		DiagnosisResult:  result,
	}
}
