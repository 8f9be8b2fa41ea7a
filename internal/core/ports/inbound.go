package ports

import (
	"context"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

// FaultDiagnoser is the inbound contract for the diagnosis pipeline.
// Only domain.ErrEmptyInput is ever returned; provider failures degrade to a mock result.
type FaultDiagnoser interface {
	Diagnose(ctx context.Context, faultText, scope string) (*domain.Diagnosis, error)
}

// Authenticator checks caller credentials against the user directory.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// DiagnosisHistory is the read model over the diagnosis audit log.
type DiagnosisHistory interface {
	ListRecent(ctx context.Context, ship string, limit int) ([]domain.DiagnosisLogEntry, error)
}
