package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DiagnosisLogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DiagnosisLogRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAppendStoresEntry(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO diagnosis_log").
		WithArgs("trace-1", "Iona", "CoolingPump", "mock", "no credentials configured", "Cooling pump overheating", sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), domain.DiagnosisLogEntry{
		TraceID:        "trace-1",
		Ship:           "Iona",
		Equipment:      domain.EquipmentCoolingPump,
		Provenance:     domain.ProvenanceMock,
		FallbackReason: "no credentials configured",
		FaultText:      "Cooling pump overheating",
		Result:         domain.DiagnosisResult{Diagnosis: "Cooling pump high temperature detected."},
		CreatedAt:      created,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendStoresNullReasonAndAllScope(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO diagnosis_log").
		WithArgs("trace-2", "All", "MainEngine", "ai", nil, "x", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), domain.DiagnosisLogEntry{
		TraceID:    "trace-2",
		Equipment:  domain.EquipmentMainEngine,
		Provenance: domain.ProvenanceAI,
		FaultText:  "x",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentFiltersByShip(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"trace_id", "ship", "equipment", "provenance", "fallback_reason", "fault_text", "result", "created_at"}).
		AddRow("trace-1", "Iona", "CoolingPump", "ai", "", "Cooling pump overheating",
			[]byte(`{"diagnosis":"Blocked strainer","confidence":"High","provenance":"ai"}`), created)
	mock.ExpectQuery("SELECT trace_id, ship, equipment").
		WithArgs("Iona", 10).
		WillReturnRows(rows)

	entries, err := repo.ListRecent(context.Background(), "Iona", 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Equipment != domain.EquipmentCoolingPump || got.Result.Diagnosis != "Blocked strainer" || got.Result.Confidence != domain.ConfidenceHigh {
		t.Fatalf("unexpected entry %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentUnrestrictedClampsLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT trace_id, ship, equipment").
		WithArgs(maxHistoryLimit).
		WillReturnRows(sqlmock.NewRows([]string{"trace_id", "ship", "equipment", "provenance", "fallback_reason", "fault_text", "result", "created_at"}))

	entries, err := repo.ListRecent(context.Background(), "All", 10_000)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentWrapsQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT trace_id").WillReturnError(boom)

	if _, err := repo.ListRecent(context.Background(), "", 5); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestEnsureSchemaRunsUnderAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS diagnosis_log").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
