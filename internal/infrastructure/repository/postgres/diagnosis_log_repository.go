package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// DiagnosisLogRepository is the append-only diagnosis audit trail.
type DiagnosisLogRepository struct {
	db *sql.DB
}

func NewDiagnosisLogRepository(db *sql.DB) *DiagnosisLogRepository {
	return &DiagnosisLogRepository{db: db}
}

func (r *DiagnosisLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS diagnosis_log (
	trace_id TEXT PRIMARY KEY,
	ship TEXT NOT NULL,
	equipment TEXT NOT NULL,
	provenance TEXT NOT NULL,
	fallback_reason TEXT,
	fault_text TEXT NOT NULL,
	result JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagnosis_log_ship_created_at ON diagnosis_log(ship, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_diagnosis_log_created_at ON diagnosis_log(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DiagnosisLogRepository) Append(ctx context.Context, entry domain.DiagnosisLogEntry) error {
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("marshal diagnosis result: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO diagnosis_log (trace_id, ship, equipment, provenance, fallback_reason, fault_text, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (trace_id) DO NOTHING
`, entry.TraceID, domain.ScopeLabel(entry.Ship), string(entry.Equipment), string(entry.Provenance),
		nullableString(entry.FallbackReason), entry.FaultText, result, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append diagnosis log: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first. An unrestricted ship lists every ship.
func (r *DiagnosisLogRepository) ListRecent(ctx context.Context, ship string, limit int) ([]domain.DiagnosisLogEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	const columns = `trace_id, ship, equipment, provenance, COALESCE(fallback_reason, ''), fault_text, result, created_at`
	var (
		rows *sql.Rows
		err  error
	)
	if domain.IsUnrestrictedScope(ship) {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+columns+`
FROM diagnosis_log
ORDER BY created_at DESC
LIMIT $1
`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+columns+`
FROM diagnosis_log
WHERE ship = $1
ORDER BY created_at DESC
LIMIT $2
`, ship, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list diagnosis log: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DiagnosisLogEntry, 0, limit)
	for rows.Next() {
		var (
			entry      domain.DiagnosisLogEntry
			equipment  string
			provenance string
			result     []byte
		)
		if err := rows.Scan(
			&entry.TraceID,
			&entry.Ship,
			&equipment,
			&provenance,
			&entry.FallbackReason,
			&entry.FaultText,
			&result,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan diagnosis log: %w", err)
		}
		entry.Equipment = domain.EquipmentCategory(equipment)
		entry.Provenance = domain.Provenance(provenance)
		if err := json.Unmarshal(result, &entry.Result); err != nil {
			return nil, fmt.Errorf("decode diagnosis result %s: %w", entry.TraceID, err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnosis log: %w", err)
	}
	return out, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
