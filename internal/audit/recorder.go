package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists audit entries. Mutators call it after their single
// persistence step succeeds.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// PGRecorder writes entries into audit_logs.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a new PGRecorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record persists the entry.
func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("audit: marshal meta: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor, action, entity, entity_id, company_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		entry.ID, string(entry.Actor), entry.Action, entry.Entity, entry.EntityID, entry.CompanyID, metaJSON, entry.At)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}
