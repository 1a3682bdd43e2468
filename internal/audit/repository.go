package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// PGRepository reads the audit timeline from audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow fetches one window of entries, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, actor, action, entity, entity_id, company_id, meta, occurred_at FROM audit_logs WHERE company_id = $1`)
	args := []any{filters.CompanyID}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		fmt.Fprintf(&sb, " AND occurred_at <= $%d", len(args))
	}
	if action := strings.TrimSpace(filters.Action); action != "" {
		args = append(args, action)
		fmt.Fprintf(&sb, " AND action = $%d", len(args))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&sb, " ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var actor string
		var metaJSON []byte
		var at time.Time
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Entity, &e.EntityID, &e.CompanyID, &metaJSON, &at); err != nil {
			return nil, fmt.Errorf("audit: scan timeline row: %w", err)
		}
		e.Actor = tenant.Principal(actor)
		e.At = at
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan prunes entries past the retention cutoff and returns how
// many rows were removed.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("audit: retention sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
