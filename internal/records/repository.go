package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerlens/ledgerlens/internal/platform/db"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Repository provides PostgreSQL backed persistence for financial records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, company_id, category, amount, currency, occurred_at, note, created_by, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var createdBy string
	if err := row.Scan(&r.ID, &r.CompanyID, &r.Category, &r.Amount, &r.Currency, &r.OccurredAt, &r.Note, &createdBy, &r.CreatedAt); err != nil {
		return Record{}, err
	}
	r.CreatedBy = tenant.Principal(createdBy)
	return r, nil
}

// ListByCompany returns company records, newest first.
func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM financial_records WHERE company_id = $1 ORDER BY occurred_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("records: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetByID fetches a single record.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM financial_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("records: get: %w", err)
	}
	return rec, nil
}

// Insert persists a record.
func (r *Repository) Insert(ctx context.Context, record Record) (Record, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO financial_records (id, company_id, category, amount, currency, occurred_at, note, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING `+recordColumns,
		record.ID, record.CompanyID, record.Category, record.Amount, record.Currency,
		record.OccurredAt, record.Note, string(record.CreatedBy))
	created, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("records: insert: %w", err)
	}
	return created, nil
}

// Update rewrites the mutable fields of a record.
func (r *Repository) Update(ctx context.Context, record Record) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE financial_records SET category = $1, amount = $2, currency = $3, occurred_at = $4, note = $5 WHERE id = $6`,
		record.Category, record.Amount, record.Currency, record.OccurredAt, record.Note, record.ID)
	if err != nil {
		return fmt.Errorf("records: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete removes a record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM financial_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("records: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// InsertBatch persists all rows inside one transaction.
func (r *Repository) InsertBatch(ctx context.Context, batch []Record) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, record := range batch {
			if _, err := tx.Exec(ctx,
				`INSERT INTO financial_records (id, company_id, category, amount, currency, occurred_at, note, created_by, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
				record.ID, record.CompanyID, record.Category, record.Amount, record.Currency,
				record.OccurredAt, record.Note, string(record.CreatedBy)); err != nil {
				return fmt.Errorf("records: batch insert: %w", err)
			}
		}
		return nil
	})
}
