package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerlens/ledgerlens/internal/platform/db"
)

// Repository is the PostgreSQL-backed profile store. Row-level policies on
// the profiles table provide a second, independent tenant filter underneath
// every query issued here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id, principal, company_id, role, created_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var principal, role string
	if err := row.Scan(&p.ID, &principal, &p.CompanyID, &role, &p.CreatedAt); err != nil {
		return Profile{}, err
	}
	p.Principal = Principal(principal)
	p.Role = ParseRole(role)
	return p, nil
}

// GetProfile fetches the profile bound to the principal.
func (r *Repository) GetProfile(ctx context.Context, principal Principal) (Profile, error) {
	return getProfile(ctx, r.pool, principal)
}

// GetProfileByID fetches a profile by primary key.
func (r *Repository) GetProfileByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	return getProfileByID(ctx, r.pool, id)
}

// GetCompany fetches a company by ID.
func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, owner_principal, created_at FROM companies WHERE id = $1`, id)
	var c Company
	var owner string
	if err := row.Scan(&c.ID, &c.Name, &owner, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, fmt.Errorf("tenant: get company: %w", err)
	}
	c.OwnerPrincipal = Principal(owner)
	return c, nil
}

// ListProfilesByCompany returns every profile in the company ordered by
// creation time.
func (r *Repository) ListProfilesByCompany(ctx context.Context, companyID uuid.UUID) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE company_id = $1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("tenant: list profiles: %w", err)
	}
	defer rows.Close()
	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("tenant: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// InsertProfile persists a new profile and returns the stored row.
func (r *Repository) InsertProfile(ctx context.Context, profile Profile) (Profile, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, principal, company_id, role, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING `+profileColumns,
		profile.ID, string(profile.Principal), profile.CompanyID, string(profile.Role))
	created, err := scanProfile(row)
	if err != nil {
		return Profile{}, fmt.Errorf("tenant: insert profile: %w", err)
	}
	return created, nil
}

// WithTx runs fn inside a serializable transaction so admin-count checks
// and role writes commit atomically.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetProfile(ctx context.Context, principal Principal) (Profile, error) {
	return getProfile(ctx, t.tx, principal)
}

func (t *txRepository) GetProfileByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	return getProfileByID(ctx, t.tx, id)
}

func (t *txRepository) CountAdmins(ctx context.Context, companyID uuid.UUID, excludeProfileID uuid.UUID) (int64, error) {
	var count int64
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM profiles WHERE company_id = $1 AND role = $2 AND id <> $3`,
		companyID, string(RoleAdmin), excludeProfileID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("tenant: count admins: %w", err)
	}
	return count, nil
}

func (t *txRepository) UpdateProfileRole(ctx context.Context, profileID uuid.UUID, role Role) error {
	tag, err := t.tx.Exec(ctx, `UPDATE profiles SET role = $1 WHERE id = $2`, string(role), profileID)
	if err != nil {
		return fmt.Errorf("tenant: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProfile(ctx context.Context, q rowQuerier, principal Principal) (Profile, error) {
	row := q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE principal = $1`, string(principal))
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("tenant: get profile: %w", err)
	}
	return p, nil
}

func getProfileByID(ctx context.Context, q rowQuerier, id uuid.UUID) (Profile, error) {
	row := q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("tenant: get profile by id: %w", err)
	}
	return p, nil
}
