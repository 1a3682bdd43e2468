package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

const uniqueViolation = "23505"

// Repository is the PostgreSQL-backed identity provider. Deleting an
// identity cascades to the profile row at the storage layer, so callers
// never issue a second delete.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateIdentity registers a new email/credential pair and returns the
// minted principal. Duplicate emails surface as ErrEmailTaken.
func (r *Repository) CreateIdentity(ctx context.Context, email, credential string) (tenant.Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash credential: %w", err)
	}
	principal := tenant.Principal(uuid.NewString())
	_, err = r.pool.Exec(ctx,
		`INSERT INTO identities (principal, email, credential_hash, created_at) VALUES ($1, $2, $3, NOW())`,
		string(principal), email, string(hash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("identity: create: %w", err)
	}
	return principal, nil
}

// DeleteIdentity removes the identity for the principal.
func (r *Repository) DeleteIdentity(ctx context.Context, principal tenant.Principal) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE principal = $1`, string(principal))
	if err != nil {
		return fmt.Errorf("identity: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIdentities returns every identity ordered by email.
func (r *Repository) ListIdentities(ctx context.Context) ([]Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT principal, email FROM identities ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("identity: list: %w", err)
	}
	defer rows.Close()
	var identities []Identity
	for rows.Next() {
		var principal, email string
		if err := rows.Scan(&principal, &email); err != nil {
			return nil, fmt.Errorf("identity: scan: %w", err)
		}
		identities = append(identities, Identity{Principal: tenant.Principal(principal), Email: email})
	}
	return identities, rows.Err()
}

// Authenticate verifies an email/credential pair and returns the principal.
// Unknown emails and bad credentials are indistinguishable to the caller.
func (r *Repository) Authenticate(ctx context.Context, email, credential string) (tenant.Principal, error) {
	var principal, hash string
	err := r.pool.QueryRow(ctx,
		`SELECT principal, credential_hash FROM identities WHERE email = $1`, email).Scan(&principal, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("identity: authenticate: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		return "", ErrInvalidCredentials
	}
	return tenant.Principal(principal), nil
}
