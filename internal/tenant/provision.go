package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerlens/ledgerlens/internal/platform/db"
)

// EnsureProfile returns the profile for the principal, creating the company
// and an admin profile together on first authenticated access. Creation
// happens exactly once; a concurrent first access loses the race, whether at
// insert or at commit, and reads the winner's rows.
func (r *Repository) EnsureProfile(ctx context.Context, principal Principal, companyName string) (Profile, error) {
	profile, err := r.GetProfile(ctx, principal)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return Profile{}, err
	}

	txErr := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		companyID := uuid.New()
		if _, err := tx.Exec(ctx,
			`INSERT INTO companies (id, name, owner_principal, created_at) VALUES ($1, $2, $3, NOW())`,
			companyID, companyName, string(principal)); err != nil {
			return fmt.Errorf("tenant: insert company: %w", err)
		}
		row := tx.QueryRow(ctx,
			`INSERT INTO profiles (id, principal, company_id, role, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING `+profileColumns,
			uuid.New(), string(principal), companyID, string(RoleAdmin))
		p, err := scanProfile(row)
		if err != nil {
			return fmt.Errorf("tenant: insert owner profile: %w", err)
		}
		profile = p
		return nil
	})
	if txErr != nil {
		// The loser re-reads regardless of where its attempt failed. A
		// serialization failure surfaces at commit, after both inserts
		// succeeded locally.
		if existing, getErr := r.GetProfile(ctx, principal); getErr == nil {
			return existing, nil
		}
		return Profile{}, txErr
	}
	return profile, nil
}
