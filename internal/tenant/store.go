package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Store describes the profile store contract consumed by the RBAC core.
// Reads are plain lookups; every role or membership mutation goes through
// WithTx so the admin-count check and the write commit together.
type Store interface {
	GetProfile(ctx context.Context, principal Principal) (Profile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (Profile, error)
	GetCompany(ctx context.Context, id uuid.UUID) (Company, error)
	ListProfilesByCompany(ctx context.Context, companyID uuid.UUID) ([]Profile, error)
	InsertProfile(ctx context.Context, profile Profile) (Profile, error)
	// WithTx runs fn inside a serializable transaction. Two concurrent
	// mutations against the same company cannot both observe "another
	// admin exists" and commit; one of them fails and the caller retries.
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// TxStore exposes the operations available inside a store transaction.
type TxStore interface {
	GetProfile(ctx context.Context, principal Principal) (Profile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (Profile, error)
	// CountAdmins counts admin profiles in the company, excluding the
	// given profile ID when non-nil.
	CountAdmins(ctx context.Context, companyID uuid.UUID, excludeProfileID uuid.UUID) (int64, error)
	UpdateProfileRole(ctx context.Context, profileID uuid.UUID, role Role) error
}
