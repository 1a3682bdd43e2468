package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// RoleResolver maps a principal to its role by reading the profile store.
// It never creates profiles and never substitutes a default: unauthenticated
// callers, missing profiles and corrupt role tags all resolve to RoleNone.
type RoleResolver struct {
	store tenant.Store
}

// NewRoleResolver constructs a RoleResolver.
func NewRoleResolver(store tenant.Store) *RoleResolver {
	return &RoleResolver{store: store}
}

// Resolve returns the principal's current role. The store is consulted on
// every call; roles can change between requests and a stale grant is worse
// than an extra read.
func (r *RoleResolver) Resolve(ctx context.Context, principal tenant.Principal) (tenant.Role, error) {
	if principal == "" {
		return tenant.RoleNone, nil
	}
	profile, err := r.store.GetProfile(ctx, principal)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			return tenant.RoleNone, nil
		}
		return tenant.RoleNone, fmt.Errorf("rbac: resolve role: %w", err)
	}
	if !profile.Role.Valid() {
		return tenant.RoleNone, nil
	}
	return profile.Role, nil
}
