package rbac

import (
	"context"
	"errors"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// ErrPermissionDenied indicates the principal lacks a required permission.
// It is terminal for the call; by construction no side effect has happened
// when a guarded operation returns it.
var ErrPermissionDenied = errors.New("rbac: permission denied")

// Evaluator answers permission queries by combining the role resolver with
// the static permission table. Store failures deny and surface the error so
// callers can distinguish an outage from a missing grant.
type Evaluator struct {
	resolver *RoleResolver
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(resolver *RoleResolver) *Evaluator {
	return &Evaluator{resolver: resolver}
}

// HasPermission reports whether the principal's role grants the permission.
func (e *Evaluator) HasPermission(ctx context.Context, principal tenant.Principal, perm Permission) (bool, error) {
	role, err := e.resolver.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	return RoleHas(role, perm), nil
}

// HasAll reports whether the role grants every listed permission. A
// principal without a role is denied regardless of the list, so an empty
// list never grants vacuously.
func (e *Evaluator) HasAll(ctx context.Context, principal tenant.Principal, perms ...Permission) (bool, error) {
	role, err := e.resolver.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	if role == tenant.RoleNone {
		return false, nil
	}
	for _, p := range perms {
		if !RoleHas(role, p) {
			return false, nil
		}
	}
	return true, nil
}

// HasAny reports whether the role grants at least one listed permission.
func (e *Evaluator) HasAny(ctx context.Context, principal tenant.Principal, perms ...Permission) (bool, error) {
	role, err := e.resolver.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if RoleHas(role, p) {
			return true, nil
		}
	}
	return false, nil
}

// Require fails with ErrPermissionDenied unless the permission is granted.
// Mutating operations call this before any other statement.
func (e *Evaluator) Require(ctx context.Context, principal tenant.Principal, perm Permission) error {
	ok, err := e.HasPermission(ctx, principal, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// RequireAll fails with ErrPermissionDenied unless every permission is
// granted.
func (e *Evaluator) RequireAll(ctx context.Context, principal tenant.Principal, perms ...Permission) error {
	ok, err := e.HasAll(ctx, principal, perms...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// Permissions returns the principal's effective permission list. Intended
// for conditional rendering only; authorization decisions go through
// Require and the guards.
func (e *Evaluator) Permissions(ctx context.Context, principal tenant.Principal) ([]Permission, error) {
	role, err := e.resolver.Resolve(ctx, principal)
	if err != nil {
		return nil, err
	}
	return PermissionsForRole(role), nil
}
