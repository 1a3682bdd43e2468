package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Identity pairs a principal with its login email.
type Identity struct {
	Principal tenant.Principal
	Email     string
}

var (
	// ErrEmailTaken indicates an identity already exists for the email.
	ErrEmailTaken = errors.New("identity: email already registered")
	// ErrNotFound indicates no identity exists for the principal.
	ErrNotFound = errors.New("identity: not found")
	// ErrInvalidCredentials indicates a failed email/credential check.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// Provider is the identity-provider contract consumed by the RBAC core.
type Provider interface {
	CreateIdentity(ctx context.Context, email, credential string) (tenant.Principal, error)
	DeleteIdentity(ctx context.Context, principal tenant.Principal) error
	ListIdentities(ctx context.Context) ([]Identity, error)
	Authenticate(ctx context.Context, email, credential string) (tenant.Principal, error)
}

// IsEmailTaken classifies a provider error as a duplicate-email conflict.
// Structured errors (ErrEmailTaken, mapped from unique-violation codes by
// the postgres adapter) are the primary signal. The substring match is a
// fallback for providers that only return opaque message text.
func IsEmailTaken(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmailTaken) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already registered")
}
