package members

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Member is the admin-panel view of a profile joined with its login email.
type Member struct {
	ProfileID uuid.UUID        `json:"profile_id"`
	Principal tenant.Principal `json:"principal"`
	Email     string           `json:"email"`
	Role      tenant.Role      `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
}

var (
	// ErrValidation marks malformed input; the wrapped message names the field.
	ErrValidation = errors.New("members: validation failed")
	// ErrNoCompany indicates the caller has no company to operate on.
	ErrNoCompany = errors.New("members: caller has no company")
	// ErrMemberNotFound indicates the target profile does not exist.
	ErrMemberNotFound = errors.New("members: member not found")
	// ErrNotPermitted is the generic denial returned for cross-tenant
	// targets. The real reason is logged and audited internally only.
	ErrNotPermitted = errors.New("members: operation not permitted")
	// ErrSelfRemoval rejects an admin deleting their own account.
	ErrSelfRemoval = errors.New("members: cannot remove your own account")
	// ErrLastAdmin protects the invariant that a company always retains
	// at least one administrator.
	ErrLastAdmin = errors.New("members: company must retain at least one administrator")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("members: email already registered")
	// ErrUpstream is the generic retryable failure for identity or
	// profile store errors. Store-specific text never reaches callers.
	ErrUpstream = errors.New("members: upstream failure, please retry")
)

// CreateMemberInput describes the payload for CreateMember.
type CreateMemberInput struct {
	Email      string `json:"email" validate:"required,email"`
	Credential string `json:"credential" validate:"required,min=6"`
	Role       string `json:"role" validate:"required,oneof=admin user"`
}
