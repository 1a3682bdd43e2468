package tenant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Principal identifies an authenticated actor. The value is issued by the
// identity provider and is opaque to this package.
type Principal string

// Role is the coarse capability class bound to a profile. The zero value
// means no role: every caller must treat it as total denial, never as a
// default grant.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	// RoleNone marks the absence of a role (no profile, or a corrupt tag
	// read from storage).
	RoleNone Role = ""
)

// ParseRole maps a stored tag to a Role. Anything outside the two valid
// tags collapses to RoleNone; storage constraints may have been bypassed.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleNone
	}
}

// Valid reports whether the role is one of the two assignable tags.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Company is the tenant isolation boundary. OwnerPrincipal is immutable
// after creation.
type Company struct {
	ID             uuid.UUID
	Name           string
	OwnerPrincipal Principal
	CreatedAt      time.Time
}

// Profile binds a principal to exactly one company and role. CompanyID is
// immutable once set; at most one profile exists per principal.
type Profile struct {
	ID        uuid.UUID
	Principal Principal
	CompanyID uuid.UUID
	Role      Role
	CreatedAt time.Time
}

var (
	// ErrProfileNotFound indicates no profile exists for the principal.
	ErrProfileNotFound = errors.New("tenant: profile not found")
	// ErrCompanyNotFound indicates the company row is missing.
	ErrCompanyNotFound = errors.New("tenant: company not found")
)
