package records

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Record is a single financial data row owned by a company.
type Record struct {
	ID         uuid.UUID        `json:"id"`
	CompanyID  uuid.UUID        `json:"-"`
	Category   string           `json:"category"`
	Amount     float64          `json:"amount"`
	Currency   string           `json:"currency"`
	OccurredAt time.Time        `json:"occurred_at"`
	Note       string           `json:"note,omitempty"`
	CreatedBy  tenant.Principal `json:"created_by"`
	CreatedAt  time.Time        `json:"created_at"`
}

var (
	// ErrValidation marks malformed input; the message names the field.
	ErrValidation = errors.New("records: validation failed")
	// ErrRecordNotFound indicates the record does not exist.
	ErrRecordNotFound = errors.New("records: record not found")
	// ErrNotPermitted is the generic denial for cross-tenant targets.
	ErrNotPermitted = errors.New("records: operation not permitted")
	// ErrNoCompany indicates the caller has no company to operate on.
	ErrNoCompany = errors.New("records: caller has no company")
	// ErrUpstream is the generic retryable storage failure.
	ErrUpstream = errors.New("records: upstream failure, please retry")
)

// RecordInput is the payload for create, update and import rows.
type RecordInput struct {
	Category   string    `json:"category" validate:"required,max=120"`
	Amount     float64   `json:"amount" validate:"required"`
	Currency   string    `json:"currency" validate:"required,len=3"`
	OccurredAt time.Time `json:"occurred_at" validate:"required"`
	Note       string    `json:"note" validate:"max=500"`
}
