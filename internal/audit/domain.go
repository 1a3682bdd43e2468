package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Actions recorded by the membership and data mutators.
const (
	ActionMemberCreate = "member.create"
	ActionRoleUpdate   = "member.role_update"
	ActionMemberRemove = "member.remove"
	ActionRecordImport = "records.import"
)

// Entry is a single audit record. Meta carries action-specific detail; for
// denied cross-tenant attempts it holds the full internal context that the
// caller-facing error deliberately omits.
type Entry struct {
	ID        uuid.UUID
	Actor     tenant.Principal
	Action    string
	Entity    string
	EntityID  string
	CompanyID uuid.UUID
	Meta      map[string]any
	At        time.Time
}

// TimelineFilters narrows a timeline query. CompanyID is mandatory; the
// timeline never crosses tenants.
type TimelineFilters struct {
	CompanyID uuid.UUID
	From      time.Time
	To        time.Time
	Action    string
	Page      int
	PageSize  int
}

// PagingInfo describes the window returned by Timeline.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
