package audit

import (
	"time"

	"github.com/google/uuid"
)

// Impact classifies how consequential an audited action is.
type Impact string

const (
	// ImpactLow marks routine activity.
	ImpactLow Impact = "Low"
	// ImpactMedium marks permission and ownership changes.
	ImpactMedium Impact = "Medium"
	// ImpactHigh marks structural changes such as project creation.
	ImpactHigh Impact = "High"
)

// Kind is the structured action type recorded with every entry. Impact is
// derived from the kind, not from the action text, so a project name that
// happens to contain "Approved" cannot skew the classification.
type Kind string

const (
	// KindProjectCreated records a new project.
	KindProjectCreated Kind = "project_created"
	// KindMemberAdded records a user joining a project.
	KindMemberAdded Kind = "member_added"
	// KindMemberRemoved records a user leaving a project.
	KindMemberRemoved Kind = "member_removed"
	// KindPermissionsUpdated records an override or preset change.
	KindPermissionsUpdated Kind = "permissions_updated"
	// KindRoleChanged records a global role change.
	KindRoleChanged Kind = "role_changed"
	// KindAccessRequested records a pending access request.
	KindAccessRequested Kind = "access_requested"
	// KindAccessApproved records an approved access request.
	KindAccessApproved Kind = "access_approved"
	// KindAccessDenied records a denied access request.
	KindAccessDenied Kind = "access_denied"
	// KindUserCreated records onboarding of a new user.
	KindUserCreated Kind = "user_created"
)

// ImpactOf maps a structured kind to its impact level.
func ImpactOf(kind Kind) Impact {
	switch kind {
	case KindProjectCreated:
		return ImpactHigh
	case KindPermissionsUpdated, KindRoleChanged, KindAccessApproved, KindAccessDenied:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// Actor identifies who performed an audited action.
type Actor struct {
	ID    int64
	Name  string
	Email string
}

// Entry is one immutable record in the ledger.
type Entry struct {
	ID        uuid.UUID
	Actor     Actor
	ProjectID int64
	Kind      Kind
	Action    string
	Detail    string
	Impact    Impact
	At        time.Time
}

// Record is the caller-supplied part of an entry; the ledger fills in ID,
// impact and timestamp at append time.
type Record struct {
	Actor     Actor
	ProjectID int64
	Kind      Kind
	Action    string
	Detail    string
}
