package project

import (
	"sort"
	"time"

	"github.com/forgeqa/forgeqa/internal/permission"
)

// Project represents a test-automation project. The owner is set at creation
// and immutable afterwards; the member set always includes the owner; the
// permission map holds exactly one override entry per member (possibly
// empty, meaning everything is inherited).
type Project struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64
	// PresetName, when set, is the project-assigned baseline preset. Members
	// without it fall back to their global-role default.
	PresetName  string
	Permissions map[int64]permission.Override
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MemberIDs returns the member ids in ascending order. Membership is derived
// from the permission map so the two can never drift apart.
func (p Project) MemberIDs() []int64 {
	out := make([]int64, 0, len(p.Permissions))
	for id := range p.Permissions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsMember reports whether the user belongs to the project.
func (p Project) IsMember(userID int64) bool {
	_, ok := p.Permissions[userID]
	return ok
}

// Clone deep-copies the project so store readers cannot alias stored state.
func (p Project) Clone() Project {
	out := p
	out.Permissions = permission.CloneOverrides(p.Permissions)
	return out
}
