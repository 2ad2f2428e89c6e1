package users

import "time"

// Role is the global role a user carries across all projects.
type Role string

const (
	// RoleManager marks users who administer people and projects.
	RoleManager Role = "manager"
	// RoleEmployee marks regular QA engineers.
	RoleEmployee Role = "employee"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleManager || r == RoleEmployee
}

// User represents a user account for management. Users are created at
// onboarding and never deleted, only deactivated.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
