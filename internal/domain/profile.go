package domain

import "time"

// Role is the access level of a profile.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleManager Role = "Manager"
	RoleMember  Role = "Member"
)

// IsValid checks if the role is one of the allowed values.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	default:
		return false
	}
}

// CanApprove reports whether the role may decide on tasks in review.
func CanApprove(r Role) bool {
	return r == RoleAdmin || r == RoleManager
}

// Profile is a user known to the workflow. Identity itself is managed elsewhere.
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName returns the full name, falling back to the email address.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// Actor is the caller of a workflow operation.
type Actor struct {
	ID   string
	Role Role
	Name string
}

// ActorFromProfile builds an Actor snapshot from a profile.
func ActorFromProfile(p *Profile) Actor {
	return Actor{ID: p.ID, Role: p.Role, Name: p.DisplayName()}
}
