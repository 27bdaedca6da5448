// Package roster holds users, student groups and group memberships.
package roster

import "time"

// Roles assignable to a user.
const (
	RoleUser    = "USER"
	RoleCurator = "CURATOR"
	RoleAdmin   = "ADMIN"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleCurator || role == RoleAdmin
}

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Member is an active student inside a group listing.
type Member struct {
	UserID int64   `json:"user_id"`
	Email  string  `json:"email"`
	Name   *string `json:"name,omitempty"`
}

// Group is a student group with at most one curator.
type Group struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	CuratorID *int64   `json:"curator_id,omitempty"`
	Members   []Member `json:"members,omitempty"`
}

// Profile is the slice of a user needed to attribute an attendance record:
// the role, the single active membership (if any) and the curated groups.
type Profile struct {
	ID              int64
	Role            string
	ActiveGroupID   *int64
	CuratedGroupIDs []int64
}
