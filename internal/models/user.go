package models

import "time"

// Role represents the catalog access level attached to a user profile.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile holds the role attribute looked up per user id.
type Profile struct {
	ID   string `db:"id" json:"id"`
	Role Role   `db:"role" json:"role"`
}
