package models

import "time"

// Role is a user's permission level
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User represents an account known to the platform
type User struct {
	ID          string    `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Email       string    `db:"email" json:"email,omitempty"`
	Role        Role      `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// Viewer is the identity on whose behalf a query runs
type Viewer struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the viewer has unrestricted access
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

// IsTeacher reports whether the viewer is a teacher
func (v Viewer) IsTeacher() bool {
	return v.Role == RoleTeacher
}
