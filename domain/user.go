package domain

import "time"

// RoleAdmin grants access to the dashboard and the reset action.
const RoleAdmin = "admin"

// User represents a staff identity allowed to sign in to the admin dashboard.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}

// IsAdmin reports whether the user may access protected views.
func (u *User) IsAdmin() bool {
	return u.IsActive() && u.Role == RoleAdmin
}
