package users

import (
	"errors"
	"time"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/rbac"
)

// ErrSelfDeactivation rejects an administrator disabling their own account.
var ErrSelfDeactivation = errors.New("users: cannot deactivate own account")

// User represents a user account for management. Password hashes never
// leave the auth package.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       rbac.Role `json:"role"`
	Department string    `json:"department"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

func fromAccount(u auth.User) User {
	return User{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		Department: u.Department,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
