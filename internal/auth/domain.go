package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alfozan/insights/internal/rbac"
)

// ErrInvalidIdentity reports an identity that fails structural validation.
var ErrInvalidIdentity = errors.New("auth: invalid identity")

// DefaultDepartment is assigned when the login exchange omits a department.
const DefaultDepartment = "Real Estate"

var identityValidator = validator.New()

// Identity is the currently authenticated user.
type Identity struct {
	ID         string    `json:"id" validate:"required"`
	Email      string    `json:"email" validate:"required,email"`
	Name       string    `json:"name" validate:"required"`
	Role       rbac.Role `json:"role" validate:"required,oneof=admin manager analyst"`
	Department string    `json:"department"`
}

// Normalize returns i with its role folded onto the canonical token.
func (i Identity) Normalize() Identity {
	if role, ok := rbac.ParseRole(string(i.Role)); ok {
		i.Role = role
	}
	return i
}

// Validate checks required fields and role membership.
func (i Identity) Validate() error {
	if err := identityValidator.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return nil
}

// User is a directory account able to log in.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         rbac.Role
	Department   string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the account onto the fields the dashboard keeps.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Department: u.Department}
}

// Credentials is the login exchange request.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the login exchange response.
type LoginResult struct {
	User      Identity  `json:"user"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RemoteUser is the user shape returned by the remote login exchange. Older
// backends send numeric ids and omit role or department.
type RemoteUser struct {
	ID         any    `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// Identity maps the remote user, filling defaults: id falls back to email,
// role to analyst and department to DefaultDepartment.
func (u RemoteUser) Identity() (Identity, error) {
	id := ""
	switch v := u.ID.(type) {
	case string:
		id = v
	case float64:
		id = fmt.Sprintf("%.0f", v)
	case nil:
	default:
		id = fmt.Sprint(v)
	}
	if strings.TrimSpace(id) == "" {
		id = u.Email
	}
	role := rbac.RoleAnalyst
	if strings.TrimSpace(u.Role) != "" {
		parsed, ok := rbac.ParseRole(u.Role)
		if !ok {
			return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidIdentity, u.Role)
		}
		role = parsed
	}
	dept := u.Department
	if strings.TrimSpace(dept) == "" {
		dept = DefaultDepartment
	}
	ident := Identity{ID: id, Email: u.Email, Name: u.Name, Role: role, Department: dept}
	if err := ident.Validate(); err != nil {
		return Identity{}, err
	}
	return ident, nil
}
