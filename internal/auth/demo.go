package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alfozan/insights/internal/rbac"
)

var demoAccounts = []User{
	{ID: "1", Email: "admin@alfozan.com", Name: "Ahmed Al-Fozan", Role: rbac.RoleAdministrator, Department: "Executive Management"},
	{ID: "2", Email: "manager@alfozan.com", Name: "Sarah Al-Rashid", Role: rbac.RoleManager, Department: "Project Management"},
	{ID: "3", Email: "analyst@alfozan.com", Name: "Omar Al-Mansouri", Role: rbac.RoleAnalyst, Department: "Business Intelligence"},
}

// DemoUsers returns the three demo accounts, one per role, all sharing
// password. Only the bcrypt hash is kept.
func DemoUsers(password string, cost int) ([]User, error) {
	if password == "" {
		return nil, errors.New("auth: demo password required")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	users := make([]User, len(demoAccounts))
	for i, u := range demoAccounts {
		u.PasswordHash = string(hash)
		u.IsActive = true
		u.CreatedAt = now
		u.UpdatedAt = now
		users[i] = u
	}
	return users, nil
}
