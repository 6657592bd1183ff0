package users

import (
	"context"

	"github.com/alfozan/insights/internal/auth"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, len(accounts))
	for i, a := range accounts {
		out[i] = fromAccount(a)
	}
	return out, nil
}

// SetActive toggles an account on behalf of actorID.
func (s *Service) SetActive(ctx context.Context, actorID, id string, active bool) error {
	if !active && actorID == id {
		return ErrSelfDeactivation
	}
	return s.repo.SetActive(ctx, id, active)
}
