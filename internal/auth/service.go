package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alfozan/insights/internal/shared"
)

// DefaultLoginTTL is the lifetime advertised for a login session.
const DefaultLoginTTL = 24 * time.Hour

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	remote Exchanger
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewService constructs a new Service. remote may be nil.
func NewService(repo Repository, remote Exchanger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		remote: remote,
		logger: logger,
		ttl:    DefaultLoginTTL,
		now:    time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Authenticate validates credentials against the local directory first and
// the remote exchange second. Any failure is ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	identity, err := s.authenticateLocal(ctx, email, password)
	if err != nil && s.remote != nil {
		identity, err = s.remote.Exchange(ctx, Credentials{Email: email, Password: password})
		if err != nil {
			s.logger.Debug("remote login rejected", slog.Any("error", err))
		}
	}
	if err != nil {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	return LoginResult{
		User:      identity,
		SessionID: uuid.NewString(),
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}, nil
}

func (s *Service) authenticateLocal(ctx context.Context, email, password string) (Identity, error) {
	if s.repo == nil {
		return Identity{}, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("find user", slog.Any("error", err))
		}
		return Identity{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return Identity{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Identity{}, shared.ErrInvalidCredentials
	}
	identity := user.Identity()
	if err := identity.Validate(); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// RegisterSession records the login session for auditing.
func (s *Service) RegisterSession(ctx context.Context, result LoginResult, ip, ua string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.CreateSession(ctx, result.SessionID, result.User.ID, result.ExpiresAt, ip, ua)
}

// SessionActive reports whether a registered login session still stands.
// Deactivating a user removes their sessions, so this turns false for them.
func (s *Service) SessionActive(ctx context.Context, id string) (bool, error) {
	if s.repo == nil {
		return true, nil
	}
	return s.repo.SessionExists(ctx, id)
}

// RemoveSession deletes a login session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if s.repo == nil || id == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, id)
}
