package cli

import (
	"context"
	"log/slog"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/session"
)

// SessionCLI keeps a terminal login in a local file, the way a browser keeps
// one in its device session.
type SessionCLI struct {
	ac      *auth.Context
	service *auth.Service
	table   *rbac.Table
}

// NewSessionCLI binds an auth context to the session file at path and
// restores it.
func NewSessionCLI(ctx context.Context, path string, service *auth.Service, logger *slog.Logger) *SessionCLI {
	table := rbac.DefaultTable()
	ac := auth.NewContext(session.NewStore(session.NewFileSlot(path), logger), table, logger)
	ac.Restore(ctx)
	return &SessionCLI{ac: ac, service: service, table: table}
}

// Login authenticates and persists the identity.
func (c *SessionCLI) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	result, err := c.service.Authenticate(ctx, email, password)
	if err != nil {
		return auth.Identity{}, err
	}
	if err := c.ac.Login(ctx, result.User); err != nil {
		return auth.Identity{}, err
	}
	return result.User, nil
}

// Whoami reports the stored identity and its permissions.
func (c *SessionCLI) Whoami() (auth.Snapshot, []rbac.Action) {
	snap := c.ac.Snapshot()
	if !snap.Authenticated() {
		return snap, nil
	}
	return snap, c.table.Actions(snap.Identity.Role).Sorted()
}

// Can reports whether the stored identity holds action.
func (c *SessionCLI) Can(action rbac.Action) bool {
	return c.ac.HasPermission(action)
}

// Logout clears the session file. Logging out twice is harmless.
func (c *SessionCLI) Logout(ctx context.Context) error {
	return c.ac.Logout(ctx)
}

// Close releases the auth context.
func (c *SessionCLI) Close() {
	c.ac.Close()
}
