package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfozan/insights/internal/rbac"
)

// State is the lifecycle phase of a Context.
type State int

const (
	// StateLoading means session restoration has not completed.
	StateLoading State = iota
	// StateAnonymous means nobody is logged in.
	StateAnonymous
	// StateAuthenticated means an identity is present.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Snapshot is an immutable view of a Context at one point in time.
type Snapshot struct {
	State    State
	Identity Identity
}

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

// SessionStore persists the single identity slot of a device.
type SessionStore interface {
	Restore(ctx context.Context) (Identity, bool, error)
	Save(ctx context.Context, identity Identity) error
	Clear(ctx context.Context) error
}

// Context is the single source of truth for who is logged in. Transitions
// are serialized; the latest completed transition wins.
type Context struct {
	mu      sync.Mutex
	store   SessionStore
	table   *rbac.Table
	logger  *slog.Logger
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// NewContext builds a Context in StateLoading. A nil table selects
// rbac.DefaultTable.
func NewContext(store SessionStore, table *rbac.Table, logger *slog.Logger) *Context {
	if table == nil {
		table = rbac.DefaultTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		store:  store,
		table:  table,
		logger: logger,
		snap:   Snapshot{State: StateLoading},
		subs:   make(map[int]chan Snapshot),
	}
}

// Restore completes the Loading phase from the session store. Storage
// failures are logged and leave the context anonymous. Calling Restore after
// the Loading phase is a no-op.
func (c *Context) Restore(ctx context.Context) Snapshot {
	c.mustBeProvided()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State != StateLoading {
		return c.snap
	}
	next := Snapshot{State: StateAnonymous}
	if c.store != nil {
		identity, ok, err := c.store.Restore(ctx)
		switch {
		case err != nil:
			c.logger.Warn("restore session", slog.Any("error", err))
		case ok:
			next = Snapshot{State: StateAuthenticated, Identity: identity}
		}
	}
	c.setLocked(next)
	return next
}

// Login replaces the current identity and persists it. The identity must be
// structurally valid once its role is normalized. On a persistence failure the state is left unchanged.
func (c *Context) Login(ctx context.Context, identity Identity) error {
	c.mustBeProvided()
	identity = identity.Normalize()
	if err := identity.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Save(ctx, identity); err != nil {
			return fmt.Errorf("auth: save session: %w", err)
		}
	}
	c.setLocked(Snapshot{State: StateAuthenticated, Identity: identity})
	return nil
}

// Logout returns the context to StateAnonymous and clears the persisted
// record. It is idempotent; a clear failure is returned after the in-memory
// state has already moved to anonymous.
func (c *Context) Logout(ctx context.Context) error {
	c.mustBeProvided()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State != StateAnonymous {
		c.setLocked(Snapshot{State: StateAnonymous})
	}
	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("auth: clear session: %w", err)
		}
	}
	return nil
}

// HasPermission reports whether the current identity's role grants action.
// It is false while loading or anonymous.
func (c *Context) HasPermission(action rbac.Action) bool {
	c.mustBeProvided()
	snap := c.Snapshot()
	if !snap.Authenticated() {
		return false
	}
	return c.table.Allows(snap.Identity.Role, action)
}

// Table returns the permission table the context evaluates against.
func (c *Context) Table() *rbac.Table {
	c.mustBeProvided()
	return c.table
}

// Snapshot returns the current state.
func (c *Context) Snapshot() Snapshot {
	c.mustBeProvided()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe returns a channel that receives the latest snapshot after every
// transition, starting with the current one. Slow readers only observe the
// most recent snapshot. The returned cancel func releases the subscription.
func (c *Context) Subscribe() (<-chan Snapshot, func()) {
	c.mustBeProvided()
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if c.closed {
		ch <- c.snap
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snap
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription. The context keeps answering queries.
func (c *Context) Close() {
	c.mustBeProvided()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Context) setLocked(next Snapshot) {
	c.snap = next
	for _, ch := range c.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

func (c *Context) mustBeProvided() {
	if c == nil {
		panic(ErrNoProvider)
	}
}
