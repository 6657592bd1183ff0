// Package gate decides whether protected content may be shown to the current
// identity.
package gate

import (
	"context"
	"fmt"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/rbac"
)

// Kind enumerates gate outcomes.
type Kind int

const (
	ShowLoading Kind = iota
	ShowLogin
	ShowDenied
	ShowContent
)

func (k Kind) String() string {
	switch k {
	case ShowLoading:
		return "loading"
	case ShowLogin:
		return "login"
	case ShowDenied:
		return "denied"
	case ShowContent:
		return "content"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Decision is the gate verdict. Role is set only for ShowDenied.
type Decision struct {
	Kind Kind
	Role rbac.Role
}

// Guard evaluates snap against required. An empty required action only
// demands an authenticated identity.
func Guard(snap auth.Snapshot, table *rbac.Table, required rbac.Action) Decision {
	switch snap.State {
	case auth.StateLoading:
		return Decision{Kind: ShowLoading}
	case auth.StateAuthenticated:
	default:
		return Decision{Kind: ShowLogin}
	}
	if required == "" || table.Allows(snap.Identity.Role, required) {
		return Decision{Kind: ShowContent}
	}
	return Decision{Kind: ShowDenied, Role: snap.Identity.Role}
}

// Check evaluates the current state of ac.
func Check(ac *auth.Context, required rbac.Action) Decision {
	return Guard(ac.Snapshot(), ac.Table(), required)
}

// Watch emits a fresh decision after every transition of ac, starting with
// the current one. Only the latest decision is buffered. The channel closes
// when ctx is done or ac is closed.
func Watch(ctx context.Context, ac *auth.Context, required rbac.Action) <-chan Decision {
	snaps, cancel := ac.Subscribe()
	table := ac.Table()
	out := make(chan Decision, 1)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-snaps:
				if !ok {
					return
				}
				publish(out, Guard(snap, table, required))
			}
		}
	}()
	return out
}

func publish(out chan Decision, d Decision) {
	select {
	case out <- d:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- d
}
