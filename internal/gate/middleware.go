package gate

import (
	"log/slog"
	"net/http"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/rbac"
)

// Middleware maps gate decisions onto HTTP responses. It expects the auth
// context to be injected by an outer middleware.
type Middleware struct {
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// DecisionRecorder receives every verdict the middleware reaches.
// *observability.Metrics implements it.
type DecisionRecorder interface {
	ObserveDecision(decision, action string)
}

func (m Middleware) record(d Decision, action rbac.Action) {
	if m.Recorder != nil {
		m.Recorder.ObserveDecision(d.Kind.String(), string(action))
	}
}

// Require lets the request through only when the identity holds action. An
// empty action requires login only.
func (m Middleware) Require(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := Check(auth.FromContext(r.Context()), action)
			m.record(d, action)
			if d.Kind == ShowContent {
				next.ServeHTTP(w, r)
				return
			}
			m.reject(w, r, d, action)
		})
	}
}

// RequireAny lets the request through when at least one action is held.
func (m Middleware) RequireAny(actions ...rbac.Action) func(http.Handler) http.Handler {
	if len(actions) == 0 {
		return m.Require("")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := auth.FromContext(r.Context())
			snap, table := ac.Snapshot(), ac.Table()
			var d Decision
			for _, action := range actions {
				d = Guard(snap, table, action)
				if d.Kind != ShowDenied {
					break
				}
			}
			m.record(d, actions[0])
			if d.Kind == ShowContent {
				next.ServeHTTP(w, r)
				return
			}
			m.reject(w, r, d, actions[0])
		})
	}
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, d Decision, action rbac.Action) {
	switch d.Kind {
	case ShowLoading:
		w.Header().Set("Retry-After", "1")
		httpx.Problem(w, http.StatusServiceUnavailable, "Loading", "session is still being restored")
	case ShowLogin:
		httpx.Problem(w, http.StatusUnauthorized, "Login Required", "Please log in to access this page.")
	default:
		if m.Logger != nil {
			m.Logger.Info("access denied",
				slog.String("role", d.Role.String()),
				slog.String("action", string(action)),
				slog.String("path", r.URL.Path))
		}
		httpx.Denied(w, d.Role.String())
	}
}
