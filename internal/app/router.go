package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/gate"
	"github.com/alfozan/insights/internal/observability"
	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/portfolio"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/shared"
	"github.com/alfozan/insights/internal/users"
	"github.com/alfozan/insights/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	Table              *rbac.Table
	AuthHandler        *auth.Handler
	PortfolioHandler   *portfolio.Handler
	StatusHandler      *StatusHandler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	LoginSessions      auth.SessionChecker
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	if params.Table == nil {
		params.Table = rbac.DefaultTable()
	}
	cfg := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Table:          params.Table,
		Metrics:        params.Metrics,
		LoginSessions:  params.LoginSessions,
	}
	root := chi.NewRouter()
	for _, mw := range MiddlewareStack(cfg) {
		root.Use(mw)
	}

	// Liveness and scrapes stay up when redis is not.
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	guard := gate.Middleware{Logger: params.Logger, Recorder: params.Metrics}

	root.Group(func(r chi.Router) {
		for _, mw := range SessionStack(cfg) {
			r.Use(mw)
		}
		mountSessionRoutes(r, params, guard)
	})

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Not found")
	})
	return root
}

func mountSessionRoutes(r chi.Router, params RouterParams, guard gate.Middleware) {
	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.StatusHandler != nil {
			r.Route("/status", func(r chi.Router) {
				params.StatusHandler.MountRoutes(r, guard)
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				params.UsersHandler.MountRoutes(r, guard)
			})
		}
		if params.PortfolioHandler != nil {
			params.PortfolioHandler.MountRoutes(r, guard)
		}
	})

	if params.PermissionsHandler != nil {
		r.With(guard.Require(rbac.ActionSystemSettings)).Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.With(guard.Require(rbac.ActionSystemSettings)).Route("/jobs", params.JobHandler.MountRoutes)
	}
}
