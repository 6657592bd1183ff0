package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/shared"
)

// LoginSessionKey is the device session field holding the directory login
// session id. It is only set once the directory has recorded the session.
const LoginSessionKey = "login_session_id"

// SessionChecker confirms that a directory login session still stands.
type SessionChecker interface {
	SessionActive(ctx context.Context, id string) (bool, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	table     *rbac.Table
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, table *rbac.Table) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = rbac.DefaultTable()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		table:     table,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type meResponse struct {
	User        Identity      `json:"user"`
	Permissions []rbac.Action `json:"permissions"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if creds.Email == "" || creds.Password == "" {
		httpx.Fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Email address is not valid")
		return
	}

	result, err := h.service.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		httpx.Fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	ac := FromContext(r.Context())
	if err := ac.Login(r.Context(), result.User); err != nil {
		h.logger.Error("persist login", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	registered := true
	if err := h.service.RegisterSession(r.Context(), result, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
		registered = false
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if previous := sess.Get(LoginSessionKey); previous != "" {
			if err := h.service.RemoveSession(r.Context(), previous); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		sess.Rotate()
		sess.SetUser(result.User.ID)
		if registered {
			sess.Set(LoginSessionKey, result.SessionID)
		} else {
			sess.Delete(LoginSessionKey)
		}
	}

	h.logger.Info("login", slog.String("user_id", result.User.ID), slog.String("role", result.User.Role.String()))
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: result, Message: "Login successful"})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ac := FromContext(r.Context())
	if err := ac.Logout(r.Context()); err != nil {
		h.logger.Warn("clear session", slog.Any("error", err))
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if id := sess.Get(LoginSessionKey); id != "" {
			if err := h.service.RemoveSession(r.Context(), id); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
			sess.Delete(LoginSessionKey)
		}
		sess.SetUser("")
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Logout successful"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	snap := FromContext(r.Context()).Snapshot()
	if !snap.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: meResponse{
		User:        snap.Identity,
		Permissions: h.table.Actions(snap.Identity.Role).Sorted(),
	}})
}
