package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/gate"
	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/rbac"
	"github.com/alfozan/insights/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router, guard gate.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(rbac.ActionManageUsers))
		r.Get("/", h.listUsers)
		r.Patch("/{id}", h.updateUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	total := len(list)
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: list, Total: &total})
}

type updateRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.IsActive == nil {
		httpx.Fail(w, http.StatusBadRequest, "Missing required field: is_active")
		return
	}
	id := chi.URLParam(r, "id")
	actor := auth.FromContext(r.Context()).Snapshot().Identity
	err := h.service.SetActive(r.Context(), actor.ID, id, *req.IsActive)
	switch {
	case err == nil:
	case errors.Is(err, ErrSelfDeactivation):
		httpx.Fail(w, http.StatusBadRequest, "You cannot deactivate your own account")
		return
	case errors.Is(err, shared.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "User not found")
		return
	default:
		h.logger.Error("update user failed", slog.String("id", id), slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("user updated", slog.String("id", id), slog.Bool("active", *req.IsActive), slog.String("actor", actor.ID))
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "User updated successfully"})
}
