package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alfozan/insights/internal/fetch"
	"github.com/alfozan/insights/internal/gate"
	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/rbac"
)

// StatusReader yields the current connectivity indicator.
type StatusReader interface {
	Status() fetch.Status
}

// ProbeTrigger requests a fresh probe. Inline triggers return the new status
// and done=true; queued triggers return done=false.
type ProbeTrigger func(ctx context.Context) (status fetch.Status, done bool, err error)

// InlineProbe triggers the in-process monitor.
func InlineProbe(m *fetch.Monitor) ProbeTrigger {
	return func(ctx context.Context) (fetch.Status, bool, error) {
		return m.Check(ctx), true, nil
	}
}

// StatusHandler serves the backend connectivity indicator.
type StatusHandler struct {
	reader  StatusReader
	trigger ProbeTrigger
	logger  *slog.Logger
}

// NewStatusHandler constructs a StatusHandler. trigger may be nil.
func NewStatusHandler(reader StatusReader, trigger ProbeTrigger, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{reader: reader, trigger: trigger, logger: logger}
}

// MountRoutes registers the status routes. Reading requires a login, forcing a
// probe requires read access.
func (h *StatusHandler) MountRoutes(r chi.Router, guard gate.Middleware) {
	r.With(guard.Require("")).Get("/", h.status)
	r.With(guard.Require(rbac.ActionRead)).Post("/refresh", h.refresh)
}

func (h *StatusHandler) status(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: h.reader.Status()})
}

func (h *StatusHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "probe refresh is not available")
		return
	}
	status, done, err := h.trigger(r.Context())
	if err != nil {
		h.logger.Error("trigger backend probe", slog.Any("error", err))
		httpx.Fail(w, http.StatusServiceUnavailable, "Probe could not be scheduled")
		return
	}
	if !done {
		httpx.JSON(w, http.StatusAccepted, httpx.Envelope{Success: true, Data: h.reader.Status(), Message: "Probe queued"})
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: status})
}
