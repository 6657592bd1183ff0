package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alfozan/insights/internal/fetch"
	"github.com/alfozan/insights/internal/gate"
	"github.com/alfozan/insights/internal/platform/httpx"
	"github.com/alfozan/insights/internal/rbac"
)

// StatusSource exposes the backend connectivity indicator.
type StatusSource interface {
	Status() fetch.Status
}

// Handler serves the canned portfolio API and the dashboard aggregate.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	cache     *Cache
	loader    *Loader
	status    StatusSource
	format    Formatter
	delay     time.Duration
	validator *validator.Validate
	now       func() time.Time
}

// Options configures a Handler.
type Options struct {
	Store  *Store
	Cache  *Cache
	Loader *Loader
	Status StatusSource
	Locale string
	// Delay is slept before answering canned API reads and writes.
	Delay time.Duration
}

// NewHandler constructs the portfolio handler.
func NewHandler(logger *slog.Logger, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = NewStore()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		logger:    logger,
		store:     store,
		cache:     opts.Cache,
		loader:    opts.Loader,
		status:    opts.Status,
		format:    NewFormatter(opts.Locale),
		delay:     opts.Delay,
		validator: v,
		now:       time.Now,
	}
}

// MountRoutes registers the API under r, guarding each route with the
// permission it needs.
func (h *Handler) MountRoutes(r chi.Router, guard gate.Middleware) {
	r.Route("/projects", func(r chi.Router) {
		r.With(guard.Require(rbac.ActionRead)).Get("/", h.listProjects)
		r.With(guard.Require(rbac.ActionCreate)).Post("/", h.createProject)
		r.With(guard.Require(rbac.ActionUpdate)).Put("/{id}", h.updateProject)
		r.With(guard.Require(rbac.ActionDelete)).Delete("/{id}", h.deleteProject)
	})
	r.Route("/competitors", func(r chi.Router) {
		r.With(guard.Require(rbac.ActionRead)).Get("/", h.listCompetitors)
		r.With(guard.Require(rbac.ActionCreate)).Post("/", h.createCompetitor)
		r.With(guard.Require(rbac.ActionUpdate)).Put("/{id}", h.updateCompetitor)
		r.With(guard.Require(rbac.ActionDelete)).Delete("/{id}", h.deleteCompetitor)
	})
	r.With(guard.Require(rbac.ActionViewAnalytics)).Get("/analytics/dashboard", h.analytics)
	r.With(guard.Require(rbac.ActionRead)).Get("/dashboard", h.dashboard)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	if !h.pause(r.Context()) {
		return
	}
	projects := h.store.Projects()
	total := len(projects)
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: projects, Total: &total})
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var in ProjectInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := h.validate(in); msg != "" {
		httpx.Fail(w, http.StatusBadRequest, msg)
		return
	}
	if !h.pause(r.Context()) {
		return
	}
	project := h.store.CreateProject(in, h.now())
	project = forward(h, "create project", project, func(l *Loader) fetch.Outcome[Project] {
		return l.CreateProject(r.Context(), in, project)
	})
	h.invalidate(r.Context())
	h.logger.Info("project created", slog.Int64("id", project.ID), slog.String("name", project.Name))
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: project, Message: "Project created successfully"})
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	project, err := h.store.UpdateProject(id, patch)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	project = forward(h, "update project", project, func(l *Loader) fetch.Outcome[Project] {
		return l.UpdateProject(r.Context(), id, project)
	})
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: project, Message: "Project updated successfully"})
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteProject(id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	forward(h, "delete project", Deleted{}, func(l *Loader) fetch.Outcome[Deleted] {
		return l.DeleteProject(r.Context(), id)
	})
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Project deleted successfully"})
}

func (h *Handler) listCompetitors(w http.ResponseWriter, r *http.Request) {
	if !h.pause(r.Context()) {
		return
	}
	competitors := h.store.Competitors()
	total := len(competitors)
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: competitors, Total: &total})
}

func (h *Handler) createCompetitor(w http.ResponseWriter, r *http.Request) {
	var in CompetitorInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := h.validate(in); msg != "" {
		httpx.Fail(w, http.StatusBadRequest, msg)
		return
	}
	competitor := h.store.CreateCompetitor(in)
	competitor = forward(h, "create competitor", competitor, func(l *Loader) fetch.Outcome[Competitor] {
		return l.CreateCompetitor(r.Context(), in, competitor)
	})
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: competitor, Message: "Competitor added successfully"})
}

func (h *Handler) updateCompetitor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	competitor, err := h.store.UpdateCompetitor(id, patch)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	competitor = forward(h, "update competitor", competitor, func(l *Loader) fetch.Outcome[Competitor] {
		return l.UpdateCompetitor(r.Context(), id, competitor)
	})
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: competitor, Message: "Competitor updated successfully"})
}

func (h *Handler) deleteCompetitor(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteCompetitor(id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	forward(h, "delete competitor", Deleted{}, func(l *Loader) fetch.Outcome[Deleted] {
		return l.DeleteCompetitor(r.Context(), id)
	})
	h.invalidate(r.Context())
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Competitor deleted successfully"})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	if !h.pause(r.Context()) {
		return
	}
	data := h.cachedAnalytics(r.Context())
	section := strings.TrimSpace(r.URL.Query().Get("type"))
	if section == "" {
		httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: data})
		return
	}
	part, err := data.Section(section)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid analytics type")
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Data: part, Type: section})
}

func (h *Handler) cachedAnalytics(ctx context.Context) Analytics {
	key, err := h.cache.BuildKey(ctx, "portfolio", "analytics")
	if err == nil {
		var out Analytics
		err = h.cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
			return h.store.Analytics(), nil
		})
		if err == nil {
			return out
		}
	}
	h.logger.Warn("analytics cache", slog.Any("error", err))
	return h.store.Analytics()
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "dashboard loader not configured")
		return
	}
	d := h.loader.Dashboard(r.Context())
	d.KPIDisplay = h.format.KPIs(d.Analytics.Data.KPIs)
	if h.status != nil {
		d.Status = h.status.Status()
	}
	env := httpx.Envelope{Success: true, Data: d}
	if d.UsingMockData() {
		env.Message = fetch.DemoDataMessage
	}
	httpx.JSON(w, http.StatusOK, env)
}

// forward mirrors a write already applied to the store onto the backend.
// local is the fallback, so without a reachable backend the response is the
// store's result.
func forward[T any](h *Handler, op string, local T, send func(*Loader) fetch.Outcome[T]) T {
	if h.loader == nil {
		return local
	}
	out := send(h.loader)
	if !out.Live() {
		h.logger.Debug("write kept local", slog.String("op", op), slog.String("cause", string(out.Cause)))
	}
	return out.Data
}

// pause sleeps for the configured delay. It returns false when the request
// was cancelled meanwhile.
func (h *Handler) pause(ctx context.Context) bool {
	if h.delay <= 0 {
		return true
	}
	t := time.NewTimer(h.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (h *Handler) invalidate(ctx context.Context) {
	if err := h.cache.Bump(ctx); err != nil {
		h.logger.Warn("bump portfolio cache", slog.Any("error", err))
	}
}

func (h *Handler) validate(v any) string {
	err := h.validator.Struct(v)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return "Missing required field: " + fe.Field()
		}
		return "Invalid value for field: " + fe.Field()
	}
	return "Invalid request body"
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		httpx.Fail(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, ErrCompetitorNotFound):
		httpx.Fail(w, http.StatusNotFound, "Competitor not found")
	case errors.Is(err, httpx.ErrValidation):
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
	default:
		h.logger.Error("portfolio store", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func decodePatch(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	var patch map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return patch, true
}
