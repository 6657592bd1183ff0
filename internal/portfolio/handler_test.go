package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/fetch"
	"github.com/alfozan/insights/internal/gate"
	"github.com/alfozan/insights/internal/rbac"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Total   *int            `json:"total"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type fixedStatus fetch.Status

func (s fixedStatus) Status() fetch.Status { return fetch.Status(s) }

func newRouter(t *testing.T, role rbac.Role, opts Options) http.Handler {
	t.Helper()
	ac := auth.NewContext(nil, nil, nil)
	if role == "" {
		ac.Restore(context.Background())
	} else {
		require.NoError(t, ac.Login(context.Background(), auth.Identity{ID: "1", Email: "u@alfozan.com", Name: "User", Role: role}))
	}
	h := NewHandler(nil, opts)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithContext(req.Context(), ac)))
		})
	})
	r.Route("/api", func(r chi.Router) { h.MountRoutes(r, gate.Middleware{}) })
	return r
}

func call(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	var resp response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestListProjects(t *testing.T) {
	h := newRouter(t, rbac.RoleAnalyst, Options{})
	rec, resp := call(t, h, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 4, *resp.Total)

	var projects []Project
	require.NoError(t, json.Unmarshal(resp.Data, &projects))
	assert.Equal(t, "Al Fozan Tower", projects[0].Name)
}

func TestCreateProjectValidation(t *testing.T) {
	h := newRouter(t, rbac.RoleManager, Options{})

	rec, resp := call(t, h, http.MethodPost, "/api/projects", map[string]any{"name": "X", "type": "Commercial", "timeline": "Q1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: budget", resp.Error)

	rec, resp = call(t, h, http.MethodPost, "/api/projects", map[string]any{"type": "Commercial"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: name", resp.Error)

	rec, resp = call(t, h, http.MethodPost, "/api/projects", ProjectInput{Name: "Oasis", Type: "Residential", Budget: 5e7, Timeline: "Q2 2026", Units: 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Project created successfully", resp.Message)
	var p Project
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	assert.Equal(t, int64(5), p.ID)
	assert.Equal(t, "Planning", p.Status)
}

func TestProjectRoutesArePermissionGated(t *testing.T) {
	analyst := newRouter(t, rbac.RoleAnalyst, Options{})
	rec, _ := call(t, analyst, http.MethodPost, "/api/projects", ProjectInput{Name: "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = call(t, analyst, http.MethodDelete, "/api/projects/1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := newRouter(t, rbac.RoleAdministrator, Options{})
	rec, _ = call(t, admin, http.MethodGet, "/api/analytics/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	anon := newRouter(t, "", Options{})
	rec, _ = call(t, anon, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateAndDeleteProject(t *testing.T) {
	h := newRouter(t, rbac.RoleManager, Options{})

	rec, resp := call(t, h, http.MethodPut, "/api/projects/2", map[string]any{"progress": 40})
	require.Equal(t, http.StatusOK, rec.Code)
	var p Project
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	assert.Equal(t, 40, p.Progress)

	rec, resp = call(t, h, http.MethodPut, "/api/projects/42", map[string]any{"progress": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Project not found", resp.Error)

	rec, _ = call(t, h, http.MethodDelete, "/api/projects/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = call(t, h, http.MethodDelete, "/api/projects/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Project deleted successfully", resp.Message)
}

func TestCompetitorCRUD(t *testing.T) {
	h := newRouter(t, rbac.RoleManager, Options{})

	rec, resp := call(t, h, http.MethodPost, "/api/competitors", map[string]any{"market_share": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: name", resp.Error)

	rec, resp = call(t, h, http.MethodPost, "/api/competitors", map[string]any{"name": "Rival", "trend": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid value for field: trend", resp.Error)

	rec, resp = call(t, h, http.MethodPost, "/api/competitors", CompetitorInput{Name: "Rival", MarketShare: 3.5})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Competitor added successfully", resp.Message)

	rec, _ = call(t, h, http.MethodPut, "/api/competitors/5", map[string]any{"digital_presence": 50})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = call(t, h, http.MethodGet, "/api/competitors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, *resp.Total)

	rec, resp = call(t, h, http.MethodDelete, "/api/competitors/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Competitor not found", resp.Error)
}

func TestAnalyticsTypeSelector(t *testing.T) {
	h := newRouter(t, rbac.RoleAnalyst, Options{})

	rec, resp := call(t, h, http.MethodGet, "/api/analytics/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a Analytics
	require.NoError(t, json.Unmarshal(resp.Data, &a))
	assert.Equal(t, 4, a.KPIs.TotalProjects)

	rec, resp = call(t, h, http.MethodGet, "/api/analytics/dashboard?type=revenue_data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "revenue_data", resp.Type)
	var series []Metric
	require.NoError(t, json.Unmarshal(resp.Data, &series))
	assert.Len(t, series, 6)

	rec, resp = call(t, h, http.MethodGet, "/api/analytics/dashboard?type=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid analytics type", resp.Error)
}

func TestMockDelayHonoursCancellation(t *testing.T) {
	h := NewHandler(nil, Options{Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, h.pause(ctx))

	h = NewHandler(nil, Options{Delay: time.Millisecond})
	assert.True(t, h.pause(context.Background()))
}

func TestDashboardFallsBackPerSection(t *testing.T) {
	var hits atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/api/projects":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":77,"name":"Live Project","units":10,"units_sold":5}]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer backend.Close()

	loader := NewLoader(fetch.NewClient(fetch.Config{BaseURL: backend.URL + "/api"}))
	status := fixedStatus{Connected: true, LastChecked: time.Now()}
	h := newRouter(t, rbac.RoleAnalyst, Options{Loader: loader, Status: status})

	rec, resp := call(t, h, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fetch.DemoDataMessage, resp.Message)
	assert.Equal(t, int32(3), hits.Load())

	var d struct {
		Projects    fetch.Outcome[[]Project]    `json:"projects"`
		Competitors fetch.Outcome[[]Competitor] `json:"competitors"`
		Analytics   fetch.Outcome[Analytics]    `json:"analytics"`
		KPIDisplay  KPIDisplay                  `json:"kpi_display"`
		Status      fetch.Status                `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &d))
	assert.Equal(t, fetch.SourceLive, d.Projects.Source)
	assert.Equal(t, "Live Project", d.Projects.Data[0].Name)
	assert.Equal(t, fetch.SourceFallback, d.Competitors.Source)
	assert.Equal(t, fetch.CauseHTTPStatus, d.Competitors.Cause)
	assert.Len(t, d.Competitors.Data, 4)
	assert.Equal(t, fetch.SourceFallback, d.Analytics.Source)
	assert.Equal(t, "SAR 830.0M", d.KPIDisplay.TotalRevenue)
	assert.True(t, d.Status.Connected)
}

func TestWritesReachBackendWhenConfigured(t *testing.T) {
	type write struct{ method, path string }
	seen := make(chan write, 4)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- write{r.Method, r.URL.Path}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":900,"name":"Backend Tower","status":"Planning"}}`))
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{"success":true,"data":{"message":"gone"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer backend.Close()

	loader := NewLoader(fetch.NewClient(fetch.Config{BaseURL: backend.URL + "/api"}))
	h := newRouter(t, rbac.RoleManager, Options{Loader: loader})
	in := ProjectInput{Name: "Tower", Type: "Residential", Budget: 5, Timeline: "Q3", Units: 10}

	rec, resp := call(t, h, http.MethodPost, "/api/projects", in)
	require.Equal(t, http.StatusCreated, rec.Code)
	var p Project
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	assert.Equal(t, int64(900), p.ID, "a live backend answer wins")
	assert.Equal(t, write{http.MethodPost, "/api/projects"}, <-seen)

	rec, resp = call(t, h, http.MethodPut, "/api/projects/2", map[string]any{"progress": 55})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &p))
	assert.Equal(t, int64(2), p.ID, "a failing backend keeps the local result")
	assert.Equal(t, 55, p.Progress)
	assert.Equal(t, write{http.MethodPut, "/api/projects/2"}, <-seen)

	rec, resp = call(t, h, http.MethodDelete, "/api/competitors/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Competitor deleted successfully", resp.Message)
	assert.Equal(t, write{http.MethodDelete, "/api/competitors/1"}, <-seen)

	rec, _ = call(t, h, http.MethodDelete, "/api/competitors/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, seen, 0, "writes the store rejects are not forwarded")
}

func TestWritesWithoutBackendStayLocal(t *testing.T) {
	loader := NewLoader(fetch.NewClient(fetch.Config{}))
	h := newRouter(t, rbac.RoleManager, Options{Loader: loader})

	rec, resp := call(t, h, http.MethodPost, "/api/competitors", CompetitorInput{Name: "Rival"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var c Competitor
	require.NoError(t, json.Unmarshal(resp.Data, &c))
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, "Rival", c.Name)
}
