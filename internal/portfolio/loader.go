package portfolio

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/alfozan/insights/internal/fetch"
)

// Deleted is the payload of a delete call.
type Deleted struct {
	Message string `json:"message"`
}

// Loader fetches page data from the remote backend. Every method resolves to
// an Outcome: live data when the backend answers, demo data otherwise.
// Writes take the locally applied result as their fallback.
type Loader struct {
	client *fetch.Client
}

// NewLoader builds a Loader over client.
func NewLoader(client *fetch.Client) *Loader {
	return &Loader{client: client}
}

// Projects loads the project list.
func (l *Loader) Projects(ctx context.Context) fetch.Outcome[[]Project] {
	return fetch.Call(ctx, l.client, "/projects", fetch.Request{}, MockProjects())
}

// CreateProject posts a new project. local is the project as created in the
// local store.
func (l *Loader) CreateProject(ctx context.Context, in ProjectInput, local Project) fetch.Outcome[Project] {
	return fetch.Call(ctx, l.client, "/projects", fetch.Request{Method: http.MethodPost, Body: in}, local)
}

// UpdateProject replaces a project.
func (l *Loader) UpdateProject(ctx context.Context, id int64, p Project) fetch.Outcome[Project] {
	p.ID = id
	return fetch.Call(ctx, l.client, fmt.Sprintf("/projects/%d", id), fetch.Request{Method: http.MethodPut, Body: p}, p)
}

// DeleteProject removes a project.
func (l *Loader) DeleteProject(ctx context.Context, id int64) fetch.Outcome[Deleted] {
	return fetch.Call(ctx, l.client, fmt.Sprintf("/projects/%d", id), fetch.Request{Method: http.MethodDelete},
		Deleted{Message: "Project deleted successfully"})
}

// Competitors loads the competitor list.
func (l *Loader) Competitors(ctx context.Context) fetch.Outcome[[]Competitor] {
	return fetch.Call(ctx, l.client, "/competitors", fetch.Request{}, MockCompetitors())
}

// CreateCompetitor posts a new competitor.
func (l *Loader) CreateCompetitor(ctx context.Context, in CompetitorInput, local Competitor) fetch.Outcome[Competitor] {
	return fetch.Call(ctx, l.client, "/competitors", fetch.Request{Method: http.MethodPost, Body: in}, local)
}

// UpdateCompetitor replaces a competitor.
func (l *Loader) UpdateCompetitor(ctx context.Context, id int64, c Competitor) fetch.Outcome[Competitor] {
	c.ID = id
	return fetch.Call(ctx, l.client, fmt.Sprintf("/competitors/%d", id), fetch.Request{Method: http.MethodPut, Body: c}, c)
}

// DeleteCompetitor removes a competitor.
func (l *Loader) DeleteCompetitor(ctx context.Context, id int64) fetch.Outcome[Deleted] {
	return fetch.Call(ctx, l.client, fmt.Sprintf("/competitors/%d", id), fetch.Request{Method: http.MethodDelete},
		Deleted{Message: "Competitor deleted successfully"})
}

// Analytics loads the dashboard analytics.
func (l *Loader) Analytics(ctx context.Context) fetch.Outcome[Analytics] {
	return fetch.Call(ctx, l.client, "/analytics/dashboard", fetch.Request{}, MockAnalytics())
}

// Dashboard is everything the overview page renders.
type Dashboard struct {
	Projects    fetch.Outcome[[]Project]    `json:"projects"`
	Competitors fetch.Outcome[[]Competitor] `json:"competitors"`
	Analytics   fetch.Outcome[Analytics]    `json:"analytics"`
	KPIDisplay  KPIDisplay                  `json:"kpi_display"`
	Status      fetch.Status                `json:"status"`
}

// UsingMockData reports whether any section fell back.
func (d Dashboard) UsingMockData() bool {
	return !d.Projects.Live() || !d.Competitors.Live() || !d.Analytics.Live()
}

// Dashboard loads the three sections concurrently. Each section falls back
// independently, so the result is always complete.
func (l *Loader) Dashboard(ctx context.Context) Dashboard {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Projects = l.Projects(gctx)
		return nil
	})
	g.Go(func() error {
		d.Competitors = l.Competitors(gctx)
		return nil
	})
	g.Go(func() error {
		d.Analytics = l.Analytics(gctx)
		return nil
	})
	_ = g.Wait()
	return d
}
