package portfolio

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfozan/insights/internal/platform/httpx"
)

// Store is the in-memory dataset behind the canned API. It starts from the
// demo data and is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	projects    map[int64]Project
	competitors map[int64]Competitor
	nextProject int64
	nextComp    int64
	sales       []Metric
	revenue     []Metric
}

// NewStore seeds a Store with the demo dataset.
func NewStore() *Store {
	s := &Store{
		projects:    make(map[int64]Project),
		competitors: make(map[int64]Competitor),
		sales:       mockSales,
		revenue:     mockRevenue,
	}
	for _, p := range mockProjects {
		s.projects[p.ID] = p
		s.nextProject = max(s.nextProject, p.ID)
	}
	for _, c := range mockCompetitors {
		s.competitors[c.ID] = c
		s.nextComp = max(s.nextComp, c.ID)
	}
	return s
}

// Projects lists projects ordered by id.
func (s *Store) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateProject adds a project in Planning status started on now.
func (s *Store) CreateProject(in ProjectInput, now time.Time) Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProject++
	p := Project{
		ID:        s.nextProject,
		Name:      in.Name,
		Type:      in.Type,
		Status:    "Planning",
		Location:  in.Location,
		Budget:    in.Budget,
		Timeline:  in.Timeline,
		Units:     in.Units,
		UnitsSold: in.UnitsSold,
		Manager:   in.Manager,
		StartDate: now.Format(time.DateOnly),
		EndDate:   in.EndDate,
	}
	p.SalesRate = salesRate(p.Units, p.UnitsSold)
	s.projects[p.ID] = p
	return p
}

// UpdateProject overlays the given JSON fields onto a project. The id never
// changes and the sales rate is recomputed.
func (s *Store) UpdateProject(id int64, patch map[string]json.RawMessage) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	var next Project
	if err := overlay(current, patch, &next); err != nil {
		return Project{}, err
	}
	next.ID = id
	if next.UnitsSold > next.Units || next.Progress < 0 || next.Progress > 100 {
		return Project{}, fmt.Errorf("%w: units or progress out of range", httpx.ErrValidation)
	}
	next.SalesRate = salesRate(next.Units, next.UnitsSold)
	s.projects[id] = next
	return next, nil
}

// DeleteProject removes a project.
func (s *Store) DeleteProject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

// Competitors lists competitors ordered by id.
func (s *Store) Competitors() []Competitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Competitor, 0, len(s.competitors))
	for _, c := range s.competitors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateCompetitor adds a competitor. Trend defaults to stable.
func (s *Store) CreateCompetitor(in CompetitorInput) Competitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextComp++
	c := Competitor{
		ID:               s.nextComp,
		Name:             in.Name,
		MarketShare:      in.MarketShare,
		DigitalPresence:  in.DigitalPresence,
		Website:          in.Website,
		RecentActivity:   in.RecentActivity,
		Trend:            in.Trend,
		ChangePercentage: in.ChangePercentage,
	}
	if c.Trend == "" {
		c.Trend = "stable"
	}
	if c.ChangePercentage == "" {
		c.ChangePercentage = "0%"
	}
	s.competitors[c.ID] = c
	return c
}

// UpdateCompetitor overlays the given JSON fields onto a competitor.
func (s *Store) UpdateCompetitor(id int64, patch map[string]json.RawMessage) (Competitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.competitors[id]
	if !ok {
		return Competitor{}, ErrCompetitorNotFound
	}
	var next Competitor
	if err := overlay(current, patch, &next); err != nil {
		return Competitor{}, err
	}
	next.ID = id
	s.competitors[id] = next
	return next, nil
}

// DeleteCompetitor removes a competitor.
func (s *Store) DeleteCompetitor(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.competitors[id]; !ok {
		return ErrCompetitorNotFound
	}
	delete(s.competitors, id)
	return nil
}

// Analytics derives the dashboard analytics from the current projects.
func (s *Store) Analytics() Analytics {
	projects := s.Projects()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BuildAnalytics(projects, s.sales, s.revenue)
}

func overlay(current any, patch map[string]json.RawMessage, dest any) error {
	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, dest); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}
