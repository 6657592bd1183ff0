package portfolio

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfozan/insights/internal/platform/httpx"
)

func TestComputeKPIsFromMockProjects(t *testing.T) {
	k := ComputeKPIs(MockProjects())
	assert.Equal(t, 4, k.TotalProjects)
	assert.InDelta(t, 830.0, k.TotalRevenue, 0.001)
	assert.Equal(t, 450, k.TotalUnits)
	assert.Equal(t, 238, k.TotalUnitsSold)
	assert.InDelta(t, 52.89, k.SalesRate, 0.001)

	assert.Equal(t, KPIs{}, ComputeKPIs(nil))
}

func TestAnalyticsSections(t *testing.T) {
	a := MockAnalytics()
	require.Len(t, a.SalesData, 6)
	require.Len(t, a.RevenueData, 6)
	assert.Equal(t, "2024-Jan", a.SalesData[0].Period)

	part, err := a.Section(SectionKPIs)
	require.NoError(t, err)
	assert.Equal(t, a.KPIs, part)

	_, err = a.Section("marketTrends")
	assert.ErrorIs(t, err, ErrInvalidAnalyticsType)
}

func TestMockCopiesAreIndependent(t *testing.T) {
	p := MockProjects()
	p[0].Name = "changed"
	assert.Equal(t, "Al Fozan Tower", MockProjects()[0].Name)
}

func TestStoreProjectLifecycle(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	created := s.CreateProject(ProjectInput{Name: "Marina Heights", Type: "Residential", Budget: 90_000_000, Timeline: "Q3 2026", Units: 40, UnitsSold: 10}, now)
	assert.Equal(t, int64(5), created.ID)
	assert.Equal(t, "Planning", created.Status)
	assert.Equal(t, "2024-07-01", created.StartDate)
	assert.InDelta(t, 25.0, created.SalesRate, 0.001)
	assert.Len(t, s.Projects(), 5)

	updated, err := s.UpdateProject(created.ID, map[string]json.RawMessage{
		"id":         json.RawMessage(`99`),
		"units_sold": json.RawMessage(`20`),
		"status":     json.RawMessage(`"In Progress"`),
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "In Progress", updated.Status)
	assert.Equal(t, "Marina Heights", updated.Name)
	assert.InDelta(t, 50.0, updated.SalesRate, 0.001)

	_, err = s.UpdateProject(created.ID, map[string]json.RawMessage{"units_sold": json.RawMessage(`400`)})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	_, err = s.UpdateProject(created.ID, map[string]json.RawMessage{"units": json.RawMessage(`"many"`)})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	require.NoError(t, s.DeleteProject(created.ID))
	assert.ErrorIs(t, s.DeleteProject(created.ID), ErrProjectNotFound)
	_, err = s.UpdateProject(created.ID, nil)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestStoreCompetitorDefaults(t *testing.T) {
	s := NewStore()
	c := s.CreateCompetitor(CompetitorInput{Name: "Red Sea Developers"})
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, "stable", c.Trend)
	assert.Equal(t, "0%", c.ChangePercentage)

	updated, err := s.UpdateCompetitor(c.ID, map[string]json.RawMessage{"trend": json.RawMessage(`"up"`)})
	require.NoError(t, err)
	assert.Equal(t, "up", updated.Trend)

	require.NoError(t, s.DeleteCompetitor(1))
	assert.ErrorIs(t, s.DeleteCompetitor(1), ErrCompetitorNotFound)
	assert.Len(t, s.Competitors(), 4)
}

func TestStoreAnalyticsTracksProjects(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.DeleteProject(3))
	k := s.Analytics().KPIs
	assert.Equal(t, 3, k.TotalProjects)
	assert.Equal(t, 400, k.TotalUnits)
}

func TestCacheVersioning(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := NewCache(client, time.Minute)

	key, err := cache.BuildKey(ctx, "portfolio", "analytics")
	require.NoError(t, err)
	assert.Equal(t, "portfolio:analytics:1", key)

	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return KPIs{TotalProjects: calls}, nil
	}
	var out KPIs
	require.NoError(t, cache.FetchJSON(ctx, key, &out, load))
	require.NoError(t, cache.FetchJSON(ctx, key, &out, load))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, out.TotalProjects)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "portfolio", "analytics")
	require.NoError(t, err)
	assert.Equal(t, "portfolio:analytics:2", key)
	require.NoError(t, cache.FetchJSON(ctx, key, &out, load))
	assert.Equal(t, 2, out.TotalProjects)
}

func TestNilCacheComputesDirectly(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", key)

	var out KPIs
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return KPIs{TotalUnits: 7}, nil
	}))
	assert.Equal(t, 7, out.TotalUnits)
	assert.NoError(t, cache.Bump(ctx))
}

func TestFormatterGroupsDigits(t *testing.T) {
	d := NewFormatter("en").KPIs(KPIs{TotalProjects: 4, TotalRevenue: 1250.5, TotalUnits: 12500, TotalUnitsSold: 238, SalesRate: 52.89})
	assert.Equal(t, "4", d.TotalProjects)
	assert.Equal(t, "SAR 1,250.5M", d.TotalRevenue)
	assert.Equal(t, "12,500", d.TotalUnits)
	assert.Equal(t, "52.9%", d.SalesRate)
}
