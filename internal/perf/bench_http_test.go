package perf

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/alfozan/insights/internal/auth"
	"github.com/alfozan/insights/internal/fetch"
	"github.com/alfozan/insights/internal/gate"
	"github.com/alfozan/insights/internal/portfolio"
	"github.com/alfozan/insights/internal/rbac"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// A hung backend must cost no more than the client timeout plus scheduling
// slack.
func TestFallbackLatencyTargets(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	const timeout = 40 * time.Millisecond
	client := fetch.NewClient(fetch.Config{BaseURL: srv.URL, Timeout: timeout}, fetch.WithLogger(quiet))

	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		start := time.Now()
		out := fetch.Call(context.Background(), client, "/projects", fetch.Request{}, portfolio.MockProjects())
		samples = append(samples, time.Since(start))
		if out.Cause != fetch.CauseTimeout {
			t.Fatalf("expected timeout fallback, got %s", out.Cause)
		}
	}

	threshold := timeout + 250*time.Millisecond
	if p95 := percentile95(samples); p95 > threshold {
		t.Fatalf("fallback latency regression: p95=%s threshold=%s", p95, threshold)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func BenchmarkGuard(b *testing.B) {
	snap := auth.Snapshot{
		State:    auth.StateAuthenticated,
		Identity: auth.Identity{ID: "2", Email: "manager@alfozan.com", Name: "Manager", Role: rbac.RoleManager},
	}
	table := rbac.DefaultTable()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if gate.Guard(snap, table, rbac.ActionViewAnalytics).Kind != gate.ShowContent {
			b.Fatal("unexpected decision")
		}
	}
}

func BenchmarkDashboardWithoutBackend(b *testing.B) {
	loader := portfolio.NewLoader(fetch.NewClient(fetch.Config{}, fetch.WithLogger(quiet)))
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if !loader.Dashboard(ctx).UsingMockData() {
			b.Fatal("expected demo data")
		}
	}
}
