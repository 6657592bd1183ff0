package fetch

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newBackend(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestCallLiveEnvelope(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []project{{ID: 1, Name: "Al Fozan Tower"}},
		})
	})
	client := NewClient(Config{BaseURL: srv.URL + "/api"})

	out := Call(context.Background(), client, "/projects", Request{}, []project{})
	require.True(t, out.Live())
	assert.Equal(t, CauseNone, out.Cause)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, []project{{ID: 1, Name: "Al Fozan Tower"}}, out.Data)
	assert.Empty(t, out.Message)
}

func TestCallLiveBareBody(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":7,"name":"Bare"}]`))
	})
	client := NewClient(Config{BaseURL: srv.URL})

	out := Call(context.Background(), client, "/projects", Request{}, []project(nil))
	require.True(t, out.Live())
	assert.Equal(t, []project{{ID: 7, Name: "Bare"}}, out.Data)
}

func TestCallSendsJSONBody(t *testing.T) {
	var got project
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Demo"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":9,"name":"Created"}}`))
	})
	client := NewClient(Config{BaseURL: srv.URL})

	out := Call(context.Background(), client, "/projects", Request{
		Method: http.MethodPost,
		Header: http.Header{"X-Demo": []string{"yes"}},
		Body:   project{Name: "Created"},
	}, project{})
	require.True(t, out.Live())
	assert.Equal(t, "Created", got.Name)
	assert.Equal(t, 9, out.Data.ID)
}

func TestCallHTTPErrorFallsBack(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	client := NewClient(Config{BaseURL: srv.URL})
	fallback := []project{{ID: 1, Name: "Mock"}}

	out := Call(context.Background(), client, "/projects", Request{}, fallback)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Equal(t, CauseHTTPStatus, out.Cause)
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, fallback, out.Data)
	assert.Equal(t, DemoDataMessage, out.Message)
	assert.Error(t, out.Err)
}

func TestCallTimeoutFallsBackWithinDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)
	timeout := 100 * time.Millisecond
	client := NewClient(Config{BaseURL: srv.URL, Timeout: timeout})

	start := time.Now()
	out := Call(context.Background(), client, "/projects", Request{}, []project{})
	elapsed := time.Since(start)

	assert.Equal(t, SourceFallback, out.Source)
	assert.Equal(t, CauseTimeout, out.Cause)
	assert.Equal(t, []project{}, out.Data)
	assert.Less(t, elapsed, timeout+time.Second)
}

func TestCallUnreachableFallsBack(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	client := NewClient(Config{BaseURL: "http://" + addr, Timeout: time.Second})

	out := Call(context.Background(), client, "/projects", Request{}, []project{})
	assert.Equal(t, SourceFallback, out.Source)
	assert.Equal(t, CauseNetwork, out.Cause)
	assert.Equal(t, []project{}, out.Data)
}

func TestCallUndecodableBody(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})
	client := NewClient(Config{BaseURL: srv.URL})

	out := Call(context.Background(), client, "/projects", Request{}, []project{})
	assert.Equal(t, CauseDecode, out.Cause)
	assert.Equal(t, http.StatusOK, out.Status)
}

func TestCallRejectedEnvelope(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"Failed to fetch projects"}`))
	})
	client := NewClient(Config{BaseURL: srv.URL})

	out := Call(context.Background(), client, "/projects", Request{}, []project{})
	assert.Equal(t, CauseRejected, out.Cause)
}

func TestCallWithoutBackendIsNotAttempted(t *testing.T) {
	out := Call(context.Background(), NewClient(Config{}), "/projects", Request{}, []project{})
	assert.Equal(t, CauseNotAttempted, out.Cause)

	var nilClient *Client
	out = Call(context.Background(), nilClient, "/projects", Request{}, []project{})
	assert.Equal(t, CauseNotAttempted, out.Cause)
}

func TestCallDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := NewClient(Config{BaseURL: srv.URL})

	_ = Call(context.Background(), client, "/projects", Request{}, 0)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProbe(t *testing.T) {
	up := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	down := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	assert.True(t, NewClient(Config{BaseURL: up.URL}).Probe(context.Background(), "/projects"))
	assert.False(t, NewClient(Config{BaseURL: down.URL}).Probe(context.Background(), "/projects"))
	assert.False(t, NewClient(Config{}).Probe(context.Background(), "/projects"))
}

func TestMetricsCountOutcomes(t *testing.T) {
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := NewClient(Config{BaseURL: srv.URL}, WithMetrics(metrics))

	_ = Call(context.Background(), client, "/projects/12", Request{}, 0)
	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() != "insights_backend_calls_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["endpoint"] == "/projects/:id" && labels["source"] == "fallback" && labels["cause"] == "http_status" {
				found = true
				assert.Equal(t, 1.0, metric.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, found)
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "/projects/:id", endpointLabel("/projects/42"))
	assert.Equal(t, "/analytics/dashboard", endpointLabel("/analytics/dashboard?type=kpis"))
}
