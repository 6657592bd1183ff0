package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStartsInDemoMode(t *testing.T) {
	m := NewMonitor(NewClient(Config{}), "/projects", time.Minute, nil)
	st := m.Status()
	assert.False(t, st.Connected)
	assert.True(t, st.UsingMockData)
	assert.False(t, st.LastChecked.IsZero())
}

func TestMonitorCheckTracksBackend(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewMonitor(NewClient(Config{BaseURL: srv.URL}), "/projects", time.Minute, nil)
	st := m.Check(context.Background())
	assert.True(t, st.Connected)
	assert.False(t, st.UsingMockData)
	assert.Equal(t, st, m.Status())

	healthy.Store(false)
	st = m.Check(context.Background())
	assert.False(t, st.Connected)
	assert.True(t, st.UsingMockData)
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(NewClient(Config{BaseURL: srv.URL}), "/projects", 20*time.Millisecond, nil)
	stop := m.Start(context.Background())

	require.Eventually(t, func() bool { return probes.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	stop()

	after := probes.Load()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, after, probes.Load())
	assert.True(t, m.Status().Connected)
}

func TestMonitorStopCancelsHungCheck(t *testing.T) {
	entered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	m := NewMonitor(NewClient(Config{BaseURL: srv.URL, Timeout: 30 * time.Second}), "/projects", time.Hour, nil)
	stop := m.Start(context.Background())

	// A caller that gives up early must not keep the check alive, nor end it.
	callerCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never saw the check")
	}
	st := m.Check(callerCtx)
	assert.True(t, st.UsingMockData)

	start := time.Now()
	stop()
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, m.Status().UsingMockData, "a cancelled check does not publish")
}
