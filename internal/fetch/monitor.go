package fetch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the connectivity indicator shown on the dashboard.
type Status struct {
	Connected     bool      `json:"connected"`
	UsingMockData bool      `json:"usingMockData"`
	LastChecked   time.Time `json:"lastChecked"`
}

// Monitor probes the backend on a fixed interval and publishes the latest
// Status. Each probe cycle replaces the status as a whole.
type Monitor struct {
	client   *Client
	endpoint string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	status atomic.Pointer[Status]
	group  singleflight.Group

	mu     sync.Mutex
	life   context.Context
	probes sync.WaitGroup
}

// NewMonitor builds a Monitor. Until the first probe completes the status
// reports demo data.
func NewMonitor(client *Client, endpoint string, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		client:   client,
		endpoint: endpoint,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	m.status.Store(&Status{Connected: false, UsingMockData: true, LastChecked: m.now()})
	return m
}

// Status returns the most recently published status.
func (m *Monitor) Status() Status {
	return *m.status.Load()
}

// Check probes immediately. Concurrent callers share one probe, which runs
// under the monitor's lifetime: a caller giving up leaves it running, while
// stopping the monitor cancels it.
func (m *Monitor) Check(ctx context.Context) Status {
	ch := m.group.DoChan("probe", func() (interface{}, error) {
		life, done, ok := m.acquire()
		if !ok {
			return m.Status(), nil
		}
		defer done()
		connected := m.client.Probe(life, m.endpoint)
		if life.Err() != nil {
			return m.Status(), nil
		}
		next := &Status{Connected: connected, UsingMockData: !connected, LastChecked: m.now()}
		prev := m.status.Swap(next)
		if m.client != nil {
			m.client.metrics.setConnected(connected)
		}
		if prev == nil || prev.Connected != connected {
			m.logger.Info("backend connectivity changed", slog.Bool("connected", connected), slog.String("endpoint", m.endpoint))
		}
		return *next, nil
	})
	select {
	case <-ctx.Done():
		return m.Status()
	case res := <-ch:
		return res.Val.(Status)
	}
}

// acquire registers an in-flight probe against the current lifetime. It
// fails once that lifetime has ended.
func (m *Monitor) acquire() (context.Context, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	life := m.life
	if life == nil {
		life = context.Background()
	}
	if life.Err() != nil {
		return nil, nil, false
	}
	m.probes.Add(1)
	return life, m.probes.Done, true
}

// drain waits for probes started under an ended lifetime.
func (m *Monitor) drain() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes.Wait()
}

// Run probes once, then every interval, until ctx is cancelled. Probes,
// including ones triggered through Check, are bound to ctx while it runs.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.life = ctx
	m.mu.Unlock()
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Start runs the monitor in a goroutine. The returned stop func cancels it
// and waits for the loop and any in-flight probe to exit.
func (m *Monitor) Start(parent context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Run(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
		m.drain()
	}
}
