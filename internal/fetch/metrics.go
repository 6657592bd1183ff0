package fetch

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts facade outcomes and probe results.
type Metrics struct {
	calls     *prometheus.CounterVec
	probes    *prometheus.CounterVec
	connected prometheus.Gauge
}

// NewMetrics registers facade collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_backend_calls_total",
			Help: "Backend calls by endpoint, payload source and fallback cause.",
		}, []string{"endpoint", "source", "cause"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_backend_probes_total",
			Help: "Connectivity probes by result.",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insights_backend_connected",
			Help: "1 when the last connectivity probe reached the backend.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.probes, m.connected)
	}
	return m
}

func (m *Metrics) observeCall(endpoint string, source Source, cause Cause) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(endpointLabel(endpoint), string(source), string(cause)).Inc()
}

func (m *Metrics) observeProbe(ok bool) {
	if m == nil {
		return
	}
	result := "down"
	if ok {
		result = "up"
	}
	m.probes.WithLabelValues(result).Inc()
}

func (m *Metrics) setConnected(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// endpointLabel collapses numeric path segments so ids do not explode label
// cardinality.
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
