package monitoring

import (
	"io"

	"github.com/rcrowley/go-metrics"
)

// Metric names recorded by the scheduler
const (
	OperationsSubmitted = "operations.submitted"
	OperationsRejected  = "operations.rejected"
	OperationsPromoted  = "operations.promoted"
	OperationsTimedOut  = "operations.timed_out"
	OperationsTerminal  = "operations.terminal"
	FailoverReassigned  = "failover.reassigned"
	FailoverStranded    = "failover.stranded"
	ProbeFailures       = "probe.failures"
	ServersOnline       = "servers.online"
	OperationsActive    = "operations.active"
)

// Metrics holds in-process scheduler counters and gauges
type Metrics struct {
	registry metrics.Registry
}

// NewMetrics creates a metrics set backed by its own registry
func NewMetrics() *Metrics {
	return &Metrics{registry: metrics.NewRegistry()}
}

// Inc bumps the named counter by one
func (m *Metrics) Inc(name string) {
	metrics.GetOrRegisterCounter(name, m.registry).Inc(1)
}

// Set updates the named gauge
func (m *Metrics) Set(name string, value int64) {
	metrics.GetOrRegisterGauge(name, m.registry).Update(value)
}

// Snapshot returns the current value of every counter and gauge
func (m *Metrics) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	m.registry.Each(func(name string, metric interface{}) {
		switch v := metric.(type) {
		case metrics.Counter:
			out[name] = v.Count()
		case metrics.Gauge:
			out[name] = v.Value()
		}
	})
	return out
}

// WriteJSON renders the registry as JSON
func (m *Metrics) WriteJSON(w io.Writer) {
	metrics.WriteJSONOnce(m.registry, w)
}
