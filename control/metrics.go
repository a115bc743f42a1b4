// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector backed by a private prometheus registry.
// Counters and gauges are registered on first use.

package control

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry holds the counters and gauges of one runtime instance.
// A nil *MetricsRegistry is valid and discards every update.
type MetricsRegistry struct {
	mu        sync.Mutex
	namespace string
	reg       *prometheus.Registry
	counters  map[string]prometheus.Counter
	gauges    map[string]prometheus.Gauge
	updated   time.Time
}

// NewMetricsRegistry creates an empty registry. Metric names are prefixed
// with namespace.
func NewMetricsRegistry(namespace string) *MetricsRegistry {
	return &MetricsRegistry{
		namespace: namespace,
		reg:       prometheus.NewRegistry(),
		counters:  make(map[string]prometheus.Counter),
		gauges:    make(map[string]prometheus.Gauge),
	}
}

// Registry exposes the underlying prometheus registry.
func (mr *MetricsRegistry) Registry() *prometheus.Registry {
	if mr == nil {
		return nil
	}
	return mr.reg
}

// Inc increments counter key by one.
func (mr *MetricsRegistry) Inc(key string) {
	mr.Add(key, 1)
}

// Add increments counter key by v.
func (mr *MetricsRegistry) Add(key string, v float64) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	c, ok := mr.counters[key]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: mr.namespace,
			Name:      key,
			Help:      key,
		})
		mr.reg.MustRegister(c)
		mr.counters[key] = c
	}
	mr.updated = time.Now()
	mr.mu.Unlock()
	c.Add(v)
}

// Set sets or updates gauge key.
func (mr *MetricsRegistry) Set(key string, v float64) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	g, ok := mr.gauges[key]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: mr.namespace,
			Name:      key,
			Help:      key,
		})
		mr.reg.MustRegister(g)
		mr.gauges[key] = g
	}
	mr.updated = time.Now()
	mr.mu.Unlock()
	g.Set(v)
}

// Updated returns the time of the last update.
func (mr *MetricsRegistry) Updated() time.Time {
	if mr == nil {
		return time.Time{}
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.updated
}

// GetSnapshot gathers the registry and returns fully qualified metric names
// mapped to their current values.
func (mr *MetricsRegistry) GetSnapshot() map[string]float64 {
	out := make(map[string]float64)
	if mr == nil {
		return out
	}
	families, err := mr.reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}
