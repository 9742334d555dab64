// Package telemetry exposes live pairs through Prometheus, an HTTP summary
// endpoint and a NATS subject.
package telemetry

import (
	"net/http"

	"github.com/mrzor/pingpong-analyzer/internal/live"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records pair counts and stack times.
type Metrics struct {
	registry       *prometheus.Registry
	stackHistogram *prometheus.HistogramVec
	pairCounter    *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stackHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pingpong_stack_microseconds",
				Help:    "Time spent inside send and receive calls",
				Buckets: prometheus.ExponentialBuckets(1, 2, 20), // 1us to ~0.5s
			},
			[]string{"kind"},
		),
		pairCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pingpong_pairs_total",
				Help: "Matched entry/exit pairs",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(m.stackHistogram, m.pairCounter)
	return m
}

// HandlePair observes one pair.
func (m *Metrics) HandlePair(_ int, p live.Pair) error {
	kind := string(p.Kind)
	m.stackHistogram.WithLabelValues(kind).Observe(p.StackUs())
	m.pairCounter.WithLabelValues(kind).Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
