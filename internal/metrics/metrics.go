// Package metrics exposes Prometheus counters for conversion batches.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrlokans/mimeroute/internal/batch"
)

const namespace = "mimeroute"

// Metrics holds the conversion metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ItemsTotal         *prometheus.CounterVec
	RouteHops          prometheus.Histogram
	ItemDuration       *prometheus.HistogramVec
	CleanupWarnings    prometheus.Counter
	ItemsInFlight      prometheus.Gauge
	JobsProcessed      *prometheus.CounterVec
	RetentionDeletions *prometheus.CounterVec
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.ItemsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Total number of batch items by outcome",
		},
		[]string{"outcome"},
	)

	m.RouteHops = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "route_hops",
			Help:      "Number of hops of executed conversion routes",
			Buckets:   []float64{1, 2, 3, 4},
		},
	)

	m.ItemDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "item_duration_seconds",
			Help:      "Duration of a single item conversion in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"outcome"},
	)

	m.CleanupWarnings = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "cleanup_warnings_total",
			Help:      "Transient files that could not be deleted",
		},
	)

	m.ItemsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_in_flight",
			Help:      "Number of items currently being converted",
		},
	)

	m.JobsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Total number of queued jobs by status",
		},
		[]string{"status"},
	)

	m.RetentionDeletions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "deleted_total",
			Help:      "Rows removed by retention cleanup",
		},
		[]string{"kind"},
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnEvent updates counters from batch events.
func (m *Metrics) OnEvent(_ context.Context, e batch.Event) {
	switch e.Type {
	case batch.EventStarted:
		m.ItemsInFlight.Inc()
		return
	case batch.EventCleanupWarning:
		m.CleanupWarnings.Inc()
		return
	case batch.EventSucceeded, batch.EventSkipped, batch.EventUnsupported, batch.EventFailed:
	default:
		return
	}

	m.ItemsInFlight.Dec()
	outcome := string(e.Type)
	m.ItemsTotal.WithLabelValues(outcome).Inc()
	if e.Duration > 0 {
		m.ItemDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
	}
	if e.Type == batch.EventSucceeded && e.Hops > 0 {
		m.RouteHops.Observe(float64(e.Hops))
	}
}

// JobFinished counts a processed job.
func (m *Metrics) JobFinished(err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	m.JobsProcessed.WithLabelValues(status).Inc()
}

// RetentionRan counts rows removed by a retention run.
func (m *Metrics) RetentionRan(events, jobs int64) {
	m.RetentionDeletions.WithLabelValues("audit_events").Add(float64(events))
	m.RetentionDeletions.WithLabelValues("jobs").Add(float64(jobs))
}

var _ batch.Observer = (*Metrics)(nil)
