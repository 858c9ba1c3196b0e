// Package metrics exposes Prometheus collectors for the planner service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "tourplanner"

// Computation outcomes
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	pathCache       *prometheus.CounterVec
	computations    *prometheus.CounterVec
	computeDuration prometheus.Histogram
	tourDuration    prometheus.Histogram
	optimizerPasses prometheus.Histogram
	edits           *prometheus.CounterVec
	sessions        prometheus.Gauge
	published       *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests."},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"method", "path"},
		),
		pathCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "path_cache_lookups_total", Help: "Shortest path tree lookups by result."},
			[]string{"result"},
		),
		computations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tour_computations_total", Help: "Tour computations by outcome."},
			[]string{"outcome"},
		),
		computeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "tour_computation_seconds", Help: "Wall-clock time of tour computations.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}},
		),
		tourDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "tour_duration_seconds", Help: "Total duration of computed tours.", Buckets: prometheus.ExponentialBuckets(300, 2, 8)},
		),
		optimizerPasses: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "optimizer_passes", Help: "Local search passes per computation.", Buckets: []float64{1, 2, 5, 10, 20, 50, 100}},
		),
		edits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tour_edits_total", Help: "Tour edits by action and status."},
			[]string{"action", "status"},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_active", Help: "Open planning sessions."},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Tour change events by publish status."},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.pathCache,
		m.computations,
		m.computeDuration,
		m.tourDuration,
		m.optimizerPasses,
		m.edits,
		m.sessions,
		m.published,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request. path is the route template.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObservePathCache implements network.CacheObserver.
func (m *Metrics) ObservePathCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.pathCache.WithLabelValues(result).Inc()
}

// ObserveComputation records a finished tour computation.
func (m *Metrics) ObserveComputation(outcome string, elapsed, total time.Duration, passes int) {
	m.computations.WithLabelValues(outcome).Inc()
	m.computeDuration.Observe(elapsed.Seconds())
	if outcome != OutcomeFailed {
		m.tourDuration.Observe(total.Seconds())
		m.optimizerPasses.Observe(float64(passes))
	}
}

// ObserveEdit records an edit attempt.
func (m *Metrics) ObserveEdit(action string, err error) {
	status := "ok"
	if err != nil {
		status = "rejected"
	}
	m.edits.WithLabelValues(action, status).Inc()
}

// SetSessions sets the number of open sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// ObservePublish records the outcome of an event publication.
func (m *Metrics) ObservePublish(err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.published.WithLabelValues(status).Inc()
}

// Module provides the metrics FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(New),
)
