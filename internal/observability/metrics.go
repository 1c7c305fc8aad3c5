package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	// Data source metrics.
	FetchesStarted *prometheus.CounterVec   // labels: source
	FetchesSettled *prometheus.CounterVec   // labels: source, outcome={success,failure,superseded}
	FetchDuration  *prometheus.HistogramVec // labels: source

	// Session metrics.
	ActiveSessions  prometheus.Gauge
	SessionsExpired prometheus.Counter

	// Backend client metrics.
	BackendRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	BackendDuration *prometheus.HistogramVec // labels: endpoint
	BackendCache    *prometheus.CounterVec   // labels: collection, result={hit,miss}

	// Event publishing metrics.
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error,dropped}
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchesStarted,
		m.FetchesSettled,
		m.FetchDuration,
		m.ActiveSessions,
		m.SessionsExpired,
		m.BackendRequests,
		m.BackendDuration,
		m.BackendCache,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_dashboard",
			Name:      "fetches_started_total",
			Help:      "Data source fetches started, by source.",
		}, []string{"source"}),
		FetchesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_dashboard",
			Name:      "fetches_settled_total",
			Help:      "Data source fetches settled, by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydro_dashboard",
			Name:      "fetch_duration_seconds",
			Help:      "Time from refetch to settle, by source.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro_dashboard",
			Name:      "active_sessions",
			Help:      "View sessions currently held in memory.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_dashboard",
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the idle sweep.",
		}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_dashboard",
			Name:      "backend_requests_total",
			Help:      "Backend API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydro_dashboard",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend API request duration in seconds, retries included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		BackendCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_dashboard",
			Name:      "backend_cache_total",
			Help:      "Backend cache lookups by collection and result.",
		}, []string{"collection", "result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_dashboard",
			Name:      "events_published_total",
			Help:      "View change events sent to the event topic, by outcome.",
		}, []string{"outcome"}),
	}
}
