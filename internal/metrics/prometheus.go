// Package metrics provides Prometheus metrics for the matching and recruitment API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Embedding call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Manager owns every Prometheus collector of the service. A nil *Manager is
// valid and records nothing, so services can run without metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Embeddings
	embedCalls    *prometheus.CounterVec
	embedDuration *prometheus.HistogramVec

	// Matching
	rankings          *prometheus.CounterVec
	rankingDuration   *prometheus.HistogramVec
	candidatesScored  prometheus.Counter
	dimensionMismatch prometheus.Counter

	// Recruitment
	transitions *prometheus.CounterVec

	// Recalculation jobs
	recalculated *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager on its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vietstart",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.embedCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_calls_total",
		Help:      "Embedding provider calls by provider and outcome",
	}, []string{"provider", "outcome"})

	m.embedDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_duration_seconds",
		Help:      "Embedding provider call latency",
		Buckets:   m.histogramBuckets,
	}, []string{"provider"})

	m.rankings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rankings_total",
		Help:      "Candidate rankings computed by mode and result",
	}, []string{"mode", "result"})

	m.rankingDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_duration_seconds",
		Help:      "Candidate ranking latency by mode",
		Buckets:   m.histogramBuckets,
	}, []string{"mode"})

	m.candidatesScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_scored_total",
		Help:      "Candidates scored across all rankings",
	})

	m.dimensionMismatch = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "vector_dimension_mismatch_total",
		Help:      "Comparisons skipped because the vectors had different dimensions",
	})

	m.transitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "engagement_events_total",
		Help:      "Engagement events by event and result",
	}, []string{"event", "result"})

	m.recalculated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embeddings_recalculated_total",
		Help:      "Entities re-embedded by kind and result",
	}, []string{"kind", "result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
}

// Registry returns the registry the collectors live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEmbedding records one embedding call.
func (m *Manager) RecordEmbedding(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.embedCalls.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.embedDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordRanking records one ranking call and how many candidates it scored.
func (m *Manager) RecordRanking(mode string, scored int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.rankings.WithLabelValues(mode, result(err)).Inc()
	m.rankingDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.candidatesScored.Add(float64(scored))
}

// RecordDimensionMismatch counts a skipped comparison.
func (m *Manager) RecordDimensionMismatch() {
	if m == nil {
		return
	}
	m.dimensionMismatch.Inc()
}

// RecordEngagementEvent records the outcome of an invite or transition.
func (m *Manager) RecordEngagementEvent(event string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, result(err)).Inc()
}

// RecordRecalculation records one re-embedded profile or startup.
func (m *Manager) RecordRecalculation(kind string, err error) {
	if m == nil {
		return
	}
	m.recalculated.WithLabelValues(kind, result(err)).Inc()
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
