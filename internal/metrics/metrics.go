// Package metrics provides Prometheus metrics for the capture service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsSubmitted *prometheus.CounterVec
	EventsRecorded    *prometheus.CounterVec
	RuleTransitions   *prometheus.CounterVec
	StoreFailures     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	LiveSessions      prometheus.Gauge
	DBSizeBytes       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_sessions_started_total",
				Help: "Total number of writing sessions started.",
			},
		),
		SessionsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_sessions_submitted_total",
				Help: "Total submissions by outcome (stored, backed_up, blocked).",
			},
			[]string{"outcome"},
		),
		EventsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_events_recorded_total",
				Help: "Total interaction events recorded by type.",
			},
			[]string{"type"},
		),
		RuleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_rule_transitions_total",
				Help: "Total rule lifecycle transitions by target status.",
			},
			[]string{"to"},
		),
		StoreFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_store_failures_total",
				Help: "Total persistence failures by operation.",
			},
			[]string{"op"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_request_duration_seconds",
				Help:    "HTTP request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		LiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_live_sessions",
				Help: "Number of sessions currently being written.",
			},
		),
		DBSizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_db_size_bytes",
				Help: "Size of the SQLite database in bytes.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.SessionsStarted)
	reg.MustRegister(m.SessionsSubmitted)
	reg.MustRegister(m.EventsRecorded)
	reg.MustRegister(m.RuleTransitions)
	reg.MustRegister(m.StoreFailures)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.LiveSessions)
	reg.MustRegister(m.DBSizeBytes)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvent increments the event counter.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsRecorded.WithLabelValues(eventType).Inc()
}

// RecordSubmission increments the submission counter.
func (m *Metrics) RecordSubmission(outcome string) {
	m.SessionsSubmitted.WithLabelValues(outcome).Inc()
}

// RecordRuleTransition increments the rule transition counter.
func (m *Metrics) RecordRuleTransition(to string) {
	m.RuleTransitions.WithLabelValues(to).Inc()
}

// RecordStoreFailure increments the persistence failure counter.
func (m *Metrics) RecordStoreFailure(op string) {
	m.StoreFailures.WithLabelValues(op).Inc()
}

// ObserveRequest records a request duration.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}
