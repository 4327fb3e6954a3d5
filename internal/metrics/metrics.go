// Package metrics bundles the Prometheus collectors exposed by the
// harvester. All methods are nil-safe so instrumented code never has to
// guard against a missing registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors on a dedicated registry.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesTotal      *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetryDelay      prometheus.Histogram
	RecordsTotal    *prometheus.CounterVec
	SinkErrorsTotal prometheus.Counter
	StopsTotal      *prometheus.CounterVec
}

// New constructs and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiharvest_pages_total",
			Help: "Pages fetched, by target and outcome.",
		},
		[]string{"target", "outcome"},
	)
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiharvest_http_attempts_total",
			Help: "HTTP attempts, by result class.",
		},
		[]string{"result"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apiharvest_request_duration_seconds",
			Help:    "HTTP attempt latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retryDelay := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apiharvest_retry_delay_seconds",
			Help:    "Backoff delays scheduled between attempts.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiharvest_records_total",
			Help: "Records delivered to the sink, by target.",
		},
		[]string{"target"},
	)
	sinkErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apiharvest_sink_errors_total",
			Help: "Sink save calls that returned an error.",
		},
	)
	stops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiharvest_session_stops_total",
			Help: "Session stop events, by reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(pages, attempts, requestDuration, retryDelay, records, sinkErrors, stops)

	return &Metrics{
		Registry:        registry,
		PagesTotal:      pages,
		AttemptsTotal:   attempts,
		RequestDuration: requestDuration,
		RetryDelay:      retryDelay,
		RecordsTotal:    records,
		SinkErrorsTotal: sinkErrors,
		StopsTotal:      stops,
	}
}

// IncPage counts a fetched page by outcome.
func (m *Metrics) IncPage(target, outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(target, outcome).Inc()
}

// IncAttempt counts an HTTP attempt by result class.
func (m *Metrics) IncAttempt(result string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveRequest records an HTTP attempt duration.
func (m *Metrics) ObserveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// ObserveRetryDelay records a scheduled backoff delay.
func (m *Metrics) ObserveRetryDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.RetryDelay.Observe(d.Seconds())
}

// AddRecords counts records delivered for a target.
func (m *Metrics) AddRecords(target string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(target).Add(float64(n))
}

// IncSinkError counts a failed sink save.
func (m *Metrics) IncSinkError() {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.Inc()
}

// IncStop counts a session stop by reason.
func (m *Metrics) IncStop(reason string) {
	if m == nil {
		return
	}
	m.StopsTotal.WithLabelValues(reason).Inc()
}
