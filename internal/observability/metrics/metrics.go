// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcription_proxy"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Submission metrics
	TranscriptionsSubmitted *prometheus.CounterVec
	TranscriptionsRejected  *prometheus.CounterVec

	// Provider metrics
	ProviderOutcomes *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderErrors   *prometheus.CounterVec

	// Async result delivery
	Callbacks      *prometheus.CounterVec
	StatusLookups  *prometheus.CounterVec
	StoreEntries   prometheus.Gauge
	StoreExpired   *prometheus.CounterVec
	SweepDurations prometheus.Histogram

	// Event publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"route", "method", "code"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600, 3600},
		}, []string{"route", "method"}),

		TranscriptionsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_submitted_total",
			Help:      "Total number of transcription requests that passed validation",
		}, []string{"source"}),
		TranscriptionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_rejected_total",
			Help:      "Total number of transcription requests rejected before reaching the provider",
		}, []string{"reason"}),

		ProviderOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_outcomes_total",
			Help:      "Provider responses by classified shape",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}, []string{"provider"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures by upstream status",
		}, []string{"provider", "status"}),

		Callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Provider callbacks by result",
		}, []string{"result"}),
		StatusLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_lookups_total",
			Help:      "Status endpoint lookups by result",
		}, []string{"result"}),
		StoreEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_entries",
			Help:      "Number of results held in the result store",
		}),
		StoreExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_expired_total",
			Help:      "Results removed by the sweep, by expiry reason",
		}, []string{"reason"}),
		SweepDurations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_sweep_duration_seconds",
			Help:      "Duration of result store sweeps",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}),

		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, code int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPLatency.WithLabelValues(route, method).Observe(durationSeconds)
}

// RecordSubmitted records a validated submission from a file or URL source.
func (m *Metrics) RecordSubmitted(source string) {
	m.TranscriptionsSubmitted.WithLabelValues(source).Inc()
}

// RecordRejected records a submission rejected during validation.
func (m *Metrics) RecordRejected(reason string) {
	m.TranscriptionsRejected.WithLabelValues(reason).Inc()
}

// RecordProviderCall records a provider call and its classified outcome.
func (m *Metrics) RecordProviderCall(provider, outcome string, latencySeconds float64) {
	m.ProviderLatency.WithLabelValues(provider).Observe(latencySeconds)
	m.ProviderOutcomes.WithLabelValues(provider, outcome).Inc()
}

// RecordProviderError records a provider failure with its upstream status.
func (m *Metrics) RecordProviderError(provider string, status int) {
	m.ProviderErrors.WithLabelValues(provider, strconv.Itoa(status)).Inc()
}

// RecordCallback records a callback outcome (stored, degraded, unauthorized, error).
func (m *Metrics) RecordCallback(result string) {
	m.Callbacks.WithLabelValues(result).Inc()
}

// RecordStatusLookup records a status lookup (found, not_found, error).
func (m *Metrics) RecordStatusLookup(result string) {
	m.StatusLookups.WithLabelValues(result).Inc()
}

// RecordSweep records one sweep of the result store.
func (m *Metrics) RecordSweep(aged, retrieved, remaining int, durationSeconds float64) {
	m.StoreExpired.WithLabelValues("age").Add(float64(aged))
	m.StoreExpired.WithLabelValues("retrieved").Add(float64(retrieved))
	m.StoreEntries.Set(float64(remaining))
	m.SweepDurations.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
