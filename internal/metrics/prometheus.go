package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audio receiver
type Metrics struct {
	// Ingestion metrics
	IngestRequests  prometheus.Counter
	IngestSuccesses prometheus.Counter
	IngestFailures  prometheus.Counter
	IngestBytes     prometheus.Counter
	EncodeDuration  prometheus.Histogram

	// Catalog metrics
	CatalogSize       prometheus.Gauge
	RecordingDuration prometheus.Histogram

	// Playback metrics
	PlaybacksStarted prometheus.Counter
	PlaybackFailures prometheus.Counter

	// Notification metrics
	EventsPublished *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics on the given registerer. Tests use
// a fresh registry so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		IngestRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "omi_ingest_requests_total",
			Help: "Total number of audio ingestion requests received",
		}),
		IngestSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "omi_ingest_successes_total",
			Help: "Total number of recordings successfully written and cataloged",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "omi_ingest_failures_total",
			Help: "Total number of ingestion requests that failed",
		}),
		IngestBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "omi_ingest_bytes_total",
			Help: "Total PCM payload bytes accepted",
		}),
		EncodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "omi_encode_duration_seconds",
			Help:    "Time spent streaming a payload into its container file",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),

		// Catalog metrics
		CatalogSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "omi_catalog_recordings",
			Help: "Current number of cataloged recordings",
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "omi_recording_duration_seconds",
			Help:    "Audio duration of ingested recordings",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2 minutes
		}),

		// Playback metrics
		PlaybacksStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "omi_playbacks_started_total",
			Help: "Total number of playback sessions started",
		}),
		PlaybackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "omi_playback_failures_total",
			Help: "Total number of playback attempts that failed",
		}),

		// Notification metrics
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "omi_events_published_total",
			Help: "Total number of notification events published",
		}, []string{"type"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "omi_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "omi_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "omi_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordIngestSuccess records one committed recording
func (m *Metrics) RecordIngestSuccess(payloadBytes int64, durationSeconds, encodeSeconds float64) {
	m.IngestSuccesses.Inc()
	m.IngestBytes.Add(float64(payloadBytes))
	m.RecordingDuration.Observe(durationSeconds)
	m.EncodeDuration.Observe(encodeSeconds)
}

// RecordIngestFailure increments the ingestion failure counter
func (m *Metrics) RecordIngestFailure() {
	m.IngestFailures.Inc()
}

// SetCatalogSize sets the catalog size gauge
func (m *Metrics) SetCatalogSize(count int) {
	m.CatalogSize.Set(float64(count))
}

// RecordEventPublished increments the published-events counter for a type
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
