package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recording engine
type Metrics struct {
	// Normalization metrics
	Normalizations        *prometheus.CounterVec
	NormalizeDuration     *prometheus.HistogramVec
	ActiveDecodeContexts  prometheus.Gauge
	DecodeCleanupFailures prometheus.Counter

	// Archive metrics
	Archives        *prometheus.CounterVec
	ArchiveSize     prometheus.Histogram
	ArchiveDuration prometheus.Histogram

	// Session metrics
	ActiveSessions prometheus.Gauge
	Recordings     *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Normalizations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_normalizations_total",
			Help: "Total number of normalized captures by outcome",
		}, []string{"outcome"}),
		NormalizeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recorder_normalize_duration_seconds",
			Help:    "Time spent normalizing one capture",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		}, []string{"outcome"}),
		ActiveDecodeContexts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recorder_active_decode_contexts",
			Help: "Current number of open decode contexts",
		}),
		DecodeCleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "recorder_decode_cleanup_failures_total",
			Help: "Total number of decode contexts that failed to release",
		}),

		Archives: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_archives_total",
			Help: "Total number of archive requests by outcome",
		}, []string{"outcome"}),
		ArchiveSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recorder_archive_size_bytes",
			Help:    "Size of assembled archives in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 12), // 64KB to ~128MB
		}),
		ArchiveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recorder_archive_duration_seconds",
			Help:    "Time spent assembling archives",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recorder_active_sessions",
			Help: "Current number of wizard sessions",
		}),
		Recordings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_recordings_total",
			Help: "Total number of stored recordings by category",
		}, []string{"category"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recorder_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recorder_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordNormalization records one finished normalization
func (m *Metrics) RecordNormalization(outcome string, durationSeconds float64) {
	m.Normalizations.WithLabelValues(outcome).Inc()
	m.NormalizeDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// DecodeContextOpened increments the open decode context gauge
func (m *Metrics) DecodeContextOpened() {
	m.ActiveDecodeContexts.Inc()
}

// DecodeContextClosed decrements the open decode context gauge
func (m *Metrics) DecodeContextClosed(failed bool) {
	m.ActiveDecodeContexts.Dec()
	if failed {
		m.DecodeCleanupFailures.Inc()
	}
}

// RecordArchive records an archive request
func (m *Metrics) RecordArchive(outcome string, sizeBytes int, durationSeconds float64) {
	m.Archives.WithLabelValues(outcome).Inc()
	m.ArchiveDuration.Observe(durationSeconds)
	if sizeBytes > 0 {
		m.ArchiveSize.Observe(float64(sizeBytes))
	}
}

// SetActiveSessions sets the current number of sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordRecording increments the stored recordings counter
func (m *Metrics) RecordRecording(category string) {
	m.Recordings.WithLabelValues(category).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
