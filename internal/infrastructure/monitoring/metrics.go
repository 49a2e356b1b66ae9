package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

const metricsNamespace = "sharedcookie"

// Metrics manages the Prometheus metrics and implements service.Metrics.
type Metrics struct {
	SessionsIssued         *prometheus.CounterVec
	SessionIssueLatency    prometheus.Histogram
	SessionsValidated      *prometheus.CounterVec
	SessionValidateLatency prometheus.Histogram
	KeyRingRefreshes       *prometheus.CounterVec
	KeyRingKeys            prometheus.Gauge
	KeyRingLastSuccess     prometheus.Gauge
	KeyStoreLatency        *prometheus.HistogramVec
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
}

var _ service.Metrics = (*Metrics)(nil)

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sessions_issued_total",
				Help:      "Total number of login cookies issued, by result.",
			},
			[]string{"result"},
		),
		SessionIssueLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "session_issue_duration_seconds",
				Help:      "Latency of cookie issuance.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SessionsValidated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sessions_validated_total",
				Help:      "Total number of cookie validations, by result.",
			},
			[]string{"result"},
		),
		SessionValidateLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "session_validate_duration_seconds",
				Help:      "Latency of cookie validation.",
				Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
		),
		KeyRingRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "keyring_refresh_total",
				Help:      "Total number of key ring reloads, by result.",
			},
			[]string{"result"},
		),
		KeyRingKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "keyring_keys",
				Help:      "Number of keys in the last successfully loaded key ring.",
			},
		),
		KeyRingLastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "keyring_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful key ring reload.",
			},
		),
		KeyStoreLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "keystore_operation_duration_seconds",
				Help:      "Latency of key store operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"store", "operation", "result"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests, by route template and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests, by route template.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordSessionIssue implements service.Metrics.
func (m *Metrics) RecordSessionIssue(success bool, errorKind string, duration time.Duration) {
	result := "ok"
	if !success {
		result = errorKind
	}
	m.SessionsIssued.WithLabelValues(result).Inc()
	m.SessionIssueLatency.Observe(duration.Seconds())
}

// RecordSessionValidate implements service.Metrics.
func (m *Metrics) RecordSessionValidate(result string, duration time.Duration) {
	m.SessionsValidated.WithLabelValues(result).Inc()
	m.SessionValidateLatency.Observe(duration.Seconds())
}

// RecordKeyRingRefresh implements service.Metrics.
func (m *Metrics) RecordKeyRingRefresh(success bool, keyCount int) {
	if !success {
		m.KeyRingRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.KeyRingRefreshes.WithLabelValues("ok").Inc()
	m.KeyRingKeys.Set(float64(keyCount))
	m.KeyRingLastSuccess.SetToCurrentTime()
}

// RecordKeyStoreOperation implements service.Metrics.
func (m *Metrics) RecordKeyStoreOperation(store, operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(errors.KindOf(err))
	}
	m.KeyStoreLatency.WithLabelValues(store, operation, result).Observe(duration.Seconds())
}
