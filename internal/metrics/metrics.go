package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Operations             *prometheus.CounterVec
	OperationDuration      *prometheus.HistogramVec
	HTTPRequests           *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
	NotificationsPublished *prometheus.CounterVec
	RateLimited            prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regtrack_operations_total",
			Help: "Core operations by name and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regtrack_operation_duration_seconds",
			Help:    "Duration of core operations including their transaction",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regtrack_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regtrack_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: durationBuckets,
		}, []string{"route", "method"}),
		NotificationsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regtrack_notifications_published_total",
			Help: "Notification rows handed to the dispatcher, by kind and result",
		}, []string{"kind", "result"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "regtrack_rate_limited_total",
			Help: "Requests rejected by the per-tenant rate limiter",
		}),
	}
}

// ObserveOperation records one core operation. Call with the time taken at
// the start of the operation.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(route, method, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementPublished(kind, result string) {
	if m == nil {
		return
	}
	m.NotificationsPublished.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncrementRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
