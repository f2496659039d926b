package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus instruments for the quiz operations.
type Metrics struct {
	registry          *prometheus.Registry
	OperationCounter  *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New creates a metrics instance with its own registry so tests can build
// several without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		OperationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quiz",
				Name:      "operations_total",
				Help:      "Total number of quiz operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quiz",
				Name:      "operation_duration_seconds",
				Help:      "Quiz operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation, status string, start time.Time) {
	m.OperationCounter.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler exposes the registry for a /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
