// Package metrics exposes Prometheus instrumentation for the HTTP pipeline:
// request totals and latency, per-guard rejection counters, and a live
// session gauge fed by the session store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	GuardRejectionsTotal *prometheus.CounterVec
}

// New creates a Metrics set on a private registry, pre-registered with the
// standard Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GuardRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatgate_guard_rejections_total",
				Help: "Requests rejected by security guards, by guard and reason",
			},
			[]string{"guard", "reason"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.GuardRejectionsTotal,
	)

	return m
}

// RegisterSessionGauge exposes the current live session count. The callback
// is invoked at scrape time.
func (m *Metrics) RegisterSessionGauge(count func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chatgate_sessions_active",
			Help: "Current number of live sessions",
		},
		count,
	))
}

// RecordRejection increments the rejection counter for a guard.
func (m *Metrics) RecordRejection(guard, reason string) {
	m.GuardRejectionsTotal.WithLabelValues(guard, reason).Inc()
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
