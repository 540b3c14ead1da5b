package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder captures gateway metrics.
type Recorder interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
	IncConversion(operation, outcome string)
	IncCleanupFailure()
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) IncConversion(string, string)                   {}
func (Noop) IncCleanupFailure()                             {}

// Prom implements Recorder on its own Prometheus registry.
type Prom struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	conversions     *prometheus.CounterVec
	cleanupFailures prometheus.Counter
}

// NewProm registers the gateway metrics under namespace.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"method", "route"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions by operation and outcome",
		}, []string{"operation", "outcome"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspace_cleanup_failures_total",
			Help:      "Temporary paths that could not be removed",
		}),
	}
	p.registry.MustRegister(
		p.requests, p.latency, p.conversions, p.cleanupFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// ObserveRequest counts a request and records its latency.
func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// IncConversion counts a finished conversion.
func (p *Prom) IncConversion(operation, outcome string) {
	p.conversions.WithLabelValues(operation, outcome).Inc()
}

// IncCleanupFailure counts a path left behind by a workspace release.
func (p *Prom) IncCleanupFailure() {
	p.cleanupFailures.Inc()
}

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
