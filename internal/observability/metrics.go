package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Controller action rate by resource, action, format and outcome
	// (success, invalid, not_found, error). Watch for: invalid vs success ratio.
	ResourceActionsTotal *prometheus.CounterVec

	// Failed writes (create/update rejected by validation, destroy refused).
	// Watch for: form abandonment, client bugs, validation regressions.
	WriteFailuresTotal *prometheus.CounterVec

	// Representation render latency by format. Watch for: slow template sets.
	RenderDuration *prometheus.HistogramVec

	// Representation cache hits by format. Misses render from the store.
	RepresentationCacheHitsTotal *prometheus.CounterVec

	// Rate limit denials on write actions. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ResourceActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resourceActionsTotal",
			Help: "Total controller action invocations by resource, action, format and outcome",
		},
		[]string{"resource", "action", "format", "outcome"},
	)
	WriteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writeFailuresTotal",
			Help: "Total write actions rejected by validation",
		},
		[]string{"resource", "action"},
	)
	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "renderDurationSeconds",
			Help:    "Representation render latency in seconds (per response)",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"format"},
	)
	RepresentationCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "representationCacheHitsTotal",
			Help: "Total representation cache hits. Misses render from the store.",
		},
		[]string{"format"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ResourceActionsTotal, WriteFailuresTotal,
		RenderDuration, RepresentationCacheHitsTotal,
		RateLimitDeniedTotal,
	)
}

// RecordAction records one controller action invocation.
func RecordAction(resource, action, format, outcome string) {
	ResourceActionsTotal.WithLabelValues(resource, action, format, outcome).Inc()
}

// RecordWriteFailure records a validation-rejected write.
func RecordWriteFailure(resource, action string) {
	WriteFailuresTotal.WithLabelValues(resource, action).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
