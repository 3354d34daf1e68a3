// Package metrics holds the process-level prometheus collectors of the
// proxy and the middleware that counts client-facing response classes:
//   - http_request_in_flight: Gauge for concurrent requests
//   - rate_limiter_buckets_total: Gauge of tracked client buckets
//   - upstream_errors_total: Counter of failed upstream round trips
//   - segment_flush_errors_total: Counter of failed segment file flushes
//
// Collectors are registered with the prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen since last cleanup)",
		},
	)

	UpstreamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Upstream round trips that failed without a response",
		},
	)

	SegmentFlushErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "segment_flush_errors_total",
			Help: "Segment file flushes that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(UpstreamErrorsTotal)
	prometheus.MustRegister(SegmentFlushErrorsTotal)
}
