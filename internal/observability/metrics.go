// Package observability provides the gateway's Prometheus metrics.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets covers inference latencies from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts chat requests by status class and model alias.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total chat requests",
		},
		[]string{"status", "model"},
	)

	// RequestDuration records end-to-end request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// StreamingConnections tracks active SSE streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// TokensTotal counts tokens billed by direction (input/output).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// RateLimitRejectedTotal counts admissions denied by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"team"},
	)

	// UsageRecordFailuresTotal counts usage events that failed to persist.
	// Recording is best-effort relative to response delivery, so failures
	// here are the only signal that cost accounting is eroding.
	UsageRecordFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_usage_record_failures_total",
			Help: "Usage events that could not be persisted",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		TokensTotal,
		RateLimitRejectedTotal,
		UsageRecordFailuresTotal,
	)
}
