// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the modeler service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// GenerationBuckets covers text-generation latencies from 100ms to 120s.
var GenerationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// SandboxBuckets covers solver runs from 10ms up past the default 30s limit.
var SandboxBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// RequestsTotal counts HTTP requests by method, status class, and route pattern.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormodeler_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ormodeler_request_duration_seconds",
			Help:    "Request duration",
			Buckets: GenerationBuckets,
		},
		[]string{"method", "route"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ormodeler_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// NormalizeTotal counts normalizations by the strategy that produced the
	// model ("fallback" when none did).
	NormalizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormodeler_normalize_total",
			Help: "Model normalizations by recovery strategy",
		},
		[]string{"strategy"},
	)

	// SandboxExecutionsTotal counts code executions by exit reason.
	SandboxExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormodeler_sandbox_executions_total",
			Help: "Sandbox executions",
		},
		[]string{"exit_reason"},
	)

	// SandboxDuration records wall-clock time of code executions.
	SandboxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ormodeler_sandbox_duration_seconds",
			Help:    "Sandbox execution duration",
			Buckets: SandboxBuckets,
		},
	)

	// SandboxActive tracks executions holding a concurrency slot.
	SandboxActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ormodeler_sandbox_active",
			Help: "Active sandbox executions",
		},
	)

	// ProviderRequestsTotal counts requests sent to the text-generation backend.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormodeler_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ormodeler_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: GenerationBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ormodeler_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ormodeler_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		NormalizeTotal,
		SandboxExecutionsTotal,
		SandboxDuration,
		SandboxActive,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		RateLimitRejectedTotal,
	)
}
