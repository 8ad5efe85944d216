package mcpserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus gauges/counters exposed on GET /metrics, grounded on the
// corpus's direct client_golang usage (no OpenTelemetry layer): one
// registry-scoped set of collectors per process, incremented by the
// request-logging middleware and the tool dispatcher.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_memory_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_memory_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_memory_tool_calls_total",
			Help: "Total tools/call invocations by tool name and result status.",
		},
		[]string{"tool", "status"},
	)

	sseSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_memory_sse_sessions_active",
			Help: "Number of currently open SSE sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, toolCallsTotal, sseSessionsActive)
}
