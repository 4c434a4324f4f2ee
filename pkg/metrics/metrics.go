// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal counts assistant turns by classified intent and outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Total assistant turns",
		},
		[]string{"intent", "outcome"},
	)

	// TurnDuration tracks end-to-end turn latency.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_turn_duration_seconds",
			Help:    "Assistant turn duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"intent"},
	)

	// RemoteCallDuration tracks calls to the commerce and completion backends.
	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_duration_seconds",
			Help:    "Remote backend call duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "operation", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// StorageConflicts counts writes that found the key changed underneath them.
	StorageConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_conflicts_total",
			Help: "Session store writes that overwrote a concurrent change",
		},
		[]string{"store"},
	)

	// SessionsActive tracks session runtimes held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of session runtimes held in memory",
		},
	)

	// SSEConnectionsActive tracks open event streams.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records the outcome of one assistant turn.
func RecordTurn(intent, outcome string, duration time.Duration) {
	TurnsTotal.WithLabelValues(intent, outcome).Inc()
	TurnDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordRemoteCall records one backend round trip.
func RecordRemoteCall(service, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RemoteCallDuration.WithLabelValues(service, operation, status).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage for a completion.
func RecordLLMTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connections gauge.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connections gauge.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
