// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
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

	// RunsTotal tracks orchestrator runs by terminal outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_runs_total",
			Help: "Total orchestrator runs by outcome",
		},
		[]string{"outcome"},
	)

	// RunDuration tracks end-to-end orchestrator run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_run_duration_seconds",
			Help:    "Orchestrator run duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	// AgentTurns tracks the number of agent turns taken per run.
	AgentTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_network_turns",
			Help:    "Agent turns taken before the network stopped",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 16, 20},
		},
	)

	// ToolCallsTotal tracks tool invocations by tool name and result.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Total tool invocations",
		},
		[]string{"tool", "result"},
	)

	// LLMTurnDuration tracks LLM turn duration.
	LLMTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_turn_duration_seconds",
			Help:    "LLM turn duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// CancellationsTotal tracks observed run cancellations.
	CancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_cancellations_total",
			Help: "Runs stopped by a cancellation signal",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRun records a finished orchestrator run.
func RecordRun(outcome string, seconds float64) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(seconds)
}

// RecordToolCall records one tool invocation.
func RecordToolCall(tool string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	ToolCallsTotal.WithLabelValues(tool, result).Inc()
}

// RecordLLMTurn records one LLM turn.
func RecordLLMTurn(provider, model, status string, seconds float64, tokensIn, tokensOut int) {
	LLMTurnDuration.WithLabelValues(provider, model, status).Observe(seconds)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
