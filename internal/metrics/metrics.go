// Package metrics exposes Prometheus instrumentation for generation
// sessions. Collectors are registered with the default registry; the
// serve command mounts promhttp to export them.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalTokens atomic.Int64

var (
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_sessions_total",
		Help: "The total number of generation sessions started",
	})

	TokensGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_tokens_generated_total",
		Help: "The total number of tokens decoded across all sessions",
	})

	StepDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "loom_step_duration_seconds",
		Help: "Duration of individual decode steps",
	})

	DecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_decode_failures_total",
		Help: "The total number of engine decode failures",
	})

	StopReasonTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_stop_reason_total",
		Help: "Session stop reasons",
	}, []string{"reason"})

	PromptLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loom_prompt_length_tokens",
		Help:    "Distribution of prompt lengths",
		Buckets: []float64{8, 32, 128, 512, 2048, 8192},
	})
)

// RecordStep counts one decoded token and observes its step latency.
func RecordStep(d time.Duration) {
	totalTokens.Add(1)
	TokensGeneratedTotal.Inc()
	StepDuration.Observe(d.Seconds())
}

// RecordSession counts a session start and its prompt length.
func RecordSession(promptTokens int) {
	SessionsTotal.Inc()
	PromptLength.Observe(float64(promptTokens))
}

// RecordStop counts the reason a session stopped.
func RecordStop(reason string) {
	StopReasonTotal.WithLabelValues(reason).Inc()
}

// RecordDecodeFailure counts an engine decode failure.
func RecordDecodeFailure() {
	DecodeFailuresTotal.Inc()
}

// TokenCount returns the process-lifetime decoded token count.
func TokenCount() int64 {
	return totalTokens.Load()
}
