// Package metrics provides Prometheus metrics export for the
// orchestration core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports chat, LLM and summarization metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry

	chatLatency  *prometheus.HistogramVec
	chatRequests *prometheus.CounterVec

	intentResults   *prometheus.CounterVec
	intentFallbacks prometheus.Counter

	llmTokens  *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec

	summaryPasses  *prometheus.CounterVec
	summaryRetries prometheus.Counter

	conflictResolutions *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds).
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.chatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "chat_latency_seconds",
			Help:      "End-to-end chat turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"intent"},
	)

	e.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "chat_requests_total",
			Help:      "Total number of chat turns",
		},
		[]string{"intent", "status"},
	)

	e.intentResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "intent_results_total",
			Help:      "Intent classification outcomes",
		},
		[]string{"intent"},
	)

	e.intentFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "intent_fallbacks_total",
			Help:      "Intent classifications served by the keyword fallback",
		},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "llm_latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model"},
	)

	e.summaryPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "summary_passes_total",
			Help:      "Background summarization passes",
		},
		[]string{"status"},
	)

	e.summaryRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "summary_retries_total",
			Help:      "Summarization pass retries",
		},
	)

	e.conflictResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serani",
			Subsystem: "core",
			Name:      "conflict_resolutions_total",
			Help:      "Scheduling conflict resolutions by decision",
		},
		[]string{"decision"},
	)

	registry.MustRegister(
		e.chatLatency,
		e.chatRequests,
		e.intentResults,
		e.intentFallbacks,
		e.llmTokens,
		e.llmLatency,
		e.summaryPasses,
		e.summaryRetries,
		e.conflictResolutions,
	)

	return e
}

// RecordChatturn records one completed chat turn.
func (e *PrometheusExporter) RecordChatTurn(intent string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.chatRequests.WithLabelValues(intent, status).Inc()
	e.chatLatency.WithLabelValues(intent).Observe(latency.Seconds())
}

// RecordIntent records a classification outcome.
func (e *PrometheusExporter) RecordIntent(intent string, fallback bool) {
	e.intentResults.WithLabelValues(intent).Inc()
	if fallback {
		e.intentFallbacks.Inc()
	}
}

// RecordLLMTokens records token consumption for a model.
func (e *PrometheusExporter) RecordLLMTokens(model string, promptTokens, completionTokens int) {
	e.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	e.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordLLMLatency records one LLM request latency.
func (e *PrometheusExporter) RecordLLMLatency(model string, latency time.Duration) {
	e.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordSummaryPass records a finished summarization pass.
func (e *PrometheusExporter) RecordSummaryPass(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.summaryPasses.WithLabelValues(status).Inc()
}

// RecordSummaryRetry records one summarization retry.
func (e *PrometheusExporter) RecordSummaryRetry() {
	e.summaryRetries.Inc()
}

// RecordConflictResolution records a conflict decision being applied.
func (e *PrometheusExporter) RecordConflictResolution(decision string) {
	e.conflictResolutions.WithLabelValues(decision).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
