package llm

import (
	"context"
	"time"
)

// StatsRecorder consumes per-call statistics. *metrics.PrometheusExporter
// satisfies it.
type StatsRecorder interface {
	RecordLLMTokens(model string, promptTokens, completionTokens int)
	RecordLLMLatency(model string, latency time.Duration)
}

type instrumented struct {
	inner    Service
	model    string
	recorder StatsRecorder
}

// NewInstrumented wraps a Service so every successful call reports its
// token usage and latency to recorder.
func NewInstrumented(inner Service, model string, recorder StatsRecorder) Service {
	return &instrumented{inner: inner, model: model, recorder: recorder}
}

func (s *instrumented) Chat(ctx context.Context, messages []Message) (string, *CallStats, error) {
	content, stats, err := s.inner.Chat(ctx, messages)
	if stats != nil {
		s.recorder.RecordLLMTokens(s.model, stats.PromptTokens, stats.CompletionTokens)
		s.recorder.RecordLLMLatency(s.model, time.Duration(stats.TotalDurationMs)*time.Millisecond)
	}
	return content, stats, err
}
