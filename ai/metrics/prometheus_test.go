package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordChatTurn("task_creation", 100*time.Millisecond, true)
	exporter.RecordChatTurn("task_query", 50*time.Millisecond, true)
	exporter.RecordChatTurn("general_chat", 200*time.Millisecond, false)
	exporter.RecordIntent("task_creation", false)
	exporter.RecordIntent("general_chat", true)
	exporter.RecordLLMTokens("deepseek-chat", 100, 50)
	exporter.RecordLLMLatency("deepseek-chat", 500*time.Millisecond)
	exporter.RecordSummaryPass(true)
	exporter.RecordSummaryPass(false)
	exporter.RecordSummaryRetry()
	exporter.RecordConflictResolution("reschedule")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()

	for _, metric := range []string{
		"serani_core_chat_requests_total",
		"serani_core_chat_latency_seconds",
		"serani_core_intent_results_total",
		"serani_core_intent_fallbacks_total",
		"serani_core_llm_tokens_total",
		"serani_core_llm_latency_seconds",
		"serani_core_summary_passes_total",
		"serani_core_summary_retries_total",
		"serani_core_conflict_resolutions_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metric %s missing from exposition", metric)
		}
	}

	if !strings.Contains(body, `serani_core_chat_requests_total{intent="general_chat",status="error"} 1`) {
		t.Errorf("chat error counter not recorded:\n%s", body)
	}
	if !strings.Contains(body, `serani_core_conflict_resolutions_total{decision="reschedule"} 1`) {
		t.Errorf("conflict resolution counter not recorded")
	}
}
