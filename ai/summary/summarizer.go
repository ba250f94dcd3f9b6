// Package summary condenses windows of past conversation into one- or
// two-sentence summaries and persists them to long-term memory.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/store"
)

// Summarizer turns a block of conversation turns into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, turns []*store.ConversationTurn) (*Result, error)
}

// Result is a produced summary with its provenance.
type Result struct {
	Summary string
	// Source is "llm" or "fallback".
	Source  string
	Latency time.Duration
}

type llmSummarizer struct {
	llm     llm.Service
	timeout time.Duration
}

// NewSummarizer creates an LLM-backed summarizer. A nil service degrades
// to the extractive fallback.
func NewSummarizer(llmSvc llm.Service) Summarizer {
	return &llmSummarizer{
		llm:     llmSvc,
		timeout: 15 * time.Second,
	}
}

func (s *llmSummarizer) Summarize(ctx context.Context, turns []*store.ConversationTurn) (*Result, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("summarize: empty conversation window")
	}
	if s.llm == nil {
		return FallbackSummarize(turns), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []llm.Message{
		llm.SystemPrompt(summarySystemPrompt),
		llm.UserMessage(renderWindow(turns)),
	}

	content, stats, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("summarize window: %w", err)
	}

	text := parseSummary(content)
	if text == "" {
		return FallbackSummarize(turns), nil
	}

	return &Result{
		Summary: text,
		Source:  "llm",
		Latency: time.Duration(stats.TotalDurationMs) * time.Millisecond,
	}, nil
}

// FallbackSummarize builds a non-LLM summary so memory keeps accruing
// during provider outages: it stitches the user's turns together and
// truncates.
func FallbackSummarize(turns []*store.ConversationTurn) *Result {
	var parts []string
	for _, turn := range turns {
		if turn.Role == store.RoleUser {
			parts = append(parts, strings.TrimSpace(turn.Content))
		}
	}
	if len(parts) == 0 {
		for _, turn := range turns {
			parts = append(parts, strings.TrimSpace(turn.Content))
		}
	}
	text := "User discussed: " + strings.Join(parts, "; ")
	return &Result{
		Summary: truncateRunes(text, 240),
		Source:  "fallback",
	}
}

func renderWindow(turns []*store.ConversationTurn) string {
	var sb strings.Builder
	sb.WriteString("Summarize this conversation window:\n\n")
	for _, turn := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	sb.WriteString("\nReturn JSON: {\"summary\": \"one or two sentences\"}")
	return sb.String()
}

func parseSummary(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if s := gjson.Get(content, "summary").String(); s != "" {
		return strings.TrimSpace(s)
	}
	// Some models answer in plain prose despite the instruction.
	if !strings.HasPrefix(content, "{") {
		return content
	}
	return ""
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

const summarySystemPrompt = `You distill assistant conversations into long-term memory.

Rules:
1. Write one or two sentences covering the user's intents, tasks and stated preferences.
2. Keep concrete details: titles, dates, times, decisions.
3. Do not invent anything the conversation does not contain.
4. Return JSON: {"summary": "..."}`
