package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/store"
)

// Classifier maps an utterance plus recent dialogue to exactly one Intent.
// The judgment is delegated to the LLM; the contract owned here is that the
// result is always one of the five enumerated intents, with general_chat as
// the failure default so a misfire never risks a task-store mutation.
type Classifier struct {
	llm llm.Service
}

// NewClassifier creates a new Classifier.
func NewClassifier(llmSvc llm.Service) *Classifier {
	return &Classifier{llm: llmSvc}
}

// Result is the classification outcome.
type Result struct {
	Intent     Intent
	Confidence float64
	// Fallback marks a result produced by the keyword matcher rather
	// than the model.
	Fallback bool
}

// Classify returns the intent for utterance.
//
// pendingClarification marks an open clarification awaiting an answer; it
// acts as a strong prior: the utterance is treated as the answer unless the
// model is confident it is an unrelated new request.
func (c *Classifier) Classify(ctx context.Context, utterance string, recentTurns []*store.ConversationTurn, pendingClarification bool) Result {
	content, _, err := c.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(buildClassifyPrompt(recentTurns, pendingClarification)),
		llm.UserMessage(utterance),
	})
	if err != nil {
		slog.Warn("intent: LLM classification failed, falling back to keywords", "error", err)
		return fallbackClassify(utterance, pendingClarification)
	}

	label := gjson.Get(cleanJSONResponse(content), "intent").String()
	if !IsValid(label) {
		slog.Warn("intent: unparsable label from LLM", "label", label)
		return fallbackClassify(utterance, pendingClarification)
	}

	confidence := gjson.Get(cleanJSONResponse(content), "confidence").Float()
	if confidence <= 0 {
		confidence = 0.5
	}

	result := Result{Intent: Intent(label), Confidence: confidence}

	// An open clarification wins over a low-confidence reclassification.
	if pendingClarification && result.Intent != IntentClarificationResponse && result.Confidence < 0.8 {
		result = Result{Intent: IntentClarificationResponse, Confidence: 1}
	}

	slog.Debug("intent: classified", "intent", result.Intent, "confidence", result.Confidence)
	return result
}

var queryKeywords = []string{"show", "what", "list", "display", "my tasks", "schedule", "what's"}

// fallbackClassify is the keyword fallback used when the LLM is unavailable
// or returns garbage. Only task_query is recoverable from keywords alone;
// anything else defaults to general_chat.
func fallbackClassify(utterance string, pendingClarification bool) Result {
	if pendingClarification {
		return Result{Intent: IntentClarificationResponse, Confidence: 0.9, Fallback: true}
	}

	lower := strings.ToLower(utterance)
	for _, kw := range queryKeywords {
		if strings.Contains(lower, kw) {
			return Result{Intent: IntentTaskQuery, Confidence: 0.8, Fallback: true}
		}
	}
	return Result{Intent: IntentGeneralChat, Confidence: 0.5, Fallback: true}
}

func buildClassifyPrompt(recentTurns []*store.ConversationTurn, pendingClarification bool) string {
	var b strings.Builder
	b.WriteString(`Analyze the user's message and determine their intent.

Intent types:
1. "task_creation" - NEW meetings, appointments, tasks with details (what, when)
2. "task_query" - "What's my schedule?", "Show tasks"
3. "task_update" - Modify/add reminder/reschedule/cancel an existing task
4. "clarification_response" - Answering the assistant's previous question
5. "general_chat" - Greetings, questions, casual chat

Key distinction:
- Has a NEW task name plus date/time = task_creation (even if it mentions a reminder)
- Only refers to an existing task without new task details = task_update

Return JSON only: {"intent": string, "confidence": float}
`)

	if pendingClarification {
		b.WriteString("\nThe assistant just asked the user a clarifying question. Unless the message is clearly an unrelated new request, classify it as \"clarification_response\".\n")
	}

	if len(recentTurns) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, turn := range recentTurns {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}

	return b.String()
}

// cleanJSONResponse strips a markdown code fence from an LLM JSON reply.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
