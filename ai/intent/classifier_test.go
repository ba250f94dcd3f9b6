package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serani-ai/serani/ai/llm"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(_ context.Context, _ []llm.Message) (string, *llm.CallStats, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, &llm.CallStats{}, nil
}

func TestClassifyReturnsEnumeratedIntent(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		pending bool
		want    Intent
	}{
		{
			name:  "plain label",
			reply: `{"intent": "task_creation", "confidence": 0.95}`,
			want:  IntentTaskCreation,
		},
		{
			name:  "fenced label",
			reply: "```json\n{\"intent\": \"task_query\", \"confidence\": 0.9}\n```",
			want:  IntentTaskQuery,
		},
		{
			name:  "unknown label falls back to general chat",
			reply: `{"intent": "do_a_backflip", "confidence": 0.9}`,
			want:  IntentGeneralChat,
		},
		{
			name:  "free text falls back to general chat",
			reply: "I think they want to make a task.",
			want:  IntentGeneralChat,
		},
		{
			name:    "pending clarification overrides low-confidence reclassification",
			reply:   `{"intent": "general_chat", "confidence": 0.4}`,
			pending: true,
			want:    IntentClarificationResponse,
		},
		{
			name:    "pending clarification yields to confident new intent",
			reply:   `{"intent": "task_creation", "confidence": 0.95}`,
			pending: true,
			want:    IntentTaskCreation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeLLM{reply: tt.reply})
			got := c.Classify(context.Background(), "hello", nil, tt.pending)
			assert.Equal(t, tt.want, got.Intent)
		})
	}
}

func TestClassifyLLMFailure(t *testing.T) {
	c := NewClassifier(&fakeLLM{err: errors.New("boom")})

	// Query keywords are recoverable without the LLM.
	got := c.Classify(context.Background(), "show my tasks for today", nil, false)
	assert.Equal(t, IntentTaskQuery, got.Intent)
	assert.True(t, got.Fallback)

	// Everything else degrades to the safe default.
	got = c.Classify(context.Background(), "book a dentist appointment", nil, false)
	assert.Equal(t, IntentGeneralChat, got.Intent)
	assert.True(t, got.Fallback)

	// An open clarification keeps its prior.
	got = c.Classify(context.Background(), "at 2 pm", nil, true)
	assert.Equal(t, IntentClarificationResponse, got.Intent)
}

func TestIsValid(t *testing.T) {
	for _, label := range []string{"task_creation", "task_query", "task_update", "clarification_response", "general_chat"} {
		assert.True(t, IsValid(label), label)
	}
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("TASK_CREATION"))
}
