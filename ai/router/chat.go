package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/store"
)

const chatSystemPrompt = `You are Serani, a warm and practical personal assistant. You help with scheduling, reminders and everyday questions. Keep replies short, friendly and concrete. Use the provided context when it is relevant; never invent tasks or appointments that are not in it.`

// handleChat answers a non-task utterance, with the composed context
// block injected for continuity.
func (r *Router) handleChat(ctx context.Context, session *Session, message string, recentTurns []*store.ConversationTurn) string {
	var contextBlock string
	if r.composer != nil {
		contextBlock = r.composer.Compose(ctx, session.UserID, message, recentTurns).Render()
	}

	var sb strings.Builder
	sb.WriteString(chatSystemPrompt)
	if contextBlock != "" {
		sb.WriteString("\n\n")
		sb.WriteString(contextBlock)
	}

	content, _, err := r.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(sb.String()),
		llm.UserMessage(message),
	})
	if err != nil {
		slog.Warn("router: chat generation failed", "user_id", session.UserID, "error", err)
		return r.fail(session, "I'm having trouble reaching my language model right now, but I'm still tracking your tasks. Ask me about your schedule or try again shortly.")
	}
	return strings.TrimSpace(content)
}
