package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/store"
)

// Extractor produces task drafts from utterances. Field values come from a
// single LLM extraction round trip; temporal expressions are then resolved
// locally against the caller's reference time.
type Extractor struct {
	llm                llm.Service
	resolver           *timeparse.Resolver
	defaultDurationMin int
}

// NewExtractor creates an Extractor. defaultDurationMin is used when the
// utterance states no duration.
func NewExtractor(llmSvc llm.Service, resolver *timeparse.Resolver, defaultDurationMin int) *Extractor {
	if defaultDurationMin <= 0 {
		defaultDurationMin = 60
	}
	return &Extractor{
		llm:                llmSvc,
		resolver:           resolver,
		defaultDurationMin: defaultDurationMin,
	}
}

// Extract parses utterance into a Draft, or a field-scoped Clarification
// when a required field is missing or ambiguous. A non-nil error means the
// extraction capability itself failed.
func (e *Extractor) Extract(ctx context.Context, utterance string, ref time.Time) (*Draft, *Clarification, error) {
	content, _, err := e.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(buildExtractionPrompt(ref)),
		llm.UserMessage("User message: " + utterance),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("task extraction: %w", err)
	}

	fields := gjson.Parse(cleanJSONResponse(content))

	draft := &Draft{
		Title:       strings.TrimSpace(fields.Get("title").String()),
		Description: strings.TrimSpace(fields.Get("description").String()),
		Priority:    parsePriority(fields.Get("priority").String()),
		DurationMin: e.defaultDurationMin,
		Confidence:  fields.Get("confidence").Float(),
	}

	if draft.Title == "" {
		draft.Title = paraphraseTitle(utterance)
	}
	if draft.Title == "" {
		return nil, &Clarification{Field: FieldTitle, Question: clarifyQuestion(FieldTitle, "")}, nil
	}

	whenExpr := fields.Get("when").String()
	if whenExpr == "" {
		return nil, &Clarification{Field: FieldTime, Question: clarifyQuestion(FieldTime, draft.Title)}, nil
	}
	start, err := e.resolver.ResolveTime(whenExpr, ref)
	if err != nil {
		slog.Debug("task: ambiguous start time", "expression", whenExpr)
		return nil, &Clarification{Field: FieldTime, Question: clarifyQuestion(FieldTime, draft.Title)}, nil
	}
	draft.StartTime = start

	if durExpr := fields.Get("duration").String(); durExpr != "" {
		minutes, err := e.resolver.ResolveDuration(durExpr)
		if err != nil {
			slog.Debug("task: ambiguous duration", "expression", durExpr)
			return nil, &Clarification{Field: FieldDuration, Question: clarifyQuestion(FieldDuration, draft.Title)}, nil
		}
		draft.DurationMin = minutes
	}

	if remExpr := fields.Get("reminder").String(); remExpr != "" {
		if remindAt, err := e.resolver.ResolveTime(remExpr, ref); err == nil {
			draft.RemindAt = &remindAt
		}
	}

	return draft, nil, nil
}

// MergeField re-validates a single clarified field and merges the answer
// into the draft. Returns a follow-up clarification when the answer is
// still ambiguous.
func (e *Extractor) MergeField(draft *Draft, field MissingField, answer string, ref time.Time) *Clarification {
	switch field {
	case FieldTitle:
		title := paraphraseTitle(answer)
		if title == "" {
			return &Clarification{Field: FieldTitle, Question: clarifyQuestion(FieldTitle, "")}
		}
		draft.Title = title
	case FieldTime:
		start, err := e.resolver.ResolveTime(answer, ref)
		if err != nil {
			return &Clarification{
				Field:    FieldTime,
				Question: "Hmm, I didn't catch the date and time. Could you tell me when?",
			}
		}
		draft.StartTime = start
	case FieldDuration:
		minutes, err := e.resolver.ResolveDuration(answer)
		if err != nil {
			return &Clarification{
				Field:    FieldDuration,
				Question: fmt.Sprintf("How long should %q take? (e.g. 30 minutes, 2 hours)", draft.Title),
			}
		}
		draft.DurationMin = minutes
	}
	return nil
}

func parsePriority(s string) store.TaskPriority {
	switch store.TaskPriority(strings.ToLower(strings.TrimSpace(s))) {
	case store.TaskPriorityLow:
		return store.TaskPriorityLow
	case store.TaskPriorityHigh:
		return store.TaskPriorityHigh
	default:
		// Unstated or unparsable priority defaults to medium.
		return store.TaskPriorityMedium
	}
}

const titleMaxLen = 60

// paraphraseTitle derives a title from the utterance when the extraction
// produced none: trimmed, truncated at a word boundary.
func paraphraseTitle(utterance string) string {
	title := strings.TrimSpace(utterance)
	title = strings.Trim(title, ".!?")
	if len(title) <= titleMaxLen {
		return title
	}

	cut := title[:titleMaxLen]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

func buildExtractionPrompt(ref time.Time) string {
	return fmt.Sprintf(`You are a task parsing assistant. Analyze the user's message and extract task details.

Current time: %s

Extract:
1. Task title (brief, e.g. "Meeting", "Dentist Appointment")
2. Description (details like "work meeting", "online", "with team")
3. When the task happens, as the user said it (e.g. "tomorrow at 2 PM") or "2006-01-02 15:04" if exact
4. Duration as the user said it (e.g. "2 hours"), or null if not stated
5. Priority ("low", "medium", "high"), or null if not stated
6. Reminder time if the user asked for one, or null

Return JSON only:
{
  "is_task_request": boolean,
  "title": string or null,
  "description": string or null,
  "when": string or null,
  "duration": string or null,
  "priority": string or null,
  "reminder": string or null,
  "confidence": float (0-1)
}`, ref.Format("2006-01-02 15:04:05 Monday"))
}

// cleanJSONResponse strips a markdown code fence from an LLM JSON reply.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
