package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/store"
)

// Update is the parsed intent of a task-update utterance. Nil fields mean
// "leave unchanged".
type Update struct {
	// TaskIdentifier is a title/description fragment naming the target
	// task; empty means "the most recently discussed task".
	TaskIdentifier string
	NewStart       *time.Time
	NewDurationMin *int
	NewRemindAt    *time.Time
	// ReminderOffsetMin is set for "N minutes before" phrasing; the
	// reminder is recomputed from the target task's due time.
	ReminderOffsetMin *int
	NewStatus         *store.TaskStatus
	IsUpdateRequest   bool
}

// ParseUpdate extracts a task update intent from utterance.
func (e *Extractor) ParseUpdate(ctx context.Context, utterance string, ref time.Time, recentTask *store.Task) (*Update, error) {
	content, _, err := e.llm.Chat(ctx, []llm.Message{
		llm.SystemPrompt(buildUpdatePrompt(ref, recentTask)),
		llm.UserMessage("User message: " + utterance),
	})
	if err != nil {
		return nil, fmt.Errorf("update extraction: %w", err)
	}

	fields := gjson.Parse(cleanJSONResponse(content))

	update := &Update{
		IsUpdateRequest: fields.Get("is_update_request").Bool(),
		TaskIdentifier:  strings.ToLower(strings.TrimSpace(fields.Get("task_identifier").String())),
	}

	if expr := fields.Get("new_time").String(); expr != "" {
		if t, err := e.resolver.ResolveTime(expr, ref); err == nil {
			update.NewStart = &t
		}
	}
	if expr := fields.Get("new_duration").String(); expr != "" {
		if m, err := e.resolver.ResolveDuration(expr); err == nil {
			update.NewDurationMin = &m
		}
	}
	if expr := fields.Get("reminder_time").String(); expr != "" {
		if t, err := e.resolver.ResolveTime(expr, ref); err == nil {
			update.NewRemindAt = &t
		}
	}
	if offset := fields.Get("reminder_offset_minutes"); offset.Exists() && offset.Int() > 0 {
		m := int(offset.Int())
		update.ReminderOffsetMin = &m
	}
	if status := fields.Get("new_status").String(); status != "" {
		switch store.TaskStatus(status) {
		case store.TaskStatusCompleted, store.TaskStatusCancelled:
			s := store.TaskStatus(status)
			update.NewStatus = &s
		}
	}

	return update, nil
}

func buildUpdatePrompt(ref time.Time, recentTask *store.Task) string {
	var recentInfo string
	if recentTask != nil {
		recentInfo = fmt.Sprintf("\nMost recently created task:\n- Title: %s\n- Due: %s\n",
			recentTask.Title, recentTask.StartTime().Format("2006-01-02 15:04"))
	}

	return fmt.Sprintf(`Analyze whether the user wants to update an existing task.

Current time: %s
%s
Look for:
- Adding/changing a reminder: "remind me X minutes before", "set a reminder"
- Rescheduling: "move to", "shift to", "change to", "reschedule"
- Completing or cancelling: "done with", "cancel", "finished"
- Which task to update (title or description fragment)

If the user says "the reminder" or "the appointment" without naming a task,
they mean the most recently discussed task: return null for task_identifier.

Return JSON only:
{
  "is_update_request": boolean,
  "task_identifier": string or null,
  "new_time": string or null (when the task should move to, as the user said it),
  "new_duration": string or null,
  "reminder_time": string or null (absolute reminder time),
  "reminder_offset_minutes": number or null (for "X minutes before"),
  "new_status": "completed" or "cancelled" or null
}`, ref.Format("2006-01-02 15:04:05 Monday"), recentInfo)
}
