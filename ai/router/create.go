package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/serani-ai/serani/ai/conflict"
	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/store"
)

const degradedReply = "I'm having trouble with my language understanding right now, so I can't act on that yet. Your existing tasks are safe; please try again in a moment."

func (r *Router) handleCreate(ctx context.Context, session *Session, message string) string {
	draft, clarification, err := r.extractor.Extract(ctx, message, r.now())
	if err != nil {
		slog.Error("router: task extraction failed", "user_id", session.UserID, "error", err)
		return r.fail(session, degradedReply)
	}
	if clarification != nil {
		session.awaitClarification(draft, clarification.Field)
		return clarification.Question
	}
	return r.finalizeDraft(ctx, session, draft)
}

// finalizeDraft runs the conflict check and either persists the draft or
// parks it behind a conflict decision.
func (r *Router) finalizeDraft(ctx context.Context, session *Session, draft *task.Draft) string {
	existing, err := r.store.ListActiveTasks(ctx, session.UserID, nil, nil)
	if err != nil {
		slog.Error("router: failed to load tasks for conflict check", "user_id", session.UserID, "error", err)
		return r.fail(session, "I couldn't check your schedule just now, so I haven't saved anything. Please try again.")
	}

	resolution := conflict.Resolve(draft, existing)
	if resolution.HasConflict() {
		session.awaitConflictDecision(draft, resolution)
		return formatConflictPrompt(draft, resolution, r.now())
	}

	return r.persistDraft(ctx, session, draft)
}

func (r *Router) persistDraft(ctx context.Context, session *Session, draft *task.Draft) string {
	created, err := r.store.CreateTask(ctx, draftToCreate(session.UserID, draft))
	if err != nil {
		slog.Error("router: failed to persist task", "user_id", session.UserID, "error", err)
		return r.fail(session, "Something went wrong saving that task. Please try again.")
	}

	session.reset()
	session.lastTask = created

	reply := fmt.Sprintf("Done! I've scheduled %q for %s (%s).",
		created.Title,
		timeparse.FormatTimeNatural(created.StartTime(), r.now()),
		timeparse.FormatDurationNatural(int(created.DurationMin)),
	)
	if created.RemindTs != nil {
		return reply
	}

	// Offer a reminder; the answer comes back as a clarification.
	session.awaitClarification(draft, fieldReminder)
	return reply + " Would you like a reminder before it?"
}

// handleClarificationAnswer merges the user's answer into the pending
// draft, re-asking up to the retry bound before falling back.
func (r *Router) handleClarificationAnswer(ctx context.Context, session *Session, answer string) string {
	if session.pendingField == fieldReminder {
		return r.handleReminderAnswer(ctx, session, answer)
	}

	draft := session.pendingDraft
	session.attempts++

	clarification := r.extractor.MergeField(draft, session.pendingField, answer, r.now())
	if clarification == nil {
		return r.finalizeDraft(ctx, session, draft)
	}

	if session.attempts < r.cfg.ClarificationRetries {
		session.pendingField = clarification.Field
		return clarification.Question
	}

	// Retry bound reached: apply a safe default where one exists,
	// otherwise abandon the draft instead of looping forever.
	switch session.pendingField {
	case task.FieldDuration:
		draft.DurationMin = r.cfg.DefaultDurationMin
		return r.finalizeDraft(ctx, session, draft)
	default:
		session.reset()
		return "I still couldn't work that out, so I've set it aside. Just tell me again with the date and time when you're ready."
	}
}

func (r *Router) handleReminderAnswer(ctx context.Context, session *Session, answer string) string {
	target := session.lastTask
	if target == nil {
		session.reset()
		return "I've lost track of which task that reminder was for. Which task did you mean?"
	}

	if task.IsReminderDecline(answer) {
		session.reset()
		return "No problem, no reminder then."
	}

	remindAt, ok := task.ParseRelativeReminder(answer, target.StartTime())
	if !ok {
		// Absolute phrasing ("at 1:30 PM") resolves against the task's
		// due date, so a bare clock time lands on the right day.
		if at, err := r.resolver.ResolveTime(answer, target.StartTime()); err == nil {
			remindAt, ok = at, true
		}
	}
	if !ok {
		session.attempts++
		if session.attempts < r.cfg.ClarificationRetries {
			return "When should I remind you? For example: \"30 minutes before\" or \"at 1:30 PM\"."
		}
		session.reset()
		return "I'll leave the reminder off for now. You can ask me to add one anytime."
	}

	ts := remindAt.Unix()
	updated, err := r.store.UpdateTask(ctx, &store.UpdateTask{ID: target.ID, RemindTs: &ts})
	if err != nil {
		slog.Error("router: failed to set reminder", "user_id", session.UserID, "task_id", target.ID, "error", err)
		session.reset()
		return r.fail(session, "I couldn't save that reminder. Please try again.")
	}

	session.reset()
	session.lastTask = updated
	return fmt.Sprintf("Reminder set for %s.", timeparse.FormatTimeNatural(remindAt, r.now()))
}

func draftToCreate(userID int32, draft *task.Draft) *store.CreateTask {
	create := &store.CreateTask{
		UID:         uuid.NewString(),
		UserID:      userID,
		Title:       draft.Title,
		StartTs:     draft.StartTime.Unix(),
		DurationMin: int32(draft.DurationMin),
		Priority:    draft.Priority,
	}
	if draft.Description != "" {
		create.Description = &draft.Description
	}
	if draft.RemindAt != nil {
		ts := draft.RemindAt.Unix()
		create.RemindTs = &ts
	}
	return create
}
