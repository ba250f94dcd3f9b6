package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serani-ai/serani/ai/conflict"
	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/store"
)

func formatConflictPrompt(draft *task.Draft, resolution *conflict.Resolution, ref time.Time) string {
	existing := resolution.Conflict
	prompt := fmt.Sprintf("Heads up: %q (%s) overlaps with %q at %s.",
		draft.Title,
		timeparse.FormatTimeNatural(draft.StartTime, ref),
		existing.Title,
		timeparse.FormatTimeNatural(existing.StartTime(), ref),
	)
	if extra := len(resolution.AllConflicts) - 1; extra > 0 {
		prompt += fmt.Sprintf(" It also clashes with %d more task(s).", extra)
	}
	return prompt + " Should I reschedule one of them, cancel the existing task, or keep both?"
}

// handleConflictDecision interprets the user's answer to a conflict
// prompt and applies it.
func (r *Router) handleConflictDecision(ctx context.Context, session *Session, answer string) string {
	draft := session.pendingDraft
	existing := session.pendingConflict.Conflict
	lower := strings.ToLower(answer)

	switch {
	case containsAny(lower, "keep both", "both", "anyway", "overlap is fine"):
		return r.applyForceBoth(ctx, session, draft)
	case containsAny(lower, "cancel", "replace", "delete", "drop", "scrap"):
		return r.applyCancelExisting(ctx, session, draft, existing)
	default:
		return r.applyReschedule(ctx, session, answer, draft, existing)
	}
}

func (r *Router) applyForceBoth(ctx context.Context, session *Session, draft *task.Draft) string {
	created, err := r.store.CreateTask(ctx, draftToCreate(session.UserID, draft))
	if err != nil {
		slog.Error("router: failed to force-create task", "user_id", session.UserID, "error", err)
		return r.fail(session, "Something went wrong saving that task. Please try again.")
	}
	r.recordConflictResolution(string(conflict.DecisionForceBoth))
	session.reset()
	session.lastTask = created
	return fmt.Sprintf("Okay, keeping both. %q is on for %s even though it overlaps.",
		created.Title, timeparse.FormatTimeNatural(created.StartTime(), r.now()))
}

func (r *Router) applyCancelExisting(ctx context.Context, session *Session, draft *task.Draft, existing *store.Task) string {
	created, err := r.store.ResolveTaskConflict(ctx, &store.ResolveTaskConflict{
		CancelTaskID: existing.ID,
		HardDelete:   r.cfg.HardDeleteOnConflictCancel,
		Create:       draftToCreate(session.UserID, draft),
	})
	if err != nil {
		slog.Error("router: conflict resolution failed", "user_id", session.UserID, "error", err)
		return r.fail(session, "I couldn't apply that change, so both tasks are untouched. Please try again.")
	}
	r.recordConflictResolution(string(conflict.DecisionCancelExisting))
	session.reset()
	session.lastTask = created
	return fmt.Sprintf("Done. I cancelled %q and scheduled %q for %s.",
		existing.Title, created.Title, timeparse.FormatTimeNatural(created.StartTime(), r.now()))
}

// applyReschedule moves whichever side the answer targets to the new time
// mentioned in it, then re-runs the conflict check.
func (r *Router) applyReschedule(ctx context.Context, session *Session, answer string, draft *task.Draft, existing *store.Task) string {
	target := conflict.DetermineRescheduleTarget(answer, existing, draft)
	if target == conflict.TargetAmbiguous {
		session.attempts++
		if session.attempts < r.cfg.ClarificationRetries {
			return fmt.Sprintf("Which one should I move, %q or %q? And to when?", draft.Title, existing.Title)
		}
		session.reset()
		return "Let's leave your schedule as it is for now. Tell me again when you've decided what to move."
	}

	newStart, err := r.resolver.ResolveTime(answer, r.now())
	if err != nil {
		session.attempts++
		if session.attempts < r.cfg.ClarificationRetries {
			return "Sure - what time should it move to?"
		}
		session.reset()
		return "Let's leave your schedule as it is for now. Tell me again when you know the new time."
	}

	if target == conflict.TargetNewDraft {
		draft.StartTime = newStart
		r.recordConflictResolution(string(conflict.DecisionReschedule))
		return r.finalizeDraft(ctx, session, draft)
	}

	// Move the existing task, then persist the draft into the freed slot.
	ts := newStart.Unix()
	moved, err := r.store.UpdateTask(ctx, &store.UpdateTask{ID: existing.ID, StartTs: &ts})
	if err != nil {
		slog.Error("router: failed to move existing task", "user_id", session.UserID, "task_id", existing.ID, "error", err)
		return r.fail(session, "I couldn't move that task, so nothing has changed. Please try again.")
	}
	r.recordConflictResolution(string(conflict.DecisionReschedule))

	reply := r.finalizeDraft(ctx, session, draft)
	return fmt.Sprintf("I moved %q to %s. %s",
		moved.Title, timeparse.FormatTimeNatural(moved.StartTime(), r.now()), reply)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
