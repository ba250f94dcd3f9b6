package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/store"
)

func (r *Router) handleUpdate(ctx context.Context, session *Session, message string) string {
	now := r.now()

	tasks, err := r.store.ListActiveTasks(ctx, session.UserID, nil, nil)
	if err != nil {
		slog.Error("router: failed to load tasks for update", "user_id", session.UserID, "error", err)
		return r.fail(session, "I couldn't look at your tasks just now, so nothing has changed. Please try again.")
	}

	recent := mostRecentTask(session, tasks)
	update, err := r.extractor.ParseUpdate(ctx, message, now, recent)
	if err != nil {
		slog.Error("router: update extraction failed", "user_id", session.UserID, "error", err)
		return r.fail(session, degradedReply)
	}
	if !update.IsUpdateRequest {
		return r.handleChat(ctx, session, message, nil)
	}

	target := matchTaskByIdentifier(tasks, update.TaskIdentifier)
	if target == nil {
		// No identifier, or no match: fall back to the task the user was
		// just talking about.
		target = recent
	}
	if target == nil {
		if update.TaskIdentifier != "" {
			return fmt.Sprintf("I couldn't find a task matching %q. Which one did you mean?", update.TaskIdentifier)
		}
		return "Which task should I change?"
	}

	change := &store.UpdateTask{ID: target.ID}
	if update.NewStart != nil {
		ts := update.NewStart.Unix()
		change.StartTs = &ts
	}
	if update.NewDurationMin != nil {
		m := int32(*update.NewDurationMin)
		change.DurationMin = &m
	}
	if update.NewStatus != nil {
		change.Status = update.NewStatus
	}
	if update.NewRemindAt != nil {
		ts := update.NewRemindAt.Unix()
		change.RemindTs = &ts
	} else if update.ReminderOffsetMin != nil {
		// The offset counts back from the task's due time, which this
		// same update may be moving.
		due := target.StartTime()
		if update.NewStart != nil {
			due = *update.NewStart
		}
		ts := due.Add(-time.Duration(*update.ReminderOffsetMin) * time.Minute).Unix()
		change.RemindTs = &ts
	}

	if change.StartTs == nil && change.DurationMin == nil && change.Status == nil && change.RemindTs == nil {
		return fmt.Sprintf("What should I change about %q?", target.Title)
	}

	updated, err := r.store.UpdateTask(ctx, change)
	if err != nil {
		slog.Error("router: task update failed", "user_id", session.UserID, "task_id", target.ID, "error", err)
		return r.fail(session, "I couldn't apply that change. Please try again.")
	}

	session.lastTask = updated
	return formatUpdateReply(updated, change, now)
}

// mostRecentTask prefers the session's last-touched task, falling back to
// the most recently created pending task.
func mostRecentTask(session *Session, tasks []*store.Task) *store.Task {
	if session.lastTask != nil && session.lastTask.Status == store.TaskStatusPending {
		return session.lastTask
	}
	var recent *store.Task
	for _, t := range tasks {
		if recent == nil || t.CreatedTs > recent.CreatedTs {
			recent = t
		}
	}
	return recent
}

func matchTaskByIdentifier(tasks []*store.Task, identifier string) *store.Task {
	if identifier == "" {
		return nil
	}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), identifier) {
			return t
		}
	}
	return nil
}

func formatUpdateReply(updated *store.Task, change *store.UpdateTask, now time.Time) string {
	switch {
	case change.Status != nil && *change.Status == store.TaskStatusCompleted:
		return fmt.Sprintf("Nice work! I've marked %q as completed.", updated.Title)
	case change.Status != nil && *change.Status == store.TaskStatusCancelled:
		return fmt.Sprintf("Okay, I've cancelled %q.", updated.Title)
	case change.StartTs != nil:
		return fmt.Sprintf("Done! %q is now scheduled for %s.",
			updated.Title, timeparse.FormatTimeNatural(updated.StartTime(), now))
	case change.RemindTs != nil:
		return fmt.Sprintf("Reminder for %q set for %s.",
			updated.Title, timeparse.FormatTimeNatural(time.Unix(*change.RemindTs, 0), now))
	default:
		return fmt.Sprintf("Updated %q.", updated.Title)
	}
}
