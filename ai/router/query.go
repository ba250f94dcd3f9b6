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

// timeframe is the half-open window a query filters on. Nil bounds mean
// unbounded.
type timeframe struct {
	label string
	from  *time.Time
	to    *time.Time
}

// parseTimeframe maps query phrasing onto a window. Unrecognized phrasing
// means "everything upcoming".
func parseTimeframe(message string, now time.Time) timeframe {
	lower := strings.ToLower(message)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(lower, "today"):
		end := dayStart.AddDate(0, 0, 1)
		return timeframe{label: "today", from: &dayStart, to: &end}
	case strings.Contains(lower, "tomorrow"):
		start := dayStart.AddDate(0, 0, 1)
		end := dayStart.AddDate(0, 0, 2)
		return timeframe{label: "tomorrow", from: &start, to: &end}
	case strings.Contains(lower, "this week"), strings.Contains(lower, "week"):
		end := dayStart.AddDate(0, 0, 7)
		return timeframe{label: "this week", from: &dayStart, to: &end}
	default:
		return timeframe{label: "coming up", from: &dayStart}
	}
}

func (r *Router) handleQuery(ctx context.Context, session *Session, message string) string {
	now := r.now()
	window := parseTimeframe(message, now)

	tasks, err := r.store.ListActiveTasks(ctx, session.UserID, window.from, window.to)
	if err != nil {
		slog.Error("router: task query failed", "user_id", session.UserID, "error", err)
		return r.fail(session, "I couldn't look up your tasks just now. Please try again in a moment.")
	}

	if len(tasks) == 0 {
		return fmt.Sprintf("You have nothing scheduled %s. Enjoy the free time!", window.label)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's what you have %s:\n", window.label)
	for _, t := range tasks {
		fmt.Fprintf(&sb, "- %s at %s (%s)",
			t.Title,
			timeparse.FormatTimeNatural(t.StartTime(), now),
			timeparse.FormatDurationNatural(int(t.DurationMin)),
		)
		if t.Priority == store.TaskPriorityHigh {
			sb.WriteString(" [high priority]")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
