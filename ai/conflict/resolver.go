// Package conflict detects scheduling overlap between a task draft and the
// owner's existing tasks, and models the resolution choices offered back to
// the user.
package conflict

import (
	"slices"
	"sort"
	"strings"

	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/store"
)

// Decision is how the user chose to resolve a conflict.
type Decision string

const (
	// DecisionReschedule moves the draft (or the existing task) to a new
	// time supplied with the decision.
	DecisionReschedule Decision = "reschedule"
	// DecisionCancelExisting cancels the existing task and persists the
	// draft into the freed slot.
	DecisionCancelExisting Decision = "cancel_existing"
	// DecisionForceBoth persists the draft unmodified alongside the
	// existing task.
	DecisionForceBoth Decision = "force_both"
)

// Resolution is the outcome of a conflict check.
type Resolution struct {
	// Conflict is the earliest-starting overlapping task, nil when the
	// draft is free to persist.
	Conflict *store.Task
	// AllConflicts holds every overlapping task, start ascending, so the
	// caller can present all of them rather than just the first.
	AllConflicts []*store.Task
}

// HasConflict reports whether the draft overlaps any existing task.
func (r *Resolution) HasConflict() bool {
	return r.Conflict != nil
}

// Resolve checks the draft's [start, end) interval against the owner's
// existing tasks. Only pending tasks participate: completed and cancelled
// tasks never conflict.
func Resolve(draft *task.Draft, existing []*store.Task) *Resolution {
	var overlapping []*store.Task

	s1 := draft.StartTime.Unix()
	e1 := draft.EndTime().Unix()

	for _, t := range existing {
		if t.Status != store.TaskStatusPending {
			continue
		}
		if Overlaps(s1, e1, t.StartTs, t.EndTime().Unix()) {
			overlapping = append(overlapping, t)
		}
	}

	if len(overlapping) == 0 {
		return &Resolution{}
	}

	sort.Slice(overlapping, func(i, j int) bool {
		return overlapping[i].StartTs < overlapping[j].StartTs
	})

	return &Resolution{
		Conflict:     overlapping[0],
		AllConflicts: overlapping,
	}
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching endpoints do not conflict.
func Overlaps(s1, e1, s2, e2 int64) bool {
	return s1 < e2 && s2 < e1
}

// RescheduleTarget identifies which side of a conflict the user wants to
// move.
type RescheduleTarget string

const (
	TargetNewDraft     RescheduleTarget = "new"
	TargetExistingTask RescheduleTarget = "existing"
	TargetAmbiguous    RescheduleTarget = "ambiguous"
)

// DetermineRescheduleTarget decides which task the user's answer moves:
// an explicit mention of one title wins; otherwise time-shifting keywords
// default to moving the new draft.
func DetermineRescheduleTarget(message string, existing *store.Task, draft *task.Draft) RescheduleTarget {
	lower := strings.ToLower(message)
	mentionsExisting := existing != nil && existing.Title != "" && strings.Contains(lower, strings.ToLower(existing.Title))
	mentionsNew := draft != nil && draft.Title != "" && strings.Contains(lower, strings.ToLower(draft.Title))

	switch {
	case mentionsNew && !mentionsExisting:
		return TargetNewDraft
	case mentionsExisting && !mentionsNew:
		return TargetExistingTask
	}

	words := strings.Fields(lower)
	for _, kw := range []string{"schedule", "then", "at", "to", "change", "move", "shift"} {
		if slices.Contains(words, kw) {
			return TargetNewDraft
		}
	}
	return TargetAmbiguous
}
