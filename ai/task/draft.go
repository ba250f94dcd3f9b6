// Package task extracts structured task drafts from free-text utterances.
package task

import (
	"fmt"
	"time"

	"github.com/serani-ai/serani/store"
)

// Draft is a transient, unpersisted candidate task awaiting validation and
// conflict resolution. Same shape as store.Task minus identity and status.
type Draft struct {
	Title       string
	Description string
	StartTime   time.Time
	DurationMin int
	Priority    store.TaskPriority
	RemindAt    *time.Time
	Confidence  float64
}

// EndTime returns start + duration.
func (d *Draft) EndTime() time.Time {
	return d.StartTime.Add(time.Duration(d.DurationMin) * time.Minute)
}

// MissingField names the single field a clarification targets.
type MissingField string

const (
	FieldTitle    MissingField = "title"
	FieldTime     MissingField = "time"
	FieldDuration MissingField = "duration"
)

// Clarification asks the user for exactly one missing field, so the router
// can re-prompt precisely and merge the answer into the same draft instead
// of restarting extraction.
type Clarification struct {
	Field    MissingField
	Question string
}

func clarifyQuestion(field MissingField, title string) string {
	switch field {
	case FieldTime:
		if title != "" {
			return fmt.Sprintf("Got it! When should I schedule %q?", title)
		}
		return "Got it! When would you like to do this?"
	case FieldDuration:
		return fmt.Sprintf("How long should I block out for %q?", title)
	default:
		return "What task would you like me to track?"
	}
}
