package store

import (
	"context"
	"time"
)

// TaskStatus represents the lifecycle status of a task.
// Stored as the literal string, never free text.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskPriority represents the priority of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task represents a scheduled task owned by exactly one user.
//
// The end time is never stored: it is always derived from StartTs plus
// DurationMin, so every mutation keeps the derivation honest.
type Task struct {
	ID int32
	// UID is the caller-supplied idempotency token. Re-inserting with the
	// same UID yields the already-persisted row instead of a duplicate.
	UID         string
	UserID      int32
	Title       string
	Description *string
	StartTs     int64
	DurationMin int32
	Status      TaskStatus
	Priority    TaskPriority
	// RemindTs is the optional reminder timestamp.
	RemindTs  *int64
	CreatedTs int64
	UpdatedTs int64
}

// StartTime returns the task start as a time.Time.
func (t *Task) StartTime() time.Time {
	return time.Unix(t.StartTs, 0)
}

// EndTime returns start + duration.
func (t *Task) EndTime() time.Time {
	return time.Unix(t.StartTs, 0).Add(time.Duration(t.DurationMin) * time.Minute)
}

// CreateTask is the create condition for tasks.
type CreateTask struct {
	UID         string
	UserID      int32
	Title       string
	Description *string
	StartTs     int64
	DurationMin int32
	Priority    TaskPriority
	RemindTs    *int64
}

// FindTask is the find condition for tasks.
type FindTask struct {
	ID     *int32
	UID    *string
	UserID *int32
	Status *TaskStatus
	// StartTsAfter/StartTsBefore bound the start timestamp (inclusive /
	// exclusive) for range queries.
	StartTsAfter  *int64
	StartTsBefore *int64
	Limit         *int
}

// UpdateTask is the update condition for tasks. Nil fields are left
// untouched.
type UpdateTask struct {
	ID          int32
	Title       *string
	Description *string
	StartTs     *int64
	DurationMin *int32
	Status      *TaskStatus
	Priority    *TaskPriority
	RemindTs    *int64
}

// ResolveTaskConflict atomically transitions (or removes) the losing task
// and inserts the winning draft in a single transaction, so a crash cannot
// leave a task cancelled with no replacement row.
type ResolveTaskConflict struct {
	// CancelTaskID is the existing task losing the slot.
	CancelTaskID int32
	// HardDelete removes the row instead of soft-cancelling it.
	HardDelete bool
	// Create is the draft being persisted into the freed slot.
	Create *CreateTask
}

func (s *Store) CreateTask(ctx context.Context, create *CreateTask) (*Task, error) {
	return s.driver.CreateTask(ctx, create)
}

func (s *Store) GetTask(ctx context.Context, find *FindTask) (*Task, error) {
	list, err := s.driver.ListTasks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*Task, error) {
	return s.driver.ListTasks(ctx, find)
}

// ListActiveTasks returns the owner's pending tasks ordered by start time,
// the working set for conflict checks. Completed and cancelled tasks are
// excluded.
func (s *Store) ListActiveTasks(ctx context.Context, userID int32, from, to *time.Time) ([]*Task, error) {
	status := TaskStatusPending
	find := &FindTask{UserID: &userID, Status: &status}
	if from != nil {
		ts := from.Unix()
		find.StartTsAfter = &ts
	}
	if to != nil {
		ts := to.Unix()
		find.StartTsBefore = &ts
	}
	return s.driver.ListTasks(ctx, find)
}

func (s *Store) UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error) {
	return s.driver.UpdateTask(ctx, update)
}

func (s *Store) DeleteTask(ctx context.Context, id int32) error {
	return s.driver.DeleteTask(ctx, id)
}

func (s *Store) ResolveTaskConflict(ctx context.Context, resolve *ResolveTaskConflict) (*Task, error) {
	return s.driver.ResolveTaskConflict(ctx, resolve)
}
