package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/serani-ai/serani/store"
)

const taskFields = "id, uid, user_id, title, description, start_ts, duration_min, status, priority, remind_ts, created_ts, updated_ts"

// CreateTask is idempotent on the uid: re-inserting with a uid that
// already exists returns the stored row untouched.
func (d *DB) CreateTask(ctx context.Context, create *store.CreateTask) (*store.Task, error) {
	now := time.Now().Unix()
	stmt := `
		INSERT INTO task (uid, user_id, title, description, start_ts, duration_min, status, priority, remind_ts, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO NOTHING
	`
	priority := create.Priority
	if priority == "" {
		priority = store.TaskPriorityMedium
	}
	_, err := d.db.ExecContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Title,
		create.Description,
		create.StartTs,
		create.DurationMin,
		store.TaskStatusPending,
		priority,
		create.RemindTs,
		now,
		now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task")
	}

	task, err := d.getTaskByUID(ctx, create.UID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errors.Errorf("task with uid %s not found after insert", create.UID)
	}
	return task, nil
}

func (d *DB) getTaskByUID(ctx context.Context, uid string) (*store.Task, error) {
	list, err := d.ListTasks(ctx, &store.FindTask{UID: &uid})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.Status != nil {
		where, args = append(where, "status = ?"), append(args, *find.Status)
	}
	if find.StartTsAfter != nil {
		where, args = append(where, "start_ts >= ?"), append(args, *find.StartTsAfter)
	}
	if find.StartTsBefore != nil {
		where, args = append(where, "start_ts < ?"), append(args, *find.StartTsBefore)
	}

	query := `
		SELECT ` + taskFields + `
		FROM task
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY start_ts, id
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	defer rows.Close()

	list := []*store.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, task)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	set, args := []string{}, []any{}

	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Description != nil {
		set, args = append(set, "description = ?"), append(args, *update.Description)
	}
	if update.StartTs != nil {
		set, args = append(set, "start_ts = ?"), append(args, *update.StartTs)
	}
	if update.DurationMin != nil {
		set, args = append(set, "duration_min = ?"), append(args, *update.DurationMin)
	}
	if update.Status != nil {
		set, args = append(set, "status = ?"), append(args, *update.Status)
	}
	if update.Priority != nil {
		set, args = append(set, "priority = ?"), append(args, *update.Priority)
	}
	if update.RemindTs != nil {
		set, args = append(set, "remind_ts = ?"), append(args, *update.RemindTs)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	set, args = append(set, "updated_ts = ?"), append(args, time.Now().Unix())
	args = append(args, update.ID)

	stmt := `
		UPDATE task
		SET ` + strings.Join(set, ", ") + `
		WHERE id = ?
		RETURNING ` + taskFields

	task, err := scanTask(d.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "task %d", update.ID)
		}
		return nil, errors.Wrap(err, "failed to update task")
	}
	return task, nil
}

func (d *DB) DeleteTask(ctx context.Context, id int32) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM task WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete task")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Wrapf(store.ErrNotFound, "task %d", id)
	}
	return nil
}

// ResolveTaskConflict cancels (or deletes) the losing task and inserts the
// replacement inside one transaction.
func (d *DB) ResolveTaskConflict(ctx context.Context, resolve *store.ResolveTaskConflict) (*store.Task, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if resolve.HardDelete {
		if _, err := tx.ExecContext(ctx, "DELETE FROM task WHERE id = ?", resolve.CancelTaskID); err != nil {
			return nil, errors.Wrap(err, "failed to delete conflicting task")
		}
	} else {
		_, err := tx.ExecContext(ctx,
			"UPDATE task SET status = ?, updated_ts = ? WHERE id = ?",
			store.TaskStatusCancelled, now, resolve.CancelTaskID,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to cancel conflicting task")
		}
	}

	create := resolve.Create
	priority := create.Priority
	if priority == "" {
		priority = store.TaskPriorityMedium
	}
	stmt := `
		INSERT INTO task (uid, user_id, title, description, start_ts, duration_min, status, priority, remind_ts, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO NOTHING
	`
	_, err = tx.ExecContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Title,
		create.Description,
		create.StartTs,
		create.DurationMin,
		store.TaskStatusPending,
		priority,
		create.RemindTs,
		now,
		now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert replacement task")
	}

	row := tx.QueryRowContext(ctx, "SELECT "+taskFields+" FROM task WHERE uid = ?", create.UID)
	task, err := scanTask(row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read replacement task")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit conflict resolution")
	}
	return task, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*store.Task, error) {
	var task store.Task
	err := row.Scan(
		&task.ID,
		&task.UID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.StartTs,
		&task.DurationMin,
		&task.Status,
		&task.Priority,
		&task.RemindTs,
		&task.CreatedTs,
		&task.UpdatedTs,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
