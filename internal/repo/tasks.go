package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"opsportal/internal/domain"
)

const taskColumns = `id,instance_id,key,title,status,assigned_to_user_id,due_at,completed_at,created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var assignee, due, completed sql.NullString
	err := row.Scan(&t.ID, &t.InstanceID, &t.Key, &t.Title, &t.Status, &assignee, &due, &completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	t.AssignedToUserID = fromNull(assignee)
	t.DueAt = fromNull(due)
	t.CompletedAt = fromNull(completed)
	return t, err
}

// InsertTask stores a task; position preserves the order of its step.
func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task, position int) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO tasks(id,instance_id,key,title,position,status,assigned_to_user_id,due_at,completed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.InstanceID, t.Key, t.Title, position, t.Status, nullableStringPtr(t.AssignedToUserID),
		nullableStringPtr(t.DueAt), nullableStringPtr(t.CompletedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.Key, err)
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTask(r.on(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if errors.Is(err, ErrNotFound) {
		return t, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTasks returns an instance's tasks in step order.
func (r Repo) ListTasks(ctx context.Context, tx *sql.Tx, instanceID string) ([]domain.Task, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE instance_id=? ORDER BY position`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE tasks SET status=?, assigned_to_user_id=?, due_at=?, completed_at=?, updated_at=? WHERE id=?`,
		t.Status, nullableStringPtr(t.AssignedToUserID), nullableStringPtr(t.DueAt), nullableStringPtr(t.CompletedAt), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}
