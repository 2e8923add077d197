package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"opsportal/internal/domain"
	"opsportal/internal/events"
	"opsportal/internal/repo"
)

// TaskChange is a partial task update. Nil fields are left alone.
type TaskChange struct {
	Status           *string
	AssignedToUserID *string
	Force            bool
}

// UpdateTask applies an assignee and a status change in one transaction. When
// either part is rejected nothing is written.
func (e Engine) UpdateTask(ctx context.Context, taskID string, change TaskChange, actorID string) (domain.Task, error) {
	if change.Status != nil && !validTaskStatus(*change.Status) {
		return domain.Task{}, ValidationError{Field: "status", Message: fmt.Sprintf("unknown task status %s", *change.Status)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTask(ctx, tx, taskID)
	if err != nil {
		return t, err
	}
	if change.Status != nil && t.Status != *change.Status {
		if err := ensureTaskTransition(t.Status, *change.Status, change.Force); err != nil {
			return t, err
		}
	}
	inst, err := e.Repo.GetInstance(ctx, tx, t.InstanceID)
	if err != nil {
		return t, err
	}
	now := e.timestamp()
	if change.AssignedToUserID != nil {
		if err := e.assign(ctx, tx, &t, inst, *change.AssignedToUserID, actorID, now); err != nil {
			return t, err
		}
	}
	if change.Status != nil && t.Status != *change.Status {
		if err := e.setStatus(ctx, tx, &t, inst, *change.Status, actorID, now); err != nil {
			return t, err
		}
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// UpdateTaskStatus moves a task and keeps its instance's step pointer on the
// first step whose task is still open. Closing the last open task completes
// the instance; reopening a task of a completed instance resumes it.
func (e Engine) UpdateTaskStatus(ctx context.Context, taskID, status, actorID string, force bool) (domain.Task, error) {
	return e.UpdateTask(ctx, taskID, TaskChange{Status: &status, Force: force}, actorID)
}

// AssignTask sets or clears (empty userID) the task assignee.
func (e Engine) AssignTask(ctx context.Context, taskID, userID, actorID string) (domain.Task, error) {
	return e.UpdateTask(ctx, taskID, TaskChange{AssignedToUserID: &userID}, actorID)
}

func (e Engine) assign(ctx context.Context, tx *sql.Tx, t *domain.Task, inst domain.ProcessInstance, userID, actorID, now string) error {
	prev := ""
	if t.AssignedToUserID != nil {
		prev = *t.AssignedToUserID
	}
	if prev == userID {
		return nil
	}
	t.AssignedToUserID = optionalString(userID)
	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, *t); err != nil {
		return err
	}
	return e.Events.Append(ctx, tx, events.TaskAssigned, events.Scope{ProjectID: inst.ProjectID, InstanceID: inst.ID}, actorID, events.EventPayload{
		"taskId": t.ID, "from": prev, "to": userID,
	})
}

func (e Engine) setStatus(ctx context.Context, tx *sql.Tx, t *domain.Task, inst domain.ProcessInstance, status, actorID, now string) error {
	from := t.Status
	t.Status = status
	t.UpdatedAt = now
	if status == domain.TaskStatusDone {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	if err := e.Repo.UpdateTask(ctx, tx, *t); err != nil {
		return err
	}
	scope := events.Scope{ProjectID: inst.ProjectID, InstanceID: inst.ID}
	if err := e.Events.Append(ctx, tx, events.TaskStatusChanged, scope, actorID, events.EventPayload{
		"taskId": t.ID, "key": t.Key, "from": from, "to": status,
	}); err != nil {
		return err
	}
	if status == domain.TaskStatusDone {
		if err := e.Events.Append(ctx, tx, events.StepCompleted, scope, actorID, events.EventPayload{
			"taskId": t.ID, "stepKey": t.Key,
		}); err != nil {
			return err
		}
	}
	if inst.Status == domain.InstanceStatusCompleted && !taskClosed(status) {
		inst.Status = domain.InstanceStatusRunning
		inst.EndedAt = nil
		if err := e.Events.Append(ctx, tx, events.InstanceReopened, scope, actorID, events.EventPayload{
			"taskId": t.ID, "stepKey": t.Key,
		}); err != nil {
			return err
		}
	}
	if inst.Status != domain.InstanceStatusRunning {
		return nil
	}
	return e.advance(ctx, tx, inst, actorID, now)
}

func (e Engine) advance(ctx context.Context, tx *sql.Tx, inst domain.ProcessInstance, actorID, now string) error {
	tasks, err := e.Repo.ListTasks(ctx, tx, inst.ID)
	if err != nil {
		return err
	}
	var next *string
	for _, t := range tasks {
		if !taskClosed(t.Status) {
			key := t.Key
			next = &key
			break
		}
	}
	inst.CurrentStepKey = next
	if next == nil {
		inst.Status = domain.InstanceStatusCompleted
		inst.EndedAt = &now
	}
	if err := e.Repo.UpdateInstance(ctx, tx, inst); err != nil {
		return err
	}
	if next == nil {
		return e.Events.Append(ctx, tx, events.InstanceCompleted, events.Scope{ProjectID: inst.ProjectID, InstanceID: inst.ID}, actorID, events.EventPayload{
			"processDefinitionId": inst.ProcessDefinitionID,
		})
	}
	return nil
}

// ProjectDetail returns the project with its process instance and tasks.
// Projects not created by conversion have no instance.
func (e Engine) ProjectDetail(ctx context.Context, projectID string) (domain.ProjectDetail, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.ProjectDetail{}, err
	}
	detail := domain.ProjectDetail{Project: p, Tasks: []domain.Task{}}
	inst, err := e.Repo.InstanceForProject(ctx, nil, p.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return detail, nil
	}
	if err != nil {
		return detail, err
	}
	detail.Instance = &inst
	tasks, err := e.Repo.ListTasks(ctx, nil, inst.ID)
	if err != nil {
		return detail, err
	}
	detail.Tasks = tasks
	return detail, nil
}

func validTaskStatus(s string) bool {
	switch s {
	case domain.TaskStatusTodo, domain.TaskStatusInProgress, domain.TaskStatusBlocked,
		domain.TaskStatusDone, domain.TaskStatusCanceled:
		return true
	}
	return false
}

func taskClosed(s string) bool {
	return s == domain.TaskStatusDone || s == domain.TaskStatusCanceled
}

func ensureTaskTransition(oldStatus, newStatus string, force bool) error {
	if force {
		return nil
	}
	switch oldStatus {
	case domain.TaskStatusTodo:
		if newStatus == domain.TaskStatusInProgress || newStatus == domain.TaskStatusBlocked || newStatus == domain.TaskStatusCanceled {
			return nil
		}
	case domain.TaskStatusInProgress:
		if newStatus == domain.TaskStatusBlocked || newStatus == domain.TaskStatusDone || newStatus == domain.TaskStatusCanceled {
			return nil
		}
	case domain.TaskStatusBlocked:
		if newStatus == domain.TaskStatusInProgress || newStatus == domain.TaskStatusCanceled {
			return nil
		}
	}
	return ValidationError{Field: "status", Message: fmt.Sprintf("invalid task status transition %s -> %s", oldStatus, newStatus)}
}
