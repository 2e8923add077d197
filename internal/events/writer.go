package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	LeadCreated       = "lead.created"
	LeadScored        = "lead.scored"
	LeadStatusChanged = "lead.status_changed"
	LeadConverted     = "lead.converted"
	InstanceStarted   = "instance.started"
	InstanceCompleted = "instance.completed"
	InstanceReopened  = "instance.reopened"
	StepCompleted     = "step.completed"
	TaskStatusChanged = "task.status_changed"
	TaskAssigned      = "task.assigned"
	DefinitionCreated = "process_definition.imported"
	DefinitionActive  = "process_definition.activated"
)

// Scope ties an event to the entities it concerns. Empty ids are stored as NULL.
type Scope struct {
	LeadID     string
	ProjectID  string
	InstanceID string
}

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event inside the caller's transaction so it commits or
// rolls back together with the change it records.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, scope Scope, actorID string, payload EventPayload) error {
	if tx == nil {
		return fmt.Errorf("append %s: transaction required", evtType)
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(type,lead_id,project_id,instance_id,actor_user_id,payload_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		evtType, nullable(scope.LeadID), nullable(scope.ProjectID), nullable(scope.InstanceID), nullable(actorID), string(data), ts)
	if err != nil {
		return fmt.Errorf("append %s: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
