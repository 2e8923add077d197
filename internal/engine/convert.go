package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"opsportal/internal/config"
	"opsportal/internal/domain"
	"opsportal/internal/events"
	"opsportal/internal/repo"
)

const (
	ConvertCreated          = "created"
	ConvertAlreadyConverted = "already_converted"
)

type ConvertInput struct {
	LeadID      string `json:"leadId" validate:"required"`
	ProjectName string `json:"projectName,omitempty" validate:"max=200"`
	OwnerUserID string `json:"ownerUserId,omitempty"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueAt       string `json:"dueAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ActorID     string `json:"-"`
}

// ConvertResult tells whether this call created the project or found one
// made by an earlier conversion.
type ConvertResult struct {
	Kind       string `json:"kind" enum:"created,already_converted"`
	LeadID     string `json:"leadId"`
	ProjectID  string `json:"projectId"`
	InstanceID string `json:"instanceId,omitempty"`
}

func (r ConvertResult) Created() bool { return r.Kind == ConvertCreated }

// ConvertLead turns a lead into a project with a running instance of the
// active process definition and one task per step. It is idempotent: once a
// lead is converted, later calls report the existing project and write nothing.
func (e Engine) ConvertLead(ctx context.Context, in ConvertInput) (ConvertResult, error) {
	if err := Validate(in); err != nil {
		return ConvertResult{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ConvertResult{}, err
	}
	defer tx.Rollback()

	l, err := e.Repo.GetLeadTx(ctx, tx, in.LeadID)
	if err != nil {
		return ConvertResult{}, err
	}
	if l.Status == domain.LeadStatusConverted {
		tx.Rollback()
		return e.existingConversion(ctx, in.LeadID)
	}
	now := e.timestamp()
	flipped, err := e.Repo.MarkLeadConverted(ctx, tx, l.ID, now)
	if err != nil {
		return ConvertResult{}, err
	}
	if !flipped {
		tx.Rollback()
		return e.existingConversion(ctx, in.LeadID)
	}

	name := strings.TrimSpace(in.ProjectName)
	if name == "" {
		name = l.Name + " Project"
	}
	priority := in.Priority
	if priority == "" {
		priority = e.Config.Conversion.DefaultPriority
	}
	if !config.ValidPriority(priority) {
		priority = "medium"
	}
	leadID := l.ID
	p := domain.Project{
		ID:          uuid.NewString(),
		LeadID:      &leadID,
		Name:        name,
		OwnerUserID: optionalString(in.OwnerUserID),
		Status:      "new",
		Priority:    priority,
		StartAt:     &now,
		DueAt:       optionalString(in.DueAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		if repo.IsUniqueViolation(err) {
			tx.Rollback()
			return e.existingConversion(ctx, in.LeadID)
		}
		return ConvertResult{}, err
	}

	def, err := e.Registry.EnsureActive(ctx, tx, in.ActorID)
	if err != nil {
		e.log().Error("resolve active process definition", "lead_id", l.ID, "error", err)
		return ConvertResult{}, ConfigurationError{Err: err}
	}

	inst := domain.ProcessInstance{
		ID:                  uuid.NewString(),
		ProcessDefinitionID: def.ID,
		ProjectID:           p.ID,
		Status:              domain.InstanceStatusRunning,
		StartedAt:           now,
	}
	if len(def.Steps) > 0 {
		first := def.Steps[0].Key
		inst.CurrentStepKey = &first
	}
	if err := e.Repo.InsertInstance(ctx, tx, inst); err != nil {
		return ConvertResult{}, err
	}
	for i, step := range def.Steps {
		t := domain.Task{
			ID:         uuid.NewString(),
			InstanceID: inst.ID,
			Key:        step.Key,
			Title:      step.Title,
			Status:     domain.TaskStatusTodo,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if step.RecommendedRole == domain.RolePM {
			t.AssignedToUserID = p.OwnerUserID
		}
		if err := e.Repo.InsertTask(ctx, tx, t, i); err != nil {
			return ConvertResult{}, err
		}
	}

	if err := e.Events.Append(ctx, tx, events.LeadConverted, events.Scope{LeadID: l.ID, ProjectID: p.ID}, in.ActorID, events.EventPayload{
		"projectId": p.ID,
	}); err != nil {
		return ConvertResult{}, err
	}
	if err := e.Events.Append(ctx, tx, events.InstanceStarted, events.Scope{ProjectID: p.ID, InstanceID: inst.ID}, in.ActorID, events.EventPayload{
		"processDefinitionId": def.ID,
	}); err != nil {
		return ConvertResult{}, err
	}
	if err := tx.Commit(); err != nil {
		if repo.IsUniqueViolation(err) {
			return e.existingConversion(ctx, in.LeadID)
		}
		return ConvertResult{}, err
	}
	return ConvertResult{Kind: ConvertCreated, LeadID: l.ID, ProjectID: p.ID, InstanceID: inst.ID}, nil
}

// existingConversion reads back the project of an already converted lead.
// The caller must end its transaction first: the pool has one connection.
func (e Engine) existingConversion(ctx context.Context, leadID string) (ConvertResult, error) {
	res := ConvertResult{Kind: ConvertAlreadyConverted, LeadID: leadID}
	p, err := e.Repo.ProjectForLead(ctx, nil, leadID)
	if errors.Is(err, repo.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("look up converted project: %w", err)
	}
	res.ProjectID = p.ID
	if inst, err := e.Repo.InstanceForProject(ctx, nil, p.ID); err == nil {
		res.InstanceID = inst.ID
	}
	return res, nil
}
