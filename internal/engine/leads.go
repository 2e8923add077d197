package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"opsportal/internal/domain"
	"opsportal/internal/events"
	"opsportal/internal/repo"
)

// LeadInput is the intake payload for a new lead.
type LeadInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	Phone           string `json:"phone,omitempty" validate:"max=50"`
	Company         string `json:"company,omitempty" validate:"max=200"`
	Message         string `json:"message,omitempty" validate:"max=10000"`
	Service         string `json:"service,omitempty"`
	TechPreferences string `json:"techPreferences,omitempty"`
	EstimatedBudget string `json:"estimatedBudget,omitempty"`
	Source          string `json:"source,omitempty"`
	SrsURL          string `json:"srsUrl,omitempty" validate:"omitempty,url"`
	TargetPlatforms string `json:"targetPlatforms,omitempty"`
}

func (e Engine) CreateLead(ctx context.Context, in LeadInput, actorID string) (domain.Lead, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := Validate(in); err != nil {
		return domain.Lead{}, err
	}
	now := e.timestamp()
	l := domain.Lead{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Email:           in.Email,
		Phone:           strings.TrimSpace(in.Phone),
		Company:         strings.TrimSpace(in.Company),
		Message:         in.Message,
		Service:         in.Service,
		TechPreferences: in.TechPreferences,
		EstimatedBudget: in.EstimatedBudget,
		Source:          in.Source,
		SrsURL:          in.SrsURL,
		TargetPlatforms: in.TargetPlatforms,
		Status:          domain.LeadStatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if l.Source == "" {
		l.Source = domain.DefaultLeadSource
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertLead(ctx, tx, l); err != nil {
		return domain.Lead{}, err
	}
	if err := e.Events.Append(ctx, tx, events.LeadCreated, events.Scope{LeadID: l.ID}, actorID, events.EventPayload{
		"source": l.Source,
	}); err != nil {
		return domain.Lead{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

func (e Engine) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	return e.Repo.GetLead(ctx, id)
}

func (e Engine) ListLeads(ctx context.Context, status string, limit int) ([]domain.Lead, error) {
	if status != "" && !validLeadStatus(status) {
		return nil, ValidationError{Field: "status", Message: fmt.Sprintf("unknown lead status %s", status)}
	}
	return e.Repo.ListLeads(ctx, repo.LeadFilters{Status: status, Limit: limit})
}

// UpdateLeadStatus moves a lead along its review lifecycle. Conversion is
// not reachable from here; use ConvertLead.
func (e Engine) UpdateLeadStatus(ctx context.Context, id, status, actorID string, force bool) (domain.Lead, error) {
	if !validLeadStatus(status) {
		return domain.Lead{}, ValidationError{Field: "status", Message: fmt.Sprintf("unknown lead status %s", status)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()

	l, err := e.Repo.GetLeadTx(ctx, tx, id)
	if err != nil {
		return l, err
	}
	if l.Status == status {
		return l, nil
	}
	if err := ensureLeadTransition(l.Status, status, force); err != nil {
		return l, err
	}
	now := e.timestamp()
	ok, err := e.Repo.SetLeadStatusIf(ctx, tx, l.ID, l.Status, status, now)
	if err != nil {
		return l, err
	}
	if !ok {
		return l, fmt.Errorf("lead %s changed concurrently", l.ID)
	}
	payload := events.EventPayload{"from": l.Status, "to": status}
	if force {
		payload["force"] = true
	}
	if err := e.Events.Append(ctx, tx, events.LeadStatusChanged, events.Scope{LeadID: l.ID}, actorID, payload); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	l.Status = status
	l.UpdatedAt = now
	return l, nil
}

func validLeadStatus(s string) bool {
	switch s {
	case domain.LeadStatusNew, domain.LeadStatusInReview, domain.LeadStatusApproved,
		domain.LeadStatusRejected, domain.LeadStatusConverted:
		return true
	}
	return false
}

func ensureLeadTransition(oldStatus, newStatus string, force bool) error {
	if oldStatus == domain.LeadStatusConverted || newStatus == domain.LeadStatusConverted {
		return ValidationError{Field: "status", Message: fmt.Sprintf("invalid lead status transition %s -> %s", oldStatus, newStatus)}
	}
	if force {
		return nil
	}
	switch oldStatus {
	case domain.LeadStatusNew:
		if newStatus == domain.LeadStatusInReview || newStatus == domain.LeadStatusRejected {
			return nil
		}
	case domain.LeadStatusInReview:
		if newStatus == domain.LeadStatusApproved || newStatus == domain.LeadStatusRejected {
			return nil
		}
	case domain.LeadStatusApproved:
		if newStatus == domain.LeadStatusRejected {
			return nil
		}
	case domain.LeadStatusRejected:
		if newStatus == domain.LeadStatusInReview {
			return nil
		}
	}
	return ValidationError{Field: "status", Message: fmt.Sprintf("invalid lead status transition %s -> %s", oldStatus, newStatus)}
}
