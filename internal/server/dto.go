package server

import (
	"opsportal/internal/domain"
	"opsportal/internal/engine"
	"opsportal/internal/scoring"
)

// Request payloads

type CreateLeadRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Company         string `json:"company,omitempty"`
	Message         string `json:"message,omitempty"`
	Service         string `json:"service,omitempty"`
	TechPreferences string `json:"techPreferences,omitempty"`
	EstimatedBudget string `json:"estimatedBudget,omitempty"`
	Source          string `json:"source,omitempty"`
	SrsURL          string `json:"srsUrl,omitempty"`
	TargetPlatforms string `json:"targetPlatforms,omitempty"`
}

func (r CreateLeadRequest) input() engine.LeadInput {
	return engine.LeadInput{
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Company:         r.Company,
		Message:         r.Message,
		Service:         r.Service,
		TechPreferences: r.TechPreferences,
		EstimatedBudget: r.EstimatedBudget,
		Source:          r.Source,
		SrsURL:          r.SrsURL,
		TargetPlatforms: r.TargetPlatforms,
	}
}

type SetLeadStatusRequest struct {
	Status string `json:"status" enum:"new,in_review,approved,rejected"`
	Force  bool   `json:"force,omitempty"`
}

type ScoreLeadRequest struct {
	LeadID      string `json:"leadId" minLength:"1"`
	Recalculate bool   `json:"recalculate,omitempty"`
}

type ConvertLeadRequest struct {
	ProjectName string `json:"projectName,omitempty"`
	OwnerUserID string `json:"ownerUserId,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	DueAt       string `json:"dueAt,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	Status           *string `json:"status,omitempty" enum:"todo,in_progress,blocked,done,canceled"`
	AssignedToUserID *string `json:"assignedToUserId,omitempty"`
	Force            bool    `json:"force,omitempty"`
}

type DevLoginRequest struct {
	UserID string `json:"userId" minLength:"1"`
	Role   string `json:"role,omitempty" enum:"admin,pm,dev,qa,viewer"`
	Email  string `json:"email,omitempty"`
}

// Responses

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Source string `json:"source"`
}

type leadList struct {
	Items []domain.Lead `json:"items"`
}

type ConvertLeadResponse struct {
	Kind       string `json:"kind" enum:"created,already_converted"`
	LeadID     string `json:"leadId"`
	ProjectID  string `json:"projectId"`
	InstanceID string `json:"instanceId,omitempty"`
	RedirectTo string `json:"redirectTo"`
}

func convertLeadResponse(res engine.ConvertResult, redirect string) ConvertLeadResponse {
	return ConvertLeadResponse{
		Kind:       res.Kind,
		LeadID:     res.LeadID,
		ProjectID:  res.ProjectID,
		InstanceID: res.InstanceID,
		RedirectTo: redirect,
	}
}

type definitionList struct {
	Items []domain.ProcessDefinition `json:"items"`
}

type EventResponse struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	LeadID      string `json:"leadId,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
	InstanceID  string `json:"instanceId,omitempty"`
	ActorUserID string `json:"actorUserId,omitempty"`
	Payload     any    `json:"payload"`
	CreatedAt   string `json:"createdAt"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

type scoringCatalog = scoring.Catalog

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func projectPath(id string) string {
	return "/internal/projects/" + id
}

func leadPath(id string) string {
	return "/internal/leads/" + id
}
