package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"opsportal/internal/domain"
	"opsportal/internal/engine"
	"opsportal/internal/repo"
	"opsportal/internal/scoring"
)

type ScoreLeadResponse struct {
	engine.ScoreOutcome
	MaxScore               int `json:"maxScore"`
	QualificationThreshold int `json:"qualificationThreshold"`
}

func (h handlers) registerLeads(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-lead",
		Method:        http.MethodPost,
		Path:          "/leads",
		Summary:       "Take in a lead",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateLeadRequest `json:"body"`
	}) (*struct {
		Location string      `header:"Location"`
		Body     domain.Lead `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := h.e.CreateLead(ctx, input.Body.input(), p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Location string      `header:"Location"`
			Body     domain.Lead `json:"body"`
		}{Location: leadPath(l.ID), Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/leads",
		Summary:     "List leads",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body leadList `json:"body"`
	}, error) {
		items, err := h.e.ListLeads(ctx, input.Status, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body leadList `json:"body"`
		}{Body: leadList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lead",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}",
		Summary:     "Get a lead",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		l, err := h.e.GetLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-lead-status",
		Method:      http.MethodPatch,
		Path:        "/leads/{lead_id}/status",
		Summary:     "Move a lead through review",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		LeadID string               `path:"lead_id"`
		Body   SetLeadStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		p, err := requireRole(ctx, "change lead status", domain.RoleAdmin, domain.RolePM)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Force {
			if _, err := requireRole(ctx, "force a lead status", domain.RoleAdmin); err != nil {
				return nil, handleError(err)
			}
		}
		l, err := h.e.UpdateLeadStatus(ctx, input.LeadID, input.Body.Status, p.UserID, input.Body.Force)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})
}

func (h handlers) registerScoring(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "scoring-catalog",
		Method:      http.MethodGet,
		Path:        "/leads/score",
		Summary:     "Scoring rules, intent keywords and score ranges",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body scoringCatalog `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body scoringCatalog `json:"body"`
		}{Body: h.e.ScoringCatalog()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-lead",
		Method:      http.MethodPost,
		Path:        "/leads/score",
		Summary:     "Score a lead",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ScoreLeadRequest `json:"body"`
	}) (*struct {
		Body ScoreLeadResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		leadID := strings.TrimSpace(input.Body.LeadID)
		if leadID == "" {
			return nil, handleError(engine.ValidationError{Field: "leadId", Message: "is required"})
		}
		out, err := h.e.ScoreLead(ctx, leadID, input.Body.Recalculate, p.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "not_found", "lead not found", map[string]any{"leadId": leadID})
			}
			h.log.Error("score lead", "lead_id", leadID, "error", err)
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "failed to score lead", nil)
		}
		return &struct {
			Body ScoreLeadResponse `json:"body"`
		}{Body: ScoreLeadResponse{
			ScoreOutcome:           out,
			MaxScore:               scoring.MaxScore,
			QualificationThreshold: out.Threshold,
		}}, nil
	})
}

type convertOutput struct {
	Status   int
	Location string `header:"Location"`
	Body     ConvertLeadResponse
}

func (h handlers) registerConversion(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "convert-lead",
		Method:        http.MethodPost,
		Path:          "/leads/{lead_id}/convert",
		Summary:       "Convert a lead into a project with a running workflow",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		LeadID string              `path:"lead_id"`
		Body   *ConvertLeadRequest `json:"body,omitempty" required:"false"`
	}) (*convertOutput, error) {
		p, err := requireRole(ctx, "convert leads", h.e.Config.Conversion.AllowedRoles...)
		if err != nil {
			return nil, redirectToLead(handleError(err), input.LeadID)
		}
		in := engine.ConvertInput{LeadID: input.LeadID, ActorID: p.UserID}
		if input.Body != nil {
			in.ProjectName = input.Body.ProjectName
			in.OwnerUserID = input.Body.OwnerUserID
			in.Priority = input.Body.Priority
			in.DueAt = input.Body.DueAt
		}
		res, err := h.e.ConvertLead(ctx, in)
		if err != nil {
			h.log.Warn("convert lead", "lead_id", input.LeadID, "error", err)
			return nil, redirectToLead(handleError(err), input.LeadID)
		}
		status := http.StatusCreated
		if !res.Created() {
			status = http.StatusOK
		}
		redirect := leadPath(res.LeadID)
		if res.ProjectID != "" {
			redirect = projectPath(res.ProjectID)
		}
		return &convertOutput{
			Status:   status,
			Location: redirect,
			Body:     convertLeadResponse(res, redirect),
		}, nil
	})
}

// redirectToLead points a failed conversion back at the lead page.
func redirectToLead(err huma.StatusError, leadID string) huma.StatusError {
	ae, ok := err.(*apiError)
	if !ok {
		return err
	}
	if ae.Body.Details == nil {
		ae.Body.Details = map[string]any{}
	}
	ae.Body.Details["redirect_to"] = leadPath(leadID)
	return ae
}
