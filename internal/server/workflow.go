package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"opsportal/internal/domain"
	"opsportal/internal/engine"
	"opsportal/internal/engine/auth"
	"opsportal/internal/repo"
)

func (h handlers) registerProjects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Project with its workflow instance and tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.ProjectDetail `json:"body"`
	}, error) {
		detail, err := h.e.ProjectDetail(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		detail.Tasks = nonNilSlice(detail.Tasks)
		return &struct {
			Body domain.ProjectDetail `json:"body"`
		}{Body: detail}, nil
	})
}

func (h handlers) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Change a task's status or assignee",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !auth.CanWrite(p.Role) {
			return nil, handleError(auth.ForbiddenError{Action: "update tasks", Role: p.Role})
		}
		if input.Body.Force {
			if _, err := requireRole(ctx, "force a task status", domain.RoleAdmin); err != nil {
				return nil, handleError(err)
			}
		}
		if input.Body.Status == nil && input.Body.AssignedToUserID == nil {
			return nil, handleError(engine.ValidationError{Field: "status", Message: "status or assignedToUserId is required"})
		}
		task, err := h.e.UpdateTask(ctx, input.TaskID, engine.TaskChange{
			Status:           input.Body.Status,
			AssignedToUserID: input.Body.AssignedToUserID,
			Force:            input.Body.Force,
		}, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})
}

func (h handlers) registerDefinitions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-process-definitions",
		Method:      http.MethodGet,
		Path:        "/process-definitions",
		Summary:     "List process definitions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body definitionList `json:"body"`
	}, error) {
		items, err := h.e.ListDefinitions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body definitionList `json:"body"`
		}{Body: definitionList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "import-process-definition",
		Method:        http.MethodPost,
		Path:          "/process-definitions",
		Summary:       "Import a process definition document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Activate bool `query:"activate"`
		RawBody  []byte
	}) (*struct {
		Body domain.ProcessDefinition `json:"body"`
	}, error) {
		p, err := requireRole(ctx, "import process definitions", domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		raw := input.RawBody
		if len(raw) == 0 {
			raw = bodyBytes(ctx)
		}
		def, err := h.e.ImportDefinition(ctx, raw, input.Activate, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProcessDefinition `json:"body"`
		}{Body: def}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-process-definition",
		Method:      http.MethodPost,
		Path:        "/process-definitions/{definition_id}/activate",
		Summary:     "Make a definition the one new conversions use",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DefinitionID string `path:"definition_id"`
	}) (*struct {
		Body domain.ProcessDefinition `json:"body"`
	}, error) {
		p, err := requireRole(ctx, "activate process definitions", domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		def, err := h.e.ActivateDefinition(ctx, input.DefinitionID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProcessDefinition `json:"body"`
		}{Body: def}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		LeadID     string `query:"lead_id"`
		ProjectID  string `query:"project_id"`
		InstanceID string `query:"instance_id"`
		Type       string `query:"type"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := h.e.Repo.ListEvents(ctx, repo.EventFilters{
			LeadID:     input.LeadID,
			ProjectID:  input.ProjectID,
			InstanceID: input.InstanceID,
			Type:       input.Type,
			Limit:      limit + 1,
			Cursor:     cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func eventResponse(evt domain.Event) EventResponse {
	var payload any = map[string]any{}
	if evt.Payload != "" {
		if err := json.Unmarshal([]byte(evt.Payload), &payload); err != nil {
			payload = map[string]any{"raw": evt.Payload}
		}
	}
	return EventResponse{
		ID:          evt.ID,
		Type:        evt.Type,
		LeadID:      evt.LeadID,
		ProjectID:   evt.ProjectID,
		InstanceID:  evt.InstanceID,
		ActorUserID: evt.ActorUserID,
		Payload:     payload,
		CreatedAt:   evt.CreatedAt,
	}
}
