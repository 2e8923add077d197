package opsportalsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal ops portal HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Lead is the API lead model.
type Lead struct {
	ID              string `json:"id,omitempty"`
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
	Status          string `json:"status,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`
}

type Breakdown struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
	Points   int    `json:"points"`
}

// ScoreResult is what POST /leads/score returns.
type ScoreResult struct {
	LeadID                 string         `json:"leadId"`
	Score                  int            `json:"score"`
	MaxScore               int            `json:"maxScore"`
	IsQualified            bool           `json:"isQualified"`
	QualificationThreshold int            `json:"qualificationThreshold"`
	Breakdown              []Breakdown    `json:"breakdown"`
	CategoryScores         map[string]int `json:"categoryScores"`
	Range                  string         `json:"range"`
	Recommendations        []string       `json:"recommendations"`
	NextAction             string         `json:"nextAction"`
	Status                 string         `json:"status"`
}

type Rule struct {
	Category  string `json:"category"`
	Field     string `json:"field"`
	Condition string `json:"condition"`
	Value     any    `json:"value,omitempty"`
	Points    int    `json:"points"`
	Reason    string `json:"reason"`
}

type IntentKeyword struct {
	Pattern string `json:"pattern"`
	Points  int    `json:"points"`
	Reason  string `json:"reason"`
}

type ScoreRange struct {
	Label  string `json:"label"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Color  string `json:"color"`
	Action string `json:"action"`
}

// Catalog describes the scoring rules in effect.
type Catalog struct {
	QualificationThreshold int               `json:"qualificationThreshold"`
	MaxScore               int               `json:"maxScore"`
	Categories             map[string][]Rule `json:"categories"`
	CategoryOrder          []string          `json:"categoryOrder"`
	IntentKeywords         []IntentKeyword   `json:"intentKeywords"`
	ScoreRanges            []ScoreRange      `json:"scoreRanges"`
}

// ConvertOptions are the optional conversion parameters.
type ConvertOptions struct {
	ProjectName string `json:"projectName,omitempty"`
	OwnerUserID string `json:"ownerUserId,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueAt       string `json:"dueAt,omitempty"`
}

// ConvertResult reports whether the call created the project ("created") or
// found an earlier one ("already_converted").
type ConvertResult struct {
	Kind       string `json:"kind"`
	LeadID     string `json:"leadId"`
	ProjectID  string `json:"projectId"`
	InstanceID string `json:"instanceId,omitempty"`
	RedirectTo string `json:"redirectTo"`
}

type Project struct {
	ID          string  `json:"id"`
	LeadID      *string `json:"leadId,omitempty"`
	Name        string  `json:"name"`
	OwnerUserID *string `json:"ownerUserId,omitempty"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	StartAt     *string `json:"startAt,omitempty"`
	DueAt       *string `json:"dueAt,omitempty"`
}

type Instance struct {
	ID                  string  `json:"id"`
	ProcessDefinitionID string  `json:"processDefinitionId"`
	ProjectID           string  `json:"projectId"`
	Status              string  `json:"status"`
	CurrentStepKey      *string `json:"currentStepKey"`
	StartedAt           string  `json:"startedAt"`
	EndedAt             *string `json:"endedAt,omitempty"`
}

type Task struct {
	ID               string  `json:"id"`
	InstanceID       string  `json:"instanceId"`
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	Status           string  `json:"status"`
	AssignedToUserID *string `json:"assignedToUserId,omitempty"`
	CompletedAt      *string `json:"completedAt,omitempty"`
}

// ProjectDetail is a project with its workflow state.
type ProjectDetail struct {
	Project  Project   `json:"project"`
	Instance *Instance `json:"instance,omitempty"`
	Tasks    []Task    `json:"tasks"`
}

// TaskUpdate changes status, assignee or both; nil fields are left alone.
type TaskUpdate struct {
	Status           *string `json:"status,omitempty"`
	AssignedToUserID *string `json:"assignedToUserId,omitempty"`
	Force            bool    `json:"force,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	LeadID      string         `json:"leadId,omitempty"`
	ProjectID   string         `json:"projectId,omitempty"`
	InstanceID  string         `json:"instanceId,omitempty"`
	ActorUserID string         `json:"actorUserId,omitempty"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   string         `json:"createdAt"`
}

type EventQuery struct {
	LeadID     string
	ProjectID  string
	InstanceID string
	Type       string
	Limit      int
	Cursor     string
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"nextCursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	var resp Lead
	err := c.do(ctx, http.MethodPost, "leads", lead, &resp)
	return resp, err
}

// ScoreLead scores a lead; a qualified lead in "new" moves to "in_review".
func (c *Client) ScoreLead(ctx context.Context, leadID string, recalculate bool) (ScoreResult, error) {
	body := map[string]any{"leadId": leadID, "recalculate": recalculate}
	var resp ScoreResult
	err := c.do(ctx, http.MethodPost, "leads/score", body, &resp)
	return resp, err
}

func (c *Client) ScoringCatalog(ctx context.Context) (Catalog, error) {
	var resp Catalog
	err := c.do(ctx, http.MethodGet, "leads/score", nil, &resp)
	return resp, err
}

// ConvertLead converts a lead. Calling it again for the same lead returns
// the existing project with Kind "already_converted".
func (c *Client) ConvertLead(ctx context.Context, leadID string, opts ConvertOptions) (ConvertResult, error) {
	var resp ConvertResult
	endpoint := fmt.Sprintf("leads/%s/convert", url.PathEscape(leadID))
	err := c.do(ctx, http.MethodPost, endpoint, opts, &resp)
	return resp, err
}

func (c *Client) GetProject(ctx context.Context, projectID string) (ProjectDetail, error) {
	var resp ProjectDetail
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(projectID), nil, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, update TaskUpdate) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(taskID), update, &resp)
	return resp, err
}

// ListEvents returns one page of events, newest first.
func (c *Client) ListEvents(ctx context.Context, q EventQuery) (PaginatedEvents, error) {
	params := url.Values{}
	for k, v := range map[string]string{
		"lead_id":     q.LeadID,
		"project_id":  q.ProjectID,
		"instance_id": q.InstanceID,
		"type":        q.Type,
		"cursor":      q.Cursor,
	} {
		if v != "" {
			params.Set(k, v)
		}
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	endpoint := "events"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
