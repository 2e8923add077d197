package opsportalsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"leadId":"l1","score":93,"maxScore":100,"isQualified":true,"qualificationThreshold":70,"status":"in_review"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	res, err := c.ScoreLead(context.Background(), "l1", true)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/v0/leads/score", gotPath)
	assert.Equal(t, map[string]any{"leadId": "l1", "recalculate": true}, gotBody)
	assert.Equal(t, 93, res.Score)
	assert.True(t, res.IsQualified)
	assert.Equal(t, "in_review", res.Status)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"lead not found","details":{"redirect_to":"/internal/leads/x"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "ops_key"
	_, err := c.ConvertLead(context.Background(), "x", ConvertOptions{})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "/internal/leads/x", apiErr.Details["redirect_to"])
}

func TestClientConvertAcceptsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ops_key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/v0/leads/l1/convert", r.URL.Path)
		w.Header().Set("Location", "/internal/projects/p1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"kind":"already_converted","leadId":"l1","projectId":"p1","redirectTo":"/internal/projects/p1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "ops_key"
	res, err := c.ConvertLead(context.Background(), "l1", ConvertOptions{Priority: "high"})
	require.NoError(t, err)
	assert.Equal(t, "already_converted", res.Kind)
	assert.Equal(t, "p1", res.ProjectID)
}

func TestListEventsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v0/events", r.URL.Path)
		assert.Equal(t, "l1", q.Get("lead_id"))
		assert.Equal(t, "lead.scored", q.Get("type"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "42", q.Get("cursor"))
		assert.Empty(t, q.Get("project_id"))
		_, _ = w.Write([]byte(`{"items":[{"id":41,"type":"lead.scored","leadId":"l1","payload":{"score":93},"createdAt":"2024-01-01T00:00:00Z"}],"nextCursor":"41"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListEvents(context.Background(), EventQuery{LeadID: "l1", Type: "lead.scored", Limit: 5, Cursor: "42"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(41), page.Items[0].ID)
	assert.Equal(t, float64(93), page.Items[0].Payload["score"])
	assert.Equal(t, "41", page.NextCursor)
}

func TestUpdateTaskAndGetProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "/v0/tasks/t1", r.URL.Path)
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"status": "in_progress"}, body)
			_, _ = w.Write([]byte(`{"id":"t1","instanceId":"i1","key":"client_request","title":"Client request","status":"in_progress"}`))
		case http.MethodGet:
			assert.Equal(t, "/v0/projects/p1", r.URL.Path)
			_, _ = w.Write([]byte(`{"project":{"id":"p1","name":"Ada Project","status":"new","priority":"medium"},"instance":{"id":"i1","processDefinitionId":"d1","projectId":"p1","status":"running","currentStepKey":"client_request","startedAt":"2024-01-01T00:00:00Z"},"tasks":[{"id":"t1","instanceId":"i1","key":"client_request","title":"Client request","status":"in_progress"}]}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	status := "in_progress"
	task, err := c.UpdateTask(context.Background(), "t1", TaskUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "in_progress", task.Status)

	detail, err := c.GetProject(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, detail.Instance)
	assert.Equal(t, "client_request", *detail.Instance.CurrentStepKey)
	assert.Len(t, detail.Tasks, 1)
}
