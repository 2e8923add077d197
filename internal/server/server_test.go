package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsportal/internal/config"
	"opsportal/internal/db"
	"opsportal/internal/domain"
	"opsportal/internal/engine"
	"opsportal/internal/logging"
	"opsportal/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, config.Default())
	e.Logger = logging.Discard()
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, DevLogin: true},
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func bearer(t *testing.T, userID, role string) map[string]string {
	t.Helper()
	token, err := signDevToken(testSecret, userID, role, "")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func qualifiedLeadBody() map[string]any {
	return map[string]any{
		"name":            "Ada",
		"email":           "a@b.com",
		"phone":           "555",
		"company":         "Acme",
		"service":         "web",
		"srsUrl":          "https://example.com/srs.pdf",
		"estimatedBudget": "25000",
		"message": "We need an MVP ASAP, budget is flexible. Our team wants a simple booking tool for our clinics " +
			"with online payments, reminders by email and a small admin dashboard for staff.",
	}
}

func createLead(t *testing.T, srv *testServer, body map[string]any) domain.Lead {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads", body, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var l domain.Lead
	require.NoError(t, json.Unmarshal(data, &l))
	assert.Equal(t, "/internal/leads/"+l.ID, res.Header.Get("Location"))
	return l
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	srv := newTestServer(t)
	for _, tc := range []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		code    string
	}{
		{"catalog", http.MethodGet, "/v0/leads/score", nil, "unauthorized"},
		{"score", http.MethodPost, "/v0/leads/score", nil, "unauthorized"},
		{"bad token", http.MethodGet, "/v0/me", map[string]string{"Authorization": "Bearer nope"}, "invalid_credentials"},
		{"bad key", http.MethodGet, "/v0/me", map[string]string{"X-Api-Key": "ops_missing"}, "invalid_credentials"},
		{"legacy header disabled", http.MethodGet, "/v0/me", map[string]string{"X-User-Id": "u1"}, "unauthorized"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, srv.Client(), tc.method, srv.URL+tc.path, map[string]any{"leadId": "x"}, tc.headers)
			require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))
			assert.Equal(t, tc.code, decodeError(t, data).Error.Code)
		})
	}
}

func TestScoringCatalog(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/leads/score", nil, bearer(t, "v1", domain.RoleViewer))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var catalog struct {
		QualificationThreshold int                        `json:"qualificationThreshold"`
		MaxScore               int                        `json:"maxScore"`
		Categories             map[string]json.RawMessage `json:"categories"`
		IntentKeywords         []json.RawMessage          `json:"intentKeywords"`
		ScoreRanges            []json.RawMessage          `json:"scoreRanges"`
	}
	require.NoError(t, json.Unmarshal(data, &catalog))
	assert.Equal(t, 70, catalog.QualificationThreshold)
	assert.Equal(t, 100, catalog.MaxScore)
	assert.NotEmpty(t, catalog.Categories)
	assert.NotEmpty(t, catalog.IntentKeywords)
	assert.NotEmpty(t, catalog.ScoreRanges)
}

func TestScoreLeadQualifiesAndAdvancesStatus(t *testing.T) {
	srv := newTestServer(t)
	l := createLead(t, srv, qualifiedLeadBody())

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/score", map[string]any{"leadId": l.ID}, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out struct {
		LeadID                 string `json:"leadId"`
		Score                  int    `json:"score"`
		MaxScore               int    `json:"maxScore"`
		IsQualified            bool   `json:"isQualified"`
		QualificationThreshold int    `json:"qualificationThreshold"`
		Breakdown              []any  `json:"breakdown"`
		Recommendations        []any  `json:"recommendations"`
		NextAction             string `json:"nextAction"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, l.ID, out.LeadID)
	assert.Equal(t, 93, out.Score)
	assert.Equal(t, 100, out.MaxScore)
	assert.Equal(t, 70, out.QualificationThreshold)
	assert.True(t, out.IsQualified)
	assert.NotEmpty(t, out.Breakdown)
	assert.NotEmpty(t, out.NextAction)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/leads/"+l.ID, nil, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var fetched domain.Lead
	require.NoError(t, json.Unmarshal(data, &fetched))
	assert.Equal(t, domain.LeadStatusInReview, fetched.Status)
}

func TestScoreLeadErrors(t *testing.T) {
	srv := newTestServer(t)
	headers := bearer(t, "pm-1", domain.RolePM)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/score", map[string]any{"leadId": "missing"}, headers)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/score", map[string]any{"leadId": " "}, headers)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.Equal(t, "leadId", env.Error.Details["field"])
}

func TestCreateLeadValidation(t *testing.T) {
	srv := newTestServer(t)
	headers := bearer(t, "pm-1", domain.RolePM)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads", map[string]any{"company": "Acme"}, headers)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", decodeError(t, data).Error.Code)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads", map[string]any{"name": "Ada", "email": "not-an-email"}, headers)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "validation_failed", env.Error.Code)
	assert.Equal(t, "email", env.Error.Details["field"])
}

func TestLeadStatusRoles(t *testing.T) {
	srv := newTestServer(t)
	l := createLead(t, srv, map[string]any{"name": "Ada"})
	url := srv.URL + "/v0/leads/" + l.ID + "/status"

	res, data := doJSON(t, srv.Client(), http.MethodPatch, url, map[string]any{"status": "in_review"}, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, url, map[string]any{"status": "approved", "force": true}, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, url, map[string]any{"status": "approved"}, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, url, map[string]any{"status": "approved", "force": true}, bearer(t, "admin-1", domain.RoleAdmin))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var updated domain.Lead
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, domain.LeadStatusApproved, updated.Status)
}

func TestConvertLeadFlow(t *testing.T) {
	srv := newTestServer(t)
	l := createLead(t, srv, qualifiedLeadBody())
	url := srv.URL + "/v0/leads/" + l.ID + "/convert"

	res, data := doJSON(t, srv.Client(), http.MethodPost, url, nil, bearer(t, "viewer-1", domain.RoleViewer))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "/internal/leads/"+l.ID, decodeError(t, data).Error.Details["redirect_to"])

	res, data = doJSON(t, srv.Client(), http.MethodPost, url, map[string]any{"priority": "high", "ownerUserId": "pm-1"}, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var created ConvertLeadResponse
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, engine.ConvertCreated, created.Kind)
	require.NotEmpty(t, created.ProjectID)
	assert.Equal(t, "/internal/projects/"+created.ProjectID, res.Header.Get("Location"))
	assert.Equal(t, "/internal/projects/"+created.ProjectID, created.RedirectTo)

	res, data = doJSON(t, srv.Client(), http.MethodPost, url, nil, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var again ConvertLeadResponse
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, engine.ConvertAlreadyConverted, again.Kind)
	assert.Equal(t, created.ProjectID, again.ProjectID)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+created.ProjectID, nil, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var detail domain.ProjectDetail
	require.NoError(t, json.Unmarshal(data, &detail))
	assert.Equal(t, "high", detail.Project.Priority)
	require.NotNil(t, detail.Instance)
	require.NotNil(t, detail.Instance.CurrentStepKey)
	assert.Equal(t, "client_request", *detail.Instance.CurrentStepKey)
	assert.Len(t, detail.Tasks, 14)
}

func TestConvertUnknownLead(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/nope/convert", nil, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	assert.Equal(t, "/internal/leads/nope", decodeError(t, data).Error.Details["redirect_to"])
}

func TestUpdateTaskAdvancesProject(t *testing.T) {
	srv := newTestServer(t)
	l := createLead(t, srv, map[string]any{"name": "Ada"})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/"+l.ID+"/convert", nil, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var conv ConvertLeadResponse
	require.NoError(t, json.Unmarshal(data, &conv))

	detail, err := srv.Engine.ProjectDetail(context.Background(), conv.ProjectID)
	require.NoError(t, err)
	first := detail.Tasks[0]

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+first.ID, map[string]any{"status": "done"}, bearer(t, "viewer-1", domain.RoleViewer))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+first.ID, map[string]any{}, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+first.ID, map[string]any{"status": "done"}, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+first.ID, map[string]any{
		"status":           "in_progress",
		"assignedToUserId": "dev-1",
	}, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+first.ID, map[string]any{"status": "done"}, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var task domain.Task
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, domain.TaskStatusDone, task.Status)
	require.NotNil(t, task.AssignedToUserID)
	assert.Equal(t, "dev-1", *task.AssignedToUserID)

	detail, err = srv.Engine.ProjectDetail(context.Background(), conv.ProjectID)
	require.NoError(t, err)
	require.NotNil(t, detail.Instance.CurrentStepKey)
	assert.Equal(t, "pm_review", *detail.Instance.CurrentStepKey)
}

func TestRejectedTaskPatchKeepsAssignee(t *testing.T) {
	srv := newTestServer(t)
	l := createLead(t, srv, map[string]any{"name": "Ada"})
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/"+l.ID+"/convert", nil, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var conv ConvertLeadResponse
	require.NoError(t, json.Unmarshal(data, &conv))

	detail, err := srv.Engine.ProjectDetail(context.Background(), conv.ProjectID)
	require.NoError(t, err)
	task := detail.Tasks[2]

	res, data = doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"status":           "done",
		"assignedToUserId": "dev-9",
	}, bearer(t, "dev-1", domain.RoleDev))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", decodeError(t, data).Error.Code)

	detail, err = srv.Engine.ProjectDetail(context.Background(), conv.ProjectID)
	require.NoError(t, err)
	assert.Nil(t, detail.Tasks[2].AssignedToUserID)
	assert.Equal(t, domain.TaskStatusTodo, detail.Tasks[2].Status)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?type=task.assigned", nil, bearer(t, "viewer-1", domain.RoleViewer))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Empty(t, page.Items)
}

func TestProcessDefinitionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	doc := []byte(`{"key":"lite","name":"Lite","lanes":["pm"],"steps":[{"key":"kickoff","title":"Kickoff","lane":"pm","isManual":true,"recommendedRole":"pm"}]}`)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/process-definitions", doc, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/process-definitions", []byte(`{"name":"no key"}`), bearer(t, "admin-1", domain.RoleAdmin))
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "invalid_definition", decodeError(t, data).Error.Code)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/process-definitions", doc, bearer(t, "admin-1", domain.RoleAdmin))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var def domain.ProcessDefinition
	require.NoError(t, json.Unmarshal(data, &def))
	assert.Equal(t, "lite", def.Key)
	assert.Equal(t, 1, def.Version)
	assert.False(t, def.IsActive)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/process-definitions/"+def.ID+"/activate", nil, bearer(t, "admin-1", domain.RoleAdmin))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &def))
	assert.True(t, def.IsActive)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/process-definitions/missing/activate", nil, bearer(t, "admin-1", domain.RoleAdmin))
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/process-definitions", nil, bearer(t, "viewer-1", domain.RoleViewer))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var list struct {
		Items []domain.ProcessDefinition `json:"items"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, def.ID, list.Items[0].ID)
}

func TestEventsPagination(t *testing.T) {
	srv := newTestServer(t)
	l := createLead(t, srv, qualifiedLeadBody())
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/leads/score", map[string]any{"leadId": l.ID}, bearer(t, "pm-1", domain.RolePM))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	headers := bearer(t, "viewer-1", domain.RoleViewer)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?lead_id="+l.ID+"&limit=2", nil, headers)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "lead.status_changed", page.Items[0].Type)
	assert.Equal(t, "lead.scored", page.Items[1].Type)
	require.NotEmpty(t, page.NextCursor)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?lead_id="+l.ID+"&limit=2&cursor="+page.NextCursor, nil, headers)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var last paginatedEvents
	require.NoError(t, json.Unmarshal(data, &last))
	require.Len(t, last.Items, 1)
	assert.Equal(t, "lead.created", last.Items[0].Type)
	assert.Empty(t, last.NextCursor)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?cursor=abc", nil, headers)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestAPIKeyRoleComesFromUsers(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	_, err := srv.Engine.AddUser(ctx, engine.UserInput{ID: "qa-1", Role: domain.RoleQA})
	require.NoError(t, err)
	plain, _, err := srv.Engine.CreateAPIKey(ctx, "qa-1", "ci")
	require.NoError(t, err)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": plain})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var who WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &who))
	assert.Equal(t, WhoAmIResponse{UserID: "qa-1", Role: domain.RoleQA, Source: "api_key"}, who)
}

func TestDevLoginTokenWorks(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{"userId": "admin-1", "role": "admin"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	require.NotEmpty(t, login.Token)

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var who WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &who))
	assert.Equal(t, "admin-1", who.UserID)
	assert.Equal(t, domain.RoleAdmin, who.Role)
	assert.Equal(t, "jwt", who.Source)
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.True(t, strings.Contains(string(data), "bearerAuth"))
	assert.True(t, strings.Contains(string(data), "/v0/leads/score"))
}
