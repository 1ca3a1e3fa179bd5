package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recast/internal/config"
	"recast/internal/logging"
)

// stubWorkflows scripts the orchestrator surface. Execution blocks on
// release when set so tests can observe the running state.
type stubWorkflows struct {
	initErr error
	result  map[string]any
	execErr error
	release chan struct{}

	gotProjectPath string
	gotEntryTeam   string
	gotCtx         config.Config
}

func (s *stubWorkflows) InitializeWorkflow(projectPath string, intent map[string]any) (config.Config, config.Config, error) {
	s.gotProjectPath = projectPath
	if s.initErr != nil {
		return nil, nil, s.initErr
	}
	prepared := config.Config{
		"workflow_run_id": "wf_1200_stub",
		"project":         map[string]any{"workspace_root": "workspaces"},
	}
	ctx := config.Config{"workflow_run_id": "wf_1200_stub", "intent": intent}
	return prepared, ctx, nil
}

func (s *stubWorkflows) ExecuteWorkflow(ctx context.Context, entryTeam string, workflowCtx config.Config) (map[string]any, error) {
	s.gotEntryTeam = entryTeam
	s.gotCtx = workflowCtx
	if s.release != nil {
		<-s.release
	}
	return s.result, s.execErr
}

func newTestServer(stub *stubWorkflows) *Server {
	return New(stub, &Config{EntryTeam: "discovery"}, logging.Nop())
}

func postWorkflow(t *testing.T, srv *Server, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflow", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func getStatus(t *testing.T, srv *Server, id string) (*httptest.ResponseRecorder, *Record) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflow/"+id, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		return w, nil
	}
	var rec Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	return w, &rec
}

func TestSubmitWorkflow(t *testing.T) {
	stub := &stubWorkflows{result: map[string]any{"status": "success"}}
	srv := newTestServer(stub)

	w := postWorkflow(t, srv, WorkflowRequest{
		ProjectPath: "/tmp/project",
		Intent:      map[string]any{"description": "tidy imports"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var ack WorkflowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "wf_1200_stub", ack.WorkflowID)
	assert.Equal(t, StatusPending, ack.Status)
	assert.Equal(t, "workspaces", ack.StoragePath)
	assert.Equal(t, "/tmp/project", stub.gotProjectPath)

	require.Eventually(t, func() bool {
		_, rec := getStatus(t, srv, ack.WorkflowID)
		return rec != nil && rec.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "discovery", stub.gotEntryTeam)
}

func TestSubmitWorkflowValidation(t *testing.T) {
	srv := newTestServer(&stubWorkflows{})

	w := postWorkflow(t, srv, map[string]any{"intent": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postWorkflow(t, srv, WorkflowRequest{ProjectPath: "/tmp/p"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitWorkflowInitError(t *testing.T) {
	stub := &stubWorkflows{initErr: assert.AnError}
	srv := newTestServer(stub)

	w := postWorkflow(t, srv, WorkflowRequest{ProjectPath: "/does/not/matter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), assert.AnError.Error())
}

func TestWorkflowRunningThenError(t *testing.T) {
	stub := &stubWorkflows{
		result:  map[string]any{"status": "error", "error": "coder team failed"},
		release: make(chan struct{}),
	}
	srv := newTestServer(stub)

	w := postWorkflow(t, srv, WorkflowRequest{ProjectPath: "/tmp/project"})
	require.Equal(t, http.StatusOK, w.Code)
	var ack WorkflowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))

	require.Eventually(t, func() bool {
		_, rec := getStatus(t, srv, ack.WorkflowID)
		return rec != nil && rec.Status == StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	close(stub.release)
	require.Eventually(t, func() bool {
		_, rec := getStatus(t, srv, ack.WorkflowID)
		return rec != nil && rec.Status == StatusError
	}, 2*time.Second, 10*time.Millisecond)

	_, rec := getStatus(t, srv, ack.WorkflowID)
	assert.Equal(t, "coder team failed", rec.Error)
	assert.Equal(t, "error", rec.Result["status"])
}

func TestWorkflowNotFound(t *testing.T) {
	srv := newTestServer(&stubWorkflows{})
	w, _ := getStatus(t, srv, "wf_0000_missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigOverridesThreaded(t *testing.T) {
	stub := &stubWorkflows{result: map[string]any{"status": "success"}}
	srv := newTestServer(stub)

	w := postWorkflow(t, srv, WorkflowRequest{
		ProjectPath: "/tmp/project",
		AppConfig:   map[string]any{"logging": map[string]any{"level": "debug"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		_, rec := getStatus(t, srv, "wf_1200_stub")
		return rec != nil && rec.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
	embedded := stub.gotCtx["config"].(map[string]any)
	assert.Equal(t, "debug", config.GetString(embedded, "logging.level"))
	assert.Equal(t, "wf_1200_stub", config.GetString(embedded, "workflow_run_id"))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubWorkflows{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestClientPoll(t *testing.T) {
	stub := &stubWorkflows{result: map[string]any{"status": "success"}}
	srv := newTestServer(stub)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := &Client{
		baseURL: ts.URL,
		http:    ts.Client(),
		logger:  logging.Nop(),
		sleeper: func(ctx context.Context, d time.Duration) error { return nil },
	}

	ack, err := client.Submit(context.Background(), WorkflowRequest{ProjectPath: "/tmp/project"})
	require.NoError(t, err)
	require.Equal(t, "wf_1200_stub", ack.WorkflowID)

	rec, err := client.Poll(context.Background(), ack.WorkflowID, time.Millisecond, 200)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rec.Status)
}

func TestClientStatusNotFound(t *testing.T) {
	srv := newTestServer(&stubWorkflows{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewClient("ignored", 0, logging.Nop())
	client.baseURL = ts.URL

	_, err := client.Status(context.Background(), "wf_0000_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
