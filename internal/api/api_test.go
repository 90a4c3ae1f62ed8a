package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/mission-control/internal/langfuse"
	"github.com/openclaw/mission-control/internal/planning"
	"github.com/openclaw/mission-control/internal/store"
	"github.com/openclaw/mission-control/internal/workflow"
)

func newTestServer(t *testing.T, board *workflow.Board) *Server {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.DiscardHandler)
	return New(Options{
		Planning:  planning.NewService(st, log),
		Dashboard: langfuse.NewDashboard(st),
		Board:     board,
		Log:       log,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func errCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "no error object in %v", body)
	return errObj["code"].(string)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doJSON(t, s, http.MethodPost, "/v1/planning/projects",
		map[string]any{"key": "DEMO", "name": "Demo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := body["data"].(map[string]any)
	require.Equal(t, "DEMO", project["key"])
	id := project["id"].(string)

	rec, body = doJSON(t, s, http.MethodGet, "/v1/planning/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := body["meta"].(map[string]any)
	require.EqualValues(t, 1, meta["total"])
	require.EqualValues(t, 20, meta["limit"])

	rec, body = doJSON(t, s, http.MethodPatch, "/v1/planning/projects/"+id,
		map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Renamed", body["data"].(map[string]any)["name"])

	rec, _ = doJSON(t, s, http.MethodDelete, "/v1/planning/projects/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = doJSON(t, s, http.MethodGet, "/v1/planning/projects/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errCode(t, body))
}

func TestProjectKeyValidationOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := doJSON(t, s, http.MethodPost, "/v1/planning/projects",
		map[string]any{"key": "1bad", "name": "Bad"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errCode(t, body))
}

func TestStoryDerivationOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := doJSON(t, s, http.MethodPost, "/v1/planning/projects",
		map[string]any{"key": "FLOW", "name": "Flow"})
	projectID := body["data"].(map[string]any)["id"].(string)

	_, body = doJSON(t, s, http.MethodPost, "/v1/planning/stories",
		map[string]any{"title": "Story", "project_id": projectID})
	storyID := body["data"].(map[string]any)["id"].(string)

	rec, body := doJSON(t, s, http.MethodPost, "/v1/planning/tasks",
		map[string]any{"title": "Task", "project_id": projectID, "story_id": storyID})
	require.Equal(t, http.StatusCreated, rec.Code)
	taskID := body["data"].(map[string]any)["id"].(string)

	rec, _ = doJSON(t, s, http.MethodPatch, "/v1/planning/tasks/"+taskID,
		map[string]any{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, s, http.MethodGet, "/v1/planning/stories/"+storyID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	story := body["data"].(map[string]any)
	require.Equal(t, "IN_PROGRESS", story["status"])
	require.Equal(t, "DERIVED", story["status_mode"])
	require.EqualValues(t, 1, body["meta"].(map[string]any)["task_count"])

	rec, body = doJSON(t, s, http.MethodPatch, "/v1/planning/tasks/"+taskID,
		map[string]any{"status": "DONE"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body["data"].(map[string]any)["completed_at"])

	_, body = doJSON(t, s, http.MethodGet, "/v1/planning/stories/"+storyID, nil)
	require.Equal(t, "DONE", body["data"].(map[string]any)["status"])
}

func TestBacklogEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := doJSON(t, s, http.MethodPost, "/v1/planning/projects",
		map[string]any{"key": "ORD", "name": "Ordering"})
	projectID := body["data"].(map[string]any)["id"].(string)

	// Project creation mints the default backlog.
	rec, body := doJSON(t, s, http.MethodGet, "/v1/planning/backlogs?project_id="+projectID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	backlogs := body["data"].([]any)
	require.Len(t, backlogs, 1)
	backlog := backlogs[0].(map[string]any)
	require.Equal(t, true, backlog["is_default"])
	backlogID := backlog["id"].(string)

	_, body = doJSON(t, s, http.MethodPost, "/v1/planning/stories",
		map[string]any{"title": "First", "project_id": projectID})
	storyID := body["data"].(map[string]any)["id"].(string)

	rec, body = doJSON(t, s, http.MethodPost, "/v1/planning/backlogs/"+backlogID+"/stories",
		map[string]any{"story_id": storyID})
	require.Equal(t, http.StatusOK, rec.Code)
	added := body["data"].(map[string]any)
	require.Equal(t, storyID, added["story_id"])
	require.EqualValues(t, 0, added["position"])

	rec, body = doJSON(t, s, http.MethodPost, "/v1/planning/backlogs/"+backlogID+"/stories",
		map[string]any{"story_id": storyID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", errCode(t, body))

	rec, body = doJSON(t, s, http.MethodPatch, "/v1/planning/backlogs/"+backlogID+"/reorder",
		map[string]any{"stories": []map[string]any{{"story_id": storyID, "position": 0}}})
	require.Equal(t, http.StatusOK, rec.Code)
	result := body["data"].(map[string]any)
	require.EqualValues(t, 1, result["updated_story_count"])
	require.EqualValues(t, 0, result["updated_task_count"])

	rec, body = doJSON(t, s, http.MethodPatch, "/v1/planning/backlogs/"+backlogID+"/reorder",
		map[string]any{"stories": []map[string]any{{"story_id": storyID, "position": 3}}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BUSINESS_RULE_VIOLATION", errCode(t, body))

	// Omitting the story list does not bypass the completeness check.
	rec, body = doJSON(t, s, http.MethodPatch, "/v1/planning/backlogs/"+backlogID+"/reorder",
		map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BUSINESS_RULE_VIOLATION", errCode(t, body))

	rec, body = doJSON(t, s, http.MethodDelete, "/v1/planning/backlogs/"+backlogID, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BUSINESS_RULE_VIOLATION", errCode(t, body))

	rec, body = doJSON(t, s, http.MethodGet, "/v1/planning/backlogs/"+backlogID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := body["meta"].(map[string]any)
	require.EqualValues(t, 1, meta["story_count"])
	require.EqualValues(t, 0, meta["task_count"])
}

func TestActiveSprintEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := doJSON(t, s, http.MethodPost, "/v1/planning/projects",
		map[string]any{"key": "SPR", "name": "Sprints"})
	projectID := body["data"].(map[string]any)["id"].(string)

	rec, body := doJSON(t, s, http.MethodGet,
		"/v1/planning/backlogs/active-sprint?project_id="+projectID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errCode(t, body))

	_, body = doJSON(t, s, http.MethodPost, "/v1/planning/backlogs",
		map[string]any{"name": "Sprint 1", "kind": "SPRINT", "project_id": projectID})
	sprintID := body["data"].(map[string]any)["id"].(string)

	rec, body = doJSON(t, s, http.MethodGet,
		"/v1/planning/backlogs/active-sprint?project_id="+projectID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	require.Equal(t, sprintID, data["backlog"].(map[string]any)["id"])
}

func TestAssignmentEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := doJSON(t, s, http.MethodPost, "/v1/planning/tasks",
		map[string]any{"title": "Free task"})
	taskID := body["data"].(map[string]any)["id"].(string)

	_, body = doJSON(t, s, http.MethodPost, "/v1/planning/agents",
		map[string]any{"openclaw_key": "agent-1", "name": "Agent One"})
	agentID := body["data"].(map[string]any)["id"].(string)

	rec, body := doJSON(t, s, http.MethodPost, "/v1/planning/tasks/"+taskID+"/assignments",
		map[string]any{"agent_id": agentID})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, agentID, body["data"].(map[string]any)["agent_id"])

	rec, body = doJSON(t, s, http.MethodPost, "/v1/planning/tasks/"+taskID+"/assignments",
		map[string]any{"agent_id": agentID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", errCode(t, body))

	rec, _ = doJSON(t, s, http.MethodDelete,
		"/v1/planning/tasks/"+taskID+"/assignments/"+agentID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDashboardCostsBadDaysFallsBack(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := doJSON(t, s, http.MethodGet, "/v1/dashboard/costs?days=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, body, "daily")
}

func TestDashboardEmptyState(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := doJSON(t, s, http.MethodGet, "/v1/dashboard/costs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body["daily"])

	rec, body = doJSON(t, s, http.MethodGet, "/v1/dashboard/requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	meta := body["meta"].(map[string]any)
	require.EqualValues(t, 1, meta["page"])
	require.EqualValues(t, 50, meta["limit"])
	require.EqualValues(t, 0, meta["totalItems"])

	rec, body = doJSON(t, s, http.MethodGet, "/v1/dashboard/requests/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, body["models"])

	rec, body = doJSON(t, s, http.MethodGet, "/v1/dashboard/imports/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, body["lastImport"])
}

func TestImportWithoutImporter(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := doJSON(t, s, http.MethodPost, "/v1/dashboard/imports", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BUSINESS_RULE_VIOLATION", errCode(t, body))
}

func TestWorkflowWithoutBoard(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := doJSON(t, s, http.MethodGet, "/v1/workflow/stories", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errCode(t, body))
}

func TestWorkflowEndpoints(t *testing.T) {
	root := t.TempDir()
	storyDir := filepath.Join(root, "STORIES", "S-001")
	require.NoError(t, os.MkdirAll(filepath.Join(storyDir, "TASKS", "PLANNED"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storyDir, "STORY.md"), []byte("# Story"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(storyDir, "TASKS", "PLANNED", "T-001.yaml"),
		[]byte("task_id: T-001\nobjective: Do it\nworker_type: coder\n"), 0o644))

	board := workflow.NewBoard(root, slog.New(slog.DiscardHandler))
	s := newTestServer(t, board)

	rec, body := doJSON(t, s, http.MethodGet, "/v1/workflow/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["stories"].([]any), 1)

	rec, body = doJSON(t, s, http.MethodGet, "/v1/workflow/stories/S-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "S-001", body["story"].(map[string]any)["id"])
	require.Len(t, body["tasks"].([]any), 1)

	rec, body = doJSON(t, s, http.MethodGet, "/v1/workflow/tasks/S-001/T-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "T-001", body["task"].(map[string]any)["task_id"])

	rec, body = doJSON(t, s, http.MethodGet, "/v1/workflow/stories/S-404", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errCode(t, body))

	rec, body = doJSON(t, s, http.MethodGet, "/v1/workflow/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["agents"].([]any), 4)
}
