package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/project/repository"
	projectservice "github.com/beaverai/beaver/internal/project/service"
	"github.com/beaverai/beaver/internal/sandbox"
)

func newTestRouter(t *testing.T) (*gin.Engine, *projectservice.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)

	mgr := sandbox.NewManager(sandbox.NewMockProvider(log), nil, 5*time.Second, log)
	projects := projectservice.NewService(repository.NewMemoryRepository(), nil, log)

	router := gin.New()
	api := router.Group("/api/v1")
	NewSandboxHandlers(mgr, projects, log).RegisterRoutes(api)
	return router, projects
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetSandbox(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var handle sandbox.Handle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &handle))
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, sandbox.StatusRunning, handle.Status)

	w = doJSON(t, router, http.MethodGet, "/api/v1/projects/proj-1/sandbox", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetSandboxBeforeCreate(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/projects/proj-1/sandbox", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunCommandPersistsLog(t *testing.T) {
	router, projects := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox/commands",
		ExecCommandRequest{Command: "npm install"})
	require.Equal(t, http.StatusOK, w.Code)

	var result sandbox.CommandResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)

	logs, err := projects.ListSandboxLogs(context.Background(), "proj-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "npm install", logs[0].Command)
}

func TestRunCommandWithoutSandbox(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox/commands",
		ExecCommandRequest{Command: "ls"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunCommandValidatesBody(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox/commands",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)

	w := doJSON(t, router, http.MethodPut, "/api/v1/projects/proj-1/sandbox/files",
		WriteFileRequest{Path: "/app/index.js", Content: "console.log('hi')"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/projects/proj-1/sandbox/files?path=/app/index.js", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "console.log('hi')", resp["content"])
}

func TestReadFileRequiresPath(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/projects/proj-1/sandbox/files", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFiles(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)
	doJSON(t, router, http.MethodPut, "/api/v1/projects/proj-1/sandbox/files",
		WriteFileRequest{Path: "/app/index.js", Content: "x"})

	w := doJSON(t, router, http.MethodGet, "/api/v1/projects/proj-1/sandbox/files/list?path=/app", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Files []sandbox.FileNode `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Files)
}

func TestDestroySandbox(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/projects/proj-1/sandbox", nil)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/projects/proj-1/sandbox", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/projects/proj-1/sandbox", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
