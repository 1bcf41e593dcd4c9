package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/agent"
	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/project/repository"
	projservice "github.com/beaverai/beaver/internal/project/service"
	"github.com/beaverai/beaver/internal/sandbox"
	v1 "github.com/beaverai/beaver/pkg/api/v1"
)

type fakeSandboxes struct{}

func (fakeSandboxes) Create(_ context.Context, projectID string) (*sandbox.Handle, error) {
	return &sandbox.Handle{ID: "sandbox_" + projectID, Status: sandbox.StatusRunning, CreatedAt: time.Now().UTC()}, nil
}

func (fakeSandboxes) CreateProjectStructure(context.Context, string, string, string) error {
	return nil
}

func (fakeSandboxes) InstallDependencies(context.Context, string) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *projservice.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)

	classifier := agent.NewKeywordClassifier()
	planner := agent.NewPlannerAgent(classifier, log)
	main := agent.NewMainAgent(classifier, fakeSandboxes{}, nil, nil, 5*time.Second, log)
	orchestrator := agent.NewOrchestrator(planner, main, nil, nil, log)

	projects := projservice.NewService(repository.NewMemoryRepository(), nil, log)

	router := gin.New()
	api := router.Group("/api/v1")
	NewAgentHandlers(orchestrator, projects, log).RegisterRoutes(api)
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
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/chat", v1.ChatRequest{
		ProjectID: "proj-1",
		Message:   "I want to build a task management app with authentication",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "planner", resp.AgentType)
	assert.NotEmpty(t, resp.Message.Content)
}

func TestChatEndpointValidatesBody(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/chat", v1.ChatRequest{ProjectID: "proj-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatEndpointPersistsMessages(t *testing.T) {
	router, projects := newTestRouter(t)
	ctx := context.Background()

	project, err := projects.CreateProject(ctx, "user-1", "Task Tracker", "")
	require.NoError(t, err)
	conversations, err := projects.ListConversations(ctx, project.ID)
	require.NoError(t, err)
	conversationID := conversations[0].ID

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/chat", v1.ChatRequest{
		ProjectID:      project.ID,
		ConversationID: conversationID,
		Message:        "I want to build a blog",
	})
	require.Equal(t, http.StatusOK, w.Code)

	messages, err := projects.ListMessages(ctx, conversationID, repository.ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "planner", messages[1].AgentType)
}

func TestTaskEndpointUnknownAgent(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/task", v1.AgentTaskRequest{
		ProjectID: "proj-1",
		AgentType: "librarian",
		TaskType:  "catalog",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No agent available")
}

func TestTaskEndpointRunsPlannerTask(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/task", v1.AgentTaskRequest{
		ProjectID: "proj-1",
		AgentType: "planner",
		TaskType:  "gather_requirements",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.AgentTaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/agents/status/proj-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.ProjectStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "proj-1", resp.ProjectID)
	assert.Equal(t, "initialization", resp.Phase)
}

func TestConversationEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/chat", v1.ChatRequest{
		ProjectID:      "proj-1",
		ConversationID: "conv-1",
		Message:        "I want to build a blog",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/agents/conversation/conv-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.ConversationHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestListAgentsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp v1.AgentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Agents, "planner")
	assert.Contains(t, resp.Agents, "main")
}

type stubAnalyzer struct {
	description string
	calls       int
}

func (s *stubAnalyzer) AnalyzeImage(_ context.Context, _ []byte, _ string) (string, error) {
	s.calls++
	return s.description, nil
}

func TestChatEndpointAnalyzesImages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)

	classifier := agent.NewKeywordClassifier()
	planner := agent.NewPlannerAgent(classifier, log)
	main := agent.NewMainAgent(classifier, fakeSandboxes{}, nil, nil, 5*time.Second, log)
	orchestrator := agent.NewOrchestrator(planner, main, nil, nil, log)

	analyzer := &stubAnalyzer{description: "a dashboard mockup with charts"}
	handlers := NewAgentHandlers(orchestrator, nil, log)
	handlers.SetImageAnalyzer(analyzer)

	router := gin.New()
	handlers.RegisterRoutes(router.Group("/api/v1"))

	w := doJSON(t, router, http.MethodPost, "/api/v1/agents/chat", v1.ChatRequest{
		ProjectID: "proj-1",
		Message:   "Build something like this",
		Images: []v1.ChatImage{
			{Data: base64.StdEncoding.EncodeToString([]byte("fake-png")), MimeType: "image/png"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, analyzer.calls)
}
