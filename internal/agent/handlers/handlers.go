// Package handlers exposes the agent system over HTTP: chat, direct task
// execution, and project status.
package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/agent"
	"github.com/beaverai/beaver/internal/ai"
	"github.com/beaverai/beaver/internal/common/logger"
	projmodels "github.com/beaverai/beaver/internal/project/models"
	projservice "github.com/beaverai/beaver/internal/project/service"
	v1 "github.com/beaverai/beaver/pkg/api/v1"
)

// AgentHandlers serves the agent endpoints. The project service is
// optional; when present, chat turns are persisted. The image analyzer
// is optional; without it, image attachments are ignored.
type AgentHandlers struct {
	orchestrator *agent.Orchestrator
	projects     *projservice.Service
	images       ai.ImageAnalyzer
	logger       *logger.Logger
}

// NewAgentHandlers creates the HTTP handler set for the agent system.
func NewAgentHandlers(orchestrator *agent.Orchestrator, projects *projservice.Service, log *logger.Logger) *AgentHandlers {
	return &AgentHandlers{orchestrator: orchestrator, projects: projects, logger: log}
}

// SetImageAnalyzer enables image attachment analysis on the chat endpoint.
func (h *AgentHandlers) SetImageAnalyzer(analyzer ai.ImageAnalyzer) {
	h.images = analyzer
}

// RegisterRoutes mounts the agent endpoints on the router group.
func (h *AgentHandlers) RegisterRoutes(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.GET("", h.listAgents)
		agents.POST("/chat", h.chat)
		agents.POST("/task", h.executeTask)
		agents.GET("/status/:projectId", h.status)
		agents.GET("/conversation/:id", h.conversation)
	}
}

func (h *AgentHandlers) chat(c *gin.Context) {
	var req v1.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mctx := agent.MessageContext{
		ProjectID:      req.ProjectID,
		UserID:         c.GetHeader("X-User-ID"),
		ConversationID: req.ConversationID,
	}

	text := h.describeImages(c, req)

	response, err := h.orchestrator.HandleMessage(c.Request.Context(), text, mctx)
	if err != nil {
		var verr *agent.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		h.logger.Error("chat handling failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat handling failed"})
		return
	}

	h.persistTurn(c, req, response)
	c.JSON(http.StatusOK, toChatResponse(response))
}

// describeImages runs each attachment through the image analyzer and
// appends the descriptions to the message text. Analysis failures are
// logged and the attachment skipped; the turn still proceeds.
func (h *AgentHandlers) describeImages(c *gin.Context, req v1.ChatRequest) string {
	if h.images == nil || len(req.Images) == 0 {
		return req.Message
	}

	text := req.Message
	for _, img := range req.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			h.logger.Warn("invalid image attachment", zap.Error(err))
			continue
		}
		description, err := h.images.AnalyzeImage(c.Request.Context(), data, img.MimeType)
		if err != nil {
			h.logger.Warn("image analysis failed", zap.Error(err))
			continue
		}
		text += "\n\n[Attached image: " + description + "]"
	}
	return text
}

// persistTurn stores the user message and the agent reply. Persistence
// failures are logged; the chat response is already committed.
func (h *AgentHandlers) persistTurn(c *gin.Context, req v1.ChatRequest, response *agent.Response) {
	if h.projects == nil || req.ConversationID == "" {
		return
	}
	ctx := c.Request.Context()

	userMsg := &projmodels.Message{
		ConversationID: req.ConversationID,
		Role:           agent.RoleUser,
		Content:        req.Message,
	}
	if err := h.projects.AddMessage(ctx, userMsg); err != nil {
		h.logger.Warn("failed to persist user message", zap.Error(err))
		return
	}

	agentMsg := &projmodels.Message{
		ConversationID: req.ConversationID,
		Role:           agent.RoleAssistant,
		AgentType:      string(response.AgentType),
		Content:        response.Message.Content,
		Metadata:       response.Message.Metadata,
	}
	if err := h.projects.AddMessage(ctx, agentMsg); err != nil {
		h.logger.Warn("failed to persist agent message", zap.Error(err))
	}
}

func (h *AgentHandlers) executeTask(c *gin.Context) {
	var req v1.AgentTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mctx := agent.MessageContext{
		ProjectID: req.ProjectID,
		UserID:    c.GetHeader("X-User-ID"),
	}

	result, err := h.orchestrator.ExecuteNamedTask(c.Request.Context(),
		agent.Type(req.AgentType), req.TaskType, req.Input, mctx)
	if err != nil {
		var rerr *agent.RoutingError
		if errors.As(err, &rerr) {
			c.JSON(http.StatusNotFound, gin.H{"error": rerr.Error()})
			return
		}
		var verr *agent.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		h.logger.Error("task execution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task execution failed"})
		return
	}

	c.JSON(http.StatusOK, v1.AgentTaskResponse{
		TaskID:      result.TaskID,
		Status:      string(result.Status),
		Output:      result.Output,
		Error:       result.Error,
		Artifacts:   result.Artifacts,
		CompletedAt: result.CompletedAt,
	})
}

func (h *AgentHandlers) status(c *gin.Context) {
	projectID := c.Param("projectId")
	report := h.orchestrator.Status(projectID)

	c.JSON(http.StatusOK, v1.ProjectStatusResponse{
		ProjectID:          projectID,
		Phase:              report.Phase,
		ActiveTaskCount:    report.ActiveTaskCount,
		CompletedTaskCount: report.CompletedTaskCount,
	})
}

func (h *AgentHandlers) conversation(c *gin.Context) {
	conversationID := c.Param("id")
	history := h.orchestrator.History(conversationID)

	messages := make([]v1.ChatMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, toChatMessage(msg))
	}
	c.JSON(http.StatusOK, v1.ConversationHistoryResponse{
		ConversationID: conversationID,
		Messages:       messages,
		Total:          len(messages),
	})
}

func (h *AgentHandlers) listAgents(c *gin.Context) {
	types := h.orchestrator.Agents()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	c.JSON(http.StatusOK, v1.AgentListResponse{Agents: names})
}

func toChatMessage(msg *agent.Message) v1.ChatMessage {
	return v1.ChatMessage{
		ID:        msg.ID,
		Role:      msg.Role,
		AgentType: string(msg.AgentType),
		Content:   msg.Content,
		Metadata:  msg.Metadata,
		Timestamp: msg.Timestamp,
	}
}

func toChatResponse(response *agent.Response) v1.ChatResponse {
	tasks := make([]v1.AgentTaskRef, 0, len(response.Tasks))
	for _, task := range response.Tasks {
		tasks = append(tasks, v1.AgentTaskRef{
			ID:          task.ID,
			Type:        task.Type,
			Description: task.Description,
			Status:      string(task.Status),
			Priority:    task.Priority,
		})
	}
	return v1.ChatResponse{
		AgentType: string(response.AgentType),
		Status:    string(response.Status),
		Message:   toChatMessage(response.Message),
		Tasks:     tasks,
		Metadata:  response.Metadata,
	}
}
