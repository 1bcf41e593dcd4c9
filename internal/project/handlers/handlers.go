// Package handlers exposes the project domain over HTTP.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/project/dto"
	"github.com/beaverai/beaver/internal/project/repository"
	"github.com/beaverai/beaver/internal/project/service"
)

// ProjectHandlers serves project, conversation, and message endpoints.
type ProjectHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

// NewProjectHandlers creates the HTTP handler set for the project domain.
func NewProjectHandlers(svc *service.Service, log *logger.Logger) *ProjectHandlers {
	return &ProjectHandlers{service: svc, logger: log}
}

// RegisterRoutes mounts the project endpoints on the router group.
func (h *ProjectHandlers) RegisterRoutes(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	{
		projects.POST("", h.createProject)
		projects.GET("", h.listProjects)
		projects.GET("/:id", h.getProject)
		projects.PATCH("/:id", h.updateProject)
		projects.DELETE("/:id", h.deleteProject)
		projects.GET("/:id/conversations", h.listConversations)
		projects.POST("/:id/conversations", h.createConversation)
		projects.GET("/:id/sandbox-logs", h.listSandboxLogs)
	}
	conversations := rg.Group("/conversations")
	{
		conversations.GET("/:id/messages", h.listMessages)
	}
}

// userID reads the authenticated user from the X-User-ID header. Auth is
// delegated to the deployment's edge; the backend only scopes data.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

func (h *ProjectHandlers) createProject(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.CreateProject(c.Request.Context(), userID(c), req.Name, req.Description)
	if err != nil {
		handleError(c, h.logger, err, "project not found")
		return
	}
	c.JSON(http.StatusCreated, dto.FromProject(project))
}

func (h *ProjectHandlers) listProjects(c *gin.Context) {
	projects, err := h.service.ListProjects(c.Request.Context(), userID(c))
	if err != nil {
		handleError(c, h.logger, err, "projects not found")
		return
	}

	projectDTOs := make([]dto.ProjectDTO, 0, len(projects))
	for _, project := range projects {
		projectDTOs = append(projectDTOs, dto.FromProject(project))
	}
	c.JSON(http.StatusOK, dto.ListProjectsResponse{Projects: projectDTOs, Total: len(projectDTOs)})
}

func (h *ProjectHandlers) getProject(c *gin.Context) {
	project, err := h.service.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err, "project not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromProject(project))
}

func (h *ProjectHandlers) updateProject(c *gin.Context) {
	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.UpdateProject(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.Status)
	if err != nil {
		handleError(c, h.logger, err, "project not found")
		return
	}
	c.JSON(http.StatusOK, dto.FromProject(project))
}

func (h *ProjectHandlers) deleteProject(c *gin.Context) {
	if err := h.service.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, h.logger, err, "project not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandlers) listConversations(c *gin.Context) {
	conversations, err := h.service.ListConversations(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err, "conversations not found")
		return
	}

	conversationDTOs := make([]dto.ConversationDTO, 0, len(conversations))
	for _, conversation := range conversations {
		conversationDTOs = append(conversationDTOs, dto.FromConversation(conversation))
	}
	c.JSON(http.StatusOK, dto.ListConversationsResponse{
		Conversations: conversationDTOs,
		Total:         len(conversationDTOs),
	})
}

func (h *ProjectHandlers) createConversation(c *gin.Context) {
	var req dto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.service.CreateConversation(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		handleError(c, h.logger, err, "project not found")
		return
	}
	c.JSON(http.StatusCreated, dto.FromConversation(conversation))
}

func (h *ProjectHandlers) listMessages(c *gin.Context) {
	opts := repository.ListMessagesOptions{Before: c.Query("before")}
	if limit := c.Query("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			opts.Limit = parsed
		}
	}

	messages, err := h.service.ListMessages(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		handleError(c, h.logger, err, "conversation not found")
		return
	}

	messageDTOs := make([]dto.MessageDTO, 0, len(messages))
	for _, message := range messages {
		messageDTOs = append(messageDTOs, dto.FromMessage(message))
	}
	c.JSON(http.StatusOK, dto.ListMessagesResponse{Messages: messageDTOs, Total: len(messageDTOs)})
}

func (h *ProjectHandlers) listSandboxLogs(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logs, err := h.service.ListSandboxLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		handleError(c, h.logger, err, "project not found")
		return
	}

	logDTOs := make([]dto.SandboxLogDTO, 0, len(logs))
	for _, log := range logs {
		logDTOs = append(logDTOs, dto.FromSandboxLog(log))
	}
	c.JSON(http.StatusOK, dto.ListSandboxLogsResponse{Logs: logDTOs, Total: len(logDTOs)})
}
