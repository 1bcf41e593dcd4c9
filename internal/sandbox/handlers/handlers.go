// Package handlers exposes sandbox operations over HTTP.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/project/models"
	projectservice "github.com/beaverai/beaver/internal/project/service"
	"github.com/beaverai/beaver/internal/sandbox"
)

// SandboxHandlers serves sandbox lifecycle, command, and file endpoints.
// The project service is optional; when present, created sandboxes are
// recorded on the project and command runs are persisted as sandbox logs.
type SandboxHandlers struct {
	manager  *sandbox.Manager
	projects *projectservice.Service
	logger   *logger.Logger
}

// NewSandboxHandlers creates the HTTP handler set for sandboxes.
func NewSandboxHandlers(mgr *sandbox.Manager, projects *projectservice.Service, log *logger.Logger) *SandboxHandlers {
	return &SandboxHandlers{manager: mgr, projects: projects, logger: log}
}

// RegisterRoutes mounts the sandbox endpoints on the router group.
func (h *SandboxHandlers) RegisterRoutes(rg *gin.RouterGroup) {
	sb := rg.Group("/projects/:id/sandbox")
	{
		sb.POST("", h.create)
		sb.GET("", h.get)
		sb.DELETE("", h.destroy)
		sb.POST("/commands", h.runCommand)
		sb.PUT("/files", h.writeFile)
		sb.GET("/files", h.readFile)
		sb.GET("/files/list", h.listFiles)
	}
}

// ExecCommandRequest is the body for POST /projects/:id/sandbox/commands.
type ExecCommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// WriteFileRequest is the body for PUT /projects/:id/sandbox/files.
type WriteFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

func (h *SandboxHandlers) create(c *gin.Context) {
	projectID := c.Param("id")

	handle, err := h.manager.Create(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.projects != nil {
		if err := h.projects.SetSandbox(c.Request.Context(), projectID, handle.ID, handle.PreviewURL); err != nil {
			h.logger.Warn("Failed to record sandbox on project",
				zap.String("project_id", projectID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, handle)
}

func (h *SandboxHandlers) get(c *gin.Context) {
	handle := h.manager.Get(c.Param("id"))
	if handle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sandbox for project"})
		return
	}
	c.JSON(http.StatusOK, handle)
}

func (h *SandboxHandlers) destroy(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SandboxHandlers) runCommand(c *gin.Context) {
	projectID := c.Param("id")

	var req ExecCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.manager.ExecuteCommand(c.Request.Context(), projectID, req.Command)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.projects != nil {
		log := &models.SandboxLog{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			Command:   req.Command,
			Stdout:    result.Stdout,
			Stderr:    result.Stderr,
			ExitCode:  result.ExitCode,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.projects.RecordSandboxLog(c.Request.Context(), log); err != nil {
			h.logger.Warn("Failed to persist sandbox log",
				zap.String("project_id", projectID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

func (h *SandboxHandlers) writeFile(c *gin.Context) {
	var req WriteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.WriteFile(c.Request.Context(), c.Param("id"), req.Path, []byte(req.Content)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SandboxHandlers) readFile(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}

	content, err := h.manager.ReadFile(c.Request.Context(), c.Param("id"), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "content": string(content)})
}

func (h *SandboxHandlers) listFiles(c *gin.Context) {
	path := c.DefaultQuery("path", "/")

	files, err := h.manager.ListFiles(c.Request.Context(), c.Param("id"), path)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "files": files})
}

func (h *SandboxHandlers) fail(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "no sandbox for project") {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Sandbox request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "sandbox operation failed"})
}
