// Package dto defines the wire representations of the project domain.
package dto

import (
	"time"

	"github.com/beaverai/beaver/internal/project/models"
)

type ProjectDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Phase       string    `json:"phase"`
	Status      string    `json:"status"`
	SandboxID   string    `json:"sandbox_id,omitempty"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ConversationDTO struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageDTO struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	AgentType      string                 `json:"agent_type,omitempty"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type SandboxLogDTO struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Command   string    `json:"command"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	ExitCode  int       `json:"exit_code"`
	CreatedAt time.Time `json:"created_at"`
}

type ListProjectsResponse struct {
	Projects []ProjectDTO `json:"projects"`
	Total    int          `json:"total"`
}

type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int               `json:"total"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Total    int          `json:"total"`
}

type ListSandboxLogsResponse struct {
	Logs  []SandboxLogDTO `json:"logs"`
	Total int             `json:"total"`
}

// FromProject converts a project model to its DTO.
func FromProject(project *models.Project) ProjectDTO {
	return ProjectDTO{
		ID:          project.ID,
		UserID:      project.UserID,
		Name:        project.Name,
		Description: project.Description,
		Phase:       project.Phase,
		Status:      string(project.Status),
		SandboxID:   project.SandboxID,
		PreviewURL:  project.PreviewURL,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// FromConversation converts a conversation model to its DTO.
func FromConversation(conversation *models.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:        conversation.ID,
		ProjectID: conversation.ProjectID,
		Title:     conversation.Title,
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
	}
}

// FromMessage converts a message model to its DTO.
func FromMessage(message *models.Message) MessageDTO {
	return MessageDTO{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		Role:           message.Role,
		AgentType:      message.AgentType,
		Content:        message.Content,
		Metadata:       message.Metadata,
		CreatedAt:      message.CreatedAt,
	}
}

// FromSandboxLog converts a sandbox log model to its DTO.
func FromSandboxLog(log *models.SandboxLog) SandboxLogDTO {
	return SandboxLogDTO{
		ID:        log.ID,
		ProjectID: log.ProjectID,
		Command:   log.Command,
		Stdout:    log.Stdout,
		Stderr:    log.Stderr,
		ExitCode:  log.ExitCode,
		CreatedAt: log.CreatedAt,
	}
}
