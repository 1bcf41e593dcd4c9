// Package repository provides storage for the project domain with SQL and
// in-memory implementations.
package repository

import (
	"context"

	"github.com/beaverai/beaver/internal/project/models"
)

// ListMessagesOptions narrows a message listing.
type ListMessagesOptions struct {
	Limit  int
	Before string // message id; return messages created before it
}

// Repository defines the interface for project storage operations.
type Repository interface {
	// Project operations
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, userID string) ([]*models.Project, error)

	// Conversation operations
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, projectID string) ([]*models.Conversation, error)

	// Message operations
	CreateMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, conversationID string, opts ListMessagesOptions) ([]*models.Message, error)

	// Sandbox log operations
	CreateSandboxLog(ctx context.Context, log *models.SandboxLog) error
	ListSandboxLogs(ctx context.Context, projectID string, limit int) ([]*models.SandboxLog, error)

	Close() error
}
