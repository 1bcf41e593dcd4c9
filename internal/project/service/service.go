// Package service implements the project domain logic on top of the
// repository, publishing domain events to the event bus as records change.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
	"github.com/beaverai/beaver/internal/project/models"
	"github.com/beaverai/beaver/internal/project/repository"
)

// Service coordinates project persistence and event publication.
type Service struct {
	repo     repository.Repository
	eventBus bus.EventBus
	logger   *logger.Logger
}

// NewService creates a project service. The event bus is optional.
func NewService(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "project-service")),
	}
}

// CreateProject validates and stores a new project and opens its first
// conversation.
func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (*models.Project, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	project := &models.Project{
		UserID:      userID,
		Name:        name,
		Description: description,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	conversation := &models.Conversation{
		ProjectID: project.ID,
		Title:     name,
	}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		s.logger.Error("failed to create initial conversation",
			zap.String("project_id", project.ID), zap.Error(err))
	} else {
		s.publish(ctx, events.ConversationCreated, project.ID, map[string]interface{}{
			"conversation_id": conversation.ID,
			"title":           conversation.Title,
		})
	}

	s.publish(ctx, events.ProjectCreated, project.ID, map[string]interface{}{
		"project_id": project.ID,
		"user_id":    project.UserID,
		"name":       project.Name,
		"created_at": project.CreatedAt.Format(time.RFC3339),
	})
	return project, nil
}

// GetProject retrieves one project.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// ListProjects lists a user's projects.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]*models.Project, error) {
	return s.repo.ListProjects(ctx, userID)
}

// UpdateProject applies the non-nil fields and publishes project.updated.
func (s *Service) UpdateProject(ctx context.Context, id string, name, description, status *string) (*models.Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		project.Name = *name
	}
	if description != nil {
		project.Description = *description
	}
	if status != nil {
		project.Status = models.ProjectStatus(*status)
	}

	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	s.publish(ctx, events.ProjectUpdated, project.ID, map[string]interface{}{
		"project_id": project.ID,
		"name":       project.Name,
		"status":     string(project.Status),
	})
	return project, nil
}

// SetPhase records a phase transition and publishes project.phase_changed.
func (s *Service) SetPhase(ctx context.Context, id, phase string) error {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return err
	}

	previous := project.Phase
	project.Phase = phase
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return err
	}

	s.publish(ctx, events.ProjectPhaseChanged, project.ID, map[string]interface{}{
		"project_id": project.ID,
		"from":       previous,
		"to":         phase,
	})
	return nil
}

// SetSandbox records the sandbox attached to a project.
func (s *Service) SetSandbox(ctx context.Context, id, sandboxID, previewURL string) error {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return err
	}

	project.SandboxID = sandboxID
	project.PreviewURL = previewURL
	return s.repo.UpdateProject(ctx, project)
}

// DeleteProject removes a project and publishes project.deleted.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, events.ProjectDeleted, id, map[string]interface{}{
		"project_id": id,
	})
	return nil
}

// CreateConversation opens a new chat thread within a project.
func (s *Service) CreateConversation(ctx context.Context, projectID, title string) (*models.Conversation, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	conversation := &models.Conversation{ProjectID: projectID, Title: title}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.publish(ctx, events.ConversationCreated, projectID, map[string]interface{}{
		"conversation_id": conversation.ID,
		"title":           conversation.Title,
	})
	return conversation, nil
}

// GetConversation retrieves one conversation.
func (s *Service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return s.repo.GetConversation(ctx, id)
}

// ListConversations lists a project's conversations.
func (s *Service) ListConversations(ctx context.Context, projectID string) ([]*models.Conversation, error) {
	return s.repo.ListConversations(ctx, projectID)
}

// AddMessage stores one conversational turn and publishes message.added.
func (s *Service) AddMessage(ctx context.Context, message *models.Message) error {
	if message.ConversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	if message.Content == "" {
		return fmt.Errorf("message content is required")
	}

	conversation, err := s.repo.GetConversation(ctx, message.ConversationID)
	if err != nil {
		return err
	}

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	s.publish(ctx, events.MessageAdded, conversation.ProjectID, map[string]interface{}{
		"message_id":      message.ID,
		"conversation_id": message.ConversationID,
		"role":            message.Role,
		"agent_type":      message.AgentType,
		"content":         message.Content,
	})
	return nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Service) ListMessages(ctx context.Context, conversationID string, opts repository.ListMessagesOptions) ([]*models.Message, error) {
	return s.repo.ListMessages(ctx, conversationID, opts)
}

// RecordSandboxLog stores the outcome of one sandbox command.
func (s *Service) RecordSandboxLog(ctx context.Context, log *models.SandboxLog) error {
	return s.repo.CreateSandboxLog(ctx, log)
}

// ListSandboxLogs returns a project's most recent sandbox logs.
func (s *Service) ListSandboxLogs(ctx context.Context, projectID string, limit int) ([]*models.SandboxLog, error) {
	return s.repo.ListSandboxLogs(ctx, projectID, limit)
}

func (s *Service) publish(ctx context.Context, eventType, projectID string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}

	event := bus.NewEvent(eventType, "project-service", data)
	subject := events.BuildProjectSubject(eventType, projectID)
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		s.logger.Error("failed to publish project event",
			zap.String("event_type", eventType),
			zap.String("project_id", projectID),
			zap.Error(err))
	}
}
