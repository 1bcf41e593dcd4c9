package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beaverai/beaver/internal/project/models"
)

// MemoryRepository is an in-memory Repository used in tests and when no
// database is configured.
type MemoryRepository struct {
	mu            sync.RWMutex
	projects      map[string]*models.Project
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message    // keyed by conversation id
	sandboxLogs   map[string][]*models.SandboxLog // keyed by project id
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects:      make(map[string]*models.Project),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
		sandboxLogs:   make(map[string][]*models.SandboxLog),
	}
}

// Close is a no-op.
func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) CreateProject(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.Status == "" {
		project.Status = models.ProjectActive
	}
	if project.Phase == "" {
		project.Phase = "initialization"
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	stored := *project
	r.projects[project.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetProject(_ context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	copied := *project
	return &copied, nil
}

func (r *MemoryRepository) UpdateProject(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[project.ID]; !ok {
		return fmt.Errorf("project not found: %s", project.ID)
	}
	project.UpdatedAt = time.Now().UTC()
	stored := *project
	r.projects[project.ID] = &stored
	return nil
}

func (r *MemoryRepository) DeleteProject(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("project not found: %s", id)
	}
	delete(r.projects, id)
	delete(r.sandboxLogs, id)

	for convID, conv := range r.conversations {
		if conv.ProjectID == id {
			delete(r.conversations, convID)
			delete(r.messages, convID)
		}
	}
	return nil
}

func (r *MemoryRepository) ListProjects(_ context.Context, userID string) ([]*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projects := []*models.Project{}
	for _, project := range r.projects {
		if project.UserID == userID {
			copied := *project
			projects = append(projects, &copied)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (r *MemoryRepository) CreateConversation(_ context.Context, conversation *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	stored := *conversation
	r.conversations[conversation.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	copied := *conversation
	return &copied, nil
}

func (r *MemoryRepository) ListConversations(_ context.Context, projectID string) ([]*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversations := []*models.Conversation{}
	for _, conversation := range r.conversations {
		if conversation.ProjectID == projectID {
			copied := *conversation
			conversations = append(conversations, &copied)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations, nil
}

func (r *MemoryRepository) CreateMessage(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	stored := *message
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], &stored)

	if conversation, ok := r.conversations[message.ConversationID]; ok {
		conversation.UpdatedAt = message.CreatedAt
	}
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, conversationID string, opts ListMessagesOptions) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]

	cutoff := time.Time{}
	if opts.Before != "" {
		for _, message := range all {
			if message.ID == opts.Before {
				cutoff = message.CreatedAt
				break
			}
		}
	}

	messages := []*models.Message{}
	for _, message := range all {
		if !cutoff.IsZero() && !message.CreatedAt.Before(cutoff) {
			continue
		}
		copied := *message
		messages = append(messages, &copied)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if opts.Limit > 0 && len(messages) > opts.Limit {
		messages = messages[:opts.Limit]
	}
	return messages, nil
}

func (r *MemoryRepository) CreateSandboxLog(_ context.Context, log *models.SandboxLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	stored := *log
	r.sandboxLogs[log.ProjectID] = append(r.sandboxLogs[log.ProjectID], &stored)
	return nil
}

func (r *MemoryRepository) ListSandboxLogs(_ context.Context, projectID string, limit int) ([]*models.SandboxLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	all := r.sandboxLogs[projectID]
	logs := make([]*models.SandboxLog, 0, len(all))
	for _, log := range all {
		copied := *log
		logs = append(logs, &copied)
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
