// Package models defines the persisted entities of the project domain:
// projects, their conversations, the messages exchanged with agents, and
// the sandbox command log.
package models

import "time"

// ProjectStatus is the administrative state of a project record.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Project is one user project being built by the agents.
type Project struct {
	ID          string        `json:"id" db:"id"`
	UserID      string        `json:"userId" db:"user_id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	Phase       string        `json:"phase" db:"phase"`
	Status      ProjectStatus `json:"status" db:"status"`
	SandboxID   string        `json:"sandboxId,omitempty" db:"sandbox_id"`
	PreviewURL  string        `json:"previewUrl,omitempty" db:"preview_url"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}

// Conversation groups the messages of one chat thread within a project.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"projectId" db:"project_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Message is one stored conversational turn. AgentType is empty for user
// messages. Metadata carries structured agent output such as blueprints.
type Message struct {
	ID             string                 `json:"id" db:"id"`
	ConversationID string                 `json:"conversationId" db:"conversation_id"`
	Role           string                 `json:"role" db:"role"`
	AgentType      string                 `json:"agentType,omitempty" db:"agent_type"`
	Content        string                 `json:"content" db:"content"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" db:"-"`
	CreatedAt      time.Time              `json:"createdAt" db:"created_at"`
}

// SandboxLog records one command executed in a project's sandbox.
type SandboxLog struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"projectId" db:"project_id"`
	Command   string    `json:"command" db:"command"`
	Stdout    string    `json:"stdout" db:"stdout"`
	Stderr    string    `json:"stderr" db:"stderr"`
	ExitCode  int       `json:"exitCode" db:"exit_code"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
