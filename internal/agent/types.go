// Package agent implements the multi-agent orchestration layer: a planner
// that turns free-text project descriptions into blueprints, a main
// coordinator that drives setup and delegation, and specialist role agents
// backed by a text-generation provider.
package agent

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an agent role.
type Type string

const (
	TypePlanner      Type = "planner"
	TypeMain         Type = "main"
	TypeUIUX         Type = "ui_ux"
	TypeFrontend     Type = "frontend"
	TypeBackend      Type = "backend"
	TypeDataLogic    Type = "data_logic"
	TypeTesting      Type = "testing"
	TypeOptimization Type = "optimization"
	TypeDeployment   Type = "deployment"
)

// TaskStatus is the lifecycle state of a task. Transitions only move
// forward: Pending -> Running -> Completed or Failed.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversational turn. Immutable once created.
type Message struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Role      string                 `json:"role"`
	AgentType Type                   `json:"agentType,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Task is one discrete unit of delegated work.
type Task struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Description   string                 `json:"description"`
	Input         map[string]interface{} `json:"input,omitempty"`
	Priority      int                    `json:"priority"` // lower is more urgent
	Dependencies  []string               `json:"dependencies,omitempty"`
	AssignedAgent Type                   `json:"assignedAgent,omitempty"`
	Status        TaskStatus             `json:"status"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// Result is produced exactly once per task execution. Tasks are not
// retried automatically; callers resubmit a fresh task instead.
type Result struct {
	TaskID      string      `json:"taskId"`
	Status      TaskStatus  `json:"status"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	Artifacts   []string    `json:"artifacts,omitempty"`
	NextTasks   []*Task     `json:"nextTasks,omitempty"`
	CompletedAt time.Time   `json:"completedAt"`
}

// ResponseStatus describes what an agent is doing after a message.
type ResponseStatus string

const (
	StatusThinking  ResponseStatus = "thinking"
	StatusWorking   ResponseStatus = "working"
	StatusCompleted ResponseStatus = "completed"
	StatusError     ResponseStatus = "error"
)

// Response is the unit returned from ProcessMessage.
type Response struct {
	AgentType Type                   `json:"agentType"`
	Message   *Message               `json:"message"`
	Tasks     []*Task                `json:"tasks,omitempty"`
	Status    ResponseStatus         `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage builds an immutable message with a fresh id.
func NewMessage(content, role string, agentType Type) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Content:   content,
		Role:      role,
		AgentType: agentType,
		Timestamp: time.Now().UTC(),
	}
}

// NewTask builds a pending task assigned to the given agent.
func NewTask(taskType, description string, input map[string]interface{}, priority int, assigned Type) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:            uuid.New().String(),
		Type:          taskType,
		Description:   description,
		Input:         input,
		Priority:      priority,
		AssignedAgent: assigned,
		Status:        TaskPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Start marks the task as running.
func (t *Task) Start() {
	t.Status = TaskRunning
	t.UpdatedAt = time.Now().UTC()
}

// Resolve marks the task with its terminal status.
func (t *Task) Resolve(status TaskStatus) {
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
}

// Resolved reports whether the task reached a terminal state.
func (t *Task) Resolved() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}
