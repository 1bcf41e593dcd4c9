package v1

import "time"

// ChatRequest submits one conversational turn to the agent system.
// Attached images are analyzed and their descriptions folded into the
// message before the agents see it.
type ChatRequest struct {
	ProjectID      string      `json:"project_id" binding:"required"`
	ConversationID string      `json:"conversation_id"`
	Message        string      `json:"message" binding:"required"`
	Images         []ChatImage `json:"images,omitempty"`
}

// ChatImage is one base64-encoded image attachment.
type ChatImage struct {
	Data     string `json:"data" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
}

// ChatMessage is one conversational turn as returned to clients.
type ChatMessage struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	AgentType string                 `json:"agent_type,omitempty"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ChatResponse is the agent system's answer to a chat turn.
type ChatResponse struct {
	AgentType string                 `json:"agent_type"`
	Status    string                 `json:"status"`
	Message   ChatMessage            `json:"message"`
	Tasks     []AgentTaskRef         `json:"tasks,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AgentTaskRef identifies a task spawned by an agent response.
type AgentTaskRef struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
}

// AgentTaskRequest runs one typed task against a named agent.
type AgentTaskRequest struct {
	ProjectID string                 `json:"project_id" binding:"required"`
	AgentType string                 `json:"agent_type" binding:"required"`
	TaskType  string                 `json:"task_type" binding:"required"`
	Input     map[string]interface{} `json:"input"`
}

// AgentTaskResponse reports the outcome of a task execution.
type AgentTaskResponse struct {
	TaskID      string      `json:"task_id"`
	Status      string      `json:"status"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	Artifacts   []string    `json:"artifacts,omitempty"`
	CompletedAt time.Time   `json:"completed_at"`
}

// ProjectStatusResponse reports a project's coordination state.
type ProjectStatusResponse struct {
	ProjectID          string `json:"project_id"`
	Phase              string `json:"phase"`
	ActiveTaskCount    int    `json:"active_task_count"`
	CompletedTaskCount int    `json:"completed_task_count"`
}

// AgentListResponse enumerates the registered agent roles.
type AgentListResponse struct {
	Agents []string `json:"agents"`
}

// ConversationHistoryResponse returns a conversation transcript.
type ConversationHistoryResponse struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []ChatMessage `json:"messages"`
	Total          int           `json:"total"`
}
