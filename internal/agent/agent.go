package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
)

// MessageContext identifies the project and user a message belongs to.
type MessageContext struct {
	ProjectID      string
	UserID         string
	ConversationID string
}

// Agent is a role-scoped handler for conversational messages and typed
// tasks.
//
// ProcessMessage interprets one conversational turn. Implementations fold
// internal failures into an error-status response rather than returning an
// error; a returned error signals caller misuse, not a processing failure.
//
// ExecuteTask performs one typed unit of work. It marks the task running
// on entry and always returns a result; failures surface as a Failed
// result, never as a panic or error past this boundary.
type Agent interface {
	Type() Type
	Capabilities() []string
	ProcessMessage(ctx context.Context, msg *Message, mctx MessageContext) (*Response, error)
	ExecuteTask(ctx context.Context, task *Task, mctx MessageContext) *Result
}

// BaseAgent carries the identity and helpers shared by every agent role.
type BaseAgent struct {
	id           string
	agentType    Type
	capabilities []string
	logger       *logger.Logger
}

// NewBaseAgent builds the shared agent core.
func NewBaseAgent(agentType Type, capabilities []string, log *logger.Logger) BaseAgent {
	return BaseAgent{
		id:           uuid.New().String(),
		agentType:    agentType,
		capabilities: capabilities,
		logger:       log.WithFields(zap.String("agent_type", string(agentType))),
	}
}

// Type returns the agent's role.
func (b *BaseAgent) Type() Type { return b.agentType }

// Capabilities returns the tags this agent claims.
func (b *BaseAgent) Capabilities() []string { return b.capabilities }

// ID returns the agent instance id.
func (b *BaseAgent) ID() string { return b.id }

// Logger returns the agent-scoped logger.
func (b *BaseAgent) Logger() *logger.Logger { return b.logger }

// NewMessage builds an assistant message attributed to this agent.
func (b *BaseAgent) NewMessage(content string) *Message {
	return NewMessage(content, RoleAssistant, b.agentType)
}

// NewTask builds a pending task assigned to this agent.
func (b *BaseAgent) NewTask(taskType, description string, input map[string]interface{}, priority int) *Task {
	return NewTask(taskType, description, input, priority, b.agentType)
}

// NewResponse wraps content in a response attributed to this agent.
func (b *BaseAgent) NewResponse(content string, status ResponseStatus, tasks []*Task, metadata map[string]interface{}) *Response {
	return &Response{
		AgentType: b.agentType,
		Message:   b.NewMessage(content),
		Tasks:     tasks,
		Status:    status,
		Metadata:  metadata,
	}
}

// ErrorResponse folds an internal failure into a generic error-status
// response. The detail is logged, not shown to the user.
func (b *BaseAgent) ErrorResponse(userFacing string, err error) *Response {
	b.logger.Error("Agent processing failed", zap.Error(err))
	return b.NewResponse(userFacing, StatusError, nil, nil)
}

// CanHandle reports whether the task type overlaps this agent's
// capability tags.
func (b *BaseAgent) CanHandle(task *Task) bool {
	taskType := strings.ToLower(task.Type)
	for _, capability := range b.capabilities {
		if strings.Contains(taskType, strings.ToLower(capability)) {
			return true
		}
	}
	return false
}

// FailResult resolves the task as failed and wraps the error.
func (b *BaseAgent) FailResult(task *Task, err error) *Result {
	task.Resolve(TaskFailed)
	b.logger.Warn("Task failed",
		zap.String("task_id", task.ID),
		zap.String("task_type", task.Type),
		zap.Error(err),
	)
	return &Result{
		TaskID:      task.ID,
		Status:      TaskFailed,
		Error:       err.Error(),
		CompletedAt: time.Now().UTC(),
	}
}

// CompleteResult resolves the task as completed with its output.
func (b *BaseAgent) CompleteResult(task *Task, output interface{}, artifacts []string) *Result {
	task.Resolve(TaskCompleted)
	return &Result{
		TaskID:      task.ID,
		Status:      TaskCompleted,
		Output:      output,
		Artifacts:   artifacts,
		CompletedAt: time.Now().UTC(),
	}
}
