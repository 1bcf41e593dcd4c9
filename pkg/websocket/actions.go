package websocket

// Action constants for WebSocket messages
const (
	// Health
	ActionHealthCheck = "health.check"

	// Chat actions (client -> server)
	ActionChatSend = "chat.send"

	// Agent actions
	ActionAgentStatus = "agent.status"
	ActionAgentTask   = "agent.task"

	// Subscription actions
	ActionProjectSubscribe   = "project.subscribe"
	ActionProjectUnsubscribe = "project.unsubscribe"

	// Notification actions (server -> client)
	ActionAgentTyping     = "agent.typing"
	ActionAgentResponse   = "agent.response"
	ActionMessageAdded    = "message.added"
	ActionTaskCreated     = "task.created"
	ActionTaskCompleted   = "task.completed"
	ActionTaskFailed      = "task.failed"
	ActionPhaseChanged    = "project.phase_changed"
	ActionSandboxCommand = "sandbox.command"
	ActionSandboxCreated = "sandbox.created"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeUnauthorized  = "UNAUTHORIZED"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)
