// Package events provides event types and utilities for the Beaver event system.
package events

// Event types for projects
const (
	ProjectCreated      = "project.created"
	ProjectUpdated      = "project.updated"
	ProjectPhaseChanged = "project.phase_changed"
	ProjectDeleted      = "project.deleted"
)

// Event types for conversations and messages
const (
	ConversationCreated = "conversation.created"
	MessageAdded        = "message.added"
)

// Event types for agents
const (
	AgentTyping    = "agent.typing"
	AgentResponded = "agent.responded"
)

// Event types for tasks
const (
	TaskCreated   = "task.created"
	TaskStarted   = "task.started"
	TaskCompleted = "task.completed"
	TaskFailed    = "task.failed"
)

// Event types for sandboxes
const (
	SandboxCreated     = "sandbox.created"
	SandboxCommandRun  = "sandbox.command"
	SandboxFileWritten = "sandbox.file_written"
	SandboxDeleted     = "sandbox.deleted"
)

// BuildProjectSubject scopes an event type to one project, so the gateway
// can subscribe per project with a wildcard.
func BuildProjectSubject(eventType, projectID string) string {
	return eventType + "." + projectID
}

// BuildProjectWildcard subscribes to every event of a type regardless of project.
func BuildProjectWildcard(eventType string) string {
	return eventType + ".*"
}
