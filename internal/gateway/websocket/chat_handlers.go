package websocket

import (
	"context"

	"github.com/beaverai/beaver/internal/agent"
	ws "github.com/beaverai/beaver/pkg/websocket"
)

// ChatPayload is the payload for chat.send.
type ChatPayload struct {
	ProjectID      string `json:"project_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// StatusPayload is the payload for agent.status.
type StatusPayload struct {
	ProjectID string `json:"project_id"`
}

// TaskPayload is the payload for agent.task.
type TaskPayload struct {
	ProjectID string                 `json:"project_id"`
	AgentType string                 `json:"agent_type"`
	TaskType  string                 `json:"task_type"`
	Input     map[string]interface{} `json:"input"`
}

// RegisterAgentHandlers wires the agent actions into the dispatcher. Chat
// responses also fan out to project subscribers via the event bus bridge,
// so the direct response here only answers the requesting client.
func RegisterAgentHandlers(d *ws.Dispatcher, orchestrator *agent.Orchestrator) {
	d.RegisterFunc(ws.ActionChatSend, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var payload ChatPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		}
		if payload.ProjectID == "" || payload.Message == "" {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "project_id and message are required", nil)
		}

		mctx := agent.MessageContext{
			ProjectID:      payload.ProjectID,
			UserID:         UserIDFromContext(ctx),
			ConversationID: payload.ConversationID,
		}
		response, err := orchestrator.HandleMessage(ctx, payload.Message, mctx)
		if err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, err.Error(), nil)
		}

		return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
			"agent_type": string(response.AgentType),
			"status":     string(response.Status),
			"message_id": response.Message.ID,
			"content":    response.Message.Content,
			"metadata":   response.Metadata,
		})
	})

	d.RegisterFunc(ws.ActionAgentStatus, func(_ context.Context, msg *ws.Message) (*ws.Message, error) {
		var payload StatusPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		}
		if payload.ProjectID == "" {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "project_id is required", nil)
		}

		report := orchestrator.Status(payload.ProjectID)
		return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
			"project_id":           payload.ProjectID,
			"phase":                report.Phase,
			"active_task_count":    report.ActiveTaskCount,
			"completed_task_count": report.CompletedTaskCount,
		})
	})

	d.RegisterFunc(ws.ActionAgentTask, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var payload TaskPayload
		if err := msg.ParsePayload(&payload); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		}
		if payload.ProjectID == "" || payload.AgentType == "" || payload.TaskType == "" {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, "project_id, agent_type and task_type are required", nil)
		}

		mctx := agent.MessageContext{
			ProjectID: payload.ProjectID,
			UserID:    UserIDFromContext(ctx),
		}
		result, err := orchestrator.ExecuteNamedTask(ctx, agent.Type(payload.AgentType), payload.TaskType, payload.Input, mctx)
		if err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
		}

		return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
			"task_id":   result.TaskID,
			"status":    string(result.Status),
			"output":    result.Output,
			"error":     result.Error,
			"artifacts": result.Artifacts,
		})
	})
}
