package agent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
)

// StatusReport summarizes a project's coordination state.
type StatusReport struct {
	Phase              string `json:"phase"`
	ActiveTaskCount    int    `json:"activeTaskCount"`
	CompletedTaskCount int    `json:"completedTaskCount"`
}

// Orchestrator routes inbound messages to the right agent, owns the agent
// registry, and exposes the message/task entry points consumed by the API
// layer. The registry is built once at construction and never mutated, so
// lookups need no locking.
type Orchestrator struct {
	planner  *PlannerAgent
	main     *MainAgent
	registry map[Type]Agent
	eventBus bus.EventBus
	logger   *logger.Logger

	mu            sync.RWMutex
	conversations map[string][]*Message
}

// NewOrchestrator assembles the routing layer. The registry holds the
// planner, the main agent, and every specialist.
func NewOrchestrator(planner *PlannerAgent, main *MainAgent, specialists map[Type]Agent, eventBus bus.EventBus, log *logger.Logger) *Orchestrator {
	registry := make(map[Type]Agent, len(specialists)+2)
	for t, a := range specialists {
		registry[t] = a
	}
	registry[TypePlanner] = planner
	registry[TypeMain] = main

	return &Orchestrator{
		planner:       planner,
		main:          main,
		registry:      registry,
		eventBus:      eventBus,
		logger:        log.WithFields(zap.String("component", "orchestrator")),
		conversations: make(map[string][]*Message),
	}
}

// HandleMessage is the single externally-invoked entry point for chat.
// Routing rule: a project without a blueprint talks to the planner; once
// a blueprint exists the main agent takes over. When the planner produces
// a blueprint the hand-off to the main agent happens immediately within
// the same call.
func (o *Orchestrator) HandleMessage(ctx context.Context, text string, mctx MessageContext) (*Response, error) {
	if mctx.UserID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "required"}
	}
	if mctx.ProjectID == "" {
		return nil, &ValidationError{Field: "projectId", Reason: "required"}
	}

	userMsg := NewMessage(text, RoleUser, "")
	o.appendHistory(mctx, userMsg)
	o.publishTyping(ctx, mctx.ProjectID, true)
	defer o.publishTyping(ctx, mctx.ProjectID, false)

	var response *Response
	var err error

	if o.main.HasBlueprint(mctx.ProjectID) {
		response, err = o.main.ProcessMessage(ctx, userMsg, mctx)
	} else {
		response, err = o.planner.ProcessMessage(ctx, userMsg, mctx)
		if err == nil && response != nil {
			if bp := blueprintFromMetadata(response.Metadata); bp != nil {
				o.appendHistory(mctx, response.Message)
				o.publishResponse(ctx, mctx.ProjectID, response)

				handoff := NewMessage(response.Message.Content, RoleAssistant, TypePlanner)
				handoff.Metadata = map[string]interface{}{"blueprint": bp}
				response, err = o.main.ProcessMessage(ctx, handoff, mctx)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	o.appendHistory(mctx, response.Message)
	o.publishResponse(ctx, mctx.ProjectID, response)
	return response, nil
}

// ExecuteNamedTask runs a task against a specific registered agent. An
// unknown agent type is a routing error.
func (o *Orchestrator) ExecuteNamedTask(ctx context.Context, agentType Type, taskType string, input map[string]interface{}, mctx MessageContext) (*Result, error) {
	target, ok := o.registry[agentType]
	if !ok {
		return nil, &RoutingError{TaskType: taskType}
	}

	task := NewTask(taskType, taskType, input, 1, agentType)
	o.publishTaskCreated(ctx, mctx.ProjectID, task)

	return target.ExecuteTask(ctx, task, mctx), nil
}

// Status reports the phase and task counts for a project. Repeated calls
// without intervening mutation return identical output.
func (o *Orchestrator) Status(projectID string) StatusReport {
	pc := o.main.Project(projectID)
	if pc == nil {
		return StatusReport{Phase: string(PhaseInitialization)}
	}

	phase, active, completed := pc.Snapshot()
	return StatusReport{
		Phase:              string(phase),
		ActiveTaskCount:    active,
		CompletedTaskCount: completed,
	}
}

// History returns the recorded messages for a conversation, oldest first.
func (o *Orchestrator) History(conversationID string) []*Message {
	o.mu.RLock()
	defer o.mu.RUnlock()

	history := o.conversations[conversationID]
	out := make([]*Message, len(history))
	copy(out, history)
	return out
}

// Agents lists the registered agent types.
func (o *Orchestrator) Agents() []Type {
	types := make([]Type, 0, len(o.registry))
	for t := range o.registry {
		types = append(types, t)
	}
	return types
}

// StreamSubscription groups the bus subscriptions backing one project
// stream.
type StreamSubscription struct {
	subs []bus.Subscription
}

// Unsubscribe tears down every underlying subscription.
func (s *StreamSubscription) Unsubscribe() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}

// Subscribe registers a handler for all push events of one project:
// typing indicators, agent responses, task resolution, and phase changes.
func (o *Orchestrator) Subscribe(projectID string, handler bus.EventHandler) (*StreamSubscription, error) {
	if o.eventBus == nil {
		return nil, fmt.Errorf("no event bus configured")
	}
	subjects := []string{
		events.BuildProjectSubject(events.AgentTyping, projectID),
		events.BuildProjectSubject(events.AgentResponded, projectID),
		events.BuildProjectSubject(events.TaskCreated, projectID),
		events.BuildProjectSubject(events.TaskCompleted, projectID),
		events.BuildProjectSubject(events.TaskFailed, projectID),
		events.BuildProjectSubject(events.ProjectPhaseChanged, projectID),
	}

	stream := &StreamSubscription{}
	for _, subject := range subjects {
		sub, err := o.eventBus.Subscribe(subject, handler)
		if err != nil {
			stream.Unsubscribe()
			return nil, err
		}
		stream.subs = append(stream.subs, sub)
	}
	return stream, nil
}

func (o *Orchestrator) appendHistory(mctx MessageContext, msg *Message) {
	key := mctx.ConversationID
	if key == "" {
		key = mctx.ProjectID
	}

	o.mu.Lock()
	o.conversations[key] = append(o.conversations[key], msg)
	o.mu.Unlock()
}

func (o *Orchestrator) publishTyping(ctx context.Context, projectID string, typing bool) {
	if o.eventBus == nil {
		return
	}
	event := bus.NewEvent(events.AgentTyping, "orchestrator", map[string]interface{}{
		"projectId": projectID,
		"typing":    typing,
	})
	subject := events.BuildProjectSubject(events.AgentTyping, projectID)
	if err := o.eventBus.Publish(ctx, subject, event); err != nil {
		o.logger.Warn("Failed to publish typing event", zap.Error(err))
	}
}

func (o *Orchestrator) publishResponse(ctx context.Context, projectID string, response *Response) {
	if o.eventBus == nil {
		return
	}
	event := bus.NewEvent(events.AgentResponded, "orchestrator", map[string]interface{}{
		"projectId": projectID,
		"agentType": string(response.AgentType),
		"messageId": response.Message.ID,
		"content":   response.Message.Content,
		"status":    string(response.Status),
	})
	subject := events.BuildProjectSubject(events.AgentResponded, projectID)
	if err := o.eventBus.Publish(ctx, subject, event); err != nil {
		o.logger.Warn("Failed to publish response event", zap.Error(err))
	}
}

func (o *Orchestrator) publishTaskCreated(ctx context.Context, projectID string, task *Task) {
	if o.eventBus == nil || projectID == "" {
		return
	}
	event := bus.NewEvent(events.TaskCreated, "orchestrator", map[string]interface{}{
		"projectId": projectID,
		"taskId":    task.ID,
		"taskType":  task.Type,
	})
	subject := events.BuildProjectSubject(events.TaskCreated, projectID)
	if err := o.eventBus.Publish(ctx, subject, event); err != nil {
		o.logger.Warn("Failed to publish task event", zap.Error(err))
	}
}
