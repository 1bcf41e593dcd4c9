package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
	ws "github.com/beaverai/beaver/pkg/websocket"
)

// bridgedEvents maps bus event types to the WebSocket notification actions
// forwarded to project subscribers.
var bridgedEvents = map[string]string{
	events.AgentTyping:         ws.ActionAgentTyping,
	events.AgentResponded:      ws.ActionAgentResponse,
	events.MessageAdded:        ws.ActionMessageAdded,
	events.TaskCreated:         ws.ActionTaskCreated,
	events.TaskCompleted:       ws.ActionTaskCompleted,
	events.TaskFailed:          ws.ActionTaskFailed,
	events.ProjectPhaseChanged: ws.ActionPhaseChanged,
	events.SandboxCreated:      ws.ActionSandboxCreated,
	events.SandboxCommandRun:   ws.ActionSandboxCommand,
}

// Notifications bridges the event bus to the hub. Bus subscriptions are
// created when a project gains its first WebSocket subscriber and removed
// when the last one leaves.
type Notifications struct {
	eventBus bus.EventBus
	hub      *Hub
	logger   *logger.Logger

	mu   sync.Mutex
	subs map[string][]bus.Subscription // keyed by project id
}

// NewNotifications creates the bridge and attaches it to the hub.
func NewNotifications(eventBus bus.EventBus, hub *Hub, log *logger.Logger) *Notifications {
	n := &Notifications{
		eventBus: eventBus,
		hub:      hub,
		logger:   log.WithFields(zap.String("component", "ws_notifications")),
		subs:     make(map[string][]bus.Subscription),
	}
	hub.SetSubscriptionListener(n)
	return n
}

// ProjectSubscribed opens bus subscriptions for every bridged event type
// scoped to the project.
func (n *Notifications) ProjectSubscribed(projectID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[projectID]; ok {
		return
	}

	var subs []bus.Subscription
	for eventType, action := range bridgedEvents {
		subject := events.BuildProjectSubject(eventType, projectID)
		sub, err := n.eventBus.Subscribe(subject, n.forward(projectID, action))
		if err != nil {
			n.logger.Error("Failed to subscribe to project events",
				zap.String("subject", subject),
				zap.Error(err))
			continue
		}
		subs = append(subs, sub)
	}
	n.subs[projectID] = subs

	n.logger.Debug("Project event bridge opened", zap.String("project_id", projectID))
}

// ProjectUnsubscribed tears the project's bus subscriptions down.
func (n *Notifications) ProjectUnsubscribed(projectID string) {
	n.mu.Lock()
	subs := n.subs[projectID]
	delete(n.subs, projectID)
	n.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Warn("Failed to unsubscribe from project events", zap.Error(err))
		}
	}

	n.logger.Debug("Project event bridge closed", zap.String("project_id", projectID))
}

// Close tears down every open bridge.
func (n *Notifications) Close() {
	n.mu.Lock()
	all := n.subs
	n.subs = make(map[string][]bus.Subscription)
	n.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}
}

func (n *Notifications) forward(projectID, action string) bus.EventHandler {
	return func(_ context.Context, event *bus.Event) error {
		notification, err := ws.NewNotification(action, event.Data)
		if err != nil {
			return err
		}
		n.hub.BroadcastToProject(projectID, notification)
		return nil
	}
}
