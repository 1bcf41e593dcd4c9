package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/agent"
	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
	"github.com/beaverai/beaver/internal/sandbox"
	ws "github.com/beaverai/beaver/pkg/websocket"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

// receiveMessage waits for one message on the client's send channel.
func receiveMessage(t *testing.T, client *Client) *ws.Message {
	t.Helper()
	select {
	case data := <-client.send:
		var msg ws.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestProjectSubscriptionBridgesBusEvents(t *testing.T) {
	log := newTestLogger(t)
	memBus := bus.NewMemoryEventBus(log)
	defer memBus.Close()

	hub := NewHub(ws.NewDispatcher(), log)
	notifications := NewNotifications(memBus, hub, log)
	defer notifications.Close()

	client := NewClient("client-1", "user-1", nil, hub, log)
	hub.SubscribeToProject(client, "proj-1")

	event := bus.NewEvent(events.AgentTyping, "orchestrator", map[string]interface{}{
		"projectId": "proj-1",
		"typing":    true,
	})
	subject := events.BuildProjectSubject(events.AgentTyping, "proj-1")
	require.NoError(t, memBus.Publish(context.Background(), subject, event))

	msg := receiveMessage(t, client)
	assert.Equal(t, ws.MessageTypeNotification, msg.Type)
	assert.Equal(t, ws.ActionAgentTyping, msg.Action)

	var payload map[string]interface{}
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, "proj-1", payload["projectId"])
	assert.Equal(t, true, payload["typing"])
}

func TestUnsubscribeClosesBridge(t *testing.T) {
	log := newTestLogger(t)
	memBus := bus.NewMemoryEventBus(log)
	defer memBus.Close()

	hub := NewHub(ws.NewDispatcher(), log)
	notifications := NewNotifications(memBus, hub, log)
	defer notifications.Close()

	client := NewClient("client-1", "user-1", nil, hub, log)
	hub.SubscribeToProject(client, "proj-1")
	hub.UnsubscribeFromProject(client, "proj-1")

	event := bus.NewEvent(events.AgentTyping, "orchestrator", map[string]interface{}{"typing": true})
	subject := events.BuildProjectSubject(events.AgentTyping, "proj-1")
	require.NoError(t, memBus.Publish(context.Background(), subject, event))

	select {
	case data := <-client.send:
		t.Fatalf("expected no message after unsubscribe, got %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastToProjectScopesDelivery(t *testing.T) {
	log := newTestLogger(t)
	hub := NewHub(ws.NewDispatcher(), log)

	subscribed := NewClient("client-1", "user-1", nil, hub, log)
	other := NewClient("client-2", "user-2", nil, hub, log)
	hub.SubscribeToProject(subscribed, "proj-1")
	hub.SubscribeToProject(other, "proj-2")

	notification, err := ws.NewNotification(ws.ActionPhaseChanged, map[string]interface{}{"to": "development"})
	require.NoError(t, err)
	hub.BroadcastToProject("proj-1", notification)

	msg := receiveMessage(t, subscribed)
	assert.Equal(t, ws.ActionPhaseChanged, msg.Action)

	select {
	case <-other.send:
		t.Fatal("client subscribed to a different project received the message")
	case <-time.After(100 * time.Millisecond):
	}
}

type nopSandboxes struct{}

func (nopSandboxes) Create(_ context.Context, projectID string) (*sandbox.Handle, error) {
	return &sandbox.Handle{ID: "sandbox_" + projectID, Status: sandbox.StatusRunning, CreatedAt: time.Now().UTC()}, nil
}

func (nopSandboxes) CreateProjectStructure(context.Context, string, string, string) error {
	return nil
}

func (nopSandboxes) InstallDependencies(context.Context, string) error { return nil }

func newTestOrchestrator(t *testing.T) *agent.Orchestrator {
	t.Helper()
	log := newTestLogger(t)
	classifier := agent.NewKeywordClassifier()
	planner := agent.NewPlannerAgent(classifier, log)
	main := agent.NewMainAgent(classifier, nopSandboxes{}, nil, nil, 5*time.Second, log)
	return agent.NewOrchestrator(planner, main, nil, nil, log)
}

func TestChatSendAction(t *testing.T) {
	dispatcher := ws.NewDispatcher()
	RegisterAgentHandlers(dispatcher, newTestOrchestrator(t))

	req, err := ws.NewRequest("req-1", ws.ActionChatSend, ChatPayload{
		ProjectID: "proj-1",
		Message:   "I want to build a task management app",
	})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), userIDKey{}, "user-1")
	resp, err := dispatcher.Dispatch(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, ws.MessageTypeResponse, resp.Type)

	var payload map[string]interface{}
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, "planner", payload["agent_type"])
	assert.NotEmpty(t, payload["content"])
}

func TestChatSendRequiresProject(t *testing.T) {
	dispatcher := ws.NewDispatcher()
	RegisterAgentHandlers(dispatcher, newTestOrchestrator(t))

	req, err := ws.NewRequest("req-1", ws.ActionChatSend, ChatPayload{Message: "hello"})
	require.NoError(t, err)

	resp, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageTypeError, resp.Type)
}

func TestAgentStatusAction(t *testing.T) {
	dispatcher := ws.NewDispatcher()
	RegisterAgentHandlers(dispatcher, newTestOrchestrator(t))

	req, err := ws.NewRequest("req-2", ws.ActionAgentStatus, StatusPayload{ProjectID: "proj-1"})
	require.NoError(t, err)

	resp, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, "initialization", payload["phase"])
}

func TestUnknownActionReturnsError(t *testing.T) {
	dispatcher := ws.NewDispatcher()
	RegisterAgentHandlers(dispatcher, newTestOrchestrator(t))

	req, err := ws.NewRequest("req-3", "bogus.action", nil)
	require.NoError(t, err)

	resp, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageTypeError, resp.Type)
}
