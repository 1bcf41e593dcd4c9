package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
)

func newTestOrchestrator(t *testing.T, eventBus bus.EventBus, specialists map[Type]Agent) (*Orchestrator, *MainAgent) {
	log := newTestLogger(t)
	classifier := NewKeywordClassifier()
	planner := NewPlannerAgent(classifier, log)
	main := NewMainAgent(classifier, &stubSandboxes{}, specialists, eventBus, 5*time.Second, log)
	return NewOrchestrator(planner, main, specialists, eventBus, log), main
}

func TestHandleMessageRequiresIdentity(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil, nil)

	_, err := orch.HandleMessage(context.Background(), "hello", MessageContext{ProjectID: "proj-1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "userId", verr.Field)

	_, err = orch.HandleMessage(context.Background(), "hello", MessageContext{UserID: "user-1"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "projectId", verr.Field)
}

func TestHandleMessageRoutesToPlannerFirst(t *testing.T) {
	orch, main := newTestOrchestrator(t, nil, nil)

	resp, err := orch.HandleMessage(context.Background(),
		"I want to build a task management app with authentication", testContext())
	require.NoError(t, err)

	assert.Equal(t, TypePlanner, resp.AgentType)
	assert.False(t, main.HasBlueprint("proj-1"))
}

func TestHandleMessageHandsOffAfterBlueprint(t *testing.T) {
	orch, main := newTestOrchestrator(t, nil, nil)
	ctx := context.Background()
	mctx := testContext()

	turns := []string{
		"I want to build a task management app with authentication and real-time chat",
		"It's for business teams that need dashboards",
		"Sounds good, let's continue",
	}
	var resp *Response
	var err error
	for _, text := range turns {
		resp, err = orch.HandleMessage(ctx, text, mctx)
		require.NoError(t, err)
	}

	// The planner's blueprint turn hands off to the main agent within the
	// same call, so the final response already comes from coordination.
	assert.Equal(t, TypeMain, resp.AgentType)
	assert.True(t, main.HasBlueprint("proj-1"))

	// Subsequent messages route straight to the main agent.
	resp, err = orch.HandleMessage(ctx, "task: build the backend API", mctx)
	require.NoError(t, err)
	assert.Equal(t, TypeMain, resp.AgentType)
}

func TestHandleMessageRecordsHistory(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil, nil)
	mctx := testContext()

	_, err := orch.HandleMessage(context.Background(), "I want to build a blog", mctx)
	require.NoError(t, err)

	history := orch.History(mctx.ConversationID)
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "I want to build a blog", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)

	// History returns a copy; mutating it does not affect the stored log.
	history[0] = nil
	again := orch.History(mctx.ConversationID)
	require.NotNil(t, again[0])
}

func TestExecuteNamedTaskUnknownAgent(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil, nil)

	_, err := orch.ExecuteNamedTask(context.Background(), Type("librarian"), "catalog", nil, testContext())
	var rerr *RoutingError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "catalog", rerr.TaskType)
}

func TestExecuteNamedTaskAgainstSpecialist(t *testing.T) {
	backend := &recordingAgent{agentType: TypeBackend}
	orch, _ := newTestOrchestrator(t, nil, map[Type]Agent{TypeBackend: backend})

	result, err := orch.ExecuteNamedTask(context.Background(), TypeBackend, "setup_server",
		map[string]interface{}{"framework": "express"}, testContext())
	require.NoError(t, err)

	assert.Equal(t, TaskCompleted, result.Status)
	require.Len(t, backend.executed, 1)
	assert.Equal(t, "setup_server", backend.executed[0].Type)
}

func TestStatusBeforeAndAfterInitialization(t *testing.T) {
	orch, main := newTestOrchestrator(t, nil, nil)

	report := orch.Status("proj-1")
	assert.Equal(t, string(PhaseInitialization), report.Phase)
	assert.Zero(t, report.ActiveTaskCount)

	_, err := main.ProcessMessage(context.Background(), blueprintMessage(testBlueprint()), testContext())
	require.NoError(t, err)

	report = orch.Status("proj-1")
	assert.Equal(t, string(PhaseSetup), report.Phase)
	assert.Equal(t, 2, report.ActiveTaskCount)

	// Status is a read; asking twice changes nothing.
	assert.Equal(t, report, orch.Status("proj-1"))
}

func TestAgentsListsRegistry(t *testing.T) {
	backend := &recordingAgent{agentType: TypeBackend}
	orch, _ := newTestOrchestrator(t, nil, map[Type]Agent{TypeBackend: backend})

	types := orch.Agents()
	assert.Contains(t, types, TypePlanner)
	assert.Contains(t, types, TypeMain)
	assert.Contains(t, types, TypeBackend)
}

func TestSubscribeReceivesProjectEvents(t *testing.T) {
	log := newTestLogger(t)
	memBus := bus.NewMemoryEventBus(log)
	defer memBus.Close()

	orch, _ := newTestOrchestrator(t, memBus, nil)

	var mu sync.Mutex
	var received []string
	sub, err := orch.Subscribe("proj-1", func(_ context.Context, event *bus.Event) error {
		mu.Lock()
		received = append(received, event.Type)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = orch.HandleMessage(context.Background(), "I want to build a blog", testContext())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, eventType := range received {
			if eventType == events.AgentResponded {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, received, events.AgentTyping)
	mu.Unlock()
}
