package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
	"github.com/beaverai/beaver/internal/project/models"
	"github.com/beaverai/beaver/internal/project/repository"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*bus.Event
}

func (r *eventRecorder) record(_ context.Context, event *bus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func newTestService(t *testing.T) (*Service, *eventRecorder) {
	log := newTestLogger(t)
	memBus := bus.NewMemoryEventBus(log)
	t.Cleanup(memBus.Close)

	recorder := &eventRecorder{}
	for _, eventType := range []string{
		events.ProjectCreated, events.ProjectUpdated, events.ProjectPhaseChanged,
		events.ProjectDeleted, events.ConversationCreated, events.MessageAdded,
	} {
		_, err := memBus.Subscribe(events.BuildProjectWildcard(eventType), recorder.record)
		require.NoError(t, err)
	}

	return NewService(repository.NewMemoryRepository(), memBus, log), recorder
}

func waitForEvent(t *testing.T, recorder *eventRecorder, eventType string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, got := range recorder.types() {
			if got == eventType {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "expected event %s", eventType)
}

func TestCreateProjectOpensConversation(t *testing.T) {
	svc, recorder := newTestService(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "user-1", "Task Tracker", "a tracker")
	require.NoError(t, err)
	require.NotEmpty(t, project.ID)

	conversations, err := svc.ListConversations(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Task Tracker", conversations[0].Title)

	waitForEvent(t, recorder, events.ProjectCreated)
	waitForEvent(t, recorder, events.ConversationCreated)
}

func TestCreateProjectValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProject(ctx, "", "Name", "")
	assert.ErrorContains(t, err, "user id is required")

	_, err = svc.CreateProject(ctx, "user-1", "", "")
	assert.ErrorContains(t, err, "project name is required")
}

func TestUpdateProjectAppliesPartialFields(t *testing.T) {
	svc, recorder := newTestService(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "user-1", "Blog", "")
	require.NoError(t, err)

	name := "Blog v2"
	updated, err := svc.UpdateProject(ctx, project.ID, &name, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Blog v2", updated.Name)
	assert.Equal(t, models.ProjectActive, updated.Status)

	status := string(models.ProjectArchived)
	updated, err = svc.UpdateProject(ctx, project.ID, nil, nil, &status)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectArchived, updated.Status)
	assert.Equal(t, "Blog v2", updated.Name)

	waitForEvent(t, recorder, events.ProjectUpdated)
}

func TestSetPhasePublishesTransition(t *testing.T) {
	svc, recorder := newTestService(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "user-1", "Shop", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetPhase(ctx, project.ID, "development"))
	waitForEvent(t, recorder, events.ProjectPhaseChanged)

	got, err := svc.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "development", got.Phase)
}

func TestAddMessagePublishes(t *testing.T) {
	svc, recorder := newTestService(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "user-1", "Chat App", "")
	require.NoError(t, err)
	conversations, err := svc.ListConversations(ctx, project.ID)
	require.NoError(t, err)

	message := &models.Message{
		ConversationID: conversations[0].ID,
		Role:           "user",
		Content:        "add dark mode",
	}
	require.NoError(t, svc.AddMessage(ctx, message))
	waitForEvent(t, recorder, events.MessageAdded)

	messages, err := svc.ListMessages(ctx, conversations[0].ID, repository.ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "add dark mode", messages[0].Content)
}

func TestAddMessageValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.AddMessage(ctx, &models.Message{Role: "user", Content: "hi"})
	assert.ErrorContains(t, err, "conversation id is required")

	err = svc.AddMessage(ctx, &models.Message{ConversationID: "conv-1", Role: "user"})
	assert.ErrorContains(t, err, "message content is required")

	err = svc.AddMessage(ctx, &models.Message{ConversationID: "missing", Role: "user", Content: "hi"})
	assert.ErrorContains(t, err, "not found")
}

func TestDeleteProjectPublishes(t *testing.T) {
	svc, recorder := newTestService(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, "user-1", "Temp", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProject(ctx, project.ID))
	waitForEvent(t, recorder, events.ProjectDeleted)

	_, err = svc.GetProject(ctx, project.ID)
	assert.ErrorContains(t, err, "not found")
}
