package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "console",
		OutputPath: "stdout",
	})
	require.NoError(t, err)
	return log
}

// failingProvider refuses to provision anything.
type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Create(context.Context) (*Handle, error) {
	return nil, errors.New("provider unavailable")
}
func (failingProvider) RunCommand(context.Context, *Handle, string) (*CommandResult, error) {
	return nil, errors.New("provider unavailable")
}
func (failingProvider) WriteFile(context.Context, *Handle, string, []byte) error {
	return errors.New("provider unavailable")
}
func (failingProvider) ReadFile(context.Context, *Handle, string) ([]byte, error) {
	return nil, errors.New("provider unavailable")
}
func (failingProvider) ListFiles(context.Context, *Handle, string) ([]FileNode, error) {
	return nil, errors.New("provider unavailable")
}
func (failingProvider) Destroy(context.Context, *Handle) error {
	return errors.New("provider unavailable")
}

func TestCreateFallsBackToMock(t *testing.T) {
	mgr := NewManager(failingProvider{}, nil, 5*time.Second, newTestLogger(t))

	handle, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.True(t, handle.Mock)
	assert.Equal(t, StatusRunning, handle.Status)
	assert.Equal(t, "http://localhost:3000", handle.PreviewURL)
}

func TestCreateIsIdempotentPerProject(t *testing.T) {
	mgr := NewManager(NewMockProvider(newTestLogger(t)), nil, 5*time.Second, newTestLogger(t))

	first, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)
	second, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first, mgr.Get("proj-1"))
}

func TestExecuteCommandOnMockSandbox(t *testing.T) {
	mgr := NewManager(failingProvider{}, nil, 5*time.Second, newTestLogger(t))

	_, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)

	result, err := mgr.ExecuteCommand(context.Background(), "proj-1", "cd client && npm install")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Dependencies installed successfully", result.Stdout)

	result, err = mgr.ExecuteCommand(context.Background(), "proj-1", "git init")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Stdout, "git init")
}

func TestExecuteCommandWithoutSandbox(t *testing.T) {
	mgr := NewManager(NewMockProvider(newTestLogger(t)), nil, 5*time.Second, newTestLogger(t))

	_, err := mgr.ExecuteCommand(context.Background(), "missing", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sandbox for project")
}

func TestCreateProjectStructureSeedsFiles(t *testing.T) {
	mgr := NewManager(NewMockProvider(newTestLogger(t)), nil, 5*time.Second, newTestLogger(t))

	_, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)

	err = mgr.CreateProjectStructure(context.Background(), "proj-1", "Task Tracker", "A simple task tracker")
	require.NoError(t, err)

	pkg, err := mgr.ReadFile(context.Background(), "proj-1", "/workspace/package.json")
	require.NoError(t, err)
	assert.Contains(t, string(pkg), `"task-tracker"`)

	readme, err := mgr.ReadFile(context.Background(), "proj-1", "/workspace/README.md")
	require.NoError(t, err)
	assert.Contains(t, string(readme), "# Task Tracker")
	assert.Contains(t, string(readme), "A simple task tracker")
}

func TestInstallDependencies(t *testing.T) {
	mgr := NewManager(NewMockProvider(newTestLogger(t)), nil, 5*time.Second, newTestLogger(t))

	_, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)

	require.NoError(t, mgr.InstallDependencies(context.Background(), "proj-1"))
}

func TestDeleteRemovesHandle(t *testing.T) {
	mgr := NewManager(NewMockProvider(newTestLogger(t)), nil, 5*time.Second, newTestLogger(t))

	_, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(context.Background(), "proj-1"))
	assert.Nil(t, mgr.Get("proj-1"))

	// Deleting again is a no-op.
	require.NoError(t, mgr.Delete(context.Background(), "proj-1"))
}

func TestSandboxEventsPublished(t *testing.T) {
	log := newTestLogger(t)
	eventBus := bus.NewMemoryEventBus(log)
	defer eventBus.Close()

	received := make(chan *bus.Event, 4)
	_, err := eventBus.Subscribe(events.BuildProjectWildcard(events.SandboxCreated), func(_ context.Context, e *bus.Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	mgr := NewManager(NewMockProvider(log), eventBus, 5*time.Second, log)
	handle, err := mgr.Create(context.Background(), "proj-1")
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, events.SandboxCreated, e.Type)
		assert.Equal(t, handle.ID, e.Data["sandboxId"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected sandbox.created event")
	}
}
