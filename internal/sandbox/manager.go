package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/events"
	"github.com/beaverai/beaver/internal/events/bus"
)

// Manager tracks one sandbox per project and degrades to the mock
// provider when the configured provider cannot provision an environment.
type Manager struct {
	provider Provider
	mock     *MockProvider
	eventBus bus.EventBus
	timeout  time.Duration
	logger   *logger.Logger

	mu      sync.RWMutex
	handles map[string]*Handle // projectID -> handle
}

// NewManager wires a manager around the given provider. The event bus is
// optional; when nil no sandbox events are published.
func NewManager(provider Provider, eventBus bus.EventBus, timeout time.Duration, log *logger.Logger) *Manager {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Manager{
		provider: provider,
		mock:     NewMockProvider(log),
		eventBus: eventBus,
		timeout:  timeout,
		logger:   log.WithFields(zap.String("component", "sandbox_manager")),
		handles:  make(map[string]*Handle),
	}
}

// Get returns the handle for a project, or nil when none exists.
func (m *Manager) Get(projectID string) *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handles[projectID]
}

// Create provisions a sandbox for the project. A failure from the real
// provider degrades to a mock handle rather than surfacing an error, so
// the agent flow keeps working without credentials or network access.
// Creating twice for the same project returns the existing handle.
func (m *Manager) Create(ctx context.Context, projectID string) (*Handle, error) {
	m.mu.Lock()
	if existing, ok := m.handles[projectID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	handle, err := m.provider.Create(opCtx)
	if err != nil {
		m.logger.Warn("Sandbox creation failed, falling back to mock",
			zap.String("project_id", projectID),
			zap.String("provider", m.provider.Name()),
			zap.Error(err),
		)
		handle, err = m.mock.Create(opCtx)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	// A concurrent Create may have won the race; keep the first handle.
	if existing, ok := m.handles[projectID]; ok {
		m.mu.Unlock()
		destroyCtx, destroyCancel := context.WithTimeout(context.Background(), m.timeout)
		defer destroyCancel()
		_ = m.providerFor(handle).Destroy(destroyCtx, handle)
		return existing, nil
	}
	m.handles[projectID] = handle
	m.mu.Unlock()

	m.logger.Info("Sandbox ready",
		zap.String("project_id", projectID),
		zap.String("sandbox_id", handle.ID),
		zap.Bool("mock", handle.Mock),
	)

	m.publish(ctx, events.SandboxCreated, projectID, map[string]interface{}{
		"sandboxId":  handle.ID,
		"previewUrl": handle.PreviewURL,
		"mock":       handle.Mock,
	})

	return handle, nil
}

// ExecuteCommand runs a shell command in the project's sandbox. A failed
// command is reported in the result, not as an error; errors are
// reserved for transport and missing-sandbox failures.
func (m *Manager) ExecuteCommand(ctx context.Context, projectID, command string) (*CommandResult, error) {
	handle := m.Get(projectID)
	if handle == nil {
		return nil, fmt.Errorf("no sandbox for project %s", projectID)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.providerFor(handle).RunCommand(opCtx, handle, command)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, events.SandboxCommandRun, projectID, map[string]interface{}{
		"sandboxId": handle.ID,
		"command":   command,
		"exitCode":  result.ExitCode,
		"success":   result.Success,
	})

	return result, nil
}

// WriteFile writes a file into the project's sandbox.
func (m *Manager) WriteFile(ctx context.Context, projectID, path string, content []byte) error {
	handle := m.Get(projectID)
	if handle == nil {
		return fmt.Errorf("no sandbox for project %s", projectID)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.providerFor(handle).WriteFile(opCtx, handle, path, content); err != nil {
		return err
	}

	m.publish(ctx, events.SandboxFileWritten, projectID, map[string]interface{}{
		"sandboxId": handle.ID,
		"path":      path,
	})
	return nil
}

// ReadFile reads a file from the project's sandbox.
func (m *Manager) ReadFile(ctx context.Context, projectID, path string) ([]byte, error) {
	handle := m.Get(projectID)
	if handle == nil {
		return nil, fmt.Errorf("no sandbox for project %s", projectID)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return m.providerFor(handle).ReadFile(opCtx, handle, path)
}

// ListFiles lists entries under a path in the project's sandbox.
func (m *Manager) ListFiles(ctx context.Context, projectID, path string) ([]FileNode, error) {
	handle := m.Get(projectID)
	if handle == nil {
		return nil, fmt.Errorf("no sandbox for project %s", projectID)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return m.providerFor(handle).ListFiles(opCtx, handle, path)
}

// CreateProjectStructure scaffolds a client/server workspace and seeds
// the root package.json and README. Failed scaffold commands are logged
// and skipped so a partially usable sandbox still comes up.
func (m *Manager) CreateProjectStructure(ctx context.Context, projectID, projectName, description string) error {
	commands := []string{
		"mkdir -p client server",
		"cd client && npm init -y",
		"cd server && npm init -y",
	}

	for _, command := range commands {
		result, err := m.ExecuteCommand(ctx, projectID, command)
		if err != nil {
			return err
		}
		if !result.Success {
			m.logger.Warn("Scaffold command failed, continuing",
				zap.String("project_id", projectID),
				zap.String("command", command),
				zap.Int("exit_code", result.ExitCode),
			)
		}
	}

	slug := strings.ToLower(strings.Join(strings.Fields(projectName), "-"))
	rootPackage, err := json.MarshalIndent(map[string]interface{}{
		"name": slug,
		"scripts": map[string]string{
			"dev": `concurrently "npm run dev:server" "npm run dev:client"`,
		},
	}, "", "  ")
	if err != nil {
		return err
	}

	readme := fmt.Sprintf("# %s\n\n%s\n\n## Getting Started\n\n```bash\nnpm run dev\n```", projectName, description)

	if err := m.WriteFile(ctx, projectID, "/workspace/package.json", rootPackage); err != nil {
		return err
	}
	return m.WriteFile(ctx, projectID, "/workspace/README.md", []byte(readme))
}

// InstallDependencies installs client and server packages and generates
// the Prisma client. The first failing install aborts; the Prisma step
// is best-effort.
func (m *Manager) InstallDependencies(ctx context.Context, projectID string) error {
	steps := []string{
		"cd client && npm install",
		"cd server && npm install",
	}
	for _, command := range steps {
		result, err := m.ExecuteCommand(ctx, projectID, command)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("dependency install failed: %s", result.Stderr)
		}
	}

	if _, err := m.ExecuteCommand(ctx, projectID, "cd server && npx prisma generate"); err != nil {
		m.logger.Warn("Prisma client generation failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
	}
	return nil
}

// Delete tears down the project's sandbox if one exists.
func (m *Manager) Delete(ctx context.Context, projectID string) error {
	m.mu.Lock()
	handle, ok := m.handles[projectID]
	delete(m.handles, projectID)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.providerFor(handle).Destroy(opCtx, handle); err != nil {
		return err
	}

	m.publish(ctx, events.SandboxDeleted, projectID, map[string]interface{}{
		"sandboxId": handle.ID,
	})
	return nil
}

// providerFor routes mock handles back to the mock provider after a
// fallback.
func (m *Manager) providerFor(handle *Handle) Provider {
	if handle.Mock {
		return m.mock
	}
	return m.provider
}

func (m *Manager) publish(ctx context.Context, eventType, projectID string, data map[string]interface{}) {
	if m.eventBus == nil {
		return
	}
	data["projectId"] = projectID
	event := bus.NewEvent(eventType, "sandbox-manager", data)
	subject := events.BuildProjectSubject(eventType, projectID)
	if err := m.eventBus.Publish(ctx, subject, event); err != nil {
		m.logger.Warn("Failed to publish sandbox event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
