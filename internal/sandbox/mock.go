package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/logger"
)

// MockProvider keeps sandbox state in memory and returns canned command
// output. The manager falls back to it when the real provider cannot
// provision an environment, so development without credentials still
// works end to end.
type MockProvider struct {
	mu     sync.RWMutex
	files  map[string]map[string][]byte // handle ID -> path -> content
	logger *logger.Logger
}

// NewMockProvider returns an empty in-memory provider.
func NewMockProvider(log *logger.Logger) *MockProvider {
	return &MockProvider{
		files:  make(map[string]map[string][]byte),
		logger: log.WithFields(zap.String("component", "mock_provider")),
	}
}

func (p *MockProvider) Name() string { return "mock" }

// Create returns a handle flagged as mock with a localhost preview URL.
func (p *MockProvider) Create(_ context.Context) (*Handle, error) {
	id := fmt.Sprintf("mock_%d", time.Now().UnixMilli())

	p.mu.Lock()
	p.files[id] = make(map[string][]byte)
	p.mu.Unlock()

	p.logger.Info("Mock sandbox created", zap.String("sandbox_id", id))

	return &Handle{
		ID:         id,
		ProviderID: uuid.New().String(),
		Status:     StatusRunning,
		PreviewURL: "http://localhost:3000",
		Mock:       true,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RunCommand returns canned output keyed on the command text. Every
// command succeeds.
func (p *MockProvider) RunCommand(_ context.Context, _ *Handle, command string) (*CommandResult, error) {
	switch {
	case strings.Contains(command, "npm install"):
		return &CommandResult{Stdout: "Dependencies installed successfully", ExitCode: 0, Success: true}, nil
	case strings.Contains(command, "prisma generate"):
		return &CommandResult{Stdout: "Prisma client generated", ExitCode: 0, Success: true}, nil
	default:
		return &CommandResult{Stdout: "Executed: " + command, ExitCode: 0, Success: true}, nil
	}
}

// WriteFile stores the content in memory.
func (p *MockProvider) WriteFile(_ context.Context, handle *Handle, path string, content []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fs, ok := p.files[handle.ID]
	if !ok {
		fs = make(map[string][]byte)
		p.files[handle.ID] = fs
	}
	fs[path] = content
	return nil
}

// ReadFile returns stored content, or a placeholder component when the
// path was never written.
func (p *MockProvider) ReadFile(_ context.Context, handle *Handle, path string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if fs, ok := p.files[handle.ID]; ok {
		if content, ok := fs[path]; ok {
			return content, nil
		}
	}
	placeholder := fmt.Sprintf("// Mock content for %s\nexport default function() {\n  return <div>Hello World</div>\n}", path)
	return []byte(placeholder), nil
}

// ListFiles returns written files under the path plus a fixed scaffold
// resembling a fresh full-stack project.
func (p *MockProvider) ListFiles(_ context.Context, handle *Handle, path string) ([]FileNode, error) {
	nodes := []FileNode{
		{Name: "client", Path: "/workspace/client", IsDir: true},
		{Name: "server", Path: "/workspace/server", IsDir: true},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if fs, ok := p.files[handle.ID]; ok {
		for filePath := range fs {
			if path == "" || path == "/" || strings.HasPrefix(filePath, path) {
				nodes = append(nodes, FileNode{
					Name: filePath[strings.LastIndex(filePath, "/")+1:],
					Path: filePath,
				})
			}
		}
	}
	return nodes, nil
}

// Destroy drops the in-memory filesystem.
func (p *MockProvider) Destroy(_ context.Context, handle *Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, handle.ID)
	return nil
}
