// Package sandbox manages isolated execution environments for generated
// projects. Providers back the same port with E2B cloud sandboxes, local
// Docker containers, or an in-process mock.
package sandbox

import (
	"context"
	"fmt"
	"time"
)

// HandleStatus is the lifecycle state of a sandbox environment.
type HandleStatus string

const (
	StatusCreating HandleStatus = "creating"
	StatusRunning  HandleStatus = "running"
	StatusStopped  HandleStatus = "stopped"
	StatusError    HandleStatus = "error"
)

// Handle identifies a provisioned sandbox environment.
type Handle struct {
	ID         string       `json:"id"`
	ProviderID string       `json:"providerId"`
	Status     HandleStatus `json:"status"`
	PreviewURL string       `json:"previewUrl,omitempty"`
	Mock       bool         `json:"mock"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// CommandResult holds the outcome of a command executed in a sandbox.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Success  bool   `json:"success"`
}

// FileNode describes one entry when listing sandbox files.
type FileNode struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

// Error wraps a provider failure with the operation that caused it.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sandbox %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Provider provisions and operates sandbox environments. Implementations
// must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs and handles.
	Name() string

	// Create provisions a new environment and returns its handle.
	Create(ctx context.Context) (*Handle, error)

	// RunCommand executes a shell command inside the environment.
	RunCommand(ctx context.Context, handle *Handle, command string) (*CommandResult, error)

	// WriteFile creates or overwrites a file, creating parent
	// directories as needed.
	WriteFile(ctx context.Context, handle *Handle, path string, content []byte) error

	// ReadFile returns the contents of a file.
	ReadFile(ctx context.Context, handle *Handle, path string) ([]byte, error)

	// ListFiles lists entries under a directory.
	ListFiles(ctx context.Context, handle *Handle, path string) ([]FileNode, error)

	// Destroy tears down the environment.
	Destroy(ctx context.Context, handle *Handle) error
}
