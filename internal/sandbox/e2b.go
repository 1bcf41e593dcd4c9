package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/config"
	"github.com/beaverai/beaver/internal/common/logger"
)

// E2BProvider provisions cloud sandboxes through the E2B HTTP API.
type E2BProvider struct {
	baseURL    string
	apiKey     string
	template   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewE2BProvider builds an E2B adapter from configuration.
func NewE2BProvider(cfg config.SandboxConfig, log *logger.Logger) *E2BProvider {
	timeout := cfg.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &E2BProvider{
		baseURL:    cfg.E2BBaseURL,
		apiKey:     cfg.E2BAPIKey,
		template:   cfg.Template,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithFields(zap.String("component", "e2b_provider")),
	}
}

func (p *E2BProvider) Name() string { return "e2b" }

type e2bCreateRequest struct {
	TemplateID string            `json:"templateId"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type e2bCreateResponse struct {
	SandboxID string `json:"sandboxId"`
	URL       string `json:"url"`
}

type e2bCommandRequest struct {
	Command string `json:"command"`
	Timeout int64  `json:"timeout"` // milliseconds
}

type e2bCommandResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

type e2bFileRequest struct {
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
	Operation string `json:"operation"`
}

type e2bFileResponse struct {
	Content string `json:"content"`
	Files   []struct {
		Name  string `json:"name"`
		Path  string `json:"path"`
		IsDir bool   `json:"isDir"`
	} `json:"files"`
}

// Create provisions a fresh sandbox from the configured template.
func (p *E2BProvider) Create(ctx context.Context) (*Handle, error) {
	var resp e2bCreateResponse
	req := e2bCreateRequest{
		TemplateID: p.template,
		Metadata: map[string]string{
			"createdBy": "beaver-ai",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := p.do(ctx, http.MethodPost, "/sandboxes", req, &resp); err != nil {
		return nil, &Error{Provider: "e2b", Op: "create", Err: err}
	}

	p.logger.Info("E2B sandbox created", zap.String("sandbox_id", resp.SandboxID))

	previewURL := resp.URL
	if previewURL == "" {
		previewURL = fmt.Sprintf("https://%s.e2b.dev", resp.SandboxID)
	}

	return &Handle{
		ID:         resp.SandboxID,
		ProviderID: resp.SandboxID,
		Status:     StatusRunning,
		PreviewURL: previewURL,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RunCommand executes a shell command in the sandbox with a 30s server
// side timeout.
func (p *E2BProvider) RunCommand(ctx context.Context, handle *Handle, command string) (*CommandResult, error) {
	var resp e2bCommandResponse
	req := e2bCommandRequest{Command: command, Timeout: 30000}
	path := fmt.Sprintf("/sandboxes/%s/commands", handle.ProviderID)
	if err := p.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, &Error{Provider: "e2b", Op: "run_command", Err: err}
	}

	return &CommandResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Success:  resp.ExitCode == 0,
	}, nil
}

// WriteFile creates or overwrites a file in the sandbox filesystem.
func (p *E2BProvider) WriteFile(ctx context.Context, handle *Handle, filePath string, content []byte) error {
	req := e2bFileRequest{Path: filePath, Content: string(content), Operation: "write"}
	path := fmt.Sprintf("/sandboxes/%s/filesystem", handle.ProviderID)
	if err := p.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return &Error{Provider: "e2b", Op: "write_file", Err: err}
	}
	return nil
}

// ReadFile returns the contents of a file in the sandbox filesystem.
func (p *E2BProvider) ReadFile(ctx context.Context, handle *Handle, filePath string) ([]byte, error) {
	var resp e2bFileResponse
	path := fmt.Sprintf("/sandboxes/%s/filesystem/%s", handle.ProviderID, url.PathEscape(filePath))
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &Error{Provider: "e2b", Op: "read_file", Err: err}
	}
	return []byte(resp.Content), nil
}

// ListFiles lists entries under a directory in the sandbox filesystem.
func (p *E2BProvider) ListFiles(ctx context.Context, handle *Handle, dirPath string) ([]FileNode, error) {
	var resp e2bFileResponse
	path := fmt.Sprintf("/sandboxes/%s/filesystem?path=%s", handle.ProviderID, url.QueryEscape(dirPath))
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &Error{Provider: "e2b", Op: "list_files", Err: err}
	}

	nodes := make([]FileNode, 0, len(resp.Files))
	for _, f := range resp.Files {
		nodes = append(nodes, FileNode{Name: f.Name, Path: f.Path, IsDir: f.IsDir})
	}
	return nodes, nil
}

// Destroy stops and removes the sandbox.
func (p *E2BProvider) Destroy(ctx context.Context, handle *Handle) error {
	path := fmt.Sprintf("/sandboxes/%s", handle.ProviderID)
	if err := p.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return &Error{Provider: "e2b", Op: "destroy", Err: err}
	}
	p.logger.Info("E2B sandbox destroyed", zap.String("sandbox_id", handle.ProviderID))
	return nil
}

func (p *E2BProvider) do(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
