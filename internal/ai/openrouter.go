package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/config"
	"github.com/beaverai/beaver/internal/common/logger"
)

// OpenRouterClient calls the OpenRouter chat completions API. It is used
// for code generation where a stronger model is preferred.
type OpenRouterClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewOpenRouterClient builds an OpenRouter adapter from configuration.
func NewOpenRouterClient(cfg config.AIConfig, log *logger.Logger) *OpenRouterClient {
	timeout := cfg.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		url:        cfg.OpenRouterURL,
		apiKey:     cfg.OpenRouterAPIKey,
		model:      cfg.OpenRouterModel,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithFields(zap.String("component", "openrouter_client")),
	}
}

// Configured reports whether an API key is present.
func (c *OpenRouterClient) Configured() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends system prompt, history, and the user message as a
// chat completion request and returns the first choice's content.
func (c *OpenRouterClient) GenerateText(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: RoleSystem, Content: systemPrompt})
	}
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: RoleUser, Content: userMessage})

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: "openrouter", Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: "openrouter", Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: "openrouter", Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: "openrouter", StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: "openrouter", StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		c.logger.Warn("OpenRouter request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return "", &ProviderError{Provider: "openrouter", StatusCode: resp.StatusCode, Message: msg}
	}

	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: "openrouter", Message: "empty choice list"}
	}

	return parsed.Choices[0].Message.Content, nil
}
