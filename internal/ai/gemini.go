package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/config"
	"github.com/beaverai/beaver/internal/common/logger"
)

// GeminiClient calls the Gemini generateContent API. It implements both
// TextGenerator and ImageAnalyzer.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewGeminiClient builds a Gemini adapter from configuration.
func NewGeminiClient(cfg config.AIConfig, log *logger.Logger) *GeminiClient {
	timeout := cfg.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		baseURL:    cfg.GeminiBaseURL,
		apiKey:     cfg.GeminiAPIKey,
		model:      cfg.GeminiModel,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithFields(zap.String("component", "gemini_client")),
	}
}

// Configured reports whether an API key is present. Callers fall back to
// canned responses when the provider is not configured.
func (c *GeminiClient) Configured() bool { return c.apiKey != "" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateText sends the system prompt, prior turns, and the user message
// to the generateContent endpoint and returns the first candidate's text.
func (c *GeminiClient) GenerateText(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+2)
	if systemPrompt != "" {
		contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: systemPrompt}}})
	}
	for _, turn := range history {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: turn.Content}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: userMessage}}})

	return c.generate(ctx, contents)
}

// AnalyzeImage sends the image inline and asks for a description of the
// interface or content it shows.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []geminiContent{{
		Role: "user",
		Parts: []geminiPart{
			{Text: "Describe this image in detail, focusing on any user interface elements, layouts, and features it shows."},
			{InlineData: &geminiInlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		},
	}}

	return c.generate(ctx, contents)
}

func (c *GeminiClient) generate(ctx context.Context, contents []geminiContent) (string, error) {
	reqBody := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 2048,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Message: "failed to marshal request", Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: "gemini", StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		c.logger.Warn("Gemini request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return "", &ProviderError{Provider: "gemini", StatusCode: resp.StatusCode, Message: msg}
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Provider: "gemini", Message: "empty candidate list"}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
