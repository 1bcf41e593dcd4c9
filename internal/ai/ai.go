// Package ai defines the text-generation and image-analysis capability
// ports the orchestration layer consumes, plus HTTP adapters for the
// hosted providers (Gemini, OpenRouter).
package ai

import (
	"context"
	"fmt"
)

// Role of a chat turn as seen by the providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one prior conversation entry passed to a provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextGenerator produces a completion for a conversational prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error)
}

// ImageAnalyzer describes an image in natural language.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ProviderError reports a failure from a hosted AI backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
