package ai

import (
	"context"
	"strings"
)

// FallbackGenerator produces canned responses when no provider is
// configured or the configured provider fails. It keeps the agent flow
// usable in development without API keys.
type FallbackGenerator struct{}

// NewFallbackGenerator returns a generator that never fails.
func NewFallbackGenerator() *FallbackGenerator { return &FallbackGenerator{} }

// GenerateText returns a canned response keyed on the user message.
func (g *FallbackGenerator) GenerateText(_ context.Context, _ string, _ []Turn, userMessage string) (string, error) {
	lower := strings.ToLower(userMessage)
	switch {
	case strings.Contains(lower, "plan") || strings.Contains(lower, "blueprint"):
		return "I can help plan your application. Could you describe the main features you have in mind and who will use it?", nil
	case strings.Contains(lower, "error") || strings.Contains(lower, "bug"):
		return "I understand something is not working as expected. Could you share the exact error message or describe what happens?", nil
	case strings.Contains(lower, "deploy"):
		return "For deployment I recommend starting with a containerized setup so the app runs the same everywhere.", nil
	default:
		return "I'm here to help you build your application. Tell me more about what you'd like to create.", nil
	}
}

// AnalyzeImage returns a generic description since no vision model is
// available.
func (g *FallbackGenerator) AnalyzeImage(_ context.Context, _ []byte, _ string) (string, error) {
	return "Image analysis is unavailable without a configured AI provider. Please describe the design in text instead.", nil
}

// Service selects between configured providers and the fallback. Text
// generation prefers Gemini, then OpenRouter, then the fallback; a
// provider error degrades to the next option rather than surfacing.
type Service struct {
	gemini     *GeminiClient
	openRouter *OpenRouterClient
	fallback   *FallbackGenerator
}

// NewService wires the provider chain. Either client may be
// unconfigured.
func NewService(gemini *GeminiClient, openRouter *OpenRouterClient) *Service {
	return &Service{
		gemini:     gemini,
		openRouter: openRouter,
		fallback:   NewFallbackGenerator(),
	}
}

// GenerateText tries each configured provider in order and falls back to
// canned responses when none succeeds.
func (s *Service) GenerateText(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error) {
	if s.gemini != nil && s.gemini.Configured() {
		text, err := s.gemini.GenerateText(ctx, systemPrompt, history, userMessage)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
	}
	if s.openRouter != nil && s.openRouter.Configured() {
		text, err := s.openRouter.GenerateText(ctx, systemPrompt, history, userMessage)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
	}
	return s.fallback.GenerateText(ctx, systemPrompt, history, userMessage)
}

// AnalyzeImage uses Gemini when configured and the fallback otherwise.
func (s *Service) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if s.gemini != nil && s.gemini.Configured() {
		text, err := s.gemini.AnalyzeImage(ctx, data, mimeType)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
	}
	return s.fallback.AnalyzeImage(ctx, data, mimeType)
}
