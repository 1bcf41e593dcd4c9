package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaverai/beaver/internal/common/config"
	"github.com/beaverai/beaver/internal/common/logger"
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

func TestGeminiGenerateText(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "models/gemini-1.5-flash:generateContent")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]string{{"text": "Here is your plan."}},
				}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(config.AIConfig{
		GeminiAPIKey:   "test-key",
		GeminiBaseURL:  server.URL,
		GeminiModel:    "gemini-1.5-flash",
		RequestTimeout: 5,
	}, newTestLogger(t))

	history := []Turn{
		{Role: RoleUser, Content: "I want a todo app"},
		{Role: RoleAssistant, Content: "Who is it for?"},
	}
	text, err := client.GenerateText(context.Background(), "You are a planner.", history, "It's for small teams")
	require.NoError(t, err)
	assert.Equal(t, "Here is your plan.", text)

	// system prompt + 2 history turns + user message
	require.Len(t, captured.Contents, 4)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "user", captured.Contents[1].Role)
	assert.Equal(t, "model", captured.Contents[2].Role)
	assert.Equal(t, "user", captured.Contents[3].Role)
	assert.Equal(t, "It's for small teams", captured.Contents[3].Parts[0].Text)
}

func TestGeminiErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": 429, "message": "quota exceeded"},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(config.AIConfig{
		GeminiAPIKey:   "test-key",
		GeminiBaseURL:  server.URL,
		GeminiModel:    "gemini-1.5-flash",
		RequestTimeout: 5,
	}, newTestLogger(t))

	_, err := client.GenerateText(context.Background(), "", nil, "hello")
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "gemini", provErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Contains(t, provErr.Message, "quota exceeded")
}

func TestGeminiAnalyzeImage(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "A login screen with two fields."}},
				}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(config.AIConfig{
		GeminiAPIKey:   "test-key",
		GeminiBaseURL:  server.URL,
		GeminiModel:    "gemini-1.5-flash",
		RequestTimeout: 5,
	}, newTestLogger(t))

	text, err := client.AnalyzeImage(context.Background(), []byte{0x89, 0x50}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "A login screen with two fields.", text)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 2)
	require.NotNil(t, captured.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", captured.Contents[0].Parts[1].InlineData.MimeType)
}

func TestOpenRouterGenerateText(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "const app = express()"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenRouterClient(config.AIConfig{
		OpenRouterAPIKey: "or-key",
		OpenRouterURL:    server.URL,
		OpenRouterModel:  "anthropic/claude-3.5-sonnet",
		RequestTimeout:   5,
	}, newTestLogger(t))

	text, err := client.GenerateText(context.Background(), "You write code.", nil, "Create an express server")
	require.NoError(t, err)
	assert.Equal(t, "const app = express()", text)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, RoleUser, captured.Messages[1].Role)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", captured.Model)
}

func TestServiceFallsBackWhenUnconfigured(t *testing.T) {
	svc := NewService(
		NewGeminiClient(config.AIConfig{RequestTimeout: 5}, newTestLogger(t)),
		NewOpenRouterClient(config.AIConfig{RequestTimeout: 5}, newTestLogger(t)),
	)

	text, err := svc.GenerateText(context.Background(), "", nil, "help me plan a project")
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "plan"), "fallback should mention planning, got %q", text)
}

func TestServiceFallsBackOnProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(
		NewGeminiClient(config.AIConfig{
			GeminiAPIKey:   "test-key",
			GeminiBaseURL:  server.URL,
			GeminiModel:    "gemini-1.5-flash",
			RequestTimeout: 5,
		}, newTestLogger(t)),
		nil,
	)

	text, err := svc.GenerateText(context.Background(), "", nil, "anything at all")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestServiceRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	svc := NewService(
		NewGeminiClient(config.AIConfig{
			GeminiAPIKey:   "test-key",
			GeminiBaseURL:  server.URL,
			GeminiModel:    "gemini-1.5-flash",
			RequestTimeout: 5,
		}, newTestLogger(t)),
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateText(ctx, "", nil, "anything")
	require.Error(t, err)
}
