package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/pkg/errors"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "{\"score\": 7.5}"},
    "finish_reason": "stop",
    "logprobs": null
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/"})
	require.NoError(t, err)
	return provider
}

func TestOpenAIProviderChat(t *testing.T) {
	var body map[string]any
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:       ModelGPT4o,
		Messages:    SystemAndUser("you are a VP", "evaluate"),
		Temperature: Temperature(0.3),
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"score": 7.5}`, resp.Content)
	assert.Equal(t, FinishReasonStop, resp.FinishReason)
	assert.Equal(t, 120, resp.Usage.PromptTokens)
	assert.Equal(t, 30, resp.Usage.CompletionTokens)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIProviderChatErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		check     func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized is permanent",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var perm *PermanentError
				assert.True(t, errors.As(err, &perm))
			},
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			retryable: true,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
			},
		},
		{
			name:      "server error",
			status:    http.StatusInternalServerError,
			retryable: true,
			check:     func(t *testing.T, err error) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error": {"message": "nope", "type": "test_error"}}`)
			})

			_, err := provider.Chat(context.Background(), ChatRequest{
				Model:    ModelGPT4o,
				Messages: SystemAndUser("s", "u"),
			})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, int32(1), calls.Load(), "SDK retries are disabled")
			tt.check(t, err)
		})
	}
}

func TestOpenAIProviderRejectsEmptyRequest(t *testing.T) {
	provider, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test"})
	require.NoError(t, err)

	_, err = provider.Chat(context.Background(), ChatRequest{Model: ModelGPT4o})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	xai, err := NewXAIProvider(OpenAIConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "xai", xai.Name())

	model, err := xai.GetModel(context.Background(), "GROK-BETA")
	require.NoError(t, err)
	assert.Equal(t, ModelGrokBeta, model.Name)

	_, err = xai.GetModel(context.Background(), "gpt-4o")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
