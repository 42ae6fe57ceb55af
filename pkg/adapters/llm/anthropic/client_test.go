package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
)

func newTestClient(serverURL string) *Client {
	return &Client{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(serverURL),
			option.WithMaxRetries(0),
		),
		logger: zap.NewNop(),
	}
}

func TestCompleteSuccess(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Hello there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	temp := 0.7
	result, err := client.Complete(context.Background(), domain.CompletionRequest{
		Model:       "claude-sonnet-4-20250514",
		Prompt:      "Say hello",
		System:      "Be nice",
		MaxTokens:   256,
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", result.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", result.Model)
	assert.Equal(t, "end_turn", result.StopReason)
	assert.Equal(t, int64(10), result.Usage.InputTokens)
	assert.Equal(t, int64(5), result.Usage.OutputTokens)
	assert.Equal(t, int64(15), result.Usage.TotalTokens)
	assert.Positive(t, result.Latency)

	assert.Equal(t, "claude-sonnet-4-20250514", gotBody["model"])
	assert.Equal(t, float64(256), gotBody["max_tokens"])
	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 1)
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{
			"type": "error",
			"error": {"type": "invalid_request_error", "message": "max_tokens: must be positive"}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Complete(context.Background(), domain.CompletionRequest{
		Model:     "claude-sonnet-4-20250514",
		Prompt:    "Say hello",
		MaxTokens: 256,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic completion failed")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", zap.NewNop())
	require.Error(t, err)

	client, err := NewClient("sk-test", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAnthropic, client.Provider())
}
