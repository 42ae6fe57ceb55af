package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/adapters/llm/anthropic"
	"github.com/aescanero/promptlab/pkg/adapters/llm/openai"
)

func TestNewClientProviderSelection(t *testing.T) {
	logger := zap.NewNop()

	t.Run("anthropic", func(t *testing.T) {
		client, err := NewClient(&Config{Provider: "anthropic", APIKey: "sk-ant-test", Logger: logger})
		require.NoError(t, err)
		assert.IsType(t, &anthropic.Client{}, client)
		assert.Equal(t, "anthropic", client.Provider())
	})

	t.Run("openai", func(t *testing.T) {
		client, err := NewClient(&Config{Provider: "openai", APIKey: "sk-openai-test", Logger: logger})
		require.NoError(t, err)
		assert.IsType(t, &openai.Client{}, client)
		assert.Equal(t, "openai", client.Provider())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "gemini", APIKey: "key", Logger: logger})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider: gemini")
	})

	t.Run("missing api key", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "anthropic", Logger: logger})
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	logger := zap.NewNop()

	registry, err := NewRegistry([]ProviderConfig{
		{Provider: "openai", APIKey: "sk-openai-test"},
		{Provider: "anthropic", APIKey: "sk-ant-test"},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic", "openai"}, registry.Providers())

	client, err := registry.Lookup("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Provider())

	_, err = registry.Lookup("gemini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no client configured")
}
