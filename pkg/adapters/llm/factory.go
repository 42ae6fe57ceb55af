package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/adapters/llm/anthropic"
	"github.com/aescanero/promptlab/pkg/adapters/llm/openai"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

// Config holds LLM client configuration
type Config struct {
	Provider string
	APIKey   string
	Logger   *zap.Logger
}

// NewClient creates a new LLM client based on provider. The mapping
// from provider name to SDK client is static.
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case domain.ProviderAnthropic:
		return anthropic.NewClient(cfg.APIKey, cfg.Logger)
	case domain.ProviderOpenAI:
		return openai.NewClient(cfg.APIKey, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
