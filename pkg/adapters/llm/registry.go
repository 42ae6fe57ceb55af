package llm

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/ports"
)

// ProviderConfig describes one provider entry for the registry.
type ProviderConfig struct {
	Provider string
	APIKey   string
}

// Registry holds one constructed client per configured provider.
type Registry struct {
	clients map[string]ports.LLMClient
}

// NewRegistry constructs a client for every entry through the factory.
func NewRegistry(providers []ProviderConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{clients: make(map[string]ports.LLMClient)}
	for _, p := range providers {
		client, err := NewClient(&Config{Provider: p.Provider, APIKey: p.APIKey, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", p.Provider, err)
		}
		r.clients[p.Provider] = client
	}
	return r, nil
}

// Lookup returns the client for a provider.
func (r *Registry) Lookup(provider string) (ports.LLMClient, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for LLM provider: %s", provider)
	}
	return client, nil
}

// Providers lists the providers with a constructed client, sorted.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
