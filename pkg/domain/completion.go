package domain

import "time"

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Built-in default models per provider, used when no explicit default
// is configured.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultModelFor returns the built-in default model for a provider,
// or empty string for unknown providers.
func DefaultModelFor(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	}
	return ""
}

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one completion call. Provider, Model,
// MaxTokens and Temperature default from configuration when unset.
type CompletionRequest struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Prompt      string    `json:"prompt"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// MessageList returns the message list to forward to the provider.
// Explicit Messages win; otherwise Prompt becomes a single user turn.
// The system prompt travels separately in System.
func (r *CompletionRequest) MessageList() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{{Role: RoleUser, Content: r.Prompt}}
}

// Usage holds token counts reported by the provider.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Add accumulates another usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionResult is the provider response for a single completion.
type CompletionResult struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason,omitempty"`
	Usage      Usage         `json:"usage"`
	Latency    time.Duration `json:"latency"`
}
