// Package anthropic implements the LLM client port over the official
// Anthropic SDK.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
)

// Client wraps the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	logger *zap.Logger
}

// NewClient creates an Anthropic client with the given API key.
func NewClient(apiKey string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is empty")
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}, nil
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return domain.ProviderAnthropic
}

// Complete sends one completion request. SDK errors are returned
// wrapped, never retried or translated.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	for _, m := range req.MessageList() {
		switch m.Role {
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := domain.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}

	c.logger.Debug("anthropic completion finished",
		zap.String("model", string(msg.Model)),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens))

	return &domain.CompletionResult{
		Text:       text.String(),
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage:      usage,
		Latency:    time.Since(start),
	}, nil
}
