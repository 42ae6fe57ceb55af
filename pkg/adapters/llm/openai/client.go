// Package openai implements the LLM client port over the official
// OpenAI SDK.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
)

// Client wraps the OpenAI Chat Completions API.
type Client struct {
	client openai.Client
	logger *zap.Logger
}

// NewClient creates an OpenAI client with the given API key.
func NewClient(apiKey string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is empty")
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}, nil
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return domain.ProviderOpenAI
}

// Complete sends one completion request. SDK errors are returned
// wrapped, never retried or translated.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.MessageList() {
		switch m.Role {
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion returned no choices")
	}

	choice := resp.Choices[0]
	usage := domain.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}

	c.logger.Debug("openai completion finished",
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(choice.FinishReason)),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens))

	return &domain.CompletionResult{
		Text:       choice.Message.Content,
		Model:      resp.Model,
		StopReason: string(choice.FinishReason),
		Usage:      usage,
		Latency:    time.Since(start),
	}, nil
}
