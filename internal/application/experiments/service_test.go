package experiments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventsmem "github.com/aescanero/promptlab/pkg/adapters/events/memory"
	storagemem "github.com/aescanero/promptlab/pkg/adapters/storage/memory"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

type fakeClient struct {
	provider string
	result   *domain.CompletionResult
	err      error

	mu    sync.Mutex
	calls []domain.CompletionRequest
}

func (c *fakeClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *fakeClient) Provider() string { return c.provider }

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeRegistry struct {
	clients map[string]ports.LLMClient
}

func (r *fakeRegistry) Lookup(provider string) (ports.LLMClient, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no client configured for LLM provider: %s", provider)
	}
	return client, nil
}

func (r *fakeRegistry) Providers() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func anthropicResult() *domain.CompletionResult {
	return &domain.CompletionResult{
		Text:       "Hello there",
		Model:      "claude-sonnet-4-20250514",
		StopReason: "end_turn",
		Usage:      domain.Usage{InputTokens: 1000, OutputTokens: 500, TotalTokens: 1500},
		Latency:    120 * time.Millisecond,
	}
}

func newTestService(t *testing.T, clients map[string]ports.LLMClient) (*Service, ports.Store) {
	t.Helper()

	store := storagemem.NewStore()
	bus := eventsmem.NewBus()
	t.Cleanup(func() { bus.Close() })

	providers := make([]string, 0, len(clients))
	for name := range clients {
		providers = append(providers, name)
	}

	svc := NewService(
		&fakeRegistry{clients: clients},
		store,
		bus,
		ports.NopMetrics{},
		NewValidator(providers),
		zap.NewNop(),
		Defaults{
			Provider:    domain.ProviderAnthropic,
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		time.Minute,
		time.Minute,
	)
	return svc, store
}

func TestRunSavesExperiment(t *testing.T) {
	client := &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()}
	svc, store := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: client,
	})

	exp, err := svc.Run(context.Background(), domain.CompletionRequest{Prompt: "Say hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, domain.ProviderAnthropic, exp.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", exp.Model)
	assert.Equal(t, "Hello there", exp.Response)
	assert.Equal(t, "end_turn", exp.StopReason)
	assert.Equal(t, int64(1500), exp.TotalTokens)
	assert.InDelta(t, 0.0105, exp.CostUSD, 1e-9)
	assert.Equal(t, int64(120), exp.LatencyMS)
	assert.Empty(t, exp.BatchID)

	// Defaults were resolved before the provider call
	require.Equal(t, 1, client.callCount())
	sent := client.calls[0]
	assert.Equal(t, "claude-sonnet-4-20250514", sent.Model)
	assert.Equal(t, 1024, sent.MaxTokens)
	require.NotNil(t, sent.Temperature)
	assert.InDelta(t, 0.7, *sent.Temperature, 1e-9)

	saved, err := store.GetExperiment(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.Response, saved.Response)
}

func TestRunValidationError(t *testing.T) {
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
	})

	_, err := svc.Run(context.Background(), domain.CompletionRequest{Prompt: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "prompt is required")
}

func TestRunProviderErrorPassesThrough(t *testing.T) {
	providerErr := errors.New("anthropic completion failed: 529 overloaded")
	svc, store := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, err: providerErr},
	})

	_, err := svc.Run(context.Background(), domain.CompletionRequest{Prompt: "Say hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, providerErr)
	assert.NotErrorIs(t, err, ErrInvalidRequest)

	// Nothing persisted on provider failure
	exps, err := store.ListExperiments(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, exps)
}

func TestRunModelFallback(t *testing.T) {
	result := anthropicResult()
	result.Model = ""
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: result},
	})

	exp, err := svc.Run(context.Background(), domain.CompletionRequest{
		Prompt: "Say hello",
		Model:  "claude-3-5-haiku-20241022",
	})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-20241022", exp.Model)
}

func TestSubmitBatchAndExecute(t *testing.T) {
	openaiResult := &domain.CompletionResult{
		Text:    "Hi from gpt",
		Model:   "gpt-4o",
		Usage:   domain.Usage{InputTokens: 900, OutputTokens: 300, TotalTokens: 1200},
		Latency: 80 * time.Millisecond,
	}
	svc, store := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
		domain.ProviderOpenAI:    &fakeClient{provider: domain.ProviderOpenAI, result: openaiResult},
	})

	ctx := context.Background()
	targets := []domain.Target{
		{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-20250514"},
		{Provider: domain.ProviderOpenAI, Model: "gpt-4o"},
	}

	batch, err := svc.SubmitBatch(ctx, domain.BatchRequest{Prompt: "Compare me", Targets: targets})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusPending, batch.Status)
	require.Len(t, batch.Results, 2)

	for _, target := range targets {
		exp, err := svc.ExecuteTask(ctx, batch.ID, target)
		require.NoError(t, err)
		require.NotNil(t, exp)
		assert.Equal(t, batch.ID, exp.BatchID)
	}

	done, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	for _, r := range done.Results {
		assert.Equal(t, domain.BatchStatusCompleted, r.Status)
		assert.NotEmpty(t, r.ExperimentID)
	}

	_, exps, err := svc.BatchExperiments(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, exps, 2)
}

func TestExecuteTaskSkipsDuplicateDelivery(t *testing.T) {
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
	})

	ctx := context.Background()
	target := domain.Target{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-20250514"}

	batch, err := svc.SubmitBatch(ctx, domain.BatchRequest{Prompt: "Compare me", Targets: []domain.Target{target}})
	require.NoError(t, err)

	exp, err := svc.ExecuteTask(ctx, batch.ID, target)
	require.NoError(t, err)
	require.NotNil(t, exp)

	// Second delivery of the same task is a no-op
	exp, err = svc.ExecuteTask(ctx, batch.ID, target)
	assert.NoError(t, err)
	assert.Nil(t, exp)
}

func TestExecuteTaskUnknownTarget(t *testing.T) {
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
	})

	ctx := context.Background()
	target := domain.Target{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-20250514"}

	batch, err := svc.SubmitBatch(ctx, domain.BatchRequest{Prompt: "Compare me", Targets: []domain.Target{target}})
	require.NoError(t, err)

	_, err = svc.ExecuteTask(ctx, batch.ID, domain.Target{Provider: domain.ProviderAnthropic, Model: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not part of batch")
}

func TestBatchAllTargetsFailed(t *testing.T) {
	svc, store := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, err: errors.New("boom")},
	})

	ctx := context.Background()
	target := domain.Target{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-20250514"}

	batch, err := svc.SubmitBatch(ctx, domain.BatchRequest{Prompt: "Compare me", Targets: []domain.Target{target}})
	require.NoError(t, err)

	_, err = svc.ExecuteTask(ctx, batch.ID, target)
	require.Error(t, err)

	failed, err := store.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusFailed, failed.Status)
	assert.Equal(t, "all targets failed", failed.Error)
	require.Len(t, failed.Results, 1)
	assert.Equal(t, domain.BatchStatusFailed, failed.Results[0].Status)
	assert.Contains(t, failed.Results[0].Error, "boom")
}

func TestSubmitBatchValidationError(t *testing.T) {
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
	})

	_, err := svc.SubmitBatch(context.Background(), domain.BatchRequest{Prompt: "Compare me"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "at least one target is required")
}

func TestWaitBatch(t *testing.T) {
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
	})

	ctx := context.Background()
	target := domain.Target{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-20250514"}

	batch, err := svc.SubmitBatch(ctx, domain.BatchRequest{Prompt: "Compare me", Targets: []domain.Target{target}})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = svc.ExecuteTask(context.Background(), batch.ID, target)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	done, err := svc.WaitBatch(waitCtx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, done.Status)
}

func TestProviders(t *testing.T) {
	svc, _ := newTestService(t, map[string]ports.LLMClient{
		domain.ProviderAnthropic: &fakeClient{provider: domain.ProviderAnthropic, result: anthropicResult()},
		domain.ProviderOpenAI:    &fakeClient{provider: domain.ProviderOpenAI, result: anthropicResult()},
	})

	infos := svc.Providers()
	require.Len(t, infos, 2)
	assert.Equal(t, domain.ProviderAnthropic, infos[0].Name)
	assert.Equal(t, domain.DefaultAnthropicModel, infos[0].DefaultModel)
	assert.NotEmpty(t, infos[0].Models)
	assert.Equal(t, domain.ProviderOpenAI, infos[1].Name)
	assert.Equal(t, domain.DefaultOpenAIModel, infos[1].DefaultModel)
}
