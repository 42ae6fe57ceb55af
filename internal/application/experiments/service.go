package experiments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

// ErrInvalidRequest marks validation failures so transports can map
// them to a 400 instead of a 500.
var ErrInvalidRequest = errors.New("invalid request")

// Defaults supplies provider, model and sampling values for requests
// that leave them empty.
type Defaults struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Service coordinates experiment execution
type Service struct {
	registry  ports.ClientRegistry
	store     ports.Store
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	// Track active batches
	batches sync.Map // map[string]*batchContext

	// Configuration
	defaults       Defaults
	requestTimeout time.Duration
	batchTimeout   time.Duration
}

// batchContext holds live state for a single batch run. Its mutex
// serializes result updates from concurrent workers in this process.
type batchContext struct {
	batchID    string
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewService creates a new experiment service
func NewService(
	registry ports.ClientRegistry,
	store ports.Store,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	defaults Defaults,
	requestTimeout, batchTimeout time.Duration,
) *Service {
	return &Service{
		registry:       registry,
		store:          store,
		eventBus:       eventBus,
		metrics:        metrics,
		validator:      validator,
		logger:         logger,
		defaults:       defaults,
		requestTimeout: requestTimeout,
		batchTimeout:   batchTimeout,
	}
}

// Run executes one completion and saves the resulting experiment.
// Provider errors pass through to the caller unmodified apart from
// wrapping; nothing is retried.
func (s *Service) Run(ctx context.Context, req domain.CompletionRequest) (*domain.Experiment, error) {
	return s.run(ctx, req, "")
}

func (s *Service) run(ctx context.Context, req domain.CompletionRequest, batchID string) (*domain.Experiment, error) {
	s.resolve(&req)

	if err := s.validator.ValidateRequest(&req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	client, err := s.registry.Lookup(req.Provider)
	if err != nil {
		return nil, err
	}

	experimentID := uuid.New().String()
	s.publishEvent(ctx, domain.TopicExperiments, domain.Event{
		ID:           uuid.New().String(),
		Type:         domain.EventExperimentStarted,
		ExperimentID: experimentID,
		BatchID:      batchID,
		Timestamp:    time.Now().UTC(),
		Data: map[string]any{
			"provider": req.Provider,
			"model":    req.Model,
		},
	})

	callCtx := ctx
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := client.Complete(callCtx, req)
	if err != nil {
		s.metrics.RecordLLMCall(req.Provider, req.Model, "error", time.Since(start))
		s.publishEvent(ctx, domain.TopicExperiments, domain.Event{
			ID:           uuid.New().String(),
			Type:         domain.EventExperimentFailed,
			ExperimentID: experimentID,
			BatchID:      batchID,
			Timestamp:    time.Now().UTC(),
			Data: map[string]any{
				"provider": req.Provider,
				"model":    req.Model,
				"error":    err.Error(),
			},
		})
		return nil, err
	}
	s.metrics.RecordLLMCall(req.Provider, req.Model, "success", result.Latency)

	model := result.Model
	if model == "" {
		model = req.Model
	}

	cost := domain.CostFor(model, result.Usage)
	s.metrics.RecordLLMUsage(req.Provider, model, result.Usage, cost)

	exp := &domain.Experiment{
		ID:           experimentID,
		BatchID:      batchID,
		Prompt:       req.Prompt,
		System:       req.System,
		Provider:     req.Provider,
		Model:        model,
		Response:     result.Text,
		StopReason:   result.StopReason,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		TotalTokens:  result.Usage.TotalTokens,
		CostUSD:      cost,
		LatencyMS:    result.Latency.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.SaveExperiment(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to save experiment: %w", err)
	}
	s.metrics.RecordExperimentSaved(exp.Provider)

	s.publishEvent(ctx, domain.TopicExperiments, domain.Event{
		ID:           uuid.New().String(),
		Type:         domain.EventExperimentCompleted,
		ExperimentID: exp.ID,
		BatchID:      batchID,
		Timestamp:    time.Now().UTC(),
		Data: map[string]any{
			"provider": exp.Provider,
			"model":    exp.Model,
			"cost_usd": exp.CostUSD,
		},
	})

	s.logger.Info("experiment saved",
		zap.String("experiment_id", exp.ID),
		zap.String("provider", exp.Provider),
		zap.String("model", exp.Model),
		zap.Int64("total_tokens", exp.TotalTokens),
		zap.Float64("cost_usd", exp.CostUSD))

	return exp, nil
}

// GetExperiment returns one experiment by ID
func (s *Service) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	return s.store.GetExperiment(ctx, id)
}

// ListExperiments returns experiments newest first; a non-positive
// limit returns all
func (s *Service) ListExperiments(ctx context.Context, limit int) ([]*domain.Experiment, error) {
	return s.store.ListExperiments(ctx, limit)
}

// DeleteExperiment removes an experiment
func (s *Service) DeleteExperiment(ctx context.Context, id string) error {
	return s.store.DeleteExperiment(ctx, id)
}

// SubmitBatch validates and submits a comparison batch. One task per
// target is published on the task topic; workers execute them
// asynchronously and the returned batch is still pending.
func (s *Service) SubmitBatch(ctx context.Context, req domain.BatchRequest) (*domain.Batch, error) {
	s.resolveBatch(&req)

	if err := s.validator.ValidateBatch(&req); err != nil {
		s.metrics.RecordBatchSubmitted("invalid")
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	batch := &domain.Batch{
		ID:          uuid.New().String(),
		Prompt:      req.Prompt,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Status:      domain.BatchStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	for _, t := range req.Targets {
		batch.Results = append(batch.Results, domain.BatchResult{
			Target: t,
			Status: domain.BatchStatusPending,
		})
	}

	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}

	// Track the batch before the first task can finish
	runCtx, cancel := context.WithTimeout(context.Background(), s.batchTimeout)
	s.batches.Store(batch.ID, &batchContext{batchID: batch.ID, cancelFunc: cancel})

	for _, t := range req.Targets {
		task := domain.Event{
			ID:        uuid.New().String(),
			Type:      domain.EventBatchTask,
			BatchID:   batch.ID,
			Timestamp: time.Now().UTC(),
			Data: map[string]any{
				"provider": t.Provider,
				"model":    t.Model,
			},
		}
		if err := s.eventBus.Publish(ctx, domain.TopicTasks, task); err != nil {
			cancel()
			s.batches.Delete(batch.ID)
			s.metrics.RecordBatchSubmitted("error")
			return nil, fmt.Errorf("failed to publish task: %w", err)
		}
	}

	s.publishEvent(ctx, domain.TopicExperiments, domain.Event{
		ID:        uuid.New().String(),
		Type:      domain.EventBatchSubmitted,
		BatchID:   batch.ID,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"targets": len(batch.Results),
		},
	})

	s.metrics.RecordBatchSubmitted("submitted")
	s.logger.Info("batch submitted",
		zap.String("batch_id", batch.ID),
		zap.Int("targets", len(batch.Results)))

	go s.monitorBatch(runCtx, batch.ID)

	return batch, nil
}

// GetBatch returns one batch by ID
func (s *Service) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	return s.store.GetBatch(ctx, id)
}

// BatchExperiments returns a batch together with the experiments its
// completed targets produced.
func (s *Service) BatchExperiments(ctx context.Context, batchID string) (*domain.Batch, []*domain.Experiment, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}

	var exps []*domain.Experiment
	for _, r := range batch.Results {
		if r.ExperimentID == "" {
			continue
		}
		exp, err := s.store.GetExperiment(ctx, r.ExperimentID)
		if err != nil {
			s.logger.Warn("experiment missing for batch result",
				zap.String("batch_id", batchID),
				zap.String("experiment_id", r.ExperimentID),
				zap.Error(err))
			continue
		}
		exps = append(exps, exp)
	}

	return batch, exps, nil
}

// ExecuteTask runs one batch target. Duplicate deliveries are skipped:
// only the caller that flips the result from pending to running
// executes the completion. A nil experiment with nil error means the
// task was already claimed.
func (s *Service) ExecuteTask(ctx context.Context, batchID string, target domain.Target) (*domain.Experiment, error) {
	bctx := s.batchContext(batchID)

	bctx.mu.Lock()
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		bctx.mu.Unlock()
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}

	result := batch.ResultFor(target)
	if result == nil {
		bctx.mu.Unlock()
		return nil, fmt.Errorf("target %s is not part of batch %s", target, batchID)
	}
	if result.Status != domain.BatchStatusPending {
		// Duplicate delivery
		bctx.mu.Unlock()
		return nil, nil
	}

	result.Status = domain.BatchStatusRunning
	if batch.Status == domain.BatchStatusPending {
		batch.Status = domain.BatchStatusRunning
	}
	if err := s.store.SaveBatch(ctx, batch); err != nil {
		bctx.mu.Unlock()
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}
	bctx.mu.Unlock()

	req := domain.CompletionRequest{
		Provider:    target.Provider,
		Model:       target.Model,
		Prompt:      batch.Prompt,
		System:      batch.System,
		MaxTokens:   batch.MaxTokens,
		Temperature: batch.Temperature,
	}

	exp, runErr := s.run(ctx, req, batchID)

	bctx.mu.Lock()
	defer bctx.mu.Unlock()

	// Reload: other targets may have finished meanwhile
	batch, err = s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	result = batch.ResultFor(target)
	if result == nil {
		return nil, fmt.Errorf("target %s is not part of batch %s", target, batchID)
	}

	if runErr != nil {
		result.Status = domain.BatchStatusFailed
		result.Error = runErr.Error()
		s.metrics.RecordBatchTask("failed")
	} else {
		result.Status = domain.BatchStatusCompleted
		result.ExperimentID = exp.ID
		s.metrics.RecordBatchTask("completed")
	}

	if batch.Done() {
		now := time.Now().UTC()
		batch.CompletedAt = &now
		if batch.AllFailed() {
			batch.Status = domain.BatchStatusFailed
			batch.Error = "all targets failed"
		} else {
			batch.Status = domain.BatchStatusCompleted
		}
	}

	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}

	if batch.Terminal() {
		s.finishBatch(ctx, batch)
	}

	return exp, runErr
}

// WaitBatch blocks until the batch reaches a terminal state or ctx is
// cancelled.
func (s *Service) WaitBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		batch, err := s.store.GetBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if batch.Terminal() {
			return batch, nil
		}

		select {
		case <-ctx.Done():
			return batch, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Providers lists configured providers with their default model and
// known pricing.
func (s *Service) Providers() []ProviderInfo {
	var infos []ProviderInfo
	for _, name := range s.registry.Providers() {
		info := ProviderInfo{
			Name:         name,
			DefaultModel: s.defaultModelFor(name),
		}
		for _, p := range domain.AllPricing() {
			if p.Provider == name {
				info.Models = append(info.Models, p)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// ProviderInfo describes one configured provider
type ProviderInfo struct {
	Name         string                `json:"name"`
	DefaultModel string                `json:"default_model"`
	Models       []domain.ModelPricing `json:"models,omitempty"`
}

// Shutdown cancels all active batch monitors
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down experiment service")

	s.batches.Range(func(key, value interface{}) bool {
		bctx := value.(*batchContext)
		if bctx.cancelFunc != nil {
			bctx.cancelFunc()
		}
		return true
	})

	return nil
}

// resolve fills provider, model and sampling defaults into a request
func (s *Service) resolve(req *domain.CompletionRequest) {
	if req.Provider == "" {
		req.Provider = s.defaults.Provider
	}
	if req.Model == "" {
		req.Model = s.defaultModelFor(req.Provider)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.defaults.MaxTokens
	}
	if req.Temperature == nil {
		t := s.defaults.Temperature
		req.Temperature = &t
	}
}

// resolveBatch fills target models and sampling defaults so the stored
// batch carries concrete values for the workers.
func (s *Service) resolveBatch(req *domain.BatchRequest) {
	for i := range req.Targets {
		if req.Targets[i].Model == "" {
			req.Targets[i].Model = s.defaultModelFor(req.Targets[i].Provider)
		}
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.defaults.MaxTokens
	}
	if req.Temperature == nil {
		t := s.defaults.Temperature
		req.Temperature = &t
	}
}

// defaultModelFor returns the configured default model when it applies
// to the provider, or the provider's built-in default otherwise. The
// configured model belongs to the configured default provider, so it
// is never applied across providers.
func (s *Service) defaultModelFor(provider string) string {
	if s.defaults.Model != "" && provider == s.defaults.Provider {
		return s.defaults.Model
	}
	return domain.DefaultModelFor(provider)
}

// batchContext returns the live context for a batch, creating a bare
// one when the batch was submitted by another process.
func (s *Service) batchContext(batchID string) *batchContext {
	if val, ok := s.batches.Load(batchID); ok {
		return val.(*batchContext)
	}
	val, _ := s.batches.LoadOrStore(batchID, &batchContext{batchID: batchID})
	return val.(*batchContext)
}

// finishBatch publishes the terminal event and releases tracking
func (s *Service) finishBatch(ctx context.Context, batch *domain.Batch) {
	eventType := domain.EventBatchCompleted
	if batch.Status == domain.BatchStatusFailed {
		eventType = domain.EventBatchFailed
	}

	s.publishEvent(ctx, domain.TopicExperiments, domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		BatchID:   batch.ID,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"status": string(batch.Status),
		},
	})

	if val, ok := s.batches.LoadAndDelete(batch.ID); ok {
		if bctx := val.(*batchContext); bctx.cancelFunc != nil {
			bctx.cancelFunc()
		}
	}

	s.logger.Info("batch finished",
		zap.String("batch_id", batch.ID),
		zap.String("status", string(batch.Status)))
}

// monitorBatch watches a batch until it finishes or times out
func (s *Service) monitorBatch(ctx context.Context, batchID string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				s.handleBatchTimeout(batchID)
			}
			return

		case <-ticker.C:
			batch, err := s.store.GetBatch(context.Background(), batchID)
			if err != nil {
				s.logger.Error("failed to get batch during monitoring",
					zap.String("batch_id", batchID),
					zap.Error(err))
				continue
			}

			if batch.Terminal() {
				return
			}
		}
	}
}

// handleBatchTimeout marks an expired batch and its unfinished targets
// failed
func (s *Service) handleBatchTimeout(batchID string) {
	s.logger.Warn("batch timed out",
		zap.String("batch_id", batchID))

	ctx := context.Background()
	bctx := s.batchContext(batchID)

	bctx.mu.Lock()
	defer bctx.mu.Unlock()

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		s.logger.Error("failed to get batch during timeout",
			zap.String("batch_id", batchID),
			zap.Error(err))
		s.batches.Delete(batchID)
		return
	}
	if batch.Terminal() {
		s.batches.Delete(batchID)
		return
	}

	now := time.Now().UTC()
	batch.Status = domain.BatchStatusFailed
	batch.Error = "batch timeout"
	batch.CompletedAt = &now
	for i := range batch.Results {
		if batch.Results[i].Status == domain.BatchStatusPending ||
			batch.Results[i].Status == domain.BatchStatusRunning {
			batch.Results[i].Status = domain.BatchStatusFailed
			batch.Results[i].Error = "batch timeout"
		}
	}

	if err := s.store.SaveBatch(ctx, batch); err != nil {
		s.logger.Error("failed to save batch during timeout",
			zap.String("batch_id", batchID),
			zap.Error(err))
	}

	s.finishBatch(ctx, batch)
}

// publishEvent publishes a lifecycle event, logging failures instead
// of surfacing them
func (s *Service) publishEvent(ctx context.Context, topic string, event domain.Event) {
	if err := s.eventBus.Publish(ctx, topic, event); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
