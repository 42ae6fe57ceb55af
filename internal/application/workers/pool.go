package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

// TaskRunner executes one batch target. Implemented by the experiment
// service.
type TaskRunner interface {
	ExecuteTask(ctx context.Context, batchID string, target domain.Target) (*domain.Experiment, error)
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size     int
	eventBus ports.EventBus
	runner   TaskRunner
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	health   *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	eventBus ports.EventBus,
	runner TaskRunner,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:     size,
		eventBus: eventBus,
		runner:   runner,
		metrics:  metrics,
		logger:   logger,
		workers:  make([]*worker, size),
		ctx:      ctx,
		cancel:   cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()

	// Cancel context to signal workers to stop
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// Health returns the pool health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	handler := func(ctx context.Context, event domain.Event) error {
		if event.Type != domain.EventBatchTask {
			return nil
		}
		// Handle task asynchronously so the bus reader keeps draining
		go w.handleTask(ctx, event)
		return nil
	}

	subID, err := w.pool.eventBus.Subscribe(ctx, domain.TopicTasks, handler)
	if err != nil {
		w.pool.logger.Error("failed to subscribe to tasks",
			zap.String("worker_id", w.id),
			zap.Error(err))
		return
	}

	<-ctx.Done()
	_ = w.pool.eventBus.Unsubscribe(context.Background(), domain.TopicTasks, subID)

	w.mu.Lock()
	w.status = WorkerStatusStopped
	w.mu.Unlock()
	w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
}

// handleTask executes one batch target from a task event
func (w *worker) handleTask(ctx context.Context, event domain.Event) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.mu.Unlock()
	}()

	target, err := targetFromEvent(event)
	if err != nil {
		w.pool.logger.Error("invalid task event",
			zap.String("worker_id", w.id),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("executing batch task",
		zap.String("worker_id", w.id),
		zap.String("batch_id", event.BatchID),
		zap.String("target", target.String()))

	start := time.Now()
	exp, err := w.pool.runner.ExecuteTask(ctx, event.BatchID, target)
	duration := time.Since(start)

	switch {
	case err != nil:
		w.pool.logger.Error("batch task failed",
			zap.String("worker_id", w.id),
			zap.String("batch_id", event.BatchID),
			zap.String("target", target.String()),
			zap.Duration("duration", duration),
			zap.Error(err))
	case exp == nil:
		// Another worker claimed the task first
		w.pool.logger.Debug("batch task already claimed",
			zap.String("worker_id", w.id),
			zap.String("batch_id", event.BatchID),
			zap.String("target", target.String()))
	default:
		w.pool.logger.Info("batch task completed",
			zap.String("worker_id", w.id),
			zap.String("batch_id", event.BatchID),
			zap.String("experiment_id", exp.ID),
			zap.Duration("duration", duration))
	}
}

// targetFromEvent extracts the provider/model target from task event
// data
func targetFromEvent(event domain.Event) (domain.Target, error) {
	if event.BatchID == "" {
		return domain.Target{}, fmt.Errorf("task event %s has no batch id", event.ID)
	}
	provider, ok := event.Data["provider"].(string)
	if !ok || provider == "" {
		return domain.Target{}, fmt.Errorf("task event %s has no provider", event.ID)
	}
	model, ok := event.Data["model"].(string)
	if !ok || model == "" {
		return domain.Target{}, fmt.Errorf("task event %s has no model", event.ID)
	}
	return domain.Target{Provider: provider, Model: model}, nil
}
