package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aescanero/promptlab/pkg/domain"
)

// ErrNotFound is wrapped by storage adapters when a record does not
// exist, so callers can map it to a 404 without string matching.
var ErrNotFound = errors.New("not found")

// LLMClient sends completion requests to a single provider.
type LLMClient interface {
	// Complete executes one completion request. Provider errors are
	// returned as-is, wrapped only with context.
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)

	// Provider returns the provider name this client talks to.
	Provider() string
}

// ClientRegistry resolves provider names to constructed clients.
type ClientRegistry interface {
	// Lookup returns the client for a provider, or an error when the
	// provider is unknown or not configured.
	Lookup(provider string) (LLMClient, error)

	// Providers lists the providers with a configured client.
	Providers() []string
}

// EventHandler processes a single event from the bus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes and subscribes to lifecycle events.
type EventBus interface {
	// Publish sends an event to a topic.
	Publish(ctx context.Context, topic string, event domain.Event) error

	// Subscribe registers a handler for a topic. A topic can have many
	// handlers.
	Subscribe(ctx context.Context, topic string, handler EventHandler) (SubscriptionID, error)

	// Unsubscribe removes a previously registered handler.
	Unsubscribe(ctx context.Context, topic string, id SubscriptionID) error

	// Close releases bus resources and stops deliveries.
	Close() error
}

// SubscriptionID identifies a single subscription on a topic.
type SubscriptionID string

// ExperimentStore persists experiment records.
type ExperimentStore interface {
	SaveExperiment(ctx context.Context, exp *domain.Experiment) error
	GetExperiment(ctx context.Context, id string) (*domain.Experiment, error)

	// ListExperiments returns experiments ordered newest first. A
	// non-positive limit returns all records.
	ListExperiments(ctx context.Context, limit int) ([]*domain.Experiment, error)
	DeleteExperiment(ctx context.Context, id string) error
}

// BatchStore persists batch runs.
type BatchStore interface {
	SaveBatch(ctx context.Context, batch *domain.Batch) error
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
}

// Store combines experiment and batch persistence over one backend.
type Store interface {
	ExperimentStore
	BatchStore
	Close() error
}

// ObjectStore uploads binary objects and returns their public URL.
type ObjectStore interface {
	// Upload writes the stream to the named object with the given
	// content type and returns the object's public URL.
	Upload(ctx context.Context, object, contentType string, r io.Reader) (string, error)
	Close() error
}

// MetricsCollector records operational metrics. Adapters must be safe
// for concurrent use.
type MetricsCollector interface {
	RecordLLMCall(provider, model, status string, duration time.Duration)
	RecordLLMUsage(provider, model string, usage domain.Usage, costUSD float64)
	RecordExperimentSaved(provider string)
	RecordBatchSubmitted(status string)
	RecordBatchTask(status string)
	RecordAvatarUpload(status string, bytes int64)
	ClientConnected()
	ClientDisconnected()
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

// NopMetrics is a MetricsCollector that discards everything. CLI
// commands and tests use it instead of a real registry.
type NopMetrics struct{}

func (NopMetrics) RecordLLMCall(provider, model, status string, duration time.Duration) {}
func (NopMetrics) RecordLLMUsage(provider, model string, usage domain.Usage, c float64) {}
func (NopMetrics) RecordExperimentSaved(provider string)                                {}
func (NopMetrics) RecordBatchSubmitted(status string)                                   {}
func (NopMetrics) RecordBatchTask(status string)                                        {}
func (NopMetrics) RecordAvatarUpload(status string, bytes int64)                        {}
func (NopMetrics) ClientConnected()                                                     {}
func (NopMetrics) ClientDisconnected()                                                  {}
func (NopMetrics) RecordWorkerPoolStatus(idle, busy, stopped int)                       {}
