package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

// Store implements ports.Store using Redis. Experiments and batches
// are stored as JSON values under promptlab-prefixed keys.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStore creates a new Redis store. A zero TTL keeps records
// forever. The client is shared with other adapters and closed by its
// owner, not by the store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveExperiment persists an experiment record (ports.ExperimentStore interface)
func (s *Store) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	key := experimentKey(exp.ID)

	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("failed to marshal experiment: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save experiment: %w", err)
	}

	s.logger.Debug("experiment saved",
		zap.String("experiment_id", exp.ID),
		zap.String("provider", exp.Provider))

	return nil
}

// GetExperiment retrieves an experiment by ID (ports.ExperimentStore interface)
func (s *Store) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	data, err := s.client.Get(ctx, experimentKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("experiment %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	var exp domain.Experiment
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal experiment: %w", err)
	}

	return &exp, nil
}

// ListExperiments returns experiments newest first (ports.ExperimentStore interface)
func (s *Store) ListExperiments(ctx context.Context, limit int) ([]*domain.Experiment, error) {
	keys, err := s.scanKeys(ctx, "promptlab:experiments:*")
	if err != nil {
		return nil, err
	}

	exps := make([]*domain.Experiment, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// Key may have expired between SCAN and GET
			continue
		}

		var exp domain.Experiment
		if err := json.Unmarshal(data, &exp); err != nil {
			continue
		}

		exps = append(exps, &exp)
	}

	sort.Slice(exps, func(i, j int) bool {
		return exps[i].CreatedAt.After(exps[j].CreatedAt)
	})

	if limit > 0 && len(exps) > limit {
		exps = exps[:limit]
	}
	return exps, nil
}

// DeleteExperiment removes an experiment (ports.ExperimentStore interface)
func (s *Store) DeleteExperiment(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, experimentKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("experiment %s: %w", id, ports.ErrNotFound)
	}

	s.logger.Debug("experiment deleted",
		zap.String("experiment_id", id))

	return nil
}

// SaveBatch persists a batch (ports.BatchStore interface)
func (s *Store) SaveBatch(ctx context.Context, batch *domain.Batch) error {
	key := batchKey(batch.ID)

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}

	return nil
}

// GetBatch retrieves a batch by ID (ports.BatchStore interface)
func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	data, err := s.client.Get(ctx, batchKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("batch %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	var batch domain.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}

	return &batch, nil
}

// Close is a no-op; the shared Redis client is closed by its owner
func (s *Store) Close() error {
	return nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// experimentKey returns the Redis key for an experiment record
func experimentKey(id string) string {
	return fmt.Sprintf("promptlab:experiments:%s", id)
}

// batchKey returns the Redis key for a batch
func batchKey(id string) string {
	return fmt.Sprintf("promptlab:batches:%s", id)
}
