package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

// Store implements ports.Store using in-memory maps. Records are
// copied on the way in and out so callers cannot mutate stored data.
type Store struct {
	experiments map[string]*domain.Experiment
	batches     map[string]*domain.Batch
	mu          sync.RWMutex
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		experiments: make(map[string]*domain.Experiment),
		batches:     make(map[string]*domain.Batch),
	}
}

// SaveExperiment persists an experiment record (ports.ExperimentStore interface)
func (s *Store) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *exp
	s.experiments[exp.ID] = &cp
	return nil
}

// GetExperiment retrieves an experiment by ID (ports.ExperimentStore interface)
func (s *Store) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[id]
	if !ok {
		return nil, fmt.Errorf("experiment %s: %w", id, ports.ErrNotFound)
	}

	cp := *exp
	return &cp, nil
}

// ListExperiments returns experiments newest first (ports.ExperimentStore interface)
func (s *Store) ListExperiments(ctx context.Context, limit int) ([]*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exps := make([]*domain.Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		cp := *exp
		exps = append(exps, &cp)
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
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.experiments[id]; !ok {
		return fmt.Errorf("experiment %s: %w", id, ports.ErrNotFound)
	}

	delete(s.experiments, id)
	return nil
}

// SaveBatch persists a batch (ports.BatchStore interface)
func (s *Store) SaveBatch(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[batch.ID] = batch.Clone()
	return nil
}

// GetBatch retrieves a batch by ID (ports.BatchStore interface)
func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", id, ports.ErrNotFound)
	}

	return batch.Clone(), nil
}

// Close releases nothing for the in-memory store
func (s *Store) Close() error {
	return nil
}
