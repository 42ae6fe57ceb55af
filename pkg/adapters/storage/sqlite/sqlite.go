// Package sqlite implements ports.Store on a local SQLite database,
// used by the CLI so one-shot runs land in a durable history without a
// server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id            TEXT PRIMARY KEY,
	batch_id      TEXT NOT NULL DEFAULT '',
	prompt        TEXT NOT NULL,
	system        TEXT NOT NULL DEFAULT '',
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	response      TEXT NOT NULL,
	stop_reason   TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens  INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_experiments_created_at ON experiments(created_at);
CREATE INDEX IF NOT EXISTS idx_experiments_batch_id ON experiments(batch_id);

CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	submitted_at TEXT NOT NULL
);
`

// Store implements ports.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the database at path and runs
// the schema migration.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite returns SQLITE_BUSY under concurrent writers;
	// a single connection serializes access instead
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveExperiment persists an experiment record (ports.ExperimentStore interface)
func (s *Store) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO experiments
		(id, batch_id, prompt, system, provider, model, response, stop_reason,
		 input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.BatchID, exp.Prompt, exp.System, exp.Provider, exp.Model,
		exp.Response, exp.StopReason, exp.InputTokens, exp.OutputTokens,
		exp.TotalTokens, exp.CostUSD, exp.LatencyMS,
		exp.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save experiment: %w", err)
	}
	return nil
}

// GetExperiment retrieves an experiment by ID (ports.ExperimentStore interface)
func (s *Store) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, batch_id, prompt, system, provider, model, response, stop_reason,
		       input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, created_at
		FROM experiments WHERE id = ?`, id)

	exp, err := scanExperiment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("experiment %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return exp, nil
}

// ListExperiments returns experiments newest first (ports.ExperimentStore interface)
func (s *Store) ListExperiments(ctx context.Context, limit int) ([]*domain.Experiment, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, prompt, system, provider, model, response, stop_reason,
		       input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, created_at
		FROM experiments ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var exps []*domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		exps = append(exps, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	return exps, nil
}

// DeleteExperiment removes an experiment (ports.ExperimentStore interface)
func (s *Store) DeleteExperiment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("experiment %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

// SaveBatch persists a batch as a JSON document (ports.BatchStore interface)
func (s *Store) SaveBatch(ctx context.Context, batch *domain.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO batches (id, data, submitted_at) VALUES (?, ?, ?)`,
		batch.ID, string(data), batch.SubmittedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by ID (ports.BatchStore interface)
func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM batches WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("batch %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	var batch domain.Batch
	if err := json.Unmarshal([]byte(data), &batch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	return &batch, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row scanner) (*domain.Experiment, error) {
	var exp domain.Experiment
	var createdAt string

	err := row.Scan(&exp.ID, &exp.BatchID, &exp.Prompt, &exp.System, &exp.Provider,
		&exp.Model, &exp.Response, &exp.StopReason, &exp.InputTokens,
		&exp.OutputTokens, &exp.TotalTokens, &exp.CostUSD, &exp.LatencyMS, &createdAt)
	if err != nil {
		return nil, err
	}

	exp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	return &exp, nil
}
