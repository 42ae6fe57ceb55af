package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of a batch or of a single
// batch target.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Target identifies one provider/model pair in a comparison batch.
type Target struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// String renders the target as provider/model.
func (t Target) String() string {
	if t.Model == "" {
		return t.Provider
	}
	return t.Provider + "/" + t.Model
}

// ParseTarget parses a provider/model pair. The model part is optional;
// a bare provider uses that provider's default model.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, fmt.Errorf("target is empty")
	}
	provider, model, _ := strings.Cut(s, "/")
	if provider == "" {
		return Target{}, fmt.Errorf("invalid target %q: missing provider", s)
	}
	return Target{Provider: provider, Model: model}, nil
}

// BatchRequest describes a comparison run: one prompt executed against
// a set of provider/model targets.
type BatchRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Targets     []Target `json:"targets"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// BatchResult tracks the outcome of a single target within a batch.
type BatchResult struct {
	Target       Target      `json:"target"`
	Status       BatchStatus `json:"status"`
	ExperimentID string      `json:"experiment_id,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Batch is a comparison run across multiple targets. Each completed
// target links to the experiment it produced.
type Batch struct {
	ID          string        `json:"id"`
	Prompt      string        `json:"prompt"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Status      BatchStatus   `json:"status"`
	Results     []BatchResult `json:"results"`
	Error       string        `json:"error,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// ResultFor returns the result entry for a target, or nil if the target
// is not part of the batch.
func (b *Batch) ResultFor(t Target) *BatchResult {
	for i := range b.Results {
		if b.Results[i].Target == t {
			return &b.Results[i]
		}
	}
	return nil
}

// Done reports whether every target has reached a terminal status.
func (b *Batch) Done() bool {
	for _, r := range b.Results {
		if r.Status != BatchStatusCompleted && r.Status != BatchStatusFailed {
			return false
		}
	}
	return true
}

// Terminal reports whether the batch itself has finished.
func (b *Batch) Terminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// AllFailed reports whether every target failed. A batch with at least
// one successful target still completes.
func (b *Batch) AllFailed() bool {
	for _, r := range b.Results {
		if r.Status != BatchStatusFailed {
			return false
		}
	}
	return len(b.Results) > 0
}

// Clone returns a deep copy, so stored batches are not mutated through
// shared slices or pointers.
func (b *Batch) Clone() *Batch {
	cp := *b
	cp.Results = append([]BatchResult(nil), b.Results...)
	if b.Temperature != nil {
		t := *b.Temperature
		cp.Temperature = &t
	}
	if b.CompletedAt != nil {
		at := *b.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
