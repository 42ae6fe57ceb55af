package domain

import "time"

// Experiment is one recorded prompt run: the request, the response and
// the usage/cost metadata, kept for later comparison.
type Experiment struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id,omitempty"`
	Prompt       string    `json:"prompt"`
	System       string    `json:"system,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Response     string    `json:"response"`
	StopReason   string    `json:"stop_reason,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	TotalTokens  int64     `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	LatencyMS    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenUsage returns the recorded token counts as a Usage value.
func (e *Experiment) TokenUsage() Usage {
	return Usage{
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		TotalTokens:  e.TotalTokens,
	}
}
