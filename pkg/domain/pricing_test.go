package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingFor(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		wantID string
		found  bool
	}{
		{name: "dated anthropic model", model: "claude-sonnet-4-20250514", wantID: "claude-sonnet-4", found: true},
		{name: "exact openai model", model: "gpt-4o", wantID: "gpt-4o", found: true},
		{name: "longest prefix wins", model: "gpt-4o-mini-2024-07-18", wantID: "gpt-4o-mini", found: true},
		{name: "gpt-4.1 mini not matched by gpt-4.1", model: "gpt-4.1-mini", wantID: "gpt-4.1-mini", found: true},
		{name: "unknown model", model: "llama-3-70b", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := PricingFor(tt.model)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantID, p.ID)
			}
		})
	}
}

func TestCalculateCost(t *testing.T) {
	p, ok := PricingFor("claude-sonnet-4-20250514")
	assert.True(t, ok)

	cost := p.CalculateCost(Usage{InputTokens: 1000, OutputTokens: 500})
	assert.InDelta(t, 0.0105, cost, 1e-9)
}

func TestCostForUnknownModel(t *testing.T) {
	cost := CostFor("llama-3-70b", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	assert.Zero(t, cost)
}
