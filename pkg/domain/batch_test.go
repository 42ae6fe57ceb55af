package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Target
		wantErr bool
	}{
		{name: "provider and model", input: "anthropic/claude-sonnet-4", want: Target{Provider: "anthropic", Model: "claude-sonnet-4"}},
		{name: "provider only", input: "openai", want: Target{Provider: "openai"}},
		{name: "surrounding whitespace", input: "  openai/gpt-4o  ", want: Target{Provider: "openai", Model: "gpt-4o"}},
		{name: "empty", input: "", wantErr: true},
		{name: "missing provider", input: "/gpt-4o", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "anthropic/claude-sonnet-4", Target{Provider: "anthropic", Model: "claude-sonnet-4"}.String())
	assert.Equal(t, "openai", Target{Provider: "openai"}.String())
}

func TestBatchDone(t *testing.T) {
	b := &Batch{Results: []BatchResult{
		{Target: Target{Provider: "anthropic"}, Status: BatchStatusCompleted},
		{Target: Target{Provider: "openai"}, Status: BatchStatusRunning},
	}}
	assert.False(t, b.Done())

	b.Results[1].Status = BatchStatusFailed
	assert.True(t, b.Done())
}

func TestBatchAllFailed(t *testing.T) {
	b := &Batch{Results: []BatchResult{
		{Status: BatchStatusFailed},
		{Status: BatchStatusCompleted},
	}}
	assert.False(t, b.AllFailed())

	b.Results[1].Status = BatchStatusFailed
	assert.True(t, b.AllFailed())

	empty := &Batch{}
	assert.False(t, empty.AllFailed())
}

func TestBatchClone(t *testing.T) {
	temp := 0.7
	b := &Batch{
		ID:          "b1",
		Temperature: &temp,
		Results:     []BatchResult{{Target: Target{Provider: "openai"}, Status: BatchStatusPending}},
	}

	cp := b.Clone()
	cp.Results[0].Status = BatchStatusCompleted
	*cp.Temperature = 0.1

	assert.Equal(t, BatchStatusPending, b.Results[0].Status)
	assert.Equal(t, 0.7, *b.Temperature)
}
