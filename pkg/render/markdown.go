// Package render builds markdown views of experiments and batches,
// served by the report endpoints and rendered in the terminal by the
// CLI.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/promptlab/pkg/domain"
)

// ExperimentMarkdown renders one experiment: the response body
// followed by a metadata table.
func ExperimentMarkdown(exp *domain.Experiment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Experiment %s\n\n", shortID(exp.ID))

	fmt.Fprintf(&b, "**Prompt:** %s\n\n", exp.Prompt)
	if exp.System != "" {
		fmt.Fprintf(&b, "**System:** %s\n\n", exp.System)
	}

	b.WriteString("## Response\n\n")
	b.WriteString(exp.Response)
	b.WriteString("\n\n## Metadata\n\n")

	b.WriteString("| Field | Value |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| ID | %s |\n", exp.ID)
	fmt.Fprintf(&b, "| Provider | %s |\n", exp.Provider)
	fmt.Fprintf(&b, "| Model | %s |\n", exp.Model)
	fmt.Fprintf(&b, "| Tokens | %d in / %d out / %d total |\n", exp.InputTokens, exp.OutputTokens, exp.TotalTokens)
	fmt.Fprintf(&b, "| Cost | %s |\n", FormatCost(exp.CostUSD))
	fmt.Fprintf(&b, "| Latency | %s |\n", FormatLatency(exp.LatencyMS))
	if exp.StopReason != "" {
		fmt.Fprintf(&b, "| Stop reason | %s |\n", exp.StopReason)
	}
	if exp.BatchID != "" {
		fmt.Fprintf(&b, "| Batch | %s |\n", exp.BatchID)
	}
	fmt.Fprintf(&b, "| Created | %s |\n", exp.CreatedAt.UTC().Format(time.RFC3339))

	return b.String()
}

// BatchMarkdown renders a comparison batch: a per-target summary table
// followed by each target's response. Experiments are matched to
// targets by ID.
func BatchMarkdown(batch *domain.Batch, experiments []*domain.Experiment) string {
	byID := make(map[string]*domain.Experiment, len(experiments))
	for _, exp := range experiments {
		byID[exp.ID] = exp
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# Comparison %s\n\n", shortID(batch.ID))
	fmt.Fprintf(&b, "**Prompt:** %s\n\n", batch.Prompt)
	if batch.System != "" {
		fmt.Fprintf(&b, "**System:** %s\n\n", batch.System)
	}
	fmt.Fprintf(&b, "Status: %s\n\n", batch.Status)

	b.WriteString("| Target | Status | Tokens | Cost | Latency |\n| --- | --- | --- | --- | --- |\n")
	for _, r := range batch.Results {
		if exp, ok := byID[r.ExperimentID]; ok {
			fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n",
				r.Target, r.Status, exp.TotalTokens, FormatCost(exp.CostUSD), FormatLatency(exp.LatencyMS))
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | - | - | - |\n", r.Target, r.Status)
	}

	for _, r := range batch.Results {
		fmt.Fprintf(&b, "\n## %s\n\n", r.Target)
		switch {
		case r.Error != "":
			fmt.Fprintf(&b, "_failed: %s_\n", r.Error)
		default:
			if exp, ok := byID[r.ExperimentID]; ok {
				b.WriteString(exp.Response)
				b.WriteString("\n")
			} else {
				fmt.Fprintf(&b, "_%s_\n", r.Status)
			}
		}
	}

	return b.String()
}

// HistoryMarkdown renders a table of experiments, newest first.
func HistoryMarkdown(experiments []*domain.Experiment) string {
	var b strings.Builder

	b.WriteString("# Experiments\n\n")
	if len(experiments) == 0 {
		b.WriteString("_no experiments recorded_\n")
		return b.String()
	}

	b.WriteString("| ID | Provider | Model | Prompt | Tokens | Cost | Created |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
	for _, exp := range experiments {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s | %s |\n",
			shortID(exp.ID), exp.Provider, exp.Model, truncate(exp.Prompt, 60),
			exp.TotalTokens, FormatCost(exp.CostUSD),
			exp.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}

	return b.String()
}

// FormatCost renders a USD amount with enough precision for sub-cent
// LLM pricing.
func FormatCost(v float64) string {
	if v == 0 {
		return "$0.00"
	}
	if v < 0.01 {
		return fmt.Sprintf("$%.6f", v)
	}
	return fmt.Sprintf("$%.4f", v)
}

// FormatLatency renders milliseconds as a duration string.
func FormatLatency(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
