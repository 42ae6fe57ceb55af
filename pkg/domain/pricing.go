package domain

import "strings"

// ModelPricing holds per-token rates for one model, expressed in USD
// per million tokens as published by the provider.
type ModelPricing struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"display_name"`
	Provider         string  `json:"provider"`
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// CalculateCost returns the USD cost of a call with the given usage.
func (p ModelPricing) CalculateCost(u Usage) float64 {
	in := float64(u.InputTokens) / 1e6 * p.InputPerMillion
	out := float64(u.OutputTokens) / 1e6 * p.OutputPerMillion
	return in + out
}

// pricingTable lists the models promptlab knows rates for. Model IDs
// often carry date suffixes, so lookups match on prefix.
var pricingTable = []ModelPricing{
	{ID: "claude-opus-4", DisplayName: "Claude Opus 4", Provider: ProviderAnthropic, InputPerMillion: 15, OutputPerMillion: 75},
	{ID: "claude-sonnet-4", DisplayName: "Claude Sonnet 4", Provider: ProviderAnthropic, InputPerMillion: 3, OutputPerMillion: 15},
	{ID: "claude-3-5-haiku", DisplayName: "Claude 3.5 Haiku", Provider: ProviderAnthropic, InputPerMillion: 0.8, OutputPerMillion: 4},
	{ID: "claude-3-haiku", DisplayName: "Claude 3 Haiku", Provider: ProviderAnthropic, InputPerMillion: 0.25, OutputPerMillion: 1.25},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, InputPerMillion: 0.15, OutputPerMillion: 0.6},
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, InputPerMillion: 2.5, OutputPerMillion: 10},
	{ID: "gpt-4.1-mini", DisplayName: "GPT-4.1 mini", Provider: ProviderOpenAI, InputPerMillion: 0.4, OutputPerMillion: 1.6},
	{ID: "gpt-4.1", DisplayName: "GPT-4.1", Provider: ProviderOpenAI, InputPerMillion: 2, OutputPerMillion: 8},
}

// PricingFor looks up rates for a model. The longest matching table
// prefix wins, so gpt-4o-mini does not resolve to the gpt-4o entry.
func PricingFor(model string) (ModelPricing, bool) {
	var best ModelPricing
	found := false
	for _, p := range pricingTable {
		if strings.HasPrefix(model, p.ID) && (!found || len(p.ID) > len(best.ID)) {
			best = p
			found = true
		}
	}
	return best, found
}

// CostFor computes the USD cost for a model and usage. Unknown models
// cost zero rather than failing the experiment.
func CostFor(model string, u Usage) float64 {
	p, ok := PricingFor(model)
	if !ok {
		return 0
	}
	return p.CalculateCost(u)
}

// AllPricing returns a copy of the pricing table.
func AllPricing() []ModelPricing {
	return append([]ModelPricing(nil), pricingTable...)
}
