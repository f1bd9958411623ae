package llm

import "strings"

// ModelPricing holds pricing info for a model (per 1M tokens in USD)
type ModelPricing struct {
	Provider    string
	Model       string
	InputPer1M  float64 // $ per 1M input tokens
	OutputPer1M float64 // $ per 1M output tokens
}

// PricingTable contains known model pricing.
// Prices last updated: 2025-12
var PricingTable = map[string]ModelPricing{
	"gpt-5.1":      {Provider: "OpenAI", Model: "gpt-5.1", InputPer1M: 1.10, OutputPer1M: 9.00},
	"gpt-5-mini":   {Provider: "OpenAI", Model: "gpt-5-mini", InputPer1M: 0.22, OutputPer1M: 1.80},
	"gpt-5-nano":   {Provider: "OpenAI", Model: "gpt-5-nano", InputPer1M: 0.04, OutputPer1M: 0.36},
	"gpt-4.1-mini": {Provider: "OpenAI", Model: "gpt-4.1-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4o":       {Provider: "OpenAI", Model: "gpt-4o", InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":  {Provider: "OpenAI", Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},

	"claude-opus-4.5":   {Provider: "Anthropic", Model: "claude-opus-4.5", InputPer1M: 5.00, OutputPer1M: 25.00},
	"claude-sonnet-4.5": {Provider: "Anthropic", Model: "claude-sonnet-4.5", InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-haiku-4.5":  {Provider: "Anthropic", Model: "claude-haiku-4.5", InputPer1M: 1.00, OutputPer1M: 5.00},

	"gemini-2.5-flash":     {Provider: "Google", Model: "gemini-2.5-flash", InputPer1M: 0.07, OutputPer1M: 0.30},
	"gemini-2.5-pro":       {Provider: "Google", Model: "gemini-2.5-pro", InputPer1M: 1.25, OutputPer1M: 10.00},
	"gemini-3-pro-preview": {Provider: "Google", Model: "gemini-3-pro-preview", InputPer1M: 2.00, OutputPer1M: 12.00},
}

// GetPricing returns pricing for a model, or nil if unknown.
// Dated snapshots ("gpt-5-mini-2025-08-07") resolve to their base model.
func GetPricing(model string) *ModelPricing {
	if p, ok := PricingTable[model]; ok {
		return &p
	}
	for base, p := range PricingTable {
		if strings.HasPrefix(model, base+"-20") {
			return &p
		}
	}
	return nil
}

// CalculateCost calculates cost in USD for token usage. Unknown models cost 0.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	p := GetPricing(model)
	if p == nil {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * p.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * p.OutputPer1M
	return inputCost + outputCost
}
