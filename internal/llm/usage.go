package llm

// Usage accumulates telemetry across the calls of one operation or batch.
type Usage struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	TotalCostUSD float64 `json:"totalCostUsd"`
	DurationMS   int64   `json:"durationMs"`
}

// Add records one call.
func (u *Usage) Add(t Telemetry) {
	u.Calls++
	u.InputTokens += t.InputTokens
	u.OutputTokens += t.OutputTokens
	u.TotalCostUSD += t.TotalCostUSD
	u.DurationMS += t.DurationMS
}

// Merge folds another accumulator into u.
func (u *Usage) Merge(o Usage) {
	u.Calls += o.Calls
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.TotalCostUSD += o.TotalCostUSD
	u.DurationMS += o.DurationMS
}
