package llm

// EstimateTokens provides a heuristic token count: ~4 characters per token,
// rounded up. Every token figure the pipeline reports uses this estimate so
// breakdowns stay additive.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

