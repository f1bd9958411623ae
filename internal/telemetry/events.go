package telemetry

import (
	"time"

	"github.com/josephgoksu/taskforge/internal/llm"
)

// Event names
const (
	EventOperationCompleted = "operation_completed"
	EventOperationFailed    = "operation_failed"
)

// Operation describes one finished pipeline operation.
type Operation struct {
	Name      string
	Duration  time.Duration
	Usage     llm.Usage
	ErrorKind string
	// Counts holds item totals such as tasks_created or subtasks_added.
	Counts map[string]int
}

// EventName returns the event an operation is reported under.
func (o Operation) EventName() string {
	if o.ErrorKind != "" {
		return EventOperationFailed
	}
	return EventOperationCompleted
}

// Properties flattens the operation into event properties.
func (o Operation) Properties() Properties {
	props := Properties{
		"operation":     o.Name,
		"duration_ms":   o.Duration.Milliseconds(),
		"ai_calls":      o.Usage.Calls,
		"input_tokens":  o.Usage.InputTokens,
		"output_tokens": o.Usage.OutputTokens,
		"cost_usd":      o.Usage.TotalCostUSD,
		"success":       o.ErrorKind == "",
	}
	if o.ErrorKind != "" {
		props["error_kind"] = o.ErrorKind
	}
	for k, v := range o.Counts {
		props[k] = v
	}
	return props
}

// TrackOperation reports o on c. A nil client is a no-op.
func TrackOperation(c Client, o Operation) {
	if c == nil {
		return
	}
	c.Report(o)
}
