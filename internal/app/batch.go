package app

import (
	"fmt"

	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

// ItemResult is the outcome of one task in a batch operation.
type ItemResult struct {
	TaskID        int        `json:"taskId"`
	Success       bool       `json:"success"`
	Skipped       bool       `json:"skipped,omitempty"`
	SubtasksAdded int        `json:"subtasksAdded,omitempty"`
	Task          *task.Task `json:"task,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
}

// BatchResult collects per-task results. Batches run strictly in order and a
// failed task never stops the ones after it.
type BatchResult struct {
	Scope     string       `json:"scope"`
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
	Telemetry llm.Usage    `json:"telemetry"`
}

func (b *BatchResult) add(item ItemResult, err error) {
	b.Attempted++
	switch {
	case err != nil:
		item.Success = false
		item.Error = NewErrorInfo(err)
		b.Failed++
	case item.Skipped:
		item.Success = true
		b.Skipped++
	default:
		item.Success = true
		b.Succeeded++
	}
	b.Items = append(b.Items, item)
}

// err fails the batch only when every attempted item failed.
func (b *BatchResult) err(op string, last error) error {
	if b.Attempted == 0 || b.Failed < b.Attempted {
		return nil
	}
	return fmt.Errorf("%s: all %d tasks failed: %w", op, b.Attempted, last)
}
