package task

import (
	"fmt"
	"log/slog"
	"slices"
)

// Draft is a task as returned by the model, before numbering.
// LocalID is the model's own identifier for the draft; 0 means the draft cannot
// be referenced by its siblings.
type Draft struct {
	LocalID      int
	Title        string
	Description  string
	Status       TaskStatus
	Priority     Priority
	Dependencies []int
	Details      Details
}

// DroppedDependency records a reference the remapper refused to keep.
type DroppedDependency struct {
	Task   int    `json:"taskId"`
	Ref    int    `json:"ref"`
	Reason string `json:"reason"`
}

// RemapResult is the numbered batch plus the data-quality warnings.
type RemapResult struct {
	Tasks   []Task              `json:"tasks"`
	Dropped []DroppedDependency `json:"dropped,omitempty"`
}

// Remap numbers drafts sequentially after the highest existing number and rewrites
// their dependency references.
//
// A reference first resolves against the batch's local ids, then against existing
// task numbers. It is kept only if it resolves and the resolved number is strictly
// lower than the dependent task's own number, so the result is acyclic by
// construction. Everything else is dropped and logged.
//
// Duplicate non-zero local ids make resolution ambiguous and are rejected.
func Remap(drafts []Draft, existing []Task, logger *slog.Logger) (RemapResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	next := MaxNumber(existing) + 1

	localToFinal := make(map[int]int, len(drafts))
	for i, d := range drafts {
		if d.LocalID == 0 {
			continue
		}
		if _, dup := localToFinal[d.LocalID]; dup {
			return RemapResult{}, fmt.Errorf("duplicate task id %d in generated batch", d.LocalID)
		}
		localToFinal[d.LocalID] = next + i
	}

	existingNumbers := make(map[int]bool, len(existing))
	for _, t := range existing {
		existingNumbers[t.Number] = true
	}

	var result RemapResult
	result.Tasks = make([]Task, 0, len(drafts))
	for i, d := range drafts {
		number := next + i
		t := Task{
			Number:      number,
			Title:       d.Title,
			Description: d.Description,
			Status:      d.Status,
			Priority:    d.Priority,
			Details:     d.Details,
		}
		t.ApplyDefaults()

		seen := make(map[int]bool)
		for _, ref := range d.Dependencies {
			resolved, ok := localToFinal[ref]
			if !ok && existingNumbers[ref] {
				resolved, ok = ref, true
			}

			reason := ""
			switch {
			case !ok:
				reason = "unresolved reference"
			case resolved >= number:
				reason = "forward or self reference"
			case seen[resolved]:
				continue
			}
			if reason != "" {
				logger.Warn("dropping dependency from generated task",
					"task", number, "ref", ref, "reason", reason)
				result.Dropped = append(result.Dropped, DroppedDependency{Task: number, Ref: ref, Reason: reason})
				continue
			}
			seen[resolved] = true
			t.Dependencies = append(t.Dependencies, resolved)
		}
		slices.Sort(t.Dependencies)
		result.Tasks = append(result.Tasks, t)
	}
	return result, nil
}
