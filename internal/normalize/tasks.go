package normalize

import (
	"strings"

	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

// GeneratedTask is one task as the model returns it during synthesis.
type GeneratedTask struct {
	ID           flexInt     `json:"id"`
	Title        string      `json:"title" validate:"required,nonempty,max=300"`
	Description  string      `json:"description"`
	Details      flexText    `json:"details"`
	TestStrategy flexText    `json:"testStrategy"`
	Priority     string      `json:"priority"`
	Status       string      `json:"status"`
	Dependencies flexIntList `json:"dependencies"`
}

// GeneratedSubtask is one subtask as the model returns it during expansion.
type GeneratedSubtask struct {
	ID           flexInt  `json:"id"`
	Title        string   `json:"title" validate:"required,nonempty,max=300"`
	Description  string   `json:"description"`
	Details      flexText `json:"details"`
	TestStrategy flexText `json:"testStrategy"`
	Status       string   `json:"status"`
}

type taskList struct {
	Tasks []GeneratedTask `validate:"dive"`
}

type subtaskList struct {
	Subtasks []GeneratedSubtask `validate:"dive"`
}

// TaskBatch parses a synthesis response into drafts for the remapper. The model's
// ids are kept as local ids; resolving them is the remapper's job.
func (n *Normalizer) TaskBatch(res llm.Result, requested int) ([]task.Draft, Stage, error) {
	const op = "normalizeTaskBatch"

	doc, stage, cleaned, err := n.document(op, res)
	if err != nil {
		return nil, stage, err
	}

	items, err := decodeList[GeneratedTask](doc, "tasks", "data")
	if err != nil {
		return nil, stage, schemaError(op, cleaned, err, ValidationResult{})
	}
	if len(items) == 0 {
		return nil, stage, schemaError(op, cleaned, nil, ValidationResult{Errors: []ValidationError{{Message: "tasks must have at least 1 items"}}})
	}
	if r := validateStruct(taskList{Tasks: items}); !r.Valid {
		return nil, stage, schemaError(op, cleaned, nil, r)
	}
	if requested > 0 && len(items) != requested {
		n.logger.Warn("model returned a different task count", "requested", requested, "got", len(items))
	}

	drafts := make([]task.Draft, 0, len(items))
	for _, it := range items {
		if len(it.Dependencies.Skipped) > 0 {
			n.logger.Warn("ignoring non-numeric dependency references",
				"task", int(it.ID), "refs", it.Dependencies.Skipped)
		}
		status, _ := task.ParseStatus(it.Status)
		priority, _ := task.ParsePriority(it.Priority)
		drafts = append(drafts, task.Draft{
			LocalID:      int(it.ID),
			Title:        strings.TrimSpace(it.Title),
			Description:  strings.TrimSpace(it.Description),
			Status:       status,
			Priority:     priority,
			Dependencies: it.Dependencies.Values,
			Details: task.Details{
				Implementation: string(it.Details),
				TestStrategy:   string(it.TestStrategy),
			},
		})
	}
	return drafts, stage, nil
}

// Subtasks parses an expansion response. Numbering is assigned 1..N in response
// order; the model's ids are ignored.
func (n *Normalizer) Subtasks(res llm.Result) ([]task.Subtask, Stage, error) {
	const op = "normalizeSubtasks"

	doc, stage, cleaned, err := n.document(op, res)
	if err != nil {
		return nil, stage, err
	}

	items, err := decodeList[GeneratedSubtask](doc, "subtasks", "tasks")
	if err != nil {
		return nil, stage, schemaError(op, cleaned, err, ValidationResult{})
	}
	if len(items) == 0 {
		return nil, stage, schemaError(op, cleaned, nil, ValidationResult{Errors: []ValidationError{{Message: "subtasks must have at least 1 items"}}})
	}
	if r := validateStruct(subtaskList{Subtasks: items}); !r.Valid {
		return nil, stage, schemaError(op, cleaned, nil, r)
	}

	subs := make([]task.Subtask, 0, len(items))
	for _, it := range items {
		status, ok := task.ParseStatus(it.Status)
		if !ok {
			status = task.StatusPending
		}
		subs = append(subs, task.Subtask{
			Title:       strings.TrimSpace(it.Title),
			Description: strings.TrimSpace(it.Description),
			Status:      status,
			Details: task.Details{
				Implementation: string(it.Details),
				TestStrategy:   string(it.TestStrategy),
			},
		})
	}
	return task.RenumberSubtasks(subs), stage, nil
}
