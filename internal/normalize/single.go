package normalize

import (
	"encoding/json"
	"strings"

	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

// UpdatedTask is the single-task shape returned by update and scope-adjust calls.
type UpdatedTask struct {
	ID           flexInt            `json:"id"`
	Title        string             `json:"title" validate:"required,nonempty,max=300"`
	Description  string             `json:"description"`
	Details      flexText           `json:"details"`
	TestStrategy flexText           `json:"testStrategy"`
	Priority     string             `json:"priority"`
	Status       string             `json:"status"`
	Subtasks     []GeneratedSubtask `json:"subtasks" validate:"dive"`
}

// TaskUpdate parses a rewritten task and reconciles it with original.
//
// The model is not trusted with identity: the original number is always restored,
// and the original status too unless allowStatusChange is set. Dependencies are
// kept from original. Subtasks already done in original survive in place of the
// model's version, and the merged list is renumbered.
func (n *Normalizer) TaskUpdate(res llm.Result, original task.Task, allowStatusChange bool) (task.Task, Stage, error) {
	const op = "normalizeTaskUpdate"

	doc, stage, cleaned, err := n.document(op, res)
	if err != nil {
		return task.Task{}, stage, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err == nil {
		if inner, ok := fields["task"]; ok {
			doc = inner
		}
	}

	var upd UpdatedTask
	if err := json.Unmarshal(doc, &upd); err != nil {
		return task.Task{}, stage, schemaError(op, cleaned, err, ValidationResult{})
	}
	if r := validateStruct(upd); !r.Valid {
		return task.Task{}, stage, schemaError(op, cleaned, nil, r)
	}

	if int(upd.ID) != 0 && int(upd.ID) != original.Number {
		n.logger.Warn("model changed the task id, restoring", "task", original.Number, "returned", int(upd.ID))
	}

	out := original
	out.Title = strings.TrimSpace(upd.Title)
	out.Description = strings.TrimSpace(upd.Description)
	out.Dependencies = append([]int(nil), original.Dependencies...)
	if d := string(upd.Details); d != "" {
		out.Details.Implementation = d
	}
	if ts := string(upd.TestStrategy); ts != "" {
		out.Details.TestStrategy = ts
	}
	if p, ok := task.ParsePriority(upd.Priority); ok {
		out.Priority = p
	}

	if status, ok := task.ParseStatus(upd.Status); ok && status != original.Status {
		if allowStatusChange {
			out.Status = status
		} else {
			n.logger.Warn("model changed the task status, restoring",
				"task", original.Number, "status", original.Status, "returned", status)
		}
	}

	out.Subtasks = mergeSubtasks(original.Subtasks, upd.Subtasks)
	return out, stage, nil
}

// mergeSubtasks keeps every done subtask of the original and appends the model's
// subtasks that do not duplicate one of them by title.
func mergeSubtasks(original []task.Subtask, generated []GeneratedSubtask) []task.Subtask {
	if generated == nil {
		// No subtasks in the response: leave the original list alone.
		return original
	}

	var merged []task.Subtask
	kept := make(map[string]bool)
	for _, s := range original {
		if s.Status.IsFinished() {
			merged = append(merged, s)
			kept[strings.ToLower(strings.TrimSpace(s.Title))] = true
		}
	}
	for _, g := range generated {
		title := strings.TrimSpace(g.Title)
		if kept[strings.ToLower(title)] {
			continue
		}
		status, ok := task.ParseStatus(g.Status)
		if !ok || status.IsFinished() {
			status = task.StatusPending
		}
		merged = append(merged, task.Subtask{
			Title:       title,
			Description: strings.TrimSpace(g.Description),
			Status:      status,
			Details: task.Details{
				Implementation: string(g.Details),
				TestStrategy:   string(g.TestStrategy),
			},
		})
	}
	return task.RenumberSubtasks(merged)
}
