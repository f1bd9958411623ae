package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/normalize"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/josephgoksu/taskforge/internal/task"
)

const updatedTaskSchema = `{"id": 1, "title": "string", "description": "string", "details": "string",
 "testStrategy": "string", "priority": "low|medium|high", "status": "pending",
 "subtasks": [{"id": 1, "title": "string", "description": "string", "details": "string", "status": "pending"}]}`

// TaskApp provides the task pipeline operations.
// CLI and MCP both call these methods.
type TaskApp struct {
	ctx *Context
}

// NewTaskApp creates a new task application service.
func NewTaskApp(ctx *Context) *TaskApp {
	return &TaskApp{ctx: ctx}
}

// ListTasks returns the scope's tasks in number order.
func (a *TaskApp) ListTasks(ctx context.Context, scope string) ([]task.Task, error) {
	return a.ctx.listTasks(ctx, "listTasks", a.ctx.scope(scope))
}

// GetTask returns one task with its subtasks.
func (a *TaskApp) GetTask(ctx context.Context, scope string, number int) (*task.Task, error) {
	return a.ctx.getTask(ctx, "getTask", a.ctx.scope(scope), number)
}

// History returns the scope's audit entries, newest first. limit <= 0 means all.
func (a *TaskApp) History(ctx context.Context, scope string, limit int) ([]task.HistoryEntry, error) {
	scope = a.ctx.scope(scope)
	entries, err := a.ctx.Repo.ListHistory(ctx, scope, limit)
	if err != nil {
		return nil, apperr.Upstream("listHistory", err, "list history").In(scope, nil)
	}
	return entries, nil
}

// UpdateOptions configures UpdateTask.
type UpdateOptions struct {
	// Append adds generated notes to the task's details instead of rewriting it.
	Append            bool `json:"append,omitempty"`
	Research          bool `json:"research,omitempty"`
	AllowStatusChange bool `json:"allowStatusChange,omitempty"`
}

// UpdateResult is the outcome of UpdateTask and UpdateSubtask.
type UpdateResult struct {
	Scope     string          `json:"scope"`
	TaskID    string          `json:"taskId"`
	Mode      string          `json:"mode"`
	Task      *task.Task      `json:"task,omitempty"`
	Appended  string          `json:"appended,omitempty"`
	Stage     normalize.Stage `json:"stage,omitempty"`
	Telemetry llm.Usage       `json:"telemetry"`
}

const (
	modeAppend = "append"
	modeFull   = "full"
)

// UpdateTask applies new information to a task. Done tasks cannot be updated.
//
// In append mode the model writes free-text notes which are appended to the
// task's implementation details inside a timestamped block. Otherwise the model
// rewrites the whole task; its id, status (unless AllowStatusChange) and
// dependencies are restored, and subtasks already done are kept.
func (a *TaskApp) UpdateTask(ctx context.Context, scope string, number int, prompt string, opts UpdateOptions) (res *UpdateResult, err error) {
	const op = "updateTask"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	defer func() {
		var usage llm.Usage
		if res != nil {
			usage = res.Telemetry
		}
		a.ctx.track(op, start, usage, nil, err)
	}()

	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.Validation(op, "update prompt is empty").In(scope, number)
	}

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	t, err := a.ctx.getTask(ctx, op, scope, number)
	if err != nil {
		return nil, err
	}
	if t.Status.IsFinished() {
		return nil, apperr.Validation(op, "task %d is done; completed tasks are not updated", number).In(scope, number)
	}

	if opts.Append {
		return a.appendToTask(ctx, op, scope, t, prompt, opts.Research)
	}

	out, err := a.rewrite(ctx, op, scope, t, generation{
		op:       op,
		template: prompts.UpdateTask,
		variant:  prompts.DefaultVariant,
		params: prompts.Params{
			"taskId":            number,
			"task":              taskJSON(t),
			"prompt":            prompt,
			"gatheredContext":   a.ctx.relatedContext(ctx, scope, prompt, number),
			"allowStatusChange": opts.AllowStatusChange,
		},
		research:   opts.Research,
		schemaName: "updated task",
		schema:     updatedTaskSchema,
	}, opts.AllowStatusChange)
	if err != nil {
		return out, err
	}
	a.ctx.record(ctx, scope, number, op, "rewrote task from new information")
	return out, nil
}

func (a *TaskApp) appendToTask(ctx context.Context, op, scope string, t *task.Task, prompt string, research bool) (*UpdateResult, error) {
	notes, usage, err := a.notes(ctx, generation{
		op:       op,
		template: prompts.UpdateTask,
		variant:  modeAppend,
		params: prompts.Params{
			"taskId":          t.Number,
			"task":            retrieval.FormatTask(t),
			"prompt":          prompt,
			"gatheredContext": a.ctx.relatedContext(ctx, scope, prompt, t.Number),
		},
		research: research,
	})
	if err != nil {
		return nil, withTask(err, scope, t.Number)
	}

	details := t.Details
	details.Implementation = appendInfo(details.Implementation, notes, a.ctx.now())
	updated, err := a.ctx.Repo.UpdateTask(ctx, scope, t.Number, task.Patch{Details: &details})
	if err != nil {
		return nil, storeError(op, err, scope, t.Number)
	}

	a.ctx.record(ctx, scope, t.Number, op, fmt.Sprintf("appended %d characters of notes", len(notes)))
	return &UpdateResult{
		Scope:     scope,
		TaskID:    task.Ref{Task: t.Number}.String(),
		Mode:      modeAppend,
		Task:      updated,
		Appended:  notes,
		Telemetry: usage,
	}, nil
}

// rewrite runs a single-task generation and persists the reconciled task.
// It serves both full updates and scope adjustment.
func (a *TaskApp) rewrite(ctx context.Context, op, scope string, t *task.Task, g generation, allowStatusChange bool) (*UpdateResult, error) {
	gen, err := a.ctx.generateObject(ctx, g)
	if err != nil {
		return nil, withTask(err, scope, t.Number)
	}
	out := &UpdateResult{Scope: scope, TaskID: task.Ref{Task: t.Number}.String(), Mode: modeFull}
	out.Telemetry.Add(gen.Telemetry)

	merged, stage, err := a.ctx.Normalizer.TaskUpdate(gen, *t, allowStatusChange)
	if err != nil {
		return out, withTask(err, scope, t.Number)
	}
	out.Stage = stage

	// Fields and subtasks land in one write.
	patch := task.Patch{
		Title:       &merged.Title,
		Description: &merged.Description,
		Priority:    &merged.Priority,
		Details:     &merged.Details,
		Subtasks:    &merged.Subtasks,
	}
	if merged.Status != t.Status {
		patch.Status = &merged.Status
	}
	if out.Task, err = a.ctx.Repo.UpdateTask(ctx, scope, t.Number, patch); err != nil {
		return out, storeError(op, err, scope, t.Number)
	}
	return out, nil
}

// UpdateSubtaskOptions configures UpdateSubtask.
type UpdateSubtaskOptions struct {
	Research bool `json:"research,omitempty"`
}

// UpdateSubtask appends generated notes to a subtask, addressed as "parent.sub".
func (a *TaskApp) UpdateSubtask(ctx context.Context, scope, id, prompt string, opts UpdateSubtaskOptions) (res *UpdateResult, err error) {
	const op = "updateSubtask"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	defer func() {
		var usage llm.Usage
		if res != nil {
			usage = res.Telemetry
		}
		a.ctx.track(op, start, usage, nil, err)
	}()

	ref, err := task.ParseRef(id)
	if err != nil || !ref.IsSubtask() {
		return nil, apperr.Validation(op, "subtask id must look like <task>.<subtask>, got %q", id).In(scope, id)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.Validation(op, "update prompt is empty").In(scope, id)
	}

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	parent, err := a.ctx.getTask(ctx, op, scope, ref.Task)
	if err != nil {
		return nil, err
	}
	sub, ok := parent.Subtask(ref.Subtask)
	if !ok {
		return nil, apperr.NotFound(op, "subtask %s not found", ref).In(scope, ref.String())
	}

	notes, usage, err := a.notes(ctx, generation{
		op:       op,
		template: prompts.UpdateSubtask,
		variant:  prompts.DefaultVariant,
		params: prompts.Params{
			"subtaskId":       ref.String(),
			"parent":          retrieval.FormatTask(parent),
			"subtask":         formatSubtask(sub),
			"prompt":          prompt,
			"gatheredContext": a.ctx.relatedContext(ctx, scope, sub.Title+" "+prompt, parent.Number),
		},
		research: opts.Research,
	})
	if err != nil {
		return nil, withTask(err, scope, parent.Number)
	}

	subtasks := make([]task.Subtask, len(parent.Subtasks))
	copy(subtasks, parent.Subtasks)
	for i := range subtasks {
		if subtasks[i].Number == ref.Subtask {
			subtasks[i].Details.Implementation = appendInfo(subtasks[i].Details.Implementation, notes, a.ctx.now())
		}
	}
	if err := a.ctx.Repo.ReplaceSubtasks(ctx, scope, parent.Number, subtasks); err != nil {
		return nil, storeError(op, err, scope, ref.String())
	}

	updated, err := a.ctx.getTask(ctx, op, scope, parent.Number)
	if err != nil {
		return nil, err
	}
	a.ctx.record(ctx, scope, parent.Number, op, fmt.Sprintf("appended notes to subtask %s", ref))
	return &UpdateResult{
		Scope:     scope,
		TaskID:    ref.String(),
		Mode:      modeAppend,
		Task:      updated,
		Appended:  notes,
		Telemetry: usage,
	}, nil
}

// notes runs a text generation and returns its trimmed output.
func (a *TaskApp) notes(ctx context.Context, g generation) (string, llm.Usage, error) {
	var usage llm.Usage
	gen, err := a.ctx.generateText(ctx, g)
	if err != nil {
		return "", usage, err
	}
	usage.Add(gen.Telemetry)
	text := strings.TrimSpace(gen.Text)
	if text == "" {
		return "", usage, apperr.Parse(g.op, nil, gen.Text, "model returned no text")
	}
	return text, usage, nil
}

// appendInfo adds a timestamped block to existing details.
func appendInfo(existing, text string, at time.Time) string {
	stamp := at.Format(time.RFC3339)
	block := fmt.Sprintf("<info added on %s>\n%s\n</info added on %s>", stamp, text, stamp)
	if strings.TrimSpace(existing) == "" {
		return block
	}
	return strings.TrimRight(existing, "\n") + "\n\n" + block
}

func formatSubtask(s *task.Subtask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nStatus: %s\n", s.Title, s.Status)
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	if s.Details.Implementation != "" {
		fmt.Fprintf(&b, "Details: %s\n", s.Details.Implementation)
	}
	return strings.TrimRight(b.String(), "\n")
}

// storeError passes taxonomy errors through and wraps the rest as upstream.
func storeError(op string, err error, scope string, taskID any) error {
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Upstream(op, err, "persist changes").In(scope, taskID)
}
