package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/normalize"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/josephgoksu/taskforge/internal/task"
)

const subtaskListSchema = `{"subtasks": [{"id": 1, "title": "string", "description": "string",
 "details": "string", "testStrategy": "string"}]}`

// ExpandOptions configures subtask generation. A zero SubtaskCount takes the
// complexity report's recommendation for the task, then the configured default.
type ExpandOptions struct {
	SubtaskCount int    `json:"subtaskCount,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	Research     bool   `json:"research,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

// ExpandResult is the outcome of expanding one task.
type ExpandResult struct {
	Scope               string          `json:"scope"`
	TaskID              int             `json:"taskId"`
	SubtasksAdded       int             `json:"subtasksAdded"`
	HasExistingSubtasks bool            `json:"hasExistingSubtasks"`
	Skipped             bool            `json:"skipped,omitempty"`
	Replaced            int             `json:"replaced,omitempty"`
	FromReport          bool            `json:"fromComplexityReport,omitempty"`
	Subtasks            []task.Subtask  `json:"subtasks,omitempty"`
	Stage               normalize.Stage `json:"stage,omitempty"`
	Telemetry           llm.Usage       `json:"telemetry"`
}

// ExpandTask generates subtasks for a task.
//
// A task without subtasks is expanded. A task with subtasks is skipped (zero added,
// nothing changed) unless Force is set, in which case its subtasks are regenerated
// and replaced. Done tasks are never expanded. When generation ran but its reply
// could not be used, the error comes with a result carrying the call's telemetry.
func (a *TaskApp) ExpandTask(ctx context.Context, scope string, number int, opts ExpandOptions) (res *ExpandResult, err error) {
	const op = "expandTask"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	defer func() {
		var usage llm.Usage
		added := 0
		if res != nil {
			usage, added = res.Telemetry, res.SubtasksAdded
		}
		a.ctx.track(op, start, usage, map[string]int{"subtasks_added": added}, err)
	}()

	unlock := a.ctx.lockScope(scope)
	defer unlock()
	return a.expand(ctx, op, scope, number, opts)
}

func (a *TaskApp) expand(ctx context.Context, op, scope string, number int, opts ExpandOptions) (*ExpandResult, error) {
	if opts.SubtaskCount < 0 {
		return nil, apperr.Validation(op, "subtask count must not be negative, got %d", opts.SubtaskCount).In(scope, number)
	}

	t, err := a.ctx.getTask(ctx, op, scope, number)
	if err != nil {
		return nil, err
	}
	if t.Status.IsFinished() {
		return nil, apperr.Validation(op, "task %d is %s and cannot be expanded", number, t.Status).In(scope, number)
	}

	out := &ExpandResult{Scope: scope, TaskID: number, HasExistingSubtasks: len(t.Subtasks) > 0}
	if out.HasExistingSubtasks && !opts.Force {
		a.ctx.Logger.Info("task already has subtasks, skipping", "scope", scope, "task", number, "subtasks", len(t.Subtasks))
		out.Skipped = true
		return out, nil
	}

	count, variant, expansionPrompt := opts.SubtaskCount, variantFor(opts.Research), ""
	if count == 0 {
		count = a.ctx.Pipeline.DefaultSubtasks
		if entry, ok := a.reportEntry(ctx, scope, number); ok && entry.RecommendedSubtasks > 0 {
			count = entry.RecommendedSubtasks
			expansionPrompt = entry.ExpansionPrompt
			out.FromReport = true
			if !opts.Research && expansionPrompt != "" {
				variant = "complexity-report"
			}
		}
	}

	additional := opts.Prompt
	if opts.Research && expansionPrompt != "" {
		additional = strings.TrimSpace(expansionPrompt + "\n" + additional)
	}

	gen, err := a.ctx.generateObject(ctx, generation{
		op:       op,
		template: prompts.ExpandTask,
		variant:  variant,
		params: prompts.Params{
			"taskId":            number,
			"task":              retrieval.FormatTask(t),
			"subtaskCount":      count,
			"additionalContext": additional,
			"gatheredContext":   a.ctx.relatedContext(ctx, scope, t.Title+" "+t.Description, number),
			"expansionPrompt":   expansionPrompt,
		},
		research:   opts.Research,
		schemaName: "subtask list",
		schema:     subtaskListSchema,
	})
	if err != nil {
		return nil, withTask(err, scope, number)
	}
	out.Telemetry.Add(gen.Telemetry)

	subtasks, stage, err := a.ctx.Normalizer.Subtasks(gen)
	if err != nil {
		return out, withTask(err, scope, number)
	}
	if len(subtasks) != count {
		a.ctx.Logger.Warn("model returned a different number of subtasks", "scope", scope, "task", number, "requested", count, "returned", len(subtasks))
	}

	if err := a.ctx.Repo.ReplaceSubtasks(ctx, scope, number, subtasks); err != nil {
		if apperr.KindOf(err) != "" {
			return out, err
		}
		return out, apperr.Upstream(op, err, "store subtasks").In(scope, number)
	}

	out.Stage = stage
	out.SubtasksAdded = len(subtasks)
	out.Subtasks = task.RenumberSubtasks(subtasks)
	if out.HasExistingSubtasks {
		out.Replaced = len(t.Subtasks)
	}

	summary := fmt.Sprintf("added %d subtasks", out.SubtasksAdded)
	if out.Replaced > 0 {
		summary = fmt.Sprintf("replaced %d subtasks with %d", out.Replaced, out.SubtasksAdded)
	}
	a.ctx.record(ctx, scope, number, op, summary)
	return out, nil
}

// reportEntry looks the task up in the scope's complexity report.
func (a *TaskApp) reportEntry(ctx context.Context, scope string, number int) (entry struct {
	RecommendedSubtasks int
	ExpansionPrompt     string
}, ok bool) {
	if a.ctx.Reports == nil {
		return entry, false
	}
	report, err := a.ctx.Reports.Get(ctx, scope)
	if err != nil {
		a.ctx.Logger.Warn("complexity report unavailable", "scope", scope, "error", err)
		return entry, false
	}
	e, found := report.Entry(number)
	if !found {
		return entry, false
	}
	entry.RecommendedSubtasks, entry.ExpansionPrompt = e.RecommendedSubtasks, e.ExpansionPrompt
	return entry, true
}

// ExpandAll expands every pending or in-progress task of the scope, one after
// the other. Per-task failures are recorded and the batch moves on.
func (a *TaskApp) ExpandAll(ctx context.Context, scope string, opts ExpandOptions) (res *BatchResult, err error) {
	const op = "expandAll"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	out := &BatchResult{Scope: scope}
	defer func() {
		a.ctx.track(op, start, out.Telemetry, map[string]int{
			"attempted": out.Attempted, "succeeded": out.Succeeded, "failed": out.Failed,
		}, err)
	}()

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	tasks, err := a.ctx.listTasks(ctx, op, scope)
	if err != nil {
		return nil, err
	}

	var last error
	for _, t := range tasks {
		if t.Status != task.StatusPending && t.Status != task.StatusInProgress {
			continue
		}
		r, itemErr := a.expand(ctx, "expandTask", scope, t.Number, opts)
		item := ItemResult{TaskID: t.Number}
		if r != nil {
			out.Telemetry.Merge(r.Telemetry)
		}
		if r != nil && itemErr == nil {
			item.Skipped = r.Skipped
			item.SubtasksAdded = r.SubtasksAdded
		}
		if itemErr != nil {
			last = itemErr
			a.ctx.Logger.Warn("expansion failed, continuing", "scope", scope, "task", t.Number, "error", itemErr)
		}
		out.add(item, itemErr)
	}

	a.ctx.record(ctx, scope, 0, op, fmt.Sprintf("expanded %d of %d tasks (%d skipped, %d failed)",
		out.Succeeded, out.Attempted, out.Skipped, out.Failed))
	if err := out.err(op, last); err != nil {
		return out, err
	}
	return out, nil
}

// withTask stamps scope and task on a pipeline error that lacks them.
func withTask(err error, scope string, number int) error {
	if e, ok := apperr.As(err); ok {
		if e.Scope == "" {
			e.Scope = scope
		}
		if e.TaskID == "" {
			e.TaskID = fmt.Sprint(number)
		}
	}
	return err
}
