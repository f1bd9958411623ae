package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/normalize"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/task"
)

const taskBatchSchema = `{"tasks": [{"id": 1, "title": "string", "description": "string", "details": "string",
 "testStrategy": "string", "priority": "low|medium|high", "status": "pending", "dependencies": [0]}]}`

// SynthesizeOptions controls how generated tasks meet the scope's existing ones.
// A scope that already has tasks needs either Append or Overwrite.
type SynthesizeOptions struct {
	Append    bool `json:"append"`
	Overwrite bool `json:"overwrite"`
	Research  bool `json:"research"`
}

// SynthesizeResult is the outcome of turning requirement text into tasks.
type SynthesizeResult struct {
	Scope        string                   `json:"scope"`
	TasksCreated int                      `json:"tasksCreated"`
	Tasks        []task.Task              `json:"tasks"`
	Dropped      []task.DroppedDependency `json:"droppedDependencies,omitempty"`
	Stage        normalize.Stage          `json:"stage"`
	Telemetry    llm.Usage                `json:"telemetry"`
}

// SynthesizeTasks generates about count tasks from requirement text and persists
// them numbered after the scope's highest task. Dependencies the model invents
// are remapped or dropped so the new tasks only ever point at lower numbers.
// With Overwrite the scope is cleared, but only once generation succeeded.
func (a *TaskApp) SynthesizeTasks(ctx context.Context, scope, text string, count int, opts SynthesizeOptions) (res *SynthesizeResult, err error) {
	const op = "synthesizeTasks"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	var usage llm.Usage
	defer func() {
		created := 0
		if res != nil {
			created = res.TasksCreated
		}
		a.ctx.track(op, start, usage, map[string]int{"tasks_created": created}, err)
	}()

	switch {
	case strings.TrimSpace(text) == "":
		return nil, apperr.Validation(op, "requirement text is empty").In(scope, nil)
	case count < 0:
		return nil, apperr.Validation(op, "task count must not be negative, got %d", count).In(scope, nil)
	case opts.Append && opts.Overwrite:
		return nil, apperr.Validation(op, "append and overwrite are mutually exclusive").In(scope, nil)
	}
	if count == 0 {
		count = a.ctx.Pipeline.DefaultTaskCount
	}

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	existing, err := a.ctx.listTasks(ctx, op, scope)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && !opts.Append && !opts.Overwrite {
		return nil, apperr.Validation(op, "scope already has %d tasks; append or overwrite them", len(existing)).In(scope, nil)
	}
	base := existing
	if opts.Overwrite {
		base = nil
	}

	params := prompts.Params{
		"numTasks": count,
		"nextId":   task.MaxNumber(base) + 1,
		"prd":      text,
		"append":   opts.Append,
		"research": opts.Research,
	}
	if opts.Append && len(existing) > 0 {
		params["existingTasks"] = summarizeTasks(existing)
	}

	gen, err := a.ctx.generateObject(ctx, generation{
		op:         op,
		template:   prompts.ParsePRD,
		variant:    variantFor(opts.Research),
		params:     params,
		research:   opts.Research,
		schemaName: "task list",
		schema:     taskBatchSchema,
	})
	if err != nil {
		return nil, withScope(err, scope)
	}
	usage.Add(gen.Telemetry)

	drafts, stage, err := a.ctx.Normalizer.TaskBatch(gen, count)
	if err != nil {
		return nil, withScope(err, scope)
	}

	remapped, err := task.Remap(drafts, base, a.ctx.Logger)
	if err != nil {
		return nil, apperr.Conflict(op, "%v", err).In(scope, nil)
	}
	if err := task.VerifyDAG(append(append([]task.Task(nil), base...), remapped.Tasks...)); err != nil {
		return nil, apperr.Conflict(op, "generated tasks are not acyclic: %v", err).In(scope, nil)
	}

	if opts.Overwrite && len(existing) > 0 {
		// The old report scores tasks that are about to be replaced.
		if a.ctx.Reports != nil {
			if err := a.ctx.Reports.Delete(ctx, scope); err != nil {
				return nil, apperr.Upstream(op, err, "delete complexity report").In(scope, nil)
			}
		}
		if err := a.ctx.Repo.ClearScope(ctx, scope); err != nil {
			return nil, apperr.Upstream(op, err, "clear scope").In(scope, nil)
		}
		a.ctx.Logger.Info("cleared scope before synthesis", "scope", scope, "removed", len(existing))
	}

	out := &SynthesizeResult{Scope: scope, Dropped: remapped.Dropped, Stage: stage}
	for _, draft := range remapped.Tasks {
		created, err := a.ctx.Repo.CreateTask(ctx, scope, draft)
		if err != nil {
			if apperr.KindOf(err) != "" {
				return nil, err
			}
			return nil, apperr.Upstream(op, err, "create task %d after %d of %d were written",
				draft.Number, out.TasksCreated, len(remapped.Tasks)).In(scope, draft.Number)
		}
		out.Tasks = append(out.Tasks, *created)
		out.TasksCreated++
	}
	out.Telemetry = usage

	a.ctx.record(ctx, scope, 0, op, fmt.Sprintf("created %d tasks (%d dependencies dropped)", out.TasksCreated, len(out.Dropped)))
	a.ctx.Logger.Info("synthesized tasks", "scope", scope, "created", out.TasksCreated, "dropped_dependencies", len(out.Dropped), "stage", stage)
	return out, nil
}

// summarizeTasks lists tasks one per line for prompts.
func summarizeTasks(tasks []task.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%d. %s [%s]", t.Number, t.Title, t.Status)
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, " depends on %v", t.Dependencies)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// withScope stamps the scope on a pipeline error that lacks one.
func withScope(err error, scope string) error {
	if e, ok := apperr.As(err); ok && e.Scope == "" {
		e.Scope = scope
	}
	return err
}
