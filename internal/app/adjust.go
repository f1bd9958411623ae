package app

import (
	"context"
	"fmt"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/task"
)

// Direction of a scope adjustment.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Strength of a scope adjustment.
type Strength string

const (
	StrengthLight   Strength = "light"
	StrengthRegular Strength = "regular"
	StrengthHeavy   Strength = "heavy"
)

// AdjustOptions configures AdjustScope. An empty Strength means regular.
type AdjustOptions struct {
	Direction Direction `json:"direction"`
	Strength  Strength  `json:"strength,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Research  bool      `json:"research,omitempty"`
}

func (o *AdjustOptions) validate(op, scope string) error {
	if o.Strength == "" {
		o.Strength = StrengthRegular
	}
	switch o.Direction {
	case DirectionUp, DirectionDown:
	default:
		return apperr.Validation(op, "direction must be up or down, got %q", o.Direction).In(scope, nil)
	}
	switch o.Strength {
	case StrengthLight, StrengthRegular, StrengthHeavy:
	default:
		return apperr.Validation(op, "strength must be light, regular or heavy, got %q", o.Strength).In(scope, nil)
	}
	return nil
}

// AdjustScope rewrites each listed task to be more (up) or less (down) complex.
// Tasks are processed one at a time in the given order; a failed task is
// recorded and the rest still run. Done tasks fail with a validation error.
func (a *TaskApp) AdjustScope(ctx context.Context, scope string, numbers []int, opts AdjustOptions) (res *BatchResult, err error) {
	op := "scopeUp"
	if opts.Direction == DirectionDown {
		op = "scopeDown"
	}
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	out := &BatchResult{Scope: scope}
	defer func() {
		a.ctx.track(op, start, out.Telemetry, map[string]int{
			"attempted": out.Attempted, "succeeded": out.Succeeded, "failed": out.Failed,
		}, err)
	}()

	if err := opts.validate(op, scope); err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, apperr.Validation(op, "no task ids given").In(scope, nil)
	}

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	var last error
	for _, n := range numbers {
		item := ItemResult{TaskID: n}
		r, itemErr := a.adjust(ctx, op, scope, n, opts)
		if r != nil {
			out.Telemetry.Merge(r.Telemetry)
		}
		if r != nil && itemErr == nil {
			item.Task = r.Task
		}
		if itemErr != nil {
			last = itemErr
			a.ctx.Logger.Warn("scope adjustment failed, continuing", "scope", scope, "task", n, "error", itemErr)
		}
		out.add(item, itemErr)
	}

	if err := out.err(op, last); err != nil {
		return out, err
	}
	return out, nil
}

func (a *TaskApp) adjust(ctx context.Context, op, scope string, number int, opts AdjustOptions) (*UpdateResult, error) {
	t, err := a.ctx.getTask(ctx, op, scope, number)
	if err != nil {
		return nil, err
	}
	if t.Status.IsFinished() {
		return nil, apperr.Validation(op, "task %d is done and cannot be adjusted", number).In(scope, number)
	}

	r, err := a.rewrite(ctx, op, scope, t, generation{
		op:       op,
		template: prompts.ScopeAdjust,
		variant:  prompts.DefaultVariant,
		params: prompts.Params{
			"task":      taskJSON(t),
			"direction": string(opts.Direction),
			"strength":  string(opts.Strength),
			"prompt":    opts.Prompt,
		},
		research:   opts.Research,
		schemaName: "adjusted task",
		schema:     updatedTaskSchema,
	}, false)
	if err != nil {
		return r, err
	}
	a.ctx.record(ctx, scope, number, op, fmt.Sprintf("scope adjusted %s (%s)", opts.Direction, opts.Strength))
	return r, nil
}

// ParseTaskIDs parses task ids given as strings, e.g. from "1,3" split on commas.
func ParseTaskIDs(ids []string) ([]int, error) {
	var out []int
	for _, id := range ids {
		ref, err := task.ParseRef(id)
		if err != nil || ref.IsSubtask() {
			return nil, apperr.Validation("parseTaskIds", "invalid task id %q", id)
		}
		out = append(out, ref.Task)
	}
	return out, nil
}
