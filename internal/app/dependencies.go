package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

// DependencyApp edits and checks the dependency graph of a scope.
type DependencyApp struct {
	ctx *Context
}

// NewDependencyApp creates a new dependency application service.
func NewDependencyApp(ctx *Context) *DependencyApp {
	return &DependencyApp{ctx: ctx}
}

// DependencyResult is the outcome of adding or removing one edge.
type DependencyResult struct {
	Scope        string `json:"scope"`
	TaskID       int    `json:"taskId"`
	DependsOn    int    `json:"dependsOn"`
	Changed      bool   `json:"changed"`
	Dependencies []int  `json:"dependencies"`
}

// AddDependency makes number depend on dependsOn. Self references and edges
// that would close a cycle are rejected with a structural conflict and leave
// the graph untouched. Adding an existing edge is a no-op.
func (a *DependencyApp) AddDependency(ctx context.Context, scope string, number, dependsOn int) (res *DependencyResult, err error) {
	const op = "addDependency"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	defer func() { a.ctx.track(op, start, llm.Usage{}, nil, err) }()

	if number == dependsOn {
		return nil, apperr.Conflict(op, "task %d cannot depend on itself", number).In(scope, number)
	}

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	t, err := a.ctx.getTask(ctx, op, scope, number)
	if err != nil {
		return nil, err
	}
	if _, err := a.ctx.getTask(ctx, op, scope, dependsOn); err != nil {
		return nil, err
	}

	out := &DependencyResult{Scope: scope, TaskID: number, DependsOn: dependsOn}
	if t.HasDependency(dependsOn) {
		out.Dependencies = t.Dependencies
		return out, nil
	}

	tasks, err := a.ctx.listTasks(ctx, op, scope)
	if err != nil {
		return nil, err
	}
	if task.WouldCreateCycle(task.GraphOf(tasks), number, dependsOn) {
		return nil, apperr.Conflict(op, "task %d already depends on task %d; adding %d -> %d would form a cycle",
			dependsOn, number, number, dependsOn).In(scope, number)
	}

	original := slices.Clone(t.Dependencies)
	deps := append(slices.Clone(original), dependsOn)
	slices.Sort(deps)
	updated, err := a.ctx.Repo.UpdateTask(ctx, scope, number, task.Patch{Dependencies: &deps})
	if err != nil {
		return nil, storeError(op, err, scope, number)
	}

	// A concurrent writer may have closed a cycle through the new edge; undo it then.
	// Cycles the edge is not part of are left for ValidateDependencies to report.
	if err := a.verifyEdge(ctx, scope, number, dependsOn); err != nil {
		if _, rbErr := a.ctx.Repo.UpdateTask(ctx, scope, number, task.Patch{Dependencies: &original}); rbErr != nil {
			a.ctx.Logger.Error("dependency rollback failed", "scope", scope, "task", number, "error", rbErr)
			return nil, apperr.Upstream(op, rbErr, "roll back dependency %d -> %d after: %v", number, dependsOn, err).In(scope, number)
		}
		return nil, apperr.Conflict(op, "adding %d -> %d forms a cycle: %v", number, dependsOn, err).In(scope, number)
	}

	out.Changed = true
	out.Dependencies = updated.Dependencies
	a.ctx.record(ctx, scope, number, op, fmt.Sprintf("added dependency on task %d", dependsOn))
	return out, nil
}

func (a *DependencyApp) verifyEdge(ctx context.Context, scope string, from, to int) error {
	tasks, err := a.ctx.Repo.ListTasks(ctx, scope)
	if err != nil {
		return err
	}
	if task.OnCycle(task.GraphOf(tasks), from, to) {
		return fmt.Errorf("task %d leads back to task %d", to, from)
	}
	return nil
}

// RemoveDependency drops the edge number -> dependsOn. Removing an absent edge
// is a no-op.
func (a *DependencyApp) RemoveDependency(ctx context.Context, scope string, number, dependsOn int) (res *DependencyResult, err error) {
	const op = "removeDependency"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	defer func() { a.ctx.track(op, start, llm.Usage{}, nil, err) }()

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	t, err := a.ctx.getTask(ctx, op, scope, number)
	if err != nil {
		return nil, err
	}
	out := &DependencyResult{Scope: scope, TaskID: number, DependsOn: dependsOn, Dependencies: t.Dependencies}
	if !t.HasDependency(dependsOn) {
		return out, nil
	}

	deps := slices.DeleteFunc(slices.Clone(t.Dependencies), func(d int) bool { return d == dependsOn })
	updated, err := a.ctx.Repo.UpdateTask(ctx, scope, number, task.Patch{Dependencies: &deps})
	if err != nil {
		return nil, storeError(op, err, scope, number)
	}
	out.Changed = true
	out.Dependencies = updated.Dependencies
	a.ctx.record(ctx, scope, number, op, fmt.Sprintf("removed dependency on task %d", dependsOn))
	return out, nil
}

// ValidationReport lists the problems in a scope's dependency graph.
type ValidationReport struct {
	Scope         string                 `json:"scope"`
	TasksChecked  int                    `json:"tasksChecked"`
	Valid         bool                   `json:"valid"`
	Issues        []task.DependencyIssue `json:"issues"`
	CycleDetected bool                   `json:"cycleDetected"`
}

// ValidateDependencies reports missing targets, self references and cycles.
// It never writes.
func (a *DependencyApp) ValidateDependencies(ctx context.Context, scope string) (*ValidationReport, error) {
	const op = "validateDependencies"
	scope = a.ctx.scope(scope)

	tasks, err := a.ctx.listTasks(ctx, op, scope)
	if err != nil {
		return nil, err
	}
	issues := task.ValidateDependencies(tasks)
	out := &ValidationReport{
		Scope:        scope,
		TasksChecked: len(tasks),
		Valid:        len(issues) == 0,
		Issues:       issues,
	}
	for _, is := range issues {
		if is.Kind == task.IssueCycle {
			out.CycleDetected = true
			break
		}
	}
	if !out.Valid {
		a.ctx.Logger.Warn("dependency issues found", "scope", scope, "issues", len(issues))
	}
	return out, nil
}
