package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/josephgoksu/taskforge/internal/task"
)

const complexitySchema = `[{"taskId": 1, "taskTitle": "string", "complexityScore": 5,
 "recommendedSubtasks": 3, "expansionPrompt": "string", "reasoning": "string"}]`

// ComplexityApp scores tasks and maintains the per-scope complexity report.
type ComplexityApp struct {
	ctx *Context
}

// NewComplexityApp creates a new complexity application service.
func NewComplexityApp(ctx *Context) *ComplexityApp {
	return &ComplexityApp{ctx: ctx}
}

// AnalyzeOptions selects the tasks to analyze. TaskIDs wins over a From/To
// range; with neither, every task that is not done or cancelled is analyzed.
// A zero Threshold takes the configured one.
type AnalyzeOptions struct {
	TaskIDs   []int `json:"taskIds,omitempty"`
	From      int   `json:"from,omitempty"`
	To        int   `json:"to,omitempty"`
	Threshold int   `json:"threshold,omitempty"`
	Research  bool  `json:"research,omitempty"`
}

// AnalyzeResult is the outcome of a complexity analysis.
type AnalyzeResult struct {
	Scope         string             `json:"scope"`
	TasksAnalyzed int                `json:"tasksAnalyzed"`
	Defaulted     []int              `json:"defaultedTaskIds,omitempty"`
	Report        *complexity.Report `json:"report"`
	Stats         complexity.Stats   `json:"stats"`
	Telemetry     llm.Usage          `json:"telemetry"`
}

// AnalyzeComplexity scores the selected tasks and merges the result into the
// scope's report. Every analyzed task ends up with exactly one entry: tasks the
// model skipped get default values, entries for other tasks are dropped.
// Entries of earlier runs survive for tasks that still exist and were not
// analyzed again.
func (a *ComplexityApp) AnalyzeComplexity(ctx context.Context, scope string, opts AnalyzeOptions) (res *AnalyzeResult, err error) {
	const op = "analyzeComplexity"
	scope = a.ctx.scope(scope)
	start := a.ctx.Now()
	defer func() {
		var usage llm.Usage
		counts := map[string]int{}
		if res != nil {
			usage = res.Telemetry
			counts["tasks_analyzed"] = res.TasksAnalyzed
			counts["defaulted"] = len(res.Defaulted)
		}
		a.ctx.track(op, start, usage, counts, err)
	}()

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = a.ctx.Pipeline.ComplexityThreshold
	}
	if threshold < 1 || threshold > 10 {
		return nil, apperr.Validation(op, "threshold must be between 1 and 10, got %d", threshold).In(scope, nil)
	}

	unlock := a.ctx.lockScope(scope)
	defer unlock()

	all, err := a.ctx.listTasks(ctx, op, scope)
	if err != nil {
		return nil, err
	}
	batch, err := selectForAnalysis(op, scope, all, opts)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, apperr.Validation(op, "no tasks to analyze").In(scope, nil)
	}

	var listing strings.Builder
	analyzed := make([]complexity.Analyzed, 0, len(batch))
	for i := range batch {
		analyzed = append(analyzed, complexity.Analyzed{ID: batch[i].Number, Title: batch[i].Title})
		fmt.Fprintf(&listing, "Task %d\n%s\n\n", batch[i].Number, retrieval.FormatTask(&batch[i]))
	}

	gen, err := a.ctx.generateObject(ctx, generation{
		op:       op,
		template: prompts.AnalyzeComplexity,
		variant:  variantFor(opts.Research),
		params: prompts.Params{
			"tasks":     strings.TrimSpace(listing.String()),
			"taskCount": len(batch),
			"threshold": threshold,
		},
		research:   opts.Research,
		schemaName: "complexity analysis",
		schema:     complexitySchema,
	})
	if err != nil {
		return nil, withScope(err, scope)
	}
	out := &AnalyzeResult{Scope: scope, TasksAnalyzed: len(batch)}
	out.Telemetry.Add(gen.Telemetry)

	entries, _, err := a.ctx.Normalizer.Complexity(gen)
	if err != nil {
		return nil, withScope(err, scope)
	}

	returned := make(map[int]bool, len(entries))
	for _, e := range entries {
		returned[e.TaskID] = true
	}
	for _, t := range analyzed {
		if !returned[t.ID] {
			out.Defaulted = append(out.Defaulted, t.ID)
		}
	}
	filled := complexity.FillMissing(analyzed, entries, a.ctx.Logger)

	previous, err := a.ctx.Reports.Get(ctx, scope)
	if err != nil {
		return nil, apperr.Upstream(op, err, "load complexity report").In(scope, nil)
	}
	scopeIDs := make([]int, 0, len(all))
	for _, t := range all {
		scopeIDs = append(scopeIDs, t.Number)
	}

	report := &complexity.Report{
		Meta: complexity.Meta{
			GeneratedAt:    a.ctx.now(),
			TasksAnalyzed:  len(batch),
			ThresholdScore: threshold,
			UsedResearch:   opts.Research,
			Scope:          scope,
		},
		ComplexityAnalysis: complexity.Merge(previous, filled, scopeIDs),
	}
	if err := a.ctx.Reports.Put(ctx, scope, report); err != nil {
		return nil, apperr.Upstream(op, err, "store complexity report").In(scope, nil)
	}

	out.Report = report
	out.Stats = complexity.ComputeStats(report.ComplexityAnalysis)
	a.ctx.record(ctx, scope, 0, op, fmt.Sprintf("analyzed %d tasks (%d defaulted), report holds %d entries",
		len(batch), len(out.Defaulted), len(report.ComplexityAnalysis)))
	return out, nil
}

func selectForAnalysis(op, scope string, all []task.Task, opts AnalyzeOptions) ([]task.Task, error) {
	if len(opts.TaskIDs) > 0 {
		byNumber := task.ByNumber(all)
		seen := make(map[int]bool, len(opts.TaskIDs))
		var out []task.Task
		for _, id := range opts.TaskIDs {
			t, ok := byNumber[id]
			if !ok {
				return nil, apperr.NotFound(op, "task %d not found", id).In(scope, id)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, *t)
		}
		return out, nil
	}

	if opts.From != 0 || opts.To != 0 {
		from, to := max(opts.From, 1), opts.To
		if to == 0 {
			to = task.MaxNumber(all)
		}
		if to < from {
			return nil, apperr.Validation(op, "invalid range %d-%d", from, to).In(scope, nil)
		}
		var out []task.Task
		for _, t := range all {
			if t.Number >= from && t.Number <= to {
				out = append(out, t)
			}
		}
		return out, nil
	}

	var out []task.Task
	for _, t := range all {
		if t.Status.IsFinished() || t.Status == task.StatusCancelled {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ReportView is a stored report with its derived views.
type ReportView struct {
	Report          *complexity.Report `json:"report"`
	Stats           complexity.Stats   `json:"stats"`
	Threshold       int                `json:"threshold"`
	Recommendations []complexity.Entry `json:"recommendations"`
}

// ComplexityReport returns the scope's report, its score buckets and the tasks
// recommended for expansion.
func (a *ComplexityApp) ComplexityReport(ctx context.Context, scope string) (*ReportView, error) {
	const op = "complexityReport"
	scope = a.ctx.scope(scope)

	report, err := a.ctx.Reports.Get(ctx, scope)
	if err != nil {
		return nil, apperr.Upstream(op, err, "load complexity report").In(scope, nil)
	}
	if report == nil {
		return nil, apperr.NotFound(op, "no complexity report for scope %q; run an analysis first", scope).In(scope, nil)
	}

	threshold := report.Meta.ThresholdScore
	if threshold < 1 || threshold > 10 {
		threshold = a.ctx.Pipeline.ComplexityThreshold
	}
	return &ReportView{
		Report:          report,
		Stats:           complexity.ComputeStats(report.ComplexityAnalysis),
		Threshold:       threshold,
		Recommendations: complexity.Recommendations(report.ComplexityAnalysis, threshold),
	}, nil
}
