package mcp

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/retrieval"
)

// ToolResult is the outcome of one tool call: the operation's envelope.
type ToolResult struct {
	Action   string       `json:"action"`
	Envelope app.Envelope `json:"envelope"`
}

// IsError reports whether the operation failed.
func (r *ToolResult) IsError() bool {
	return !r.Envelope.Success
}

// JSON renders the envelope as the tool's text content.
func (r *ToolResult) JSON() string {
	data, err := json.Marshal(r.Envelope)
	if err != nil {
		// Only reachable with unmarshalable data; report it in the same shape.
		data, _ = json.Marshal(app.Respond(nil, apperr.Upstream(r.Action, err, "encode result")))
	}
	return string(data)
}

func respond(action string, data any, err error) *ToolResult {
	return &ToolResult{Action: action, Envelope: app.Respond(data, err)}
}

func invalidAction(op, action string, valid string) *ToolResult {
	return respond(action, nil, apperr.Validation(op, "invalid action %q, must be one of: %s", action, valid))
}

// taskNumber parses a task id given as text.
func taskNumber(op, id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n < 1 {
		return 0, apperr.Validation(op, "task_id must be a task number, got %q", id)
	}
	return n, nil
}

// HandleTaskTool is the unified handler for task operations.
// It routes to the app layer based on the action parameter.
func HandleTaskTool(ctx context.Context, a *app.Context, params TaskToolParams) *ToolResult {
	const op = "tasks"
	if !params.Action.IsValid() {
		return invalidAction(op, string(params.Action),
			"list, get, parse_prd, expand, expand_all, update, update_subtask, scope_up, scope_down")
	}
	action := string(params.Action)
	tasks := app.NewTaskApp(a)

	switch params.Action {
	case TaskActionList:
		res, err := tasks.ListTasks(ctx, params.Scope)
		return respond(action, res, err)

	case TaskActionGet:
		n, err := taskNumber("getTask", params.TaskID)
		if err != nil {
			return respond(action, nil, err)
		}
		res, err := tasks.GetTask(ctx, params.Scope, n)
		return respond(action, res, err)

	case TaskActionParsePRD:
		res, err := tasks.SynthesizeTasks(ctx, params.Scope, params.Text, params.Count, app.SynthesizeOptions{
			Append:    params.Append,
			Overwrite: params.Force,
			Research:  params.Research,
		})
		return respond(action, res, err)

	case TaskActionExpand:
		n, err := taskNumber("expandTask", params.TaskID)
		if err != nil {
			return respond(action, nil, err)
		}
		res, err := tasks.ExpandTask(ctx, params.Scope, n, expandOptions(params))
		return respond(action, res, err)

	case TaskActionExpandAll:
		res, err := tasks.ExpandAll(ctx, params.Scope, expandOptions(params))
		return respond(action, res, err)

	case TaskActionUpdate:
		n, err := taskNumber("updateTask", params.TaskID)
		if err != nil {
			return respond(action, nil, err)
		}
		res, err := tasks.UpdateTask(ctx, params.Scope, n, params.Prompt, app.UpdateOptions{
			Append:            params.Append,
			Research:          params.Research,
			AllowStatusChange: params.AllowStatusChange,
		})
		return respond(action, res, err)

	case TaskActionUpdateSubtask:
		res, err := tasks.UpdateSubtask(ctx, params.Scope, params.TaskID, params.Prompt, app.UpdateSubtaskOptions{
			Research: params.Research,
		})
		return respond(action, res, err)

	default: // scope_up, scope_down
		numbers, err := app.ParseTaskIDs(params.TaskIDs)
		if err != nil {
			return respond(action, nil, err)
		}
		dir := app.DirectionUp
		if params.Action == TaskActionScopeDown {
			dir = app.DirectionDown
		}
		res, err := tasks.AdjustScope(ctx, params.Scope, numbers, app.AdjustOptions{
			Direction: dir,
			Strength:  app.Strength(params.Strength),
			Prompt:    params.Prompt,
			Research:  params.Research,
		})
		return respond(action, res, err)
	}
}

func expandOptions(p TaskToolParams) app.ExpandOptions {
	return app.ExpandOptions{
		SubtaskCount: p.Count,
		Prompt:       p.Prompt,
		Research:     p.Research,
		Force:        p.Force,
	}
}

// HandleComplexityTool runs a complexity analysis or returns the stored report.
func HandleComplexityTool(ctx context.Context, a *app.Context, params ComplexityToolParams) *ToolResult {
	if !params.Action.IsValid() {
		return invalidAction("complexity", string(params.Action), "analyze, report")
	}
	action := string(params.Action)
	svc := app.NewComplexityApp(a)

	if params.Action == ComplexityActionReport {
		res, err := svc.ComplexityReport(ctx, params.Scope)
		return respond(action, res, err)
	}

	ids, err := app.ParseTaskIDs(params.TaskIDs)
	if err != nil {
		return respond(action, nil, err)
	}
	res, err := svc.AnalyzeComplexity(ctx, params.Scope, app.AnalyzeOptions{
		TaskIDs:   ids,
		From:      params.From,
		To:        params.To,
		Threshold: params.Threshold,
		Research:  params.Research,
	})
	return respond(action, res, err)
}

// HandleDependencyTool adds, removes or validates dependency edges.
func HandleDependencyTool(ctx context.Context, a *app.Context, params DependencyToolParams) *ToolResult {
	if !params.Action.IsValid() {
		return invalidAction("dependencies", string(params.Action), "add, remove, validate")
	}
	action := string(params.Action)
	svc := app.NewDependencyApp(a)

	switch params.Action {
	case DependencyActionAdd:
		res, err := svc.AddDependency(ctx, params.Scope, params.TaskID, params.DependsOn)
		return respond(action, res, err)
	case DependencyActionRemove:
		res, err := svc.RemoveDependency(ctx, params.Scope, params.TaskID, params.DependsOn)
		return respond(action, res, err)
	default:
		res, err := svc.ValidateDependencies(ctx, params.Scope)
		return respond(action, res, err)
	}
}

// HandleSearchTool ranks tasks and subtasks against a query.
func HandleSearchTool(ctx context.Context, a *app.Context, params SearchToolParams) *ToolResult {
	res, err := app.NewSearchApp(a).SearchTasks(ctx, params.Scope, params.Query, app.SearchOptions{
		MaxResults:             params.MaxResults,
		IncludeRecent:          params.Recent,
		IncludeCategoryMatches: params.Categories,
	})
	return respond("search", res, err)
}

// HandleContextTool assembles a context block. The format defaults to ai.
func HandleContextTool(ctx context.Context, a *app.Context, params ContextToolParams) *ToolResult {
	format := retrieval.Format(params.Format)
	if format == "" {
		format = retrieval.FormatAI
	}
	res, err := app.NewSearchApp(a).GatherContext(ctx, retrieval.GatherRequest{
		Scope:              params.Scope,
		TaskIDs:            params.TaskIDs,
		FilePaths:          params.Files,
		CustomContext:      params.Note,
		IncludeProjectTree: params.ProjectTree,
		Format:             format,
	})
	return respond("context", res, err)
}
