// Package mcp maps MCP tool calls onto the task pipeline operations.
package mcp

// === Action Constants ===

// TaskAction defines the valid actions for the unified tasks tool.
type TaskAction string

const (
	TaskActionList          TaskAction = "list"
	TaskActionGet           TaskAction = "get"
	TaskActionParsePRD      TaskAction = "parse_prd"
	TaskActionExpand        TaskAction = "expand"
	TaskActionExpandAll     TaskAction = "expand_all"
	TaskActionUpdate        TaskAction = "update"
	TaskActionUpdateSubtask TaskAction = "update_subtask"
	TaskActionScopeUp       TaskAction = "scope_up"
	TaskActionScopeDown     TaskAction = "scope_down"
)

// ValidTaskActions returns all valid task actions.
func ValidTaskActions() []TaskAction {
	return []TaskAction{
		TaskActionList, TaskActionGet, TaskActionParsePRD, TaskActionExpand, TaskActionExpandAll,
		TaskActionUpdate, TaskActionUpdateSubtask, TaskActionScopeUp, TaskActionScopeDown,
	}
}

// IsValid checks if the action is a valid task action.
func (a TaskAction) IsValid() bool {
	for _, v := range ValidTaskActions() {
		if a == v {
			return true
		}
	}
	return false
}

// ComplexityAction defines the valid actions for the complexity tool.
type ComplexityAction string

const (
	ComplexityActionAnalyze ComplexityAction = "analyze"
	ComplexityActionReport  ComplexityAction = "report"
)

// IsValid checks if the action is a valid complexity action.
func (a ComplexityAction) IsValid() bool {
	switch a {
	case ComplexityActionAnalyze, ComplexityActionReport:
		return true
	}
	return false
}

// DependencyAction defines the valid actions for the dependencies tool.
type DependencyAction string

const (
	DependencyActionAdd      DependencyAction = "add"
	DependencyActionRemove   DependencyAction = "remove"
	DependencyActionValidate DependencyAction = "validate"
)

// IsValid checks if the action is a valid dependency action.
func (a DependencyAction) IsValid() bool {
	switch a {
	case DependencyActionAdd, DependencyActionRemove, DependencyActionValidate:
		return true
	}
	return false
}

// === Tool Parameters ===

// TaskToolParams defines the parameters for the unified tasks tool.
type TaskToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: list, get, parse_prd, expand, expand_all, update,
	// update_subtask, scope_up, scope_down
	Action TaskAction `json:"action"`

	// Scope names the task list. Optional (default: configured scope).
	Scope string `json:"scope,omitempty"`

	// TaskID is a task number, or <task>.<subtask> for update_subtask.
	// Required for: get, expand, update, update_subtask
	TaskID string `json:"task_id,omitempty"`

	// TaskIDs lists task numbers.
	// Required for: scope_up, scope_down
	TaskIDs []string `json:"task_ids,omitempty"`

	// Text is the requirements document.
	// Required for: parse_prd
	Text string `json:"text,omitempty"`

	// Prompt is the new information or extra guidance.
	// Required for: update, update_subtask. Optional for: expand, expand_all, scope_up, scope_down
	Prompt string `json:"prompt,omitempty"`

	// Count is the number of tasks (parse_prd) or subtasks (expand, expand_all).
	// Optional. 0 uses the configured default or the complexity report.
	Count int `json:"count,omitempty"`

	// Append adds tasks after existing ones (parse_prd) or notes to the task (update).
	Append bool `json:"append,omitempty"`

	// Force replaces existing tasks (parse_prd) or subtasks (expand, expand_all).
	Force bool `json:"force,omitempty"`

	// Research uses the research model.
	Research bool `json:"research,omitempty"`

	// Strength is light, regular or heavy. Optional for: scope_up, scope_down
	Strength string `json:"strength,omitempty"`

	// AllowStatusChange lets the model change the task status. Optional for: update
	AllowStatusChange bool `json:"allow_status_change,omitempty"`
}

// ComplexityToolParams defines the parameters for the complexity tool.
type ComplexityToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: analyze, report
	Action ComplexityAction `json:"action"`

	Scope string `json:"scope,omitempty"`

	// TaskIDs restricts the analysis to these tasks. Optional for: analyze
	TaskIDs []string `json:"task_ids,omitempty"`

	// From and To bound a task range. Optional for: analyze
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`

	// Threshold is the recommendation cutoff (1-10). Optional for: analyze
	Threshold int `json:"threshold,omitempty"`

	Research bool `json:"research,omitempty"`
}

// DependencyToolParams defines the parameters for the dependencies tool.
type DependencyToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: add, remove, validate
	Action DependencyAction `json:"action"`

	Scope string `json:"scope,omitempty"`

	// TaskID depends on DependsOn. Required for: add, remove
	TaskID    int `json:"task_id,omitempty"`
	DependsOn int `json:"depends_on,omitempty"`
}

// SearchToolParams defines the parameters for the search tool.
type SearchToolParams struct {
	Query      string `json:"query"`
	Scope      string `json:"scope,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
	Recent     bool   `json:"recent,omitempty"`
	Categories bool   `json:"categories,omitempty"`
}

// ContextToolParams defines the parameters for the context tool.
type ContextToolParams struct {
	Scope       string   `json:"scope,omitempty"`
	TaskIDs     []string `json:"task_ids,omitempty"`
	Files       []string `json:"files,omitempty"`
	Note        string   `json:"note,omitempty"`
	ProjectTree bool     `json:"project_tree,omitempty"`
	// Format is human or ai (default: ai)
	Format string `json:"format,omitempty"`
}
