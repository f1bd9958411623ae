// Package app provides the application layer that orchestrates the pipeline.
// This layer sits between CLI/MCP handlers and the pipeline components, so both
// transports call the same operations and return the same envelopes.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/config"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/normalize"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/retrieval"
	"github.com/josephgoksu/taskforge/internal/task"
	"github.com/josephgoksu/taskforge/internal/telemetry"
)

// PromptLoader is the Prompt Resolver contract.
type PromptLoader interface {
	Load(name string, params prompts.Params, variant string) (prompts.Pair, error)
}

// Deps are the collaborators shared by every app service.
type Deps struct {
	Repo       task.Repository
	Reports    complexity.Store
	Gen        llm.Generator
	Prompts    PromptLoader
	Normalizer *normalize.Normalizer
	Ranker     *retrieval.Ranker
	Gatherer   *retrieval.Gatherer
	Telemetry  telemetry.Client
	Pipeline   config.PipelineConfig
	Logger     *slog.Logger
	Now        func() time.Time
}

// Context holds shared dependencies for all app services plus the per-scope
// locks that serialize mutating operations.
type Context struct {
	Deps
	locks *scopeLocks
}

// NewContext fills unset dependencies with defaults. Repo, Reports and Prompts
// are required for every operation; Gen only for the AI-backed ones.
func NewContext(d Deps) *Context {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Normalizer == nil {
		d.Normalizer = normalize.New(d.Logger)
	}
	if d.Ranker == nil {
		d.Ranker = retrieval.NewRanker(task.NewCategories(nil))
	}
	if d.Gatherer == nil {
		d.Gatherer = retrieval.NewGatherer(d.Repo, nil, retrieval.GathererConfig{}, d.Logger)
	}
	if d.Telemetry == nil {
		d.Telemetry = telemetry.NewNoopClient()
	}
	if d.Pipeline == (config.PipelineConfig{}) {
		d.Pipeline = config.DefaultPipelineConfig()
	}
	return &Context{Deps: d, locks: &scopeLocks{m: make(map[string]*sync.Mutex)}}
}

// scopeLocks hands out one mutex per scope.
type scopeLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *scopeLocks) lock(scope string) func() {
	l.mu.Lock()
	m, ok := l.m[scope]
	if !ok {
		m = &sync.Mutex{}
		l.m[scope] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// lockScope serializes read-modify-write sequences on one scope.
func (c *Context) lockScope(scope string) func() {
	return c.locks.lock(scope)
}

// scope returns s, or the configured default scope when s is empty.
func (c *Context) scope(s string) string {
	if s == "" {
		return c.Pipeline.DefaultScope
	}
	return s
}

func (c *Context) now() time.Time {
	return c.Now().UTC()
}

// generation is one prompt-resolve + generate call.
type generation struct {
	op       string
	template string
	variant  string
	params   prompts.Params
	research bool

	// schemaName and schema are set for object generation.
	schemaName string
	schema     string
}

func (c *Context) resolve(g generation) (prompts.Pair, error) {
	pair, err := c.Prompts.Load(g.template, g.params, g.variant)
	if err != nil {
		return prompts.Pair{}, apperr.Upstream(g.op, err, "load prompt %s", g.template)
	}
	return pair, nil
}

func (c *Context) generateObject(ctx context.Context, g generation) (llm.Result, error) {
	pair, err := c.resolve(g)
	if err != nil {
		return llm.Result{}, err
	}
	return c.Gen.GenerateObject(ctx, llm.ObjectRequest{
		Request: llm.Request{
			Role:         llm.RoleFor(g.research),
			SystemPrompt: pair.System,
			Prompt:       pair.User,
			Command:      g.op,
		},
		SchemaName: g.schemaName,
		Schema:     g.schema,
	})
}

func (c *Context) generateText(ctx context.Context, g generation) (llm.Result, error) {
	pair, err := c.resolve(g)
	if err != nil {
		return llm.Result{}, err
	}
	return c.Gen.GenerateText(ctx, llm.Request{
		Role:         llm.RoleFor(g.research),
		SystemPrompt: pair.System,
		Prompt:       pair.User,
		Command:      g.op,
	})
}

// variantFor picks the research variant when asked for.
func variantFor(research bool) string {
	if research {
		return "research"
	}
	return prompts.DefaultVariant
}

// getTask loads a task or fails with NotFound.
func (c *Context) getTask(ctx context.Context, op, scope string, number int) (*task.Task, error) {
	if number < 1 {
		return nil, apperr.Validation(op, "invalid task id %d", number).In(scope, nil)
	}
	t, err := c.Repo.GetTask(ctx, scope, number)
	if err != nil {
		return nil, apperr.Upstream(op, err, "load task %d", number).In(scope, number)
	}
	if t == nil {
		return nil, apperr.NotFound(op, "task %d not found", number).In(scope, number)
	}
	return t, nil
}

func (c *Context) listTasks(ctx context.Context, op, scope string) ([]task.Task, error) {
	tasks, err := c.Repo.ListTasks(ctx, scope)
	if err != nil {
		return nil, apperr.Upstream(op, err, "list tasks").In(scope, nil)
	}
	return tasks, nil
}

// relatedContext ranks the scope's tasks against query and gathers the best
// matches into an AI-formatted context string. Failures only cost context.
func (c *Context) relatedContext(ctx context.Context, scope, query string, exclude int) string {
	if c.Pipeline.ContextTasks <= 0 {
		return ""
	}
	tasks, err := c.Repo.ListTasks(ctx, scope)
	if err != nil {
		c.Logger.Warn("related context unavailable", "scope", scope, "error", err)
		return ""
	}

	var ids []string
	ranked := c.Ranker.Rank(retrieval.Flatten(tasks), query, retrieval.RankOptions{
		MaxResults:             c.Pipeline.ContextTasks + 1,
		IncludeCategoryMatches: true,
	})
	for _, s := range ranked {
		if s.Item.TaskNumber == exclude || s.Item.SubNumber != 0 {
			continue
		}
		ids = append(ids, s.Item.ID)
		if len(ids) == c.Pipeline.ContextTasks {
			break
		}
	}
	if len(ids) == 0 {
		return ""
	}

	gathered, err := c.Gatherer.Gather(ctx, retrieval.GatherRequest{Scope: scope, TaskIDs: ids, Format: retrieval.FormatAI})
	if err != nil {
		c.Logger.Warn("related context unavailable", "scope", scope, "error", err)
		return ""
	}
	c.Logger.Debug("gathered related context", "scope", scope, "tasks", ids, "tokens", gathered.Breakdown.Total)
	return gathered.Context
}

// record appends an audit entry. A failed write is logged, not returned: the
// operation it describes has already been persisted.
func (c *Context) record(ctx context.Context, scope string, number int, op, summary string) {
	entry := task.HistoryEntry{Scope: scope, TaskNumber: number, Operation: op, Summary: summary, CreatedAt: c.now()}
	if err := c.Repo.AppendHistory(ctx, entry); err != nil {
		c.Logger.Warn("history entry not written", "scope", scope, "task", number, "op", op, "error", err)
	}
}

// track reports a finished operation to telemetry.
func (c *Context) track(op string, start time.Time, usage llm.Usage, counts map[string]int, err error) {
	telemetry.TrackOperation(c.Telemetry, telemetry.Operation{
		Name:      op,
		Duration:  c.Now().Sub(start),
		Usage:     usage,
		ErrorKind: errorKind(err),
		Counts:    counts,
	})
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return string(apperr.KindUpstream)
}

// taskJSON renders a task for prompts that ask the model to return it rewritten.
func taskJSON(t *task.Task) string {
	view := struct {
		ID           int             `json:"id"`
		Title        string          `json:"title"`
		Description  string          `json:"description"`
		Details      string          `json:"details"`
		TestStrategy string          `json:"testStrategy"`
		Priority     task.Priority   `json:"priority"`
		Status       task.TaskStatus `json:"status"`
		Dependencies []int           `json:"dependencies"`
		Subtasks     []task.Subtask  `json:"subtasks,omitempty"`
	}{
		ID:           t.Number,
		Title:        t.Title,
		Description:  t.Description,
		Details:      t.Details.Implementation,
		TestStrategy: t.Details.TestStrategy,
		Priority:     t.Priority,
		Status:       t.Status,
		Dependencies: t.Dependencies,
		Subtasks:     t.Subtasks,
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return retrieval.FormatTask(t)
	}
	return string(data)
}
