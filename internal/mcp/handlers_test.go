package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/app"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/memory"
	"github.com/josephgoksu/taskforge/internal/prompts"
	"github.com/josephgoksu/taskforge/internal/task"
)

// scriptedGen returns the same object reply for every call.
type scriptedGen struct {
	reply string
	calls int
}

func (g *scriptedGen) GenerateObject(_ context.Context, req llm.ObjectRequest) (llm.Result, error) {
	g.calls++
	if g.reply == "" {
		return llm.Result{}, fmt.Errorf("unexpected call %q", req.Command)
	}
	return llm.Result{Kind: llm.KindText, Text: g.reply}, nil
}

func (g *scriptedGen) GenerateText(_ context.Context, req llm.Request) (llm.Result, error) {
	g.calls++
	return llm.Result{Kind: llm.KindText, Text: g.reply}, nil
}

func newTestApp(t *testing.T, gen llm.Generator) (*app.Context, *memory.SQLiteStore) {
	t.Helper()
	store, err := memory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return app.NewContext(app.Deps{
		Repo:    store,
		Reports: store,
		Gen:     gen,
		Prompts: prompts.NewResolver(afero.NewMemMapFs(), "", nil),
	}), store
}

func seed(t *testing.T, store *memory.SQLiteStore, tasks ...task.Task) {
	t.Helper()
	for _, tk := range tasks {
		_, err := store.CreateTask(context.Background(), "master", tk)
		require.NoError(t, err)
	}
}

// decode parses the tool's text content back into a generic envelope.
func decode(t *testing.T, r *ToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.JSON()), &out))
	return out
}

func TestHandleTaskTool_InvalidAction(t *testing.T) {
	a, _ := newTestApp(t, nil)

	result := HandleTaskTool(context.Background(), a, TaskToolParams{Action: "invalid_action"})

	assert.True(t, result.IsError())
	assert.Equal(t, "invalid_action", result.Action)
	require.NotNil(t, result.Envelope.Error)
	assert.Equal(t, "validation", result.Envelope.Error.Kind)
}

func TestHandleTaskTool_ParsePRDThenList(t *testing.T) {
	gen := &scriptedGen{reply: `{"tasks": [
		{"id": 1, "title": "Schema", "description": "Tables"},
		{"id": 2, "title": "API", "description": "Endpoints", "dependencies": [1]}
	]}`}
	a, _ := newTestApp(t, gen)

	created := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionParsePRD, Text: "Build a todo app", Count: 2})
	require.False(t, created.IsError(), created.JSON())
	out := decode(t, created)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 2, out["data"].(map[string]any)["tasksCreated"])

	listed := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionList})
	require.False(t, listed.IsError())
	tasks, ok := listed.Envelope.Data.([]task.Task)
	require.True(t, ok)
	require.Len(t, tasks, 2)
	assert.Equal(t, []int{1}, tasks[1].Dependencies)
}

func TestHandleTaskTool_GetValidatesID(t *testing.T) {
	a, store := newTestApp(t, nil)
	seed(t, store, task.Task{Title: "Only"})

	got := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionGet, TaskID: "1"})
	require.False(t, got.IsError())
	assert.Equal(t, "Only", got.Envelope.Data.(*task.Task).Title)

	bad := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionGet, TaskID: "one"})
	assert.True(t, bad.IsError())
	assert.Equal(t, "validation", bad.Envelope.Error.Kind)

	missing := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionExpand, TaskID: "7"})
	assert.True(t, missing.IsError())
	assert.Equal(t, "not_found", missing.Envelope.Error.Kind)
	assert.Equal(t, "7", missing.Envelope.Error.TaskID)
}

func TestHandleTaskTool_ScopeDown(t *testing.T) {
	gen := &scriptedGen{reply: `{"id": 1, "title": "Cache", "description": "Plain map"}`}
	a, store := newTestApp(t, gen)
	seed(t, store, task.Task{Title: "Cache with eviction"})

	result := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionScopeDown, TaskIDs: []string{"1"}})
	require.False(t, result.IsError(), result.JSON())
	batch := result.Envelope.Data.(*app.BatchResult)
	assert.Equal(t, 1, batch.Succeeded)

	bad := HandleTaskTool(context.Background(), a, TaskToolParams{Action: TaskActionScopeUp, TaskIDs: []string{"1.2"}})
	assert.True(t, bad.IsError())
}

func TestHandleDependencyTool(t *testing.T) {
	a, store := newTestApp(t, nil)
	seed(t, store, task.Task{Title: "A"}, task.Task{Title: "B", Dependencies: []int{1}})

	cycle := HandleDependencyTool(context.Background(), a, DependencyToolParams{Action: DependencyActionAdd, TaskID: 1, DependsOn: 2})
	assert.True(t, cycle.IsError())
	assert.Equal(t, "structural_conflict", cycle.Envelope.Error.Kind)

	valid := HandleDependencyTool(context.Background(), a, DependencyToolParams{Action: DependencyActionValidate})
	require.False(t, valid.IsError())
	assert.True(t, valid.Envelope.Data.(*app.ValidationReport).Valid)

	removed := HandleDependencyTool(context.Background(), a, DependencyToolParams{Action: DependencyActionRemove, TaskID: 2, DependsOn: 1})
	require.False(t, removed.IsError())
	assert.Empty(t, removed.Envelope.Data.(*app.DependencyResult).Dependencies)

	assert.True(t, HandleDependencyTool(context.Background(), a, DependencyToolParams{Action: "fix"}).IsError())
}

func TestHandleComplexityTool_ReportMissing(t *testing.T) {
	a, _ := newTestApp(t, nil)

	result := HandleComplexityTool(context.Background(), a, ComplexityToolParams{Action: ComplexityActionReport})
	assert.True(t, result.IsError())
	assert.Equal(t, "not_found", result.Envelope.Error.Kind)
}

func TestHandleSearchAndContextTools(t *testing.T) {
	a, store := newTestApp(t, nil)
	seed(t, store,
		task.Task{Title: "Auth tokens", Description: "Issue and refresh tokens"},
		task.Task{Title: "Landing page", Description: "Marketing copy"},
	)

	search := HandleSearchTool(context.Background(), a, SearchToolParams{Query: "refresh tokens"})
	require.False(t, search.IsError())
	assert.Equal(t, "1", search.Envelope.Data.(*app.SearchResult).IDs[0])

	empty := HandleSearchTool(context.Background(), a, SearchToolParams{Query: " "})
	assert.True(t, empty.IsError())

	gathered := HandleContextTool(context.Background(), a, ContextToolParams{TaskIDs: []string{"1"}})
	require.False(t, gathered.IsError(), gathered.JSON())
	out := decode(t, gathered)
	assert.Contains(t, out["data"].(map[string]any)["context"], "Auth tokens")
}
