package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

func TestSynthesizeTasks_DropsUnresolvableDependency(t *testing.T) {
	env := newTestEnv(t)
	env.gen.object = objectReply("Here you go:\n```json\n" + `{"tasks": [
		{"id": 1, "title": "Set up repository", "description": "Init the project"},
		{"id": 2, "title": "Build API", "description": "HTTP endpoints", "dependencies": [5]},
		{"id": 3, "title": "Build UI", "description": "Screens", "dependencies": [1, 2]}
	]}` + "\n```")

	res, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "", "Build a todo app", 3, SynthesizeOptions{})
	require.NoError(t, err)

	assert.Equal(t, task.DefaultScope, res.Scope)
	assert.Equal(t, 3, res.TasksCreated)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 2, res.Dropped[0].Task)
	assert.Equal(t, 5, res.Dropped[0].Ref)

	for i, want := range []int{1, 2, 3} {
		assert.Equal(t, want, res.Tasks[i].Number)
	}
	assert.Empty(t, env.get(t, "master", 2).Dependencies)
	assert.Equal(t, []int{1, 2}, env.get(t, "master", 3).Dependencies)
	assert.Equal(t, task.StatusPending, env.get(t, "master", 1).Status)
	assert.Equal(t, task.PriorityMedium, env.get(t, "master", 1).Priority)

	assert.Equal(t, 1, res.Telemetry.Calls)
	assert.Equal(t, 100, res.Telemetry.InputTokens)
}

func TestSynthesizeTasks_AppendContinuesNumbering(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "feature",
		task.Task{Title: "Existing one"},
		task.Task{Title: "Existing two"},
	)
	env.gen.object = objectReply(`[
		{"id": 1, "title": "New first"},
		{"id": 2, "title": "New second", "dependencies": [1]}
	]`)

	res, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "feature", "more work", 2, SynthesizeOptions{Append: true})
	require.NoError(t, err)
	require.Equal(t, 2, res.TasksCreated)
	assert.Equal(t, 3, res.Tasks[0].Number)
	assert.Equal(t, 4, res.Tasks[1].Number)
	assert.Equal(t, []int{3}, env.get(t, "feature", 4).Dependencies)

	// Every dependency points at a lower number.
	tasks, err := env.store.ListTasks(context.Background(), "feature")
	require.NoError(t, err)
	for _, tk := range tasks {
		for _, dep := range tk.Dependencies {
			assert.Less(t, dep, tk.Number)
		}
	}
}

func TestSynthesizeTasks_ExistingScopeNeedsMode(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Existing"})

	_, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "master", "prd", 2, SynthesizeOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Empty(t, env.gen.objects, "no model call before validation")
}

func TestSynthesizeTasks_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	app := NewTaskApp(env.ctx)
	ctx := context.Background()

	tests := []struct {
		name  string
		text  string
		count int
		opts  SynthesizeOptions
	}{
		{"empty text", "  ", 3, SynthesizeOptions{}},
		{"negative count", "prd", -1, SynthesizeOptions{}},
		{"append and overwrite", "prd", 3, SynthesizeOptions{Append: true, Overwrite: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.SynthesizeTasks(ctx, "master", tt.text, tt.count, tt.opts)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestSynthesizeTasks_Overwrite(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Old one"}, task.Task{Title: "Old two"}, task.Task{Title: "Old three"})
	env.gen.object = objectReply(`{"tasks": [{"id": 1, "title": "Fresh start"}]}`)

	res, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "master", "prd", 1, SynthesizeOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tasks[0].Number)

	tasks, err := env.store.ListTasks(context.Background(), "master")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Fresh start", tasks[0].Title)
}

func TestSynthesizeTasks_OverwriteDropsComplexityReport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Old auth flow"})
	require.NoError(t, env.store.Put(ctx, "master", &complexity.Report{
		Meta: complexity.Meta{Scope: "master"},
		ComplexityAnalysis: []complexity.Entry{{
			TaskID: 1, TaskTitle: "Old auth flow", ComplexityScore: 9,
			RecommendedSubtasks: 3, ExpansionPrompt: "Split the legacy session code",
		}},
	}))
	env.gen.object = func(n int, _ llm.ObjectRequest) (string, error) {
		if n == 0 {
			return `{"tasks": [{"id": 1, "title": "Billing export"}]}`, nil
		}
		return threeSubtasks, nil
	}
	app := NewTaskApp(env.ctx)

	_, err := app.SynthesizeTasks(ctx, "master", "prd", 1, SynthesizeOptions{Overwrite: true})
	require.NoError(t, err)

	report, err := env.store.Get(ctx, "master")
	require.NoError(t, err)
	assert.Nil(t, report)

	res, err := app.ExpandTask(ctx, "master", 1, ExpandOptions{})
	require.NoError(t, err)
	assert.False(t, res.FromReport)
	require.Len(t, env.gen.objects, 2)
	assert.NotContains(t, env.gen.objects[1].Prompt, "Split the legacy session code")
}

func TestSynthesizeTasks_OverwriteKeepsScopeOnParseFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Keep me"})
	env.gen.object = objectReply("I could not produce any tasks, sorry.")

	_, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "master", "prd", 1, SynthesizeOptions{Overwrite: true})
	require.Error(t, err)
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "master", e.Scope)
	assert.Equal(t, "Keep me", env.get(t, "master", 1).Title)
}

func TestSynthesizeTasks_DuplicateLocalIDs(t *testing.T) {
	env := newTestEnv(t)
	env.gen.object = objectReply(`[{"id": 1, "title": "A"}, {"id": 1, "title": "B"}]`)

	_, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "master", "prd", 2, SynthesizeOptions{})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	tasks, listErr := env.store.ListTasks(context.Background(), "master")
	require.NoError(t, listErr)
	assert.Empty(t, tasks)
}

func TestSynthesizeTasks_ResearchUsesResearchRole(t *testing.T) {
	env := newTestEnv(t)
	env.gen.object = objectReply(`[{"id": 1, "title": "A"}]`)

	_, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "master", "prd", 0, SynthesizeOptions{Research: true})
	require.NoError(t, err)
	require.Len(t, env.gen.objects, 1)
	assert.Equal(t, llm.RoleResearch, env.gen.objects[0].Role)
	assert.Equal(t, "synthesizeTasks", env.gen.objects[0].Command)
	assert.Contains(t, env.gen.objects[0].Prompt, "prd")
}

func TestSynthesizeTasks_RecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	env.gen.object = objectReply(`[{"id": 1, "title": "A"}, {"id": 2, "title": "B"}]`)

	_, err := NewTaskApp(env.ctx).SynthesizeTasks(context.Background(), "master", "prd", 2, SynthesizeOptions{})
	require.NoError(t, err)

	history, err := env.store.ListHistory(context.Background(), "master", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "synthesizeTasks", history[0].Operation)
	assert.Contains(t, history[0].Summary, "created 2 tasks")
}
