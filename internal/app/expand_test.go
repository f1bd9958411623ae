package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

const threeSubtasks = `{"subtasks": [
	{"id": 4, "title": "Design schema"},
	{"id": 7, "title": "Write migrations"},
	{"id": 9, "title": "Add repository tests"}
]}`

func TestExpandTask_GeneratesNumberedSubtasks(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Persistence layer", Description: "Store tasks in SQLite"})
	env.gen.object = objectReply(threeSubtasks)

	res, err := NewTaskApp(env.ctx).ExpandTask(context.Background(), "master", 1, ExpandOptions{SubtaskCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SubtasksAdded)
	assert.False(t, res.HasExistingSubtasks)

	stored := env.get(t, "master", 1)
	require.Len(t, stored.Subtasks, 3)
	for i, s := range stored.Subtasks {
		assert.Equal(t, i+1, s.Number)
		assert.Equal(t, task.StatusPending, s.Status)
	}
	assert.Equal(t, "Write migrations", stored.Subtasks[1].Title)
}

func TestExpandTask_SkipsExistingWithoutForce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{
		Title:    "Has children",
		Subtasks: []task.Subtask{{Title: "first"}, {Title: "second"}},
	})
	before := env.get(t, "master", 1).Subtasks
	app := NewTaskApp(env.ctx)

	for range 2 {
		res, err := app.ExpandTask(context.Background(), "master", 1, ExpandOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, res.SubtasksAdded)
		assert.True(t, res.HasExistingSubtasks)
		assert.True(t, res.Skipped)
	}

	if diff := cmp.Diff(before, env.get(t, "master", 1).Subtasks); diff != "" {
		t.Errorf("subtasks changed (-before +after):\n%s", diff)
	}
	assert.Empty(t, env.gen.objects, "skip must not call the model")
}

func TestExpandTask_ForceReplaces(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{
		Title:    "Has children",
		Subtasks: []task.Subtask{{Title: "old"}},
	})
	env.gen.object = objectReply(threeSubtasks)

	res, err := NewTaskApp(env.ctx).ExpandTask(context.Background(), "master", 1, ExpandOptions{Force: true, SubtaskCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SubtasksAdded)
	assert.Equal(t, 1, res.Replaced)

	stored := env.get(t, "master", 1)
	require.Len(t, stored.Subtasks, 3)
	assert.Equal(t, "Design schema", stored.Subtasks[0].Title)
}

func TestExpandTask_RejectsDoneTask(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Finished", Status: task.StatusDone})

	_, err := NewTaskApp(env.ctx).ExpandTask(context.Background(), "master", 1, ExpandOptions{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestExpandTask_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewTaskApp(env.ctx).ExpandTask(context.Background(), "master", 42, ExpandOptions{})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.Equal(t, "42", e.TaskID)
	assert.Equal(t, "master", e.Scope)
}

func TestExpandTask_UsesComplexityReport(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Auth flow"})
	require.NoError(t, env.store.Put(context.Background(), "master", &complexity.Report{
		ComplexityAnalysis: []complexity.Entry{{
			TaskID: 1, TaskTitle: "Auth flow", ComplexityScore: 8,
			RecommendedSubtasks: 3, ExpansionPrompt: "Split login from token refresh",
		}},
	}))
	env.gen.object = objectReply(threeSubtasks)

	res, err := NewTaskApp(env.ctx).ExpandTask(context.Background(), "master", 1, ExpandOptions{})
	require.NoError(t, err)
	assert.True(t, res.FromReport)
	require.Len(t, env.gen.objects, 1)
	assert.Contains(t, env.gen.objects[0].Prompt, "Split login from token refresh")
}

func TestExpandAll_ContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master",
		task.Task{Title: "One"},
		task.Task{Title: "Two"},
		task.Task{Title: "Three", Status: task.StatusDone},
		task.Task{Title: "Four", Status: task.StatusInProgress},
	)
	env.gen.object = func(n int, _ llm.ObjectRequest) (string, error) {
		if n == 1 {
			return "", errors.New("provider unavailable")
		}
		return threeSubtasks, nil
	}

	res, err := NewTaskApp(env.ctx).ExpandAll(context.Background(), "master", ExpandOptions{SubtaskCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Telemetry.Calls)

	require.Len(t, res.Items, 3)
	assert.Equal(t, []int{1, 2, 4}, []int{res.Items[0].TaskID, res.Items[1].TaskID, res.Items[2].TaskID})
	assert.False(t, res.Items[1].Success)
	require.NotNil(t, res.Items[1].Error)
	assert.Equal(t, string(apperr.KindUpstream), res.Items[1].Error.Kind)

	assert.Len(t, env.get(t, "master", 4).Subtasks, 3)
	assert.Empty(t, env.get(t, "master", 2).Subtasks)
	assert.Empty(t, env.get(t, "master", 3).Subtasks)
}

func TestExpandAll_FailsWhenEveryItemFails(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "One"}, task.Task{Title: "Two"})
	env.gen.object = objectReply("not json at all")

	res, err := NewTaskApp(env.ctx).ExpandAll(context.Background(), "master", ExpandOptions{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.Telemetry.Calls, "unusable replies still cost a call each")
	assert.True(t, errors.Is(err, apperr.ErrParse))
}

func TestExpandTask_ForceWithEmptyReplyKeepsSubtasks(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{
		Title:    "Has children",
		Subtasks: []task.Subtask{{Title: "first"}, {Title: "second"}},
	})
	before := env.get(t, "master", 1).Subtasks
	env.gen.object = objectReply(`{"subtasks": []}`)

	res, err := NewTaskApp(env.ctx).ExpandTask(context.Background(), "master", 1, ExpandOptions{Force: true, SubtaskCount: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrParse))
	require.NotNil(t, res)
	assert.Equal(t, 0, res.SubtasksAdded)
	assert.Equal(t, 1, res.Telemetry.Calls)

	if diff := cmp.Diff(before, env.get(t, "master", 1).Subtasks); diff != "" {
		t.Errorf("subtasks changed (-before +after):\n%s", diff)
	}
}
