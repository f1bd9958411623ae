package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/llm"
	"github.com/josephgoksu/taskforge/internal/task"
)

func seedUpdatable(t *testing.T, env *testEnv) {
	t.Helper()
	env.seed(t, "master",
		task.Task{Title: "Base"},
		task.Task{
			Title:        "Login page",
			Description:  "Email and password form",
			Status:       task.StatusInProgress,
			Dependencies: []int{1},
			Details:      task.Details{Implementation: "Use the form component."},
			Subtasks: []task.Subtask{
				{Title: "Markup", Status: task.StatusDone},
				{Title: "Validation"},
			},
		},
	)
}

func TestUpdateTask_RestoresIdentity(t *testing.T) {
	env := newTestEnv(t)
	seedUpdatable(t, env)
	env.gen.object = objectReply(`{"id": 9, "title": "Login page with SSO", "description": "Add Google sign-in",
		"details": "Use the OAuth client.", "priority": "high", "status": "done",
		"subtasks": [{"id": 1, "title": "Markup rewritten", "status": "pending"}, {"id": 2, "title": "SSO button"}]}`)

	res, err := NewTaskApp(env.ctx).UpdateTask(context.Background(), "master", 2, "We now need Google sign-in", UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "full", res.Mode)

	got := env.get(t, "master", 2)
	assert.Equal(t, 2, got.Number)
	assert.Equal(t, "Login page with SSO", got.Title)
	assert.Equal(t, task.StatusInProgress, got.Status, "status restored")
	assert.Equal(t, task.PriorityHigh, got.Priority)
	assert.Equal(t, []int{1}, got.Dependencies, "dependencies kept")
	assert.Equal(t, "Use the OAuth client.", got.Details.Implementation)

	require.NotEmpty(t, got.Subtasks)
	assert.Equal(t, "Markup", got.Subtasks[0].Title, "done subtask preserved")
	assert.Equal(t, task.StatusDone, got.Subtasks[0].Status)
	for i, s := range got.Subtasks {
		assert.Equal(t, i+1, s.Number)
	}
}

type countingRepo struct {
	task.Repository
	updates, replaces int
}

func (r *countingRepo) UpdateTask(ctx context.Context, scope string, number int, patch task.Patch) (*task.Task, error) {
	r.updates++
	return r.Repository.UpdateTask(ctx, scope, number, patch)
}

func (r *countingRepo) ReplaceSubtasks(ctx context.Context, scope string, number int, subtasks []task.Subtask) error {
	r.replaces++
	return r.Repository.ReplaceSubtasks(ctx, scope, number, subtasks)
}

func TestUpdateTask_RewriteIsOneWrite(t *testing.T) {
	env := newTestEnv(t)
	seedUpdatable(t, env)
	env.gen.object = objectReply(`{"id": 2, "title": "Login page", "subtasks": [{"id": 1, "title": "Rate limiting"}]}`)
	repo := &countingRepo{Repository: env.store}
	d := env.ctx.Deps
	d.Repo = repo

	res, err := NewTaskApp(NewContext(d)).UpdateTask(context.Background(), "master", 2, "add rate limiting", UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.updates)
	assert.Zero(t, repo.replaces)

	require.NotNil(t, res.Task)
	titles := make([]string, 0, len(res.Task.Subtasks))
	for _, s := range res.Task.Subtasks {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Markup", "Rate limiting"}, titles)
}

func TestUpdateTask_AllowStatusChange(t *testing.T) {
	env := newTestEnv(t)
	seedUpdatable(t, env)
	env.gen.object = objectReply(`{"id": 2, "title": "Login page", "status": "review"}`)

	_, err := NewTaskApp(env.ctx).UpdateTask(context.Background(), "master", 2, "ready for review", UpdateOptions{AllowStatusChange: true})
	require.NoError(t, err)
	assert.Equal(t, task.StatusReview, env.get(t, "master", 2).Status)
}

func TestUpdateTask_AppendMode(t *testing.T) {
	env := newTestEnv(t)
	seedUpdatable(t, env)
	env.gen.text = func(int, llm.Request) (string, error) { return "  Rate limit login attempts.\n", nil }

	res, err := NewTaskApp(env.ctx).UpdateTask(context.Background(), "master", 2, "security notes", UpdateOptions{Append: true})
	require.NoError(t, err)
	assert.Equal(t, "append", res.Mode)
	assert.Equal(t, "Rate limit login attempts.", res.Appended)

	details := env.get(t, "master", 2).Details.Implementation
	assert.True(t, strings.HasPrefix(details, "Use the form component.\n\n<info added on 2025-03-14T09:30:00Z>"), details)
	assert.True(t, strings.HasSuffix(details, "Rate limit login attempts.\n</info added on 2025-03-14T09:30:00Z>"), details)
	assert.Empty(t, env.gen.objects)
}

func TestUpdateTask_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Shipped", Status: task.StatusDone})
	app := NewTaskApp(env.ctx)

	_, err := app.UpdateTask(context.Background(), "master", 1, "change it", UpdateOptions{})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "done task")

	_, err = app.UpdateTask(context.Background(), "master", 1, " ", UpdateOptions{})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "empty prompt")

	_, err = app.UpdateTask(context.Background(), "master", 5, "change it", UpdateOptions{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateTask_ParseErrorLeavesTaskAlone(t *testing.T) {
	env := newTestEnv(t)
	seedUpdatable(t, env)
	env.gen.object = objectReply(`{"id": 2, "description": "no title"}`)

	_, err := NewTaskApp(env.ctx).UpdateTask(context.Background(), "master", 2, "anything", UpdateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrParse))
	assert.Equal(t, "Login page", env.get(t, "master", 2).Title)
}

func TestUpdateSubtask(t *testing.T) {
	env := newTestEnv(t)
	seedUpdatable(t, env)
	env.gen.text = func(int, llm.Request) (string, error) { return "Validate on blur.", nil }
	app := NewTaskApp(env.ctx)

	res, err := app.UpdateSubtask(context.Background(), "master", "2.2", "validation timing", UpdateSubtaskOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2.2", res.TaskID)

	got := env.get(t, "master", 2)
	assert.Contains(t, got.Subtasks[1].Details.Implementation, "Validate on blur.")
	assert.Empty(t, got.Subtasks[0].Details.Implementation)

	_, err = app.UpdateSubtask(context.Background(), "master", "2.7", "x", UpdateSubtaskOptions{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = app.UpdateSubtask(context.Background(), "master", "2", "x", UpdateSubtaskOptions{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAdjustScope(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master",
		task.Task{Title: "Cache"},
		task.Task{Title: "Done already", Status: task.StatusDone},
	)
	env.gen.object = objectReply(`{"id": 1, "title": "Cache with eviction and metrics", "details": "LRU plus counters"}`)

	res, err := NewTaskApp(env.ctx).AdjustScope(context.Background(), "master", []int{1, 2, 3}, AdjustOptions{Direction: DirectionUp})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, string(apperr.KindValidation), res.Items[1].Error.Kind)
	assert.Equal(t, string(apperr.KindNotFound), res.Items[2].Error.Kind)

	assert.Equal(t, "Cache with eviction and metrics", env.get(t, "master", 1).Title)
	require.Len(t, env.gen.objects, 1)
	assert.Equal(t, "scopeUp", env.gen.objects[0].Command)
}

func TestAdjustScope_CountsCallsOfUnusableReplies(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "Cache"}, task.Task{Title: "Queue"})
	env.gen.object = func(n int, _ llm.ObjectRequest) (string, error) {
		if n == 0 {
			return `{"id": 1, "description": "no title"}`, nil
		}
		return `{"id": 2, "title": "Queue, trimmed"}`, nil
	}

	res, err := NewTaskApp(env.ctx).AdjustScope(context.Background(), "master", []int{1, 2}, AdjustOptions{Direction: DirectionDown})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Nil(t, res.Items[0].Task)
	assert.Equal(t, 2, res.Telemetry.Calls)
	assert.Equal(t, "Cache", env.get(t, "master", 1).Title)
	assert.Equal(t, "Queue, trimmed", env.get(t, "master", 2).Title)
}

func TestAdjustScope_Validation(t *testing.T) {
	env := newTestEnv(t)
	app := NewTaskApp(env.ctx)

	_, err := app.AdjustScope(context.Background(), "master", []int{1}, AdjustOptions{Direction: "sideways"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = app.AdjustScope(context.Background(), "master", []int{1}, AdjustOptions{Direction: DirectionDown, Strength: "extreme"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = app.AdjustScope(context.Background(), "master", nil, AdjustOptions{Direction: DirectionDown})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestParseTaskIDs(t *testing.T) {
	ids, err := ParseTaskIDs([]string{"1", " 4", "10"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 10}, ids)

	_, err = ParseTaskIDs([]string{"1.2"})
	assert.Error(t, err)
	_, err = ParseTaskIDs([]string{"abc"})
	assert.Error(t, err)
}

func TestListAndGetTask(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "First"}, task.Task{Title: "Second"})
	app := NewTaskApp(env.ctx)

	tasks, err := app.ListTasks(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Second", tasks[1].Title)

	got, err := app.GetTask(context.Background(), "master", 2)
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)

	_, err = app.GetTask(context.Background(), "master", 3)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = app.GetTask(context.Background(), "master", 0)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestHistory_NewestFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for i, op := range []string{"synthesizeTasks", "expandTask"} {
		require.NoError(t, env.store.AppendHistory(ctx, task.HistoryEntry{
			Scope: "master", Operation: op, Summary: op, CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := NewTaskApp(env.ctx).History(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "expandTask", entries[0].Operation)

	all, err := NewTaskApp(env.ctx).History(ctx, "master", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
