package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/task"
)

func entryIDs(entries []complexity.Entry) []int {
	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.TaskID
	}
	return ids
}

func TestAnalyzeComplexity_FillsSkippedTasks(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "One"}, task.Task{Title: "Two"}, task.Task{Title: "Three"})
	env.gen.object = objectReply(`[
		{"taskId": 1, "taskTitle": "One", "complexityScore": 2, "recommendedSubtasks": 0, "reasoning": "trivial"},
		{"taskId": 3, "taskTitle": "Three", "complexityScore": 9, "recommendedSubtasks": 6, "reasoning": "hard"},
		{"taskId": 99, "taskTitle": "Ghost", "complexityScore": 4, "recommendedSubtasks": 2}
	]`)

	res, err := NewComplexityApp(env.ctx).AnalyzeComplexity(context.Background(), "master", AnalyzeOptions{TaskIDs: []int{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TasksAnalyzed)
	assert.Equal(t, []int{2}, res.Defaulted)

	stored, err := env.store.Get(context.Background(), "master")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []int{1, 2, 3}, entryIDs(stored.ComplexityAnalysis))

	two, ok := stored.Entry(2)
	require.True(t, ok)
	assert.Equal(t, complexity.DefaultScore, two.ComplexityScore)
	assert.Equal(t, complexity.DefaultSubtasks, two.RecommendedSubtasks)
	assert.Equal(t, "Two", two.TaskTitle)

	assert.Equal(t, 5, stored.Meta.ThresholdScore)
	assert.Equal(t, "master", stored.Meta.Scope)
	assert.True(t, testNow.Equal(stored.Meta.GeneratedAt), "generatedAt = %v", stored.Meta.GeneratedAt)
}

func TestAnalyzeComplexity_MergesWithPreviousReport(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "One"}, task.Task{Title: "Two"})
	require.NoError(t, env.store.Put(context.Background(), "master", &complexity.Report{
		ComplexityAnalysis: []complexity.Entry{
			{TaskID: 1, ComplexityScore: 3, RecommendedSubtasks: 2},
			{TaskID: 2, ComplexityScore: 3, RecommendedSubtasks: 2},
			{TaskID: 7, ComplexityScore: 8, RecommendedSubtasks: 5}, // task no longer exists
		},
	}))
	env.gen.object = objectReply(`[{"taskId": 2, "complexityScore": 7, "recommendedSubtasks": 4}]`)
	app := NewComplexityApp(env.ctx)

	for range 2 {
		_, err := app.AnalyzeComplexity(context.Background(), "master", AnalyzeOptions{TaskIDs: []int{2}})
		require.NoError(t, err)

		stored, err := env.store.Get(context.Background(), "master")
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, entryIDs(stored.ComplexityAnalysis))
		one, _ := stored.Entry(1)
		assert.Equal(t, 3, one.ComplexityScore, "unanalyzed entry is kept")
		two, _ := stored.Entry(2)
		assert.Equal(t, 7, two.ComplexityScore)
	}
}

func TestAnalyzeComplexity_ScopesAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master", task.Task{Title: "One"})
	env.seed(t, "feature", task.Task{Title: "Other"})
	require.NoError(t, env.store.Put(context.Background(), "feature", &complexity.Report{
		ComplexityAnalysis: []complexity.Entry{{TaskID: 1, ComplexityScore: 9, RecommendedSubtasks: 5}},
	}))
	env.gen.object = objectReply(`[{"taskId": 1, "complexityScore": 2, "recommendedSubtasks": 0}]`)

	_, err := NewComplexityApp(env.ctx).AnalyzeComplexity(context.Background(), "master", AnalyzeOptions{})
	require.NoError(t, err)

	feature, err := env.store.Get(context.Background(), "feature")
	require.NoError(t, err)
	entry, ok := feature.Entry(1)
	require.True(t, ok)
	assert.Equal(t, 9, entry.ComplexityScore)
}

func TestAnalyzeComplexity_Selection(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "master",
		task.Task{Title: "One"},
		task.Task{Title: "Two", Status: task.StatusDone},
		task.Task{Title: "Three"},
		task.Task{Title: "Four", Status: task.StatusCancelled},
		task.Task{Title: "Five"},
	)
	all, err := env.store.ListTasks(context.Background(), "master")
	require.NoError(t, err)

	numbers := func(tasks []task.Task) []int {
		var out []int
		for _, tk := range tasks {
			out = append(out, tk.Number)
		}
		return out
	}

	tests := []struct {
		name string
		opts AnalyzeOptions
		want []int
	}{
		{"default skips done and cancelled", AnalyzeOptions{}, []int{1, 3, 5}},
		{"explicit ids", AnalyzeOptions{TaskIDs: []int{5, 2, 5}}, []int{5, 2}},
		{"range", AnalyzeOptions{From: 2, To: 4}, []int{2, 3, 4}},
		{"open range", AnalyzeOptions{From: 4}, []int{4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectForAnalysis("test", "master", all, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, numbers(got))
		})
	}

	_, err = selectForAnalysis("test", "master", all, AnalyzeOptions{TaskIDs: []int{12}})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAnalyzeComplexity_Validation(t *testing.T) {
	env := newTestEnv(t)
	app := NewComplexityApp(env.ctx)

	_, err := app.AnalyzeComplexity(context.Background(), "master", AnalyzeOptions{})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "empty scope")

	env.seed(t, "master", task.Task{Title: "One"})
	_, err = app.AnalyzeComplexity(context.Background(), "master", AnalyzeOptions{Threshold: 11})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "threshold out of range")
	assert.Empty(t, env.gen.objects)
}

func TestComplexityReport(t *testing.T) {
	env := newTestEnv(t)
	app := NewComplexityApp(env.ctx)

	_, err := app.ComplexityReport(context.Background(), "master")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	require.NoError(t, env.store.Put(context.Background(), "master", &complexity.Report{
		Meta: complexity.Meta{ThresholdScore: 6},
		ComplexityAnalysis: []complexity.Entry{
			{TaskID: 1, ComplexityScore: 2},
			{TaskID: 2, ComplexityScore: 6},
			{TaskID: 3, ComplexityScore: 9},
		},
	}))

	view, err := app.ComplexityReport(context.Background(), "master")
	require.NoError(t, err)
	assert.Equal(t, 6, view.Threshold)
	assert.Equal(t, complexity.Stats{Total: 3, Low: 1, Medium: 1, High: 1, Average: 17.0 / 3}, view.Stats)
	assert.Equal(t, []int{3, 2}, entryIDs(view.Recommendations))
}
