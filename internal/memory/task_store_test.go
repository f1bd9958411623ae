package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/complexity"
	"github.com/josephgoksu/taskforge/internal/task"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var ignoreTimes = cmpopts.IgnoreFields(task.Task{}, "CreatedAt", "UpdatedAt")

func TestCreateAndGetTask(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.CreateTask(ctx, "master", task.Task{Title: "Set up repo"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if first.Number != 1 || first.Status != task.StatusPending || first.Priority != task.PriorityMedium {
		t.Errorf("unexpected defaults: %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	draft := task.Task{
		Title:        "Add login",
		Priority:     task.PriorityHigh,
		Dependencies: []int{1},
		Details:      task.Details{Implementation: "Use JWT", TestStrategy: "Integration test"},
		Subtasks: []task.Subtask{
			{Title: "Form"},
			{Number: 9, Title: "Handler", Status: task.StatusDone},
		},
	}
	second, err := store.CreateTask(ctx, "master", draft)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := store.GetTask(ctx, "master", second.Number)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	want := &task.Task{
		Number:       2,
		Title:        "Add login",
		Status:       task.StatusPending,
		Priority:     task.PriorityHigh,
		Dependencies: []int{1},
		Details:      task.Details{Implementation: "Use JWT", TestStrategy: "Integration test"},
		Subtasks: []task.Subtask{
			{Number: 1, Title: "Form", Status: task.StatusPending},
			{Number: 2, Title: "Handler", Status: task.StatusDone},
		},
	}
	if diff := cmp.Diff(want, got, ignoreTimes); diff != "" {
		t.Errorf("GetTask() mismatch (-want +got):\n%s", diff)
	}

	missing, err := store.GetTask(ctx, "master", 99)
	if err != nil || missing != nil {
		t.Errorf("GetTask(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestCreateTask_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.CreateTask(ctx, "master", task.Task{Title: "  "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank title: got %v, want validation error", err)
	}
	if _, err := store.CreateTask(ctx, "master", task.Task{Number: 4, Title: "Four"}); err != nil {
		t.Fatalf("create task 4: %v", err)
	}
	if _, err := store.CreateTask(ctx, "master", task.Task{Number: 4, Title: "Again"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate number: got %v, want conflict", err)
	}

	next, err := store.CreateTask(ctx, "master", task.Task{Title: "Five"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if next.Number != 5 {
		t.Errorf("next number = %d, want 5", next.Number)
	}
}

func TestScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, scope := range []string{"master", "feature-x"} {
		for _, title := range []string{"A", "B"} {
			if _, err := store.CreateTask(ctx, scope, task.Task{Title: scope + " " + title}); err != nil {
				t.Fatalf("create task: %v", err)
			}
		}
	}

	tasks, err := store.ListTasks(ctx, "feature-x")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Number != 1 || tasks[0].Title != "feature-x A" {
		t.Errorf("unexpected feature-x tasks: %+v", tasks)
	}

	if err := store.ClearScope(ctx, "feature-x"); err != nil {
		t.Fatalf("clear scope: %v", err)
	}
	if tasks, _ := store.ListTasks(ctx, "feature-x"); len(tasks) != 0 {
		t.Errorf("feature-x not cleared: %+v", tasks)
	}
	if tasks, _ := store.ListTasks(ctx, "master"); len(tasks) != 2 {
		t.Errorf("master affected by clearing feature-x: %+v", tasks)
	}
}

func TestListTasks_AttachesRelations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustCreate(t, store, task.Task{Title: "One"})
	mustCreate(t, store, task.Task{Title: "Two", Dependencies: []int{1}, Subtasks: []task.Subtask{{Title: "a"}, {Title: "b"}}})
	mustCreate(t, store, task.Task{Title: "Three", Dependencies: []int{2, 1}})

	tasks, err := store.ListTasks(ctx, "master")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if diff := cmp.Diff([]int{1, 2}, tasks[2].Dependencies); diff != "" {
		t.Errorf("task 3 deps (-want +got):\n%s", diff)
	}
	if len(tasks[1].Subtasks) != 2 || tasks[1].Subtasks[1].Number != 2 {
		t.Errorf("task 2 subtasks: %+v", tasks[1].Subtasks)
	}
	if tasks[0].Dependencies != nil || tasks[0].Subtasks != nil {
		t.Errorf("task 1 should have no relations: %+v", tasks[0])
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustCreate(t, store, task.Task{Title: "One"})
	mustCreate(t, store, task.Task{Title: "Two", Dependencies: []int{1}})

	title := "Two, revised"
	status := task.StatusInProgress
	got, err := store.UpdateTask(ctx, "master", 2, task.Patch{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if got.Title != title || got.Status != status {
		t.Errorf("patch not applied: %+v", got)
	}
	if diff := cmp.Diff([]int{1}, got.Dependencies); diff != "" {
		t.Errorf("dependencies changed without a dependency patch:\n%s", diff)
	}

	deps := []int{}
	got, err = store.UpdateTask(ctx, "master", 2, task.Patch{Dependencies: &deps})
	if err != nil {
		t.Fatalf("update deps: %v", err)
	}
	if len(got.Dependencies) != 0 {
		t.Errorf("dependencies not cleared: %v", got.Dependencies)
	}

	if _, err := store.UpdateTask(ctx, "master", 42, task.Patch{Title: &title}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing task: got %v, want not found", err)
	}

	empty := ""
	if _, err := store.UpdateTask(ctx, "master", 1, task.Patch{Title: &empty}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank title: got %v, want validation error", err)
	}
}

func TestReplaceSubtasks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustCreate(t, store, task.Task{Title: "One", Subtasks: []task.Subtask{{Title: "old 1"}, {Title: "old 2"}, {Title: "old 3"}}})

	err := store.ReplaceSubtasks(ctx, "master", 1, []task.Subtask{{Number: 4, Title: "new a"}, {Number: 7, Title: "new b"}})
	if err != nil {
		t.Fatalf("replace subtasks: %v", err)
	}
	subs, err := store.ListSubtasks(ctx, "master", 1)
	if err != nil {
		t.Fatalf("list subtasks: %v", err)
	}
	want := []task.Subtask{
		{Number: 1, Title: "new a", Status: task.StatusPending},
		{Number: 2, Title: "new b", Status: task.StatusPending},
	}
	if diff := cmp.Diff(want, subs); diff != "" {
		t.Errorf("subtasks (-want +got):\n%s", diff)
	}

	if err := store.ReplaceSubtasks(ctx, "master", 9, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing task: got %v, want not found", err)
	}
}

func TestUpdateTask_ReplacesSubtasksInSameWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustCreate(t, store, task.Task{Title: "One", Subtasks: []task.Subtask{{Title: "old 1"}, {Title: "old 2"}}})

	title := "One, rewritten"
	subs := []task.Subtask{{Number: 5, Title: "new a"}}
	updated, err := store.UpdateTask(ctx, "master", 1, task.Patch{Title: &title, Subtasks: &subs})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	want := []task.Subtask{{Number: 1, Title: "new a", Status: task.StatusPending}}
	if diff := cmp.Diff(want, updated.Subtasks); diff != "" {
		t.Errorf("subtasks (-want +got):\n%s", diff)
	}

	// A rejected patch leaves fields and subtasks untouched.
	blank := ""
	more := []task.Subtask{{Title: "x"}, {Title: "y"}, {Title: "z"}}
	if _, err := store.UpdateTask(ctx, "master", 1, task.Patch{Title: &blank, Subtasks: &more}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank title: got %v, want validation error", err)
	}
	got, err := store.GetTask(ctx, "master", 1)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Title != title {
		t.Errorf("title = %q, want %q", got.Title, title)
	}
	if diff := cmp.Diff(want, got.Subtasks); diff != "" {
		t.Errorf("subtasks after rejected patch (-want +got):\n%s", diff)
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, op := range []string{"synthesizeTasks", "expandTask", "addDependency"} {
		entry := task.HistoryEntry{Scope: "master", TaskNumber: i + 1, Operation: op, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("append history: %v", err)
		}
	}
	if err := store.AppendHistory(ctx, task.HistoryEntry{Scope: "other", Operation: "x"}); err != nil {
		t.Fatalf("append history: %v", err)
	}

	entries, err := store.ListHistory(ctx, "master", 2)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 || entries[0].Operation != "addDependency" || entries[1].Operation != "expandTask" {
		t.Errorf("unexpected history: %+v", entries)
	}
	if entries[0].ID == "" {
		t.Error("history id not generated")
	}
}

func TestReportStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var _ complexity.Store = store

	got, err := store.Get(ctx, "master")
	if err != nil || got != nil {
		t.Fatalf("Get(empty) = %v, %v; want nil, nil", got, err)
	}

	report := &complexity.Report{
		Meta:               complexity.Meta{GeneratedAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), TasksAnalyzed: 1, ThresholdScore: 5, Scope: "master"},
		ComplexityAnalysis: []complexity.Entry{{TaskID: 1, TaskTitle: "One", ComplexityScore: 7, RecommendedSubtasks: 4}},
	}
	for range 2 {
		if err := store.Put(ctx, "master", report); err != nil {
			t.Fatalf("put report: %v", err)
		}
	}
	got, err = store.Get(ctx, "master")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if diff := cmp.Diff(report, got); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}

	for range 2 {
		if err := store.Delete(ctx, "master"); err != nil {
			t.Fatalf("delete report: %v", err)
		}
	}
	if got, err := store.Get(ctx, "master"); err != nil || got != nil {
		t.Errorf("Get(after delete) = %v, %v; want nil, nil", got, err)
	}
}

func TestFileBackedStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	mustCreate(t, store, task.Task{Title: "Persisted"})
	_ = store.Close()

	reopened, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	tasks, err := reopened.ListTasks(context.Background(), "master")
	if err != nil || len(tasks) != 1 || tasks[0].Title != "Persisted" {
		t.Errorf("reopened store: %+v, %v", tasks, err)
	}
}

func mustCreate(t *testing.T, store *SQLiteStore, draft task.Task) *task.Task {
	t.Helper()
	created, err := store.CreateTask(context.Background(), "master", draft)
	if err != nil {
		t.Fatalf("create %q: %v", draft.Title, err)
	}
	return created
}
