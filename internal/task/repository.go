package task

import "context"

// Repository is the persistence contract the pipeline consumes.
// GetTask returns (nil, nil) when the task does not exist.
type Repository interface {
	GetTask(ctx context.Context, scope string, number int) (*Task, error)
	ListTasks(ctx context.Context, scope string) ([]Task, error)
	CreateTask(ctx context.Context, scope string, draft Task) (*Task, error)
	UpdateTask(ctx context.Context, scope string, number int, patch Patch) (*Task, error)
	ListSubtasks(ctx context.Context, scope string, number int) ([]Subtask, error)
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	// ListHistory returns the newest entries of a scope first; limit <= 0 means all.
	ListHistory(ctx context.Context, scope string, limit int) ([]HistoryEntry, error)

	// ReplaceSubtasks swaps the full subtask list of a task in one transaction.
	ReplaceSubtasks(ctx context.Context, scope string, number int, subtasks []Subtask) error
	// ClearScope deletes every task of a scope (overwrite synthesis).
	ClearScope(ctx context.Context, scope string) error
}
