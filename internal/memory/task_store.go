package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/josephgoksu/taskforge/internal/apperr"
	"github.com/josephgoksu/taskforge/internal/task"
)

// === Task CRUD ===

// GetTask returns the task with its dependencies and subtasks, or (nil, nil).
func (s *SQLiteStore) GetTask(ctx context.Context, scope string, number int) (*task.Task, error) {
	return getTaskQ(ctx, s.db, scope, number)
}

func getTaskQ(ctx context.Context, q querier, scope string, number int) (*task.Task, error) {
	var t task.Task
	var details, createdAt, updatedAt string
	err := q.QueryRowContext(ctx, `
		SELECT number, title, description, status, priority, details, created_at, updated_at
		FROM tasks WHERE scope = ? AND number = ?
	`, scope, number).Scan(&t.Number, &t.Title, &t.Description, &t.Status, &t.Priority, &details, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task %d: %w", number, err)
	}
	if err := decodeDetails(details, &t.Details); err != nil {
		return nil, fmt.Errorf("task %d: %w", number, err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	deps, err := listDependenciesQ(ctx, q, scope, number)
	if err != nil {
		return nil, err
	}
	t.Dependencies = deps

	subs, err := listSubtasksQ(ctx, q, scope, number)
	if err != nil {
		return nil, err
	}
	t.Subtasks = subs
	return &t, nil
}

// ListTasks returns every task of the scope ordered by number.
func (s *SQLiteStore) ListTasks(ctx context.Context, scope string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, title, description, status, priority, details, created_at, updated_at
		FROM tasks WHERE scope = ? ORDER BY number
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		var t task.Task
		var details, createdAt, updatedAt string
		if err := rows.Scan(&t.Number, &t.Title, &t.Description, &t.Status, &t.Priority, &details, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := decodeDetails(details, &t.Details); err != nil {
			return nil, fmt.Errorf("task %d: %w", t.Number, err)
		}
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		tasks = append(tasks, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	_ = rows.Close()

	if len(tasks) == 0 {
		return tasks, nil
	}
	if err := s.attachRelations(ctx, scope, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachRelations loads dependencies and subtasks for a whole scope in two queries.
func (s *SQLiteStore) attachRelations(ctx context.Context, scope string, tasks []task.Task) error {
	byNumber := task.ByNumber(tasks)

	depRows, err := s.db.QueryContext(ctx, `
		SELECT task_number, depends_on FROM task_dependencies
		WHERE scope = ? ORDER BY task_number, depends_on
	`, scope)
	if err != nil {
		return fmt.Errorf("query dependencies: %w", err)
	}
	for depRows.Next() {
		var from, to int
		if err := depRows.Scan(&from, &to); err != nil {
			_ = depRows.Close()
			return fmt.Errorf("scan dependency: %w", err)
		}
		if t, ok := byNumber[from]; ok {
			t.Dependencies = append(t.Dependencies, to)
		}
	}
	if err := checkRowsErr(depRows); err != nil {
		_ = depRows.Close()
		return fmt.Errorf("list dependencies: %w", err)
	}
	_ = depRows.Close()

	subRows, err := s.db.QueryContext(ctx, `
		SELECT task_number, number, title, description, status, details FROM subtasks
		WHERE scope = ? ORDER BY task_number, number
	`, scope)
	if err != nil {
		return fmt.Errorf("query subtasks: %w", err)
	}
	defer func() { _ = subRows.Close() }()
	for subRows.Next() {
		var parent int
		var st task.Subtask
		var details string
		if err := subRows.Scan(&parent, &st.Number, &st.Title, &st.Description, &st.Status, &details); err != nil {
			return fmt.Errorf("scan subtask: %w", err)
		}
		if err := decodeDetails(details, &st.Details); err != nil {
			return fmt.Errorf("subtask %d.%d: %w", parent, st.Number, err)
		}
		if t, ok := byNumber[parent]; ok {
			t.Subtasks = append(t.Subtasks, st)
		}
	}
	if err := checkRowsErr(subRows); err != nil {
		return fmt.Errorf("list subtasks: %w", err)
	}
	return nil
}

// CreateTask inserts draft with its dependencies and subtasks. A zero number
// takes the next free number in the scope; an existing number is a conflict.
func (s *SQLiteStore) CreateTask(ctx context.Context, scope string, draft task.Task) (*task.Task, error) {
	draft.ApplyDefaults()
	if len(draft.Subtasks) > 0 {
		draft.Subtasks = task.RenumberSubtasks(draft.Subtasks)
	}
	if strings.TrimSpace(draft.Title) == "" {
		return nil, apperr.Validation("createTask", "title required").In(scope, draft.Number)
	}

	var created *task.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if draft.Number == 0 {
			var highest int
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(number), 0) FROM tasks WHERE scope = ?`, scope).Scan(&highest); err != nil {
				return fmt.Errorf("next task number: %w", err)
			}
			draft.Number = highest + 1
		} else {
			existing, err := getTaskQ(ctx, tx, scope, draft.Number)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperr.Conflict("createTask", "task %d already exists", draft.Number).In(scope, draft.Number)
			}
		}

		if err := draft.Validate(); err != nil {
			return apperr.Validation("createTask", "%v", err).In(scope, draft.Number)
		}
		ts := now()
		draft.CreatedAt, draft.UpdatedAt = ts, ts
		if err := insertTaskTx(ctx, tx, scope, &draft); err != nil {
			return err
		}
		var err error
		created, err = getTaskQ(ctx, tx, scope, draft.Number)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertTaskTx inserts a task and its relations within a transaction.
func insertTaskTx(ctx context.Context, q querier, scope string, t *task.Task) error {
	details, err := json.Marshal(t.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO tasks (scope, number, title, description, status, priority, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scope, t.Number, t.Title, t.Description, t.Status, t.Priority, string(details),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt)); err != nil {
		return fmt.Errorf("insert task %d: %w", t.Number, err)
	}
	if err := insertDependencies(ctx, q, scope, t.Number, t.Dependencies); err != nil {
		return err
	}
	return insertSubtasks(ctx, q, scope, t.Number, t.Subtasks)
}

func insertDependencies(ctx context.Context, q querier, scope string, number int, deps []int) error {
	for _, dep := range deps {
		if _, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_dependencies (scope, task_number, depends_on) VALUES (?, ?, ?)
		`, scope, number, dep); err != nil {
			return fmt.Errorf("insert dependency %d -> %d: %w", number, dep, err)
		}
	}
	return nil
}

func insertSubtasks(ctx context.Context, q querier, scope string, number int, subs []task.Subtask) error {
	for _, st := range task.RenumberSubtasks(subs) {
		details, err := json.Marshal(st.Details)
		if err != nil {
			return fmt.Errorf("encode subtask details: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO subtasks (scope, task_number, number, title, description, status, details)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, scope, number, st.Number, st.Title, st.Description, st.Status, string(details)); err != nil {
			return fmt.Errorf("insert subtask %d.%d: %w", number, st.Number, err)
		}
	}
	return nil
}

// UpdateTask applies patch to the stored task. Dependencies in the patch
// replace the stored set.
func (s *SQLiteStore) UpdateTask(ctx context.Context, scope string, number int, patch task.Patch) (*task.Task, error) {
	var updated *task.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTaskQ(ctx, tx, scope, number)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.NotFound("updateTask", "task %d not found", number).In(scope, number)
		}

		next := patch.Apply(*current)
		if err := next.Validate(); err != nil {
			return apperr.Validation("updateTask", "%v", err).In(scope, number)
		}
		details, err := json.Marshal(next.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, details = ?, updated_at = ?
			WHERE scope = ? AND number = ?
		`, next.Title, next.Description, next.Status, next.Priority, string(details), formatTime(now()), scope, number); err != nil {
			return fmt.Errorf("update task %d: %w", number, err)
		}

		if patch.Dependencies != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE scope = ? AND task_number = ?`, scope, number); err != nil {
				return fmt.Errorf("clear dependencies of %d: %w", number, err)
			}
			deps := slices.Clone(next.Dependencies)
			slices.Sort(deps)
			if err := insertDependencies(ctx, tx, scope, number, slices.Compact(deps)); err != nil {
				return err
			}
		}

		if patch.Subtasks != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE scope = ? AND task_number = ?`, scope, number); err != nil {
				return fmt.Errorf("clear subtasks of %d: %w", number, err)
			}
			if err := insertSubtasks(ctx, tx, scope, number, *patch.Subtasks); err != nil {
				return err
			}
		}

		updated, err = getTaskQ(ctx, tx, scope, number)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListSubtasks returns the subtasks of a task in order.
func (s *SQLiteStore) ListSubtasks(ctx context.Context, scope string, number int) ([]task.Subtask, error) {
	return listSubtasksQ(ctx, s.db, scope, number)
}

func listSubtasksQ(ctx context.Context, q querier, scope string, number int) ([]task.Subtask, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT number, title, description, status, details FROM subtasks
		WHERE scope = ? AND task_number = ? ORDER BY number
	`, scope, number)
	if err != nil {
		return nil, fmt.Errorf("query subtasks of %d: %w", number, err)
	}
	defer func() { _ = rows.Close() }()

	var subs []task.Subtask
	for rows.Next() {
		var st task.Subtask
		var details string
		if err := rows.Scan(&st.Number, &st.Title, &st.Description, &st.Status, &details); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		if err := decodeDetails(details, &st.Details); err != nil {
			return nil, fmt.Errorf("subtask %d.%d: %w", number, st.Number, err)
		}
		subs = append(subs, st)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	return subs, nil
}

func listDependenciesQ(ctx context.Context, q querier, scope string, number int) ([]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT depends_on FROM task_dependencies
		WHERE scope = ? AND task_number = ? ORDER BY depends_on
	`, scope, number)
	if err != nil {
		return nil, fmt.Errorf("query dependencies of %d: %w", number, err)
	}
	defer func() { _ = rows.Close() }()

	var deps []int
	for rows.Next() {
		var dep int
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return deps, nil
}

// ReplaceSubtasks swaps the full subtask list of a task, renumbering 1..N.
func (s *SQLiteStore) ReplaceSubtasks(ctx context.Context, scope string, number int, subtasks []task.Subtask) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE scope = ? AND number = ?`,
			formatTime(now()), scope, number)
		if err != nil {
			return fmt.Errorf("touch task %d: %w", number, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("replaceSubtasks", "task %d not found", number).In(scope, number)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE scope = ? AND task_number = ?`, scope, number); err != nil {
			return fmt.Errorf("clear subtasks of %d: %w", number, err)
		}
		return insertSubtasks(ctx, tx, scope, number, subtasks)
	})
}

// ClearScope deletes every task of a scope with its subtasks and dependencies.
func (s *SQLiteStore) ClearScope(ctx context.Context, scope string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM subtasks WHERE scope = ?`,
			`DELETE FROM task_dependencies WHERE scope = ?`,
			`DELETE FROM tasks WHERE scope = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, scope); err != nil {
				return fmt.Errorf("clear scope %s: %w", scope, err)
			}
		}
		return nil
	})
}

// === History ===

// AppendHistory records one audit entry. Missing id and time are filled in.
func (s *SQLiteStore) AppendHistory(ctx context.Context, entry task.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = "hist-" + uuid.New().String()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, scope, task_number, operation, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Scope, entry.TaskNumber, entry.Operation, entry.Summary, formatTime(entry.CreatedAt)); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// ListHistory returns the newest entries of a scope first. limit <= 0 means all.
func (s *SQLiteStore) ListHistory(ctx context.Context, scope string, limit int) ([]task.HistoryEntry, error) {
	query := `SELECT id, scope, task_number, operation, summary, created_at FROM history
		WHERE scope = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{scope}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []task.HistoryEntry
	for rows.Next() {
		var e task.HistoryEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Scope, &e.TaskNumber, &e.Operation, &e.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

func decodeDetails(raw string, d *task.Details) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), d); err != nil {
		return fmt.Errorf("decode details: %w", err)
	}
	return nil
}
