// Package memory is the SQLite persistence layer: tasks, subtasks, dependency
// edges, the history log and per-scope complexity reports.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBFile is the database file name inside the data directory.
const DBFile = "taskforge.db"

// SQLiteStore implements task.Repository and complexity.Store on SQLite.
type SQLiteStore struct {
	db       *sql.DB
	basePath string
}

// NewSQLiteStore opens (and creates if needed) the database in basePath.
// basePath ":memory:" opens a private in-memory database.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		dbPath = filepath.Join(basePath, DBFile)

		// Ensure directory exists
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: PRAGMAs are per connection and every ":memory:"
	// connection would otherwise be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	store := &SQLiteStore{db: db, basePath: basePath}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		scope TEXT NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		priority TEXT NOT NULL DEFAULT 'medium',
		details TEXT NOT NULL DEFAULT '{}',   -- JSON task.Details
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, number)
	);

	CREATE TABLE IF NOT EXISTS subtasks (
		scope TEXT NOT NULL,
		task_number INTEGER NOT NULL,
		number INTEGER NOT NULL,             -- 1..N within the parent
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		details TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (scope, task_number, number),
		FOREIGN KEY (scope, task_number) REFERENCES tasks(scope, number) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		scope TEXT NOT NULL,
		task_number INTEGER NOT NULL,
		depends_on INTEGER NOT NULL,
		PRIMARY KEY (scope, task_number, depends_on),
		FOREIGN KEY (scope, task_number) REFERENCES tasks(scope, number) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		task_number INTEGER NOT NULL DEFAULT 0,
		operation TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS complexity_reports (
		scope TEXT PRIMARY KEY,
		report TEXT NOT NULL,                -- JSON complexity.Report
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_target ON task_dependencies(scope, depends_on);
	CREATE INDEX IF NOT EXISTS idx_history_scope ON history(scope, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
