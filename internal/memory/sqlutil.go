package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// checkRowsErr checks for errors that may have occurred during row iteration.
// This should be called after a for rows.Next() loop to catch any iteration errors
// that rows.Next() doesn't report directly (e.g., network failures mid-scan).
//
// Example usage:
//
//	for rows.Next() {
//	    // scan...
//	}
//	if err := checkRowsErr(rows); err != nil {
//	    return nil, fmt.Errorf("iterate rows: %w", err)
//	}
func checkRowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// now is the store clock, truncated to what RFC3339 keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
