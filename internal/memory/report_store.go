package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/josephgoksu/taskforge/internal/complexity"
)

// === Complexity reports ===

// Get returns the stored report of a scope, or (nil, nil).
func (s *SQLiteStore) Get(ctx context.Context, scope string) (*complexity.Report, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM complexity_reports WHERE scope = ?`, scope).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	var r complexity.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode report for %s: %w", scope, err)
	}
	return &r, nil
}

// Put replaces the report of a scope.
func (s *SQLiteStore) Put(ctx context.Context, scope string, report *complexity.Report) error {
	if report == nil {
		return errors.New("nil report")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO complexity_reports (scope, report, generated_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET report = excluded.report, generated_at = excluded.generated_at
	`, scope, string(raw), formatTime(report.Meta.GeneratedAt)); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// Delete drops the report of a scope.
func (s *SQLiteStore) Delete(ctx context.Context, scope string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM complexity_reports WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}
