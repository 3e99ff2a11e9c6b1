// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteTrailStore persists run entries in SQLite.
type SQLiteTrailStore struct {
	db *sql.DB
}

// NewSQLiteTrailStore creates a SQLite-backed trail store and ensures schema.
func NewSQLiteTrailStore(db *sql.DB) (*SQLiteTrailStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureTrailSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteTrailStore{db: db}, nil
}

// Record stores a single run entry.
func (s *SQLiteTrailStore) Record(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orchestration_runs (
			run_id, plan_id, success, steps, verifications, duration_ms, error_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.RunID,
		entry.PlanID,
		entry.Success,
		entry.Steps,
		entry.Verifications,
		entry.DurationMs,
		entry.Error,
		normalizeTrailTime(entry.CreatedAt),
	)
	return err
}

// List returns run entries matching the filter, oldest first.
func (s *SQLiteTrailStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT run_id, plan_id, success, steps, verifications, duration_ms, error_text, created_at
		FROM orchestration_runs
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.PlanID != "" {
		addFilter("plan_id = ?", filter.PlanID)
	}
	if filter.Success != nil {
		addFilter("success = ?", *filter.Success)
	}
	query += where + " ORDER BY created_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			created sql.NullTime
		)
		if err := rows.Scan(
			&entry.RunID,
			&entry.PlanID,
			&entry.Success,
			&entry.Steps,
			&entry.Verifications,
			&entry.DurationMs,
			&entry.Error,
			&created,
		); err != nil {
			return nil, err
		}
		if created.Valid {
			entry.CreatedAt = created.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func ensureTrailSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orchestration_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			steps INTEGER NOT NULL,
			verifications INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error_text TEXT,
			created_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_orchestration_runs_plan ON orchestration_runs(plan_id);
		CREATE INDEX IF NOT EXISTS idx_orchestration_runs_success ON orchestration_runs(success);
	`)
	return err
}
