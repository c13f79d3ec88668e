package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one completed (or aborted) ingestion run.
type Run struct {
	ID             string         `json:"id"`
	CSVDir         string         `json:"csv_dir"`
	Measurement    string         `json:"measurement"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	FilesProcessed int            `json:"files_processed"`
	PointsWritten  int            `json:"points_written"`
	ValuesSkipped  int            `json:"values_skipped"`
	RowsSkipped    int            `json:"rows_skipped"`
	SkipReasons    map[string]int `json:"skip_reasons,omitempty"`
	Outcome        string         `json:"outcome"` // "ok" or the error text
}

// Repository defines the interface for run log operations.
type Repository interface {
	Record(ctx context.Context, run *Run) error
	List(ctx context.Context, limit int) ([]Run, error)
}

// SQLiteRepository stores run history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a run log repository and ensures its table
// exists. The table is a single flat ledger, so plain DDL suffices here
// instead of a migration framework.
//
// Parameters:
//   - ctx: Context for the DDL statement
//   - db: Open database handle
//
// Returns:
//   - *SQLiteRepository: Ready for use
//   - error: If the table cannot be created
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS ingest_runs (
    id              TEXT PRIMARY KEY,
    csv_dir         TEXT NOT NULL,
    measurement     TEXT NOT NULL,
    started_at      TIMESTAMP NOT NULL,
    finished_at     TIMESTAMP NOT NULL,
    files_processed INTEGER NOT NULL,
    points_written  INTEGER NOT NULL,
    values_skipped  INTEGER NOT NULL,
    rows_skipped    INTEGER NOT NULL,
    skip_reasons    TEXT,
    outcome         TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating ingest_runs table: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Record inserts one run into the ledger. A missing ID is generated.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - run: The run to record
//
// Returns:
//   - error: If the insert fails
func (r *SQLiteRepository) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	reasons, err := json.Marshal(run.SkipReasons)
	if err != nil {
		return fmt.Errorf("encoding skip reasons: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO ingest_runs (
    id, csv_dir, measurement, started_at, finished_at,
    files_processed, points_written, values_skipped, rows_skipped,
    skip_reasons, outcome
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CSVDir, run.Measurement,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.FilesProcessed, run.PointsWritten, run.ValuesSkipped, run.RowsSkipped,
		string(reasons), run.Outcome,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	return nil
}

// List returns the most recent runs, newest first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - limit: Maximum rows returned; values < 1 default to 20
//
// Returns:
//   - []Run: Recent runs
//   - error: If the query fails
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, csv_dir, measurement, started_at, finished_at,
       files_processed, points_written, values_skipped, rows_skipped,
       skip_reasons, outcome
FROM ingest_runs
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var reasons sql.NullString
		if err := rows.Scan(
			&run.ID, &run.CSVDir, &run.Measurement,
			&run.StartedAt, &run.FinishedAt,
			&run.FilesProcessed, &run.PointsWritten, &run.ValuesSkipped, &run.RowsSkipped,
			&reasons, &run.Outcome,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if reasons.Valid && reasons.String != "" && reasons.String != "null" {
			if err := json.Unmarshal([]byte(reasons.String), &run.SkipReasons); err != nil {
				return nil, fmt.Errorf("decoding skip reasons: %w", err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}
