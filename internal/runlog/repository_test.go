package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxline/fluxline/internal/infrastructure/database"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "fluxline.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLiteRepository(context.Background(), db.DB)
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	return repo
}

func TestRecordAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		CSVDir:         "/data/experiment_opc_log",
		Measurement:    "experiment_opc",
		StartedAt:      started,
		FinishedAt:     started.Add(3 * time.Second),
		FilesProcessed: 2,
		PointsWritten:  1200,
		ValuesSkipped:  4,
		RowsSkipped:    1,
		SkipReasons:    map[string]int{"non-numeric": 4, "bad_timestamp": 1},
		Outcome:        "ok",
	}

	if err := repo.Record(ctx, run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if run.ID == "" {
		t.Error("Record() should generate an ID when missing")
	}

	runs, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("List() returned %d runs, want 1", len(runs))
	}

	got := runs[0]
	if got.ID != run.ID {
		t.Errorf("ID = %q, want %q", got.ID, run.ID)
	}
	if got.PointsWritten != 1200 {
		t.Errorf("PointsWritten = %d, want 1200", got.PointsWritten)
	}
	if got.SkipReasons["non-numeric"] != 4 {
		t.Errorf("SkipReasons[non-numeric] = %d, want 4", got.SkipReasons["non-numeric"])
	}
	if got.Outcome != "ok" {
		t.Errorf("Outcome = %q, want ok", got.Outcome)
	}
}

func TestList_NewestFirst(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &Run{
			CSVDir:      "/data",
			Measurement: "m",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			FinishedAt:  base.Add(time.Duration(i)*time.Hour + time.Minute),
			Outcome:     "ok",
		}
		if err := repo.Record(ctx, run); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	runs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List(limit=2) returned %d runs", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("runs not newest first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestList_Empty(t *testing.T) {
	repo := testRepo(t)

	runs, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("List() on empty ledger returned %d runs", len(runs))
	}
}

func TestRecord_AbortedRunOutcome(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	run := &Run{
		CSVDir:        "/data",
		Measurement:   "m",
		StartedAt:     time.Now().UTC(),
		FinishedAt:    time.Now().UTC(),
		PointsWritten: 500,
		Outcome:       "ingest: batch flush failed: influxdb: write failed",
	}
	if err := repo.Record(ctx, run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	runs, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// An aborted run still records what was written before the failure.
	if runs[0].PointsWritten != 500 {
		t.Errorf("PointsWritten = %d, want 500", runs[0].PointsWritten)
	}
	if runs[0].Outcome == "ok" {
		t.Error("Outcome should carry the abort error")
	}
}
