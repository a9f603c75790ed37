package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voicegate/voicegate/internal/database/models"
)

func TestOpenAndMigrate(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	// Verify database file was created.
	dbPath := filepath.Join(dir, "voicegate.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	// Verify WAL mode is active.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	for _, table := range []string{"schema_migrations", "calls"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	// Open twice to verify migrations don't fail on re-run.
	db1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	db1.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db2.Close()
}

func testCall(caller, reason string, start time.Time) *models.Call {
	return &models.Call{
		UniqueID:   "1724500000.17",
		CallerID:   caller,
		Channel:    "PJSIP/" + caller + "-00000001",
		StartTime:  start,
		EndTime:    start.Add(90 * time.Second),
		Duration:   90,
		Turns:      4,
		Interrupts: 1,
		ExitReason: reason,
	}
}

func TestCallRepository(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	repo := NewCallRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	call := testCall("15550100", "user_exit", now)
	if err := repo.Create(ctx, call); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if call.ID == 0 {
		t.Error("Create() did not set ID")
	}

	got, err := repo.GetByID(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil for existing call")
	}
	if got.CallerID != "15550100" || got.ExitReason != "user_exit" || got.Turns != 4 {
		t.Errorf("GetByID() = %+v", got)
	}

	missing, err := repo.GetByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetByID(missing) error: %v", err)
	}
	if missing != nil {
		t.Error("GetByID(missing) should return nil")
	}
}

func TestCallRepositoryListFilters(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	repo := NewCallRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, reason := range []string{"user_exit", "user_exit", "no_response", "timeout"} {
		c := testCall("1555010"+string(rune('0'+i)), reason, now.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	calls, total, err := repo.List(ctx, CallListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 4 || len(calls) != 4 {
		t.Errorf("List() = %d rows, total %d, want 4/4", len(calls), total)
	}
	// Newest first.
	if calls[0].StartTime.Before(calls[1].StartTime) {
		t.Error("List() should order by start_time descending")
	}

	calls, total, err = repo.List(ctx, CallListFilter{ExitReason: "user_exit", Limit: 10})
	if err != nil {
		t.Fatalf("List(exit_reason) error: %v", err)
	}
	if total != 2 || len(calls) != 2 {
		t.Errorf("List(exit_reason) = %d rows, total %d, want 2/2", len(calls), total)
	}

	calls, _, err = repo.List(ctx, CallListFilter{Search: "15550102", Limit: 10})
	if err != nil {
		t.Fatalf("List(search) error: %v", err)
	}
	if len(calls) != 1 || calls[0].ExitReason != "no_response" {
		t.Errorf("List(search) = %+v", calls)
	}

	calls, total, err = repo.List(ctx, CallListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List(paging) error: %v", err)
	}
	if total != 4 || len(calls) != 2 {
		t.Errorf("List(paging) = %d rows, total %d, want 2/4", len(calls), total)
	}
}

func TestCallRepositoryCountByExitReason(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	repo := NewCallRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, reason := range []string{"user_exit", "user_exit", "timeout"} {
		if err := repo.Create(ctx, testCall("15550100", reason, now)); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	counts, err := repo.CountByExitReason(ctx)
	if err != nil {
		t.Fatalf("CountByExitReason() error: %v", err)
	}
	if counts["user_exit"] != 2 || counts["timeout"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
