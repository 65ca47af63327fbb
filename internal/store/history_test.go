package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hintze-labs/toolshed/internal/db"
)

func insertAgedSnapshot(t *testing.T, database *sql.DB, toolID string, ageDays int) {
	t.Helper()
	when := time.Now().UTC().AddDate(0, 0, -ageDays)
	_, err := database.Exec(
		`INSERT INTO tool_history (history_id, tool_id, changed_by, change_date, previous_state)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), toolID, "test", when, "{}",
	)
	if err != nil {
		t.Fatalf("inserting snapshot: %v", err)
	}
}

func TestToolHistoryNewestFirst(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Hammer", "Steve", "Main")

	insertAgedSnapshot(t, database, tool.ID, 10)
	insertAgedSnapshot(t, database, tool.ID, 1)
	insertAgedSnapshot(t, database, tool.ID, 5)

	hist, err := ToolHistory(ctx, database, tool.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].ChangeDate.After(hist[i-1].ChangeDate) {
			t.Errorf("snapshots out of order at %d", i)
		}
	}
}

func TestPurgeHistoryAgeCutoff(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Hammer", "Steve", "Main")

	for _, age := range []int{5, 10, 35, 40} {
		insertAgedSnapshot(t, database, tool.ID, age)
	}

	removed, err := PurgeHistory(ctx, database, 30)
	if err != nil {
		t.Fatalf("purging: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 snapshots removed, got %d", removed)
	}
	hist, _ := ToolHistory(ctx, database, tool.ID)
	if len(hist) != 2 {
		t.Errorf("expected 2 snapshots left, got %d", len(hist))
	}
}

func TestPurgeHistoryBoundary(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Hammer", "Steve", "Main")

	// Strictly-older-than cutoff: 29 days survives a 30-day purge,
	// 31 days does not.
	insertAgedSnapshot(t, database, tool.ID, 29)
	insertAgedSnapshot(t, database, tool.ID, 31)

	removed, err := PurgeHistory(ctx, database, 30)
	if err != nil {
		t.Fatalf("purging: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected exactly 1 removed, got %d", removed)
	}
	hist, _ := ToolHistory(ctx, database, tool.ID)
	if len(hist) != 1 {
		t.Fatalf("expected 1 snapshot left, got %d", len(hist))
	}
}

func TestPurgeHistoryNoFloor(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Hammer", "Steve", "Main")

	insertAgedSnapshot(t, database, tool.ID, 100)

	removed, err := PurgeHistory(ctx, database, 30)
	if err != nil {
		t.Fatalf("purging: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	// Zero surviving snapshots is acceptable; the live row is untouched.
	hist, _ := ToolHistory(ctx, database, tool.ID)
	if len(hist) != 0 {
		t.Errorf("expected no snapshots, got %d", len(hist))
	}
	if _, err := GetTool(ctx, database, tool.ID); err != nil {
		t.Errorf("live row should survive purge: %v", err)
	}
}
