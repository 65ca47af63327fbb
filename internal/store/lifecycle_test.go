package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/hintze-labs/toolshed/internal/db"
	"github.com/hintze-labs/toolshed/internal/model"
)

func newTool(t *testing.T, database *sql.DB, name, owner, household string) *model.Tool {
	t.Helper()
	created, err := CreateTool(context.Background(), database, &model.Tool{
		Name: name, Owner: owner, Household: household,
	})
	if err != nil {
		t.Fatalf("creating tool: %v", err)
	}
	return created
}

func TestBorrowPostconditions(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	got, err := BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve")
	if err != nil {
		t.Fatalf("borrowing: %v", err)
	}
	if got.Status != model.StatusBorrowed {
		t.Errorf("expected status Borrowed, got %s", got.Status)
	}
	if got.Borrower == nil || *got.Borrower != "Alice" {
		t.Errorf("expected borrower Alice, got %v", got.Borrower)
	}
	if got.ReturnDate == nil {
		t.Fatal("expected a return date")
	}
	wantDue := time.Now().UTC().AddDate(0, 0, 7)
	if diff := got.ReturnDate.Sub(wantDue); diff < -time.Minute || diff > time.Minute {
		t.Errorf("return date %v not ~7 days out", got.ReturnDate)
	}

	// Exactly one snapshot, holding the pre-borrow state.
	hist, err := ToolHistory(ctx, database, tool.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(hist))
	}
}

func TestBorrowNonAvailableConflicts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	if _, err := BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve"); err != nil {
		t.Fatalf("first borrow: %v", err)
	}
	_, err := BorrowTool(ctx, database, tool.ID, "Bob", 3, "Steve")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// The failed borrow must not leave a second snapshot behind.
	hist, _ := ToolHistory(ctx, database, tool.ID)
	if len(hist) != 1 {
		t.Errorf("expected 1 snapshot after failed borrow, got %d", len(hist))
	}
}

func TestBorrowValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	if _, err := BorrowTool(ctx, database, tool.ID, "Alice", 0, "Steve"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for 0 days, got %v", err)
	}
	if _, err := BorrowTool(ctx, database, "TOOL_MISSING", "Alice", 7, "Steve"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnIsIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve")
	got, err := ReturnTool(ctx, database, tool.ID, "Alice")
	if err != nil {
		t.Fatalf("returning: %v", err)
	}
	if got.Status != model.StatusAvailable || got.Borrower != nil || got.ReturnDate != nil {
		t.Errorf("expected clean Available state, got %+v", got)
	}

	// Double-submitted return succeeds without another snapshot.
	before, _ := ToolHistory(ctx, database, tool.ID)
	got, err = ReturnTool(ctx, database, tool.ID, "Alice")
	if err != nil {
		t.Fatalf("no-op return: %v", err)
	}
	if got.Status != model.StatusAvailable {
		t.Errorf("expected Available, got %s", got.Status)
	}
	after, _ := ToolHistory(ctx, database, tool.ID)
	if len(after) != len(before) {
		t.Errorf("no-op return wrote a snapshot: %d -> %d", len(before), len(after))
	}
}

func TestReturnRetiredConflicts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	RetireTool(ctx, database, tool.ID, "handle cracked", "Steve")
	if _, err := ReturnTool(ctx, database, tool.ID, "Steve"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestExtendLoan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	borrowed, _ := BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve")
	extended, err := ExtendLoan(ctx, database, tool.ID, 3, "Alice")
	if err != nil {
		t.Fatalf("extending: %v", err)
	}
	want := borrowed.ReturnDate.AddDate(0, 0, 3)
	if !extended.ReturnDate.Equal(want) {
		t.Errorf("expected due %v, got %v", want, extended.ReturnDate)
	}

	ReturnTool(ctx, database, tool.ID, "Alice")
	if _, err := ExtendLoan(ctx, database, tool.ID, 3, "Alice"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict extending an idle tool, got %v", err)
	}
}

func TestRetireIsTerminal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	got, err := RetireTool(ctx, database, tool.ID, "handle cracked", "Steve")
	if err != nil {
		t.Fatalf("retiring: %v", err)
	}
	if got.Status != model.StatusRetired {
		t.Errorf("expected Retired, got %s", got.Status)
	}
	if got.RetirementReason() != "handle cracked" {
		t.Errorf("expected reason in bin_location, got %q", got.BinLocation)
	}

	if _, err := RetireTool(ctx, database, tool.ID, "again", "Steve"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on double retire, got %v", err)
	}
	if _, err := BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict borrowing retired tool, got %v", err)
	}
	if _, err := RelocateTool(ctx, database, tool.ID, "B-2", "", "Steve"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict relocating retired tool, got %v", err)
	}
}

func TestRetireClearsLoanState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	BorrowTool(ctx, database, tool.ID, "Alice", 7, "Steve")
	got, err := RetireTool(ctx, database, tool.ID, "lost at Alice's", "Steve")
	if err != nil {
		t.Fatalf("retiring: %v", err)
	}
	if got.Borrower != nil || got.ReturnDate != nil {
		t.Errorf("expected loan state cleared, got %+v", got)
	}
}

func TestRelocateKeepsHouseholdWhenEmpty(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Claw Hammer", "Steve", "Main")

	got, err := RelocateTool(ctx, database, tool.ID, "Shelf B-2", "", "Steve")
	if err != nil {
		t.Fatalf("relocating: %v", err)
	}
	if got.BinLocation != "Shelf B-2" {
		t.Errorf("expected bin Shelf B-2, got %q", got.BinLocation)
	}
	if got.Household != "Main" {
		t.Errorf("expected household unchanged, got %q", got.Household)
	}
}

func TestBatchEditPartialSuccess(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	a := newTool(t, database, "Hammer", "Steve", "Main")
	b := newTool(t, database, "Drill", "Steve", "Main")

	edits := []ToolEdit{
		{ID: a.ID, Name: "Framing Hammer", Owner: "Steve", Household: "Main"},
		{ID: b.ID, Name: ""},
		{ID: "TOOL_MISSING", Name: "Ghost"},
	}
	results := BatchEditTools(ctx, database, edits, "Steve", false)
	if results[0].Err != nil {
		t.Errorf("expected first edit to succeed, got %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", results[2].Err)
	}

	got, _ := GetTool(ctx, database, a.ID)
	if got.Name != "Framing Hammer" {
		t.Errorf("expected committed rename, got %q", got.Name)
	}
}

func TestBatchEditOwnerChangeNeedsAdmin(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Hammer", "Steve", "Main")

	edit := ToolEdit{ID: tool.ID, Name: "Hammer", Owner: "Alice", Household: "Main"}
	results := BatchEditTools(ctx, database, []ToolEdit{edit}, "Alice", false)
	if !errors.Is(results[0].Err, ErrDenied) {
		t.Errorf("expected ErrDenied, got %v", results[0].Err)
	}

	results = BatchEditTools(ctx, database, []ToolEdit{edit}, "admin", true)
	if results[0].Err != nil {
		t.Fatalf("admin edit: %v", results[0].Err)
	}
	got, _ := GetTool(ctx, database, tool.ID)
	if got.Owner != "Alice" {
		t.Errorf("expected owner Alice, got %q", got.Owner)
	}
}

func TestDeleteToolLeavesHistory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tool := newTool(t, database, "Hammer", "Steve", "Main")

	if err := DeleteTool(ctx, database, tool.ID, "admin"); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := GetTool(ctx, database, tool.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	hist, _ := ToolHistory(ctx, database, tool.ID)
	if len(hist) != 1 {
		t.Errorf("expected the pre-delete snapshot to survive, got %d", len(hist))
	}

	if err := DeleteTool(ctx, database, tool.ID, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}
