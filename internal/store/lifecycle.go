package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hintze-labs/toolshed/internal/model"
)

// Lifecycle operations. Each one runs as a single per-tool transaction
// that archives the pre-mutation row and applies the change together, so
// a snapshot exists if and only if the mutation committed. Requests that
// touch multiple tools are sequences of these independent commits;
// partial success is expected and reported per tool.

func getToolTx(ctx context.Context, tx *sql.Tx, id string) (*model.Tool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE id = ?`, id)
	t, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tool %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tool: %w", err)
	}
	return t, nil
}

// archiveState writes a snapshot of an already-read row.
func archiveState(ctx context.Context, tx *sql.Tx, t *model.Tool, actor string) error {
	state, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding tool state: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tool_history (history_id, tool_id, changed_by, change_date, previous_state)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), t.ID, actor, time.Now().UTC(), string(state),
	)
	if err != nil {
		return fmt.Errorf("archiving tool: %w", err)
	}
	return nil
}

// BorrowTool checks out an Available tool to a borrower for the given
// number of days. The Available precondition is re-checked here, inside
// the transaction, so a stale read earlier in the request cannot cause a
// silent double-borrow.
func BorrowTool(ctx context.Context, db *sql.DB, toolID, borrower string, days int, actor string) (*model.Tool, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: loan duration must be at least 1 day", ErrValidation)
	}
	if borrower == "" {
		return nil, fmt.Errorf("%w: borrower required", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getToolTx(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusAvailable {
		if t.Status == model.StatusBorrowed && t.Borrower != nil {
			return nil, fmt.Errorf("%w: tool %s (%s) is already borrowed by %s", ErrConflict, t.Name, t.ID, *t.Borrower)
		}
		return nil, fmt.Errorf("%w: tool %s (%s) is %s, not Available", ErrConflict, t.Name, t.ID, t.Status)
	}

	if err := archiveState(ctx, tx, t, actor); err != nil {
		return nil, err
	}

	due := time.Now().UTC().AddDate(0, 0, days)
	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET status = ?, borrower = ?, return_date = ? WHERE id = ?`,
		model.StatusBorrowed, borrower, due, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("borrowing tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing borrow: %w", err)
	}

	return GetTool(ctx, db, toolID)
}

// ReturnTool checks a borrowed tool back in. Returning a tool that is
// already Available succeeds as a no-op and writes no snapshot, so a
// double-submitted return is harmless. Returning a Retired tool is a
// conflict.
func ReturnTool(ctx context.Context, db *sql.DB, toolID, actor string) (*model.Tool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getToolTx(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.StatusAvailable {
		return t, nil
	}
	if t.Status == model.StatusRetired {
		return nil, fmt.Errorf("%w: tool %s (%s) is retired", ErrConflict, t.Name, t.ID)
	}

	if err := archiveState(ctx, tx, t, actor); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET status = ?, borrower = NULL, return_date = NULL WHERE id = ?`,
		model.StatusAvailable, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("returning tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	return GetTool(ctx, db, toolID)
}

// ExtendLoan pushes a borrowed tool's due date out by extraDays.
func ExtendLoan(ctx context.Context, db *sql.DB, toolID string, extraDays int, actor string) (*model.Tool, error) {
	if extraDays < 1 {
		return nil, fmt.Errorf("%w: extension must be at least 1 day", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getToolTx(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusBorrowed || t.ReturnDate == nil {
		return nil, fmt.Errorf("%w: tool %s (%s) is not on loan", ErrConflict, t.Name, t.ID)
	}

	if err := archiveState(ctx, tx, t, actor); err != nil {
		return nil, err
	}

	due := t.ReturnDate.AddDate(0, 0, extraDays)
	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET return_date = ? WHERE id = ?`, due, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("extending loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing extension: %w", err)
	}

	return GetTool(ctx, db, toolID)
}

// RetireTool takes a tool out of circulation for good, encoding the
// reason into bin_location. The row persists; there is no un-retire.
func RetireTool(ctx context.Context, db *sql.DB, toolID, reason, actor string) (*model.Tool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getToolTx(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.StatusRetired {
		return nil, fmt.Errorf("%w: tool %s (%s) is already retired", ErrConflict, t.Name, t.ID)
	}

	if err := archiveState(ctx, tx, t, actor); err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "Retired"
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET status = ?, bin_location = ?, borrower = NULL, return_date = NULL WHERE id = ?`,
		model.StatusRetired, model.RetiredPrefix+reason, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("retiring tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing retirement: %w", err)
	}

	return GetTool(ctx, db, toolID)
}

// RelocateTool updates a tool's location fields only. Retired tools stay
// put: their bin_location carries the retirement reason.
func RelocateTool(ctx context.Context, db *sql.DB, toolID, newBin, newHousehold, actor string) (*model.Tool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getToolTx(ctx, tx, toolID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.StatusRetired {
		return nil, fmt.Errorf("%w: tool %s (%s) is retired", ErrConflict, t.Name, t.ID)
	}

	if err := archiveState(ctx, tx, t, actor); err != nil {
		return nil, err
	}

	if newHousehold == "" {
		newHousehold = t.Household
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET bin_location = ?, household = ? WHERE id = ?`,
		newBin, newHousehold, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("relocating tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing relocation: %w", err)
	}

	return GetTool(ctx, db, toolID)
}

// ToolEdit is one row of a batch edit.
type ToolEdit struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	ModelNo      string `json:"model_no"`
	PowerSource  string `json:"power_source"`
	Owner        string `json:"owner"`
	Household    string `json:"household"`
	BinLocation  string `json:"bin_location"`
	IsStationary bool   `json:"is_stationary"`
	Capabilities string `json:"capabilities"`
	SafetyRating string `json:"safety_rating"`
}

// BatchResult reports the outcome of one tool in a multi-tool request.
type BatchResult struct {
	ID  string
	Err error
}

// BatchEditTools applies field updates row by row, archiving each tool
// first. Owner and household reassignment is restricted to admin-level
// calls; a non-admin row that tries it fails without touching the tool.
// Earlier rows stay committed when a later row fails.
func BatchEditTools(ctx context.Context, db *sql.DB, edits []ToolEdit, actor string, admin bool) []BatchResult {
	results := make([]BatchResult, 0, len(edits))
	for _, e := range edits {
		results = append(results, BatchResult{ID: e.ID, Err: applyEdit(ctx, db, e, actor, admin)})
	}
	return results
}

func applyEdit(ctx context.Context, db *sql.DB, e ToolEdit, actor string, admin bool) error {
	if e.Name == "" {
		return fmt.Errorf("%w: tool name required", ErrValidation)
	}
	if e.SafetyRating != "" && !model.ValidSafetyRating(e.SafetyRating) {
		return fmt.Errorf("%w: unknown safety rating %q", ErrValidation, e.SafetyRating)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getToolTx(ctx, tx, e.ID)
	if err != nil {
		return err
	}

	owner, household := t.Owner, t.Household
	if e.Owner != t.Owner || (e.Household != "" && e.Household != t.Household) {
		if !admin {
			return fmt.Errorf("%w: only admins may reassign owner or household", ErrDenied)
		}
		if e.Owner != "" {
			owner = e.Owner
		}
		if e.Household != "" {
			household = e.Household
		}
	}

	if err := archiveState(ctx, tx, t, actor); err != nil {
		return err
	}

	safety := t.SafetyRating
	if e.SafetyRating != "" {
		safety = e.SafetyRating
	}
	power := t.PowerSource
	if e.PowerSource != "" {
		power = e.PowerSource
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET name = ?, brand = ?, model_no = ?, power_source = ?, owner = ?,
		     household = ?, bin_location = ?, is_stationary = ?, capabilities = ?, safety_rating = ?
		 WHERE id = ?`,
		e.Name, e.Brand, e.ModelNo, power, owner,
		household, e.BinLocation, e.IsStationary, e.Capabilities, safety, e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing edit: %w", err)
	}
	return nil
}

// ReassignTools transfers ownership of a set of tools, archiving each one
// first. Used for ghost-tool recovery and bulk handovers.
func ReassignTools(ctx context.Context, db *sql.DB, toolIDs []string, newOwner, newHousehold, actor string) []BatchResult {
	results := make([]BatchResult, 0, len(toolIDs))
	for _, id := range toolIDs {
		results = append(results, BatchResult{ID: id, Err: reassignOne(ctx, db, id, newOwner, newHousehold, actor)})
	}
	return results
}

func reassignOne(ctx context.Context, db *sql.DB, toolID, newOwner, newHousehold, actor string) error {
	if newOwner == "" {
		return fmt.Errorf("%w: new owner required", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := archiveTool(ctx, tx, toolID, actor); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET owner = ?, household = ? WHERE id = ?`,
		newOwner, newHousehold, toolID,
	)
	if err != nil {
		return fmt.Errorf("reassigning tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reassignment: %w", err)
	}
	return nil
}

// DeleteTool archives the row one last time, then removes it permanently.
// Unlike retire, nothing of the live row survives; only history remains.
func DeleteTool(ctx context.Context, db *sql.DB, toolID, actor string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := archiveTool(ctx, tx, toolID, actor); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM tools WHERE id = ?`, toolID)
	if err != nil {
		return fmt.Errorf("deleting tool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}
