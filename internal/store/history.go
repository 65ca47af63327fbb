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

// archiveTool captures the tool's full current row inside the caller's
// transaction, before the mutation it precedes. Returns ErrNotFound if
// the tool does not exist.
func archiveTool(ctx context.Context, tx *sql.Tx, toolID, actor string) (*model.Tool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE id = ?`, toolID)
	t, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tool %s", ErrNotFound, toolID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tool for archive: %w", err)
	}

	state, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding tool state: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tool_history (history_id, tool_id, changed_by, change_date, previous_state)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), toolID, actor, time.Now().UTC(), string(state),
	)
	if err != nil {
		return nil, fmt.Errorf("archiving tool: %w", err)
	}
	return t, nil
}

// ToolHistory returns a tool's snapshots, newest first.
func ToolHistory(ctx context.Context, db *sql.DB, toolID string) ([]model.HistorySnapshot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT history_id, tool_id, changed_by, change_date, previous_state
		 FROM tool_history WHERE tool_id = ?
		 ORDER BY change_date DESC`, toolID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting tool history: %w", err)
	}
	defer rows.Close()

	var snaps []model.HistorySnapshot
	for rows.Next() {
		var s model.HistorySnapshot
		var state string
		if err := rows.Scan(&s.ID, &s.ToolID, &s.ChangedBy, &s.ChangeDate, &state); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		s.PreviousState = json.RawMessage(state)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// PurgeHistory deletes snapshots strictly older than the retention cutoff
// and returns how many were removed. Retention is age-based only: there is
// no keep-at-least-one floor, which is fine because purge never touches
// the live tools row.
func PurgeHistory(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("%w: retention must be at least 1 day", ErrValidation)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := db.ExecContext(ctx,
		`DELETE FROM tool_history WHERE change_date < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purging history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged history: %w", err)
	}
	return n, nil
}
