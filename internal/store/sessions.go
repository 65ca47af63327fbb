package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is a persisted disambiguation session. The payload is an
// opaque JSON serialization owned by the session package; state and flow
// are duplicated as columns for inspection and cleanup queries.
type SessionRecord struct {
	ID        string
	Actor     string
	Flow      string
	State     string
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveSession inserts or replaces a session row.
func SaveSession(ctx context.Context, db *sql.DB, rec *SessionRecord) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO dialog_sessions (id, actor, flow, state, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET state = excluded.state, payload = excluded.payload, updated_at = excluded.updated_at`,
		rec.ID, rec.Actor, rec.Flow, rec.State, string(rec.Payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession loads a session row by id, or ErrNotFound.
func GetSession(ctx context.Context, db *sql.DB, id string) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var payload string
	err := db.QueryRowContext(ctx,
		`SELECT id, actor, flow, state, payload, created_at, updated_at
		 FROM dialog_sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Actor, &rec.Flow, &rec.State, &payload, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	rec.Payload = []byte(payload)
	return rec, nil
}

// DeleteSession removes a session row. Deleting a missing session is not
// an error: cancel and commit both finish here.
func DeleteSession(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM dialog_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// PruneSessions deletes sessions idle since before the cutoff and returns
// the count removed.
func PruneSessions(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM dialog_sessions WHERE updated_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
