package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hintze-labs/toolshed/internal/model"
)

// AlertSink receives audit entries that warrant an outward notification.
// Delivery is best-effort: implementations must never return control-flow
// errors to the caller, and a nil sink is valid.
type AlertSink interface {
	Alert(ctx context.Context, entry model.AuditLogEntry)
}

// LogEvent appends an entry to the audit log. A fixed set of event types
// (failed auth, admin mutations, retirements, deletions) additionally
// fires the alert sink; sink failures never affect the triggering
// operation.
func LogEvent(ctx context.Context, db *sql.DB, sink AlertSink, eventType, actor, details string) error {
	entry := model.AuditLogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Actor:     actor,
		Details:   details,
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_logs (log_id, timestamp, event_type, actor, details)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, entry.EventType, entry.Actor, entry.Details,
	)
	if err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}

	if sink != nil && model.Alertable(eventType) {
		sink.Alert(ctx, entry)
	}
	return nil
}

// ListAuditLog returns audit entries newest first, up to limit.
func ListAuditLog(ctx context.Context, db *sql.DB, limit int) ([]model.AuditLogEntry, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT log_id, timestamp, event_type, actor, details
		 FROM audit_logs ORDER BY timestamp DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Actor, &details); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
