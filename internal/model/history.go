package model

import (
	"encoding/json"
	"time"
)

// HistorySnapshot is a full pre-mutation capture of a tool row. Every
// mutating write archives one of these first, so the history table is an
// order-preserving replay of every state a tool has held.
type HistorySnapshot struct {
	ID            string          `json:"history_id"`
	ToolID        string          `json:"tool_id"`
	ChangedBy     string          `json:"changed_by"`
	ChangeDate    time.Time       `json:"change_date"`
	PreviousState json.RawMessage `json:"previous_state"`
}

// AuditLogEntry records a security-relevant event.
type AuditLogEntry struct {
	ID        string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details"`
}

// Audit event types. TOOL_DELETE is deliberately distinct from
// TOOL_RETIRE: deletion removes the row for good.
const (
	EventFailedAuth  = "FAILED_AUTH"
	EventAdminUpdate = "ADMIN_UPDATE"
	EventToolRetire  = "TOOL_RETIRE"
	EventToolDelete  = "TOOL_DELETE"
	EventToolBorrow  = "TOOL_BORROW"
	EventToolReturn  = "TOOL_RETURN"
)

// Alertable reports whether an event type should additionally trigger an
// outward notification. The set is fixed; everything else is log-only.
func Alertable(eventType string) bool {
	switch eventType {
	case EventFailedAuth, EventAdminUpdate, EventToolRetire, EventToolDelete:
		return true
	}
	return false
}
