package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS tools (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    brand         TEXT,
    model_no      TEXT,
    power_source  TEXT NOT NULL DEFAULT 'Manual',
    owner         TEXT NOT NULL,
    household     TEXT NOT NULL,
    bin_location  TEXT,
    is_stationary INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL DEFAULT 'Available' CHECK (status IN ('Available', 'Borrowed', 'Retired')),
    borrower      TEXT,
    return_date   DATETIME,
    capabilities  TEXT,
    safety_rating TEXT NOT NULL DEFAULT 'Open'
);

CREATE TABLE IF NOT EXISTS family (
    name      TEXT NOT NULL,
    role      TEXT NOT NULL CHECK (role IN ('ADMIN', 'ADULT', 'CHILD')),
    household TEXT NOT NULL,
    email     TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS tool_history (
    history_id     TEXT PRIMARY KEY,
    tool_id        TEXT NOT NULL,
    changed_by     TEXT NOT NULL,
    change_date    DATETIME NOT NULL,
    previous_state TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_history_tool
    ON tool_history(tool_id, change_date);

CREATE TABLE IF NOT EXISTS audit_logs (
    log_id     TEXT PRIMARY KEY,
    timestamp  DATETIME NOT NULL,
    event_type TEXT NOT NULL,
    actor      TEXT NOT NULL,
    details    TEXT
);

CREATE TABLE IF NOT EXISTS dialog_sessions (
    id         TEXT PRIMARY KEY,
    actor      TEXT NOT NULL,
    flow       TEXT NOT NULL,
    state      TEXT NOT NULL,
    payload    TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema
// creation. Each migration must be idempotent. Append new migrations at
// the end.
var migrations = []string{
	// Migration 1: look up borrowed tools by borrower without a full scan.
	`CREATE INDEX IF NOT EXISTS idx_tools_borrower ON tools(borrower) WHERE borrower IS NOT NULL`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
