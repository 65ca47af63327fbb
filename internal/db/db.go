// Package db owns the SQLite connection and schema for the tool pool.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// connOptions are applied by the driver on every new connection, so
// they hold across the whole pool.
const connOptions = "?_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=foreign_keys(1)" +
	"&_pragma=synchronous(NORMAL)"

// Open opens the inventory database at path, configured for concurrent
// lending and reconciliation traffic.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	db, err := sql.Open("sqlite", dsn+connOptions)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	// An in-memory database exists per connection; a second pool
	// connection would see an empty schema.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	// sql.Open is lazy; ping so a bad path fails here, not on first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}
	return db, nil
}
