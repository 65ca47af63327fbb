package db

import "testing"

func TestOpenFailsEagerlyOnBadPath(t *testing.T) {
	database, err := Open("/nonexistent-dir/tools.db")
	if err == nil {
		database.Close()
		t.Fatal("expected error opening database in a missing directory")
	}
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	database := NewTestDB(t)

	var fk int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("reading foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys on, got %d", fk)
	}

	var timeout int
	if err := database.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("reading busy_timeout pragma: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("expected busy_timeout 5000, got %d", timeout)
	}
}
