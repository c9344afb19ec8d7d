// Package db tests for schema migrations.
package db

import (
	"testing"

	errs "github.com/careercompass/profilecore/internal/errors"
)

// TestMigrator_Up verifies all migrations apply to a fresh database.
func TestMigrator_Up(t *testing.T) {
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer database.Close()

	m := NewMigrator(database.DB)
	if err := m.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	// All three tables exist
	for _, table := range []string{"profiles", "sync_queue", "conflict_log"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}
}

// TestMigrator_Up_idempotent verifies a second Up is a no-op.
func TestMigrator_Up_idempotent(t *testing.T) {
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer database.Close()

	m := NewMigrator(database.DB)
	if err := m.Up(); err != nil {
		t.Fatalf("first Up() error = %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}

	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("recorded migrations = %d, want %d", count, len(migrations))
	}
}

// TestMigrator_Up_checksumMismatch verifies edited history is rejected.
func TestMigrator_Up_checksumMismatch(t *testing.T) {
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer database.Close()

	m := NewMigrator(database.DB)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	// Record migration 1 with a checksum that cannot match the in-code SQL.
	bogus := "0000000000000000000000000000000000000000000000000000000000000000"
	_, err = database.Exec(
		`INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (1, 1, 'profiles', ?)`,
		bogus)
	if err != nil {
		t.Fatalf("seed bogus migration: %v", err)
	}

	err = m.Up()
	if err == nil {
		t.Fatal("Up() should fail on checksum mismatch")
	}
	if !errs.Is(err, errs.ErrMigration) {
		t.Errorf("error code = %v, want MIGRATION_FAILED", errs.CodeOf(err))
	}
}
