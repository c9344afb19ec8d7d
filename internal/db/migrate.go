// Package db provides database connection management and schema migrations.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	errs "github.com/careercompass/profilecore/internal/errors"
)

// Migration represents one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered schema history. Entries are append-only; an
// applied migration's SQL must never change (checksums are verified).
var migrations = []Migration{
	{
		Version:     1,
		Description: "profiles",
		SQL: `
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			personal TEXT NOT NULL DEFAULT '{}',
			academic TEXT NOT NULL DEFAULT '{}',
			preferences TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			version INTEGER NOT NULL CHECK(version >= 1),
			sync_status TEXT NOT NULL CHECK(sync_status IN ('synced','pending','offline','conflict'))
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_email ON profiles(email);
		CREATE INDEX IF NOT EXISTS idx_profiles_sync_status ON profiles(sync_status);
		CREATE INDEX IF NOT EXISTS idx_profiles_updated_at ON profiles(updated_at);
		`,
	},
	{
		Version:     2,
		Description: "sync_queue",
		SQL: `
		CREATE TABLE IF NOT EXISTS sync_queue (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL,
			action TEXT NOT NULL CHECK(action IN ('create','update','delete')),
			payload TEXT,
			enqueued_at INTEGER NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_sync_queue_profile ON sync_queue(profile_id);
		`,
	},
	{
		Version:     3,
		Description: "conflict_log",
		SQL: `
		CREATE TABLE IF NOT EXISTS conflict_log (
			id TEXT PRIMARY KEY,
			profile_id TEXT NOT NULL,
			local_version INTEGER NOT NULL,
			remote_version INTEGER NOT NULL,
			local_updated_at INTEGER NOT NULL,
			remote_updated_at INTEGER NOT NULL,
			resolution TEXT NOT NULL DEFAULT 'unresolved',
			detected_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conflict_log_profile ON conflict_log(profile_id);
		`,
	},
}

// Migrator applies the in-code migration history to a database.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	if _, err := m.db.Exec(query); err != nil {
		return errs.Wrap(errs.ErrMigration, "initialize schema_migrations", err)
	}
	return nil
}

// CurrentVersion returns the current schema version, 0 when none applied.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, errs.Wrap(errs.ErrMigration, "read current version", err)
	}
	return version, nil
}

// Up applies all pending migrations, verifying checksums of already
// applied ones against the in-code history.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return err
	}

	applied, err := m.appliedChecksums()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		sum := checksum(mig.SQL)

		if prev, ok := applied[mig.Version]; ok {
			if prev != sum {
				return errs.Newf(errs.ErrMigration,
					"checksum mismatch for migration %d: schema history was edited", mig.Version)
			}
			continue
		}

		if err := m.apply(mig, sum); err != nil {
			return errs.Wrap(errs.ErrMigration,
				"apply migration "+mig.Description, err)
		}
	}

	return nil
}

// apply runs one migration inside a transaction and records it.
func (m *Migrator) apply(mig Migration, sum string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return err
	}

	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, mig.Version, time.Now().Unix(), mig.Description, sum); err != nil {
		return err
	}

	return tx.Commit()
}

// appliedChecksums returns the checksum of every applied migration keyed
// by version.
func (m *Migrator) appliedChecksums() (map[int]string, error) {
	rows, err := m.db.Query("SELECT version, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, errs.Wrap(errs.ErrMigration, "read applied migrations", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var sum string
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, errs.Wrap(errs.ErrMigration, "scan applied migration", err)
		}
		applied[version] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrMigration, "iterate applied migrations", err)
	}
	return applied, nil
}

func checksum(sqlText string) string {
	hash := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(hash[:])
}
