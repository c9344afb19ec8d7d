// Package store provides the durable persistent store for profiles and
// the pending sync queue.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	errs "github.com/careercompass/profilecore/internal/errors"
	"github.com/careercompass/profilecore/internal/models"
	"github.com/careercompass/profilecore/internal/uuid"
)

// Store is the persistent store over the local SQLite database. All write
// operations run inside a single transaction; a failed write leaves prior
// state intact. Reads for absent records return nil rather than an error.
type Store struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// New creates a Store over an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// prepareStmt gets or creates a prepared statement from the cache.
func (s *Store) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

const profileColumns = `id, email, personal, academic, preferences, created_at, updated_at, version, sync_status`

// SaveProfile upserts a profile by id. The write is durable before the
// call returns.
func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	personal, academic, preferences, err := marshalSections(p)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "encode profile sections", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "begin save profile", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO profiles (` + profileColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		email = excluded.email,
		personal = excluded.personal,
		academic = excluded.academic,
		preferences = excluded.preferences,
		updated_at = excluded.updated_at,
		version = excluded.version,
		sync_status = excluded.sync_status
	`
	_, err = tx.ExecContext(ctx, query,
		p.ID, p.Personal.Email, personal, academic, preferences,
		p.Metadata.CreatedAt, p.Metadata.UpdatedAt, p.Metadata.Version, p.Metadata.SyncStatus)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "save profile", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.ErrStorage, "commit save profile", err)
	}
	return nil
}

// GetProfile retrieves a profile by id. Returns (nil, nil) when absent.
func (s *Store) GetProfile(ctx context.Context, id models.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	stmt, err := s.prepareStmt(query)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get profile", err)
	}

	p, err := scanProfile(stmt.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get profile", err)
	}
	return p, nil
}

// GetProfileByEmail retrieves a profile by email. Returns (nil, nil) when
// absent.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = ? LIMIT 1`
	stmt, err := s.prepareStmt(query)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get profile by email", err)
	}

	p, err := scanProfile(stmt.QueryRowContext(ctx, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get profile by email", err)
	}
	return p, nil
}

// GetAllProfiles returns all stored profiles ordered by update time,
// newest first.
func (s *Store) GetAllProfiles(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY updated_at DESC`
	return s.queryProfiles(ctx, query)
}

// GetProfilesBySyncStatus returns all profiles in the given sync status.
func (s *Store) GetProfilesBySyncStatus(ctx context.Context, status models.SyncStatus) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE sync_status = ? ORDER BY updated_at DESC`
	return s.queryProfiles(ctx, query, status)
}

func (s *Store) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]*models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "query profiles", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errs.Wrap(errs.ErrStorage, "scan profile", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "iterate profiles", err)
	}
	return profiles, nil
}

// UpdateSyncStatus sets only the sync status of a profile.
func (s *Store) UpdateSyncStatus(ctx context.Context, id models.UUID, status models.SyncStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "update sync status", err)
	}
	return nil
}

// DeleteProfile removes a profile by id. Deleting an absent profile is
// not an error.
func (s *Store) DeleteProfile(ctx context.Context, id models.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "begin delete profile", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.ErrStorage, "delete profile", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.ErrStorage, "commit delete profile", err)
	}
	return nil
}

// AddToSyncQueue appends a queue entry for the given profile mutation
// with retry count 0. snapshot may be nil for delete actions.
func (s *Store) AddToSyncQueue(ctx context.Context, profileID models.UUID, action models.SyncAction, snapshot *models.Profile) (*models.QueueEntry, error) {
	entry, err := models.NewQueueEntry(profileID, action, snapshot)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "build queue entry", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "begin enqueue", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO sync_queue (id, profile_id, action, payload, enqueued_at, retry_count)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	var payload interface{}
	if entry.Payload != nil {
		payload = string(entry.Payload)
	}
	_, err = tx.ExecContext(ctx, query,
		entry.ID, entry.ProfileID, entry.Action, payload, entry.EnqueuedAt, entry.RetryCount)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "enqueue sync entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "commit enqueue", err)
	}
	return entry, nil
}

// GetSyncQueue returns all queue entries in strict enqueue order.
func (s *Store) GetSyncQueue(ctx context.Context) ([]*models.QueueEntry, error) {
	query := `
	SELECT id, profile_id, action, payload, enqueued_at, retry_count
	FROM sync_queue ORDER BY enqueued_at ASC, rowid ASC
	`
	stmt, err := s.prepareStmt(query)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get sync queue", err)
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get sync queue", err)
	}
	defer rows.Close()

	return scanQueueEntries(rows)
}

// GetQueueEntriesByProfile returns the queue entries referencing one
// profile, in enqueue order.
func (s *Store) GetQueueEntriesByProfile(ctx context.Context, profileID models.UUID) ([]*models.QueueEntry, error) {
	query := `
	SELECT id, profile_id, action, payload, enqueued_at, retry_count
	FROM sync_queue WHERE profile_id = ? ORDER BY enqueued_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get queue entries by profile", err)
	}
	defer rows.Close()

	return scanQueueEntries(rows)
}

// RemoveFromSyncQueue deletes a queue entry by id. Removing an absent
// entry is not an error.
func (s *Store) RemoveFromSyncQueue(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "remove queue entry", err)
	}
	return nil
}

// ClearSyncQueue removes every queue entry.
func (s *Store) ClearSyncQueue(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "clear sync queue", err)
	}
	return nil
}

// IncrementRetry bumps the retry count of a queue entry and returns the
// new count.
func (s *Store) IncrementRetry(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrStorage, "begin increment retry", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		return 0, errs.Wrap(errs.ErrStorage, "increment retry", err)
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT retry_count FROM sync_queue WHERE id = ?`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, errs.New(errs.ErrNotFound, "queue entry not found: "+id)
	}
	if err != nil {
		return 0, errs.Wrap(errs.ErrStorage, "read retry count", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.ErrStorage, "commit increment retry", err)
	}
	return count, nil
}

// PendingSyncCount returns the number of queue entries awaiting sync.
func (s *Store) PendingSyncCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.ErrStorage, "count sync queue", err)
	}
	return count, nil
}

// RecordConflict writes a conflict audit row.
func (s *Store) RecordConflict(ctx context.Context, rec *models.ConflictRecord) error {
	rec.ID = models.UUID(uuid.New())
	if rec.DetectedAt == 0 {
		rec.DetectedAt = time.Now().Unix()
	}
	if rec.Resolution == "" {
		rec.Resolution = "unresolved"
	}

	query := `
	INSERT INTO conflict_log (id, profile_id, local_version, remote_version,
		local_updated_at, remote_updated_at, resolution, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.ProfileID, rec.LocalVersion, rec.RemoteVersion,
		rec.LocalUpdatedAt, rec.RemoteUpdatedAt, rec.Resolution, rec.DetectedAt)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "record conflict", err)
	}
	return nil
}

// GetConflictRecords returns the conflict audit rows of a profile,
// newest first.
func (s *Store) GetConflictRecords(ctx context.Context, profileID models.UUID) ([]*models.ConflictRecord, error) {
	query := `
	SELECT id, profile_id, local_version, remote_version,
		   local_updated_at, remote_updated_at, resolution, detected_at
	FROM conflict_log WHERE profile_id = ? ORDER BY detected_at DESC, rowid DESC
	`
	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "get conflict records", err)
	}
	defer rows.Close()

	var records []*models.ConflictRecord
	for rows.Next() {
		var rec models.ConflictRecord
		err := rows.Scan(&rec.ID, &rec.ProfileID, &rec.LocalVersion, &rec.RemoteVersion,
			&rec.LocalUpdatedAt, &rec.RemoteUpdatedAt, &rec.Resolution, &rec.DetectedAt)
		if err != nil {
			return nil, errs.Wrap(errs.ErrStorage, "scan conflict record", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "iterate conflict records", err)
	}
	return records, nil
}

// ResolveConflictRecords marks all unresolved audit rows of a profile
// with the applied resolution strategy.
func (s *Store) ResolveConflictRecords(ctx context.Context, profileID models.UUID, resolution string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conflict_log SET resolution = ? WHERE profile_id = ? AND resolution = 'unresolved'`,
		resolution, profileID)
	if err != nil {
		return errs.Wrap(errs.ErrStorage, "resolve conflict records", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var email string
	var personal, academic, preferences []byte

	err := row.Scan(&p.ID, &email, &personal, &academic, &preferences,
		&p.Metadata.CreatedAt, &p.Metadata.UpdatedAt, &p.Metadata.Version, &p.Metadata.SyncStatus)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(personal, &p.Personal); err != nil {
		return nil, fmt.Errorf("decode personal section: %w", err)
	}
	if err := json.Unmarshal(academic, &p.Academic); err != nil {
		return nil, fmt.Errorf("decode academic section: %w", err)
	}
	if err := json.Unmarshal(preferences, &p.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences section: %w", err)
	}
	return &p, nil
}

func scanQueueEntries(rows *sql.Rows) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var payload sql.NullString
		err := rows.Scan(&e.ID, &e.ProfileID, &e.Action, &payload, &e.EnqueuedAt, &e.RetryCount)
		if err != nil {
			return nil, errs.Wrap(errs.ErrStorage, "scan queue entry", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrStorage, "iterate queue entries", err)
	}
	return entries, nil
}

func marshalSections(p *models.Profile) (personal, academic, preferences []byte, err error) {
	if personal, err = json.Marshal(p.Personal); err != nil {
		return nil, nil, nil, err
	}
	if academic, err = json.Marshal(p.Academic); err != nil {
		return nil, nil, nil, err
	}
	if preferences, err = json.Marshal(p.Preferences); err != nil {
		return nil, nil, nil, err
	}
	return personal, academic, preferences, nil
}
