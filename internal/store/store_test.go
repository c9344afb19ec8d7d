// Package store tests for the persistent store.
package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/careercompass/profilecore/internal/db"
	"github.com/careercompass/profilecore/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := New(database.DB)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProfile(id models.UUID) *models.Profile {
	now := time.Now().Unix()
	return &models.Profile{
		ID: id,
		Personal: models.PersonalDetails{
			FirstName: "Asha",
			LastName:  "Verma",
			Email:     string(id) + "@example.com",
			City:      "Pune",
		},
		Academic: models.AcademicBackground{
			Board:      "CBSE",
			Grade:      "12",
			Percentage: 88.5,
			Subjects:   []string{"math", "physics"},
		},
		Preferences: models.Preferences{
			Language:  "en",
			Interests: []string{"robotics"},
		},
		Metadata: models.Metadata{
			CreatedAt:  now,
			UpdatedAt:  now,
			Version:    1,
			SyncStatus: models.SyncStatusPending,
		},
	}
}

// TestSaveProfile_roundTrip verifies save-then-get returns a deep-equal
// profile.
func TestSaveProfile_roundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testProfile("p1")
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	got, err := s.GetProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetProfile() = nil, want profile")
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, p)
	}
}

// TestSaveProfile_upsert verifies saving twice updates in place.
func TestSaveProfile_upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testProfile("p1")
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	p.Academic.Percentage = 91
	p.Metadata.Version = 2
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("second SaveProfile() error = %v", err)
	}

	got, err := s.GetProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Metadata.Version != 2 {
		t.Errorf("version = %d, want 2", got.Metadata.Version)
	}
	if got.Academic.Percentage != 91 {
		t.Errorf("percentage = %v, want 91", got.Academic.Percentage)
	}

	all, err := s.GetAllProfiles(ctx)
	if err != nil {
		t.Fatalf("GetAllProfiles() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("profile count = %d, want 1", len(all))
	}
}

// TestGetProfile_absent verifies nil, not an error, for missing ids.
func TestGetProfile_absent(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetProfile(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetProfile() = %+v, want nil", got)
	}
}

// TestGetProfileByEmail verifies the email lookup.
func TestGetProfileByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveProfile(ctx, testProfile("p1")); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	got, err := s.GetProfileByEmail(ctx, "p1@example.com")
	if err != nil {
		t.Fatalf("GetProfileByEmail() error = %v", err)
	}
	if got == nil || got.ID != "p1" {
		t.Errorf("GetProfileByEmail() = %+v, want profile p1", got)
	}

	none, err := s.GetProfileByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetProfileByEmail(absent) error = %v", err)
	}
	if none != nil {
		t.Errorf("GetProfileByEmail(absent) = %+v, want nil", none)
	}
}

// TestGetProfilesBySyncStatus verifies the status index.
func TestGetProfilesBySyncStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1 := testProfile("p1")
	p2 := testProfile("p2")
	p2.Metadata.SyncStatus = models.SyncStatusOffline

	for _, p := range []*models.Profile{p1, p2} {
		if err := s.SaveProfile(ctx, p); err != nil {
			t.Fatalf("SaveProfile() error = %v", err)
		}
	}

	offline, err := s.GetProfilesBySyncStatus(ctx, models.SyncStatusOffline)
	if err != nil {
		t.Fatalf("GetProfilesBySyncStatus() error = %v", err)
	}
	if len(offline) != 1 || offline[0].ID != "p2" {
		t.Errorf("offline profiles = %+v, want [p2]", offline)
	}
}

// TestDeleteProfile_idempotent verifies deleting twice is not an error.
func TestDeleteProfile_idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveProfile(ctx, testProfile("p1")); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}

	if err := s.DeleteProfile(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}
	if err := s.DeleteProfile(ctx, "p1"); err != nil {
		t.Fatalf("second DeleteProfile() error = %v", err)
	}

	got, err := s.GetProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got != nil {
		t.Error("profile should be gone after delete")
	}
}

// TestSyncQueue_fifo verifies entries come back in strict enqueue order.
func TestSyncQueue_fifo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []models.UUID{"a", "b", "c"} {
		if _, err := s.AddToSyncQueue(ctx, id, models.ActionUpdate, testProfile(id)); err != nil {
			t.Fatalf("AddToSyncQueue(%s) error = %v", id, err)
		}
	}

	entries, err := s.GetSyncQueue(ctx)
	if err != nil {
		t.Fatalf("GetSyncQueue() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("queue length = %d, want 3", len(entries))
	}

	want := []models.UUID{"a", "b", "c"}
	for i, e := range entries {
		if e.ProfileID != want[i] {
			t.Errorf("entry %d profile = %s, want %s", i, e.ProfileID, want[i])
		}
		if e.RetryCount != 0 {
			t.Errorf("entry %d retryCount = %d, want 0", i, e.RetryCount)
		}
	}
}

// TestSyncQueue_byProfile verifies the per-profile queue lookup.
func TestSyncQueue_byProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddToSyncQueue(ctx, "a", models.ActionCreate, testProfile("a")); err != nil {
		t.Fatalf("AddToSyncQueue() error = %v", err)
	}
	if _, err := s.AddToSyncQueue(ctx, "b", models.ActionDelete, nil); err != nil {
		t.Fatalf("AddToSyncQueue() error = %v", err)
	}

	entries, err := s.GetQueueEntriesByProfile(ctx, "b")
	if err != nil {
		t.Fatalf("GetQueueEntriesByProfile() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries for b = %d, want 1", len(entries))
	}
	if entries[0].Action != models.ActionDelete {
		t.Errorf("action = %v, want delete", entries[0].Action)
	}
	if entries[0].Payload != nil {
		t.Errorf("delete payload = %s, want nil", entries[0].Payload)
	}
}

// TestIncrementRetry verifies the retry counter.
func TestIncrementRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.AddToSyncQueue(ctx, "a", models.ActionUpdate, testProfile("a"))
	if err != nil {
		t.Fatalf("AddToSyncQueue() error = %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := s.IncrementRetry(ctx, entry.ID)
		if err != nil {
			t.Fatalf("IncrementRetry() error = %v", err)
		}
		if got != want {
			t.Errorf("retry count = %d, want %d", got, want)
		}
	}
}

// TestRemoveAndClearSyncQueue verifies removal and bulk clear.
func TestRemoveAndClearSyncQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1, err := s.AddToSyncQueue(ctx, "a", models.ActionCreate, testProfile("a"))
	if err != nil {
		t.Fatalf("AddToSyncQueue() error = %v", err)
	}
	if _, err := s.AddToSyncQueue(ctx, "b", models.ActionCreate, testProfile("b")); err != nil {
		t.Fatalf("AddToSyncQueue() error = %v", err)
	}

	if err := s.RemoveFromSyncQueue(ctx, e1.ID); err != nil {
		t.Fatalf("RemoveFromSyncQueue() error = %v", err)
	}
	// Removing an absent entry is fine
	if err := s.RemoveFromSyncQueue(ctx, e1.ID); err != nil {
		t.Fatalf("second RemoveFromSyncQueue() error = %v", err)
	}

	count, err := s.PendingSyncCount(ctx)
	if err != nil {
		t.Fatalf("PendingSyncCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("pending count = %d, want 1", count)
	}

	if err := s.ClearSyncQueue(ctx); err != nil {
		t.Fatalf("ClearSyncQueue() error = %v", err)
	}
	count, err = s.PendingSyncCount(ctx)
	if err != nil {
		t.Fatalf("PendingSyncCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("pending count after clear = %d, want 0", count)
	}
}

// TestConflictRecords verifies the audit trail round-trip.
func TestConflictRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &models.ConflictRecord{
		ProfileID:       "p1",
		LocalVersion:    3,
		RemoteVersion:   4,
		LocalUpdatedAt:  100,
		RemoteUpdatedAt: 200,
	}
	if err := s.RecordConflict(ctx, rec); err != nil {
		t.Fatalf("RecordConflict() error = %v", err)
	}

	records, err := s.GetConflictRecords(ctx, "p1")
	if err != nil {
		t.Fatalf("GetConflictRecords() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Resolution != "unresolved" {
		t.Errorf("resolution = %q, want 'unresolved'", records[0].Resolution)
	}

	if err := s.ResolveConflictRecords(ctx, "p1", "merge"); err != nil {
		t.Fatalf("ResolveConflictRecords() error = %v", err)
	}

	records, err = s.GetConflictRecords(ctx, "p1")
	if err != nil {
		t.Fatalf("GetConflictRecords() error = %v", err)
	}
	if records[0].Resolution != "merge" {
		t.Errorf("resolution = %q, want 'merge'", records[0].Resolution)
	}
}
