// Package models provides data model definitions for the profile sync core.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncAction is the remote operation a queue entry stands for.
type SyncAction string

const (
	ActionCreate SyncAction = "create"
	ActionUpdate SyncAction = "update"
	ActionDelete SyncAction = "delete"
)

// QueueEntry is a durable record of one pending remote operation for a
// profile. An entry exists exactly while its profile has unsynced local
// changes; it is destroyed either by remote acknowledgment or by retry
// exhaustion.
type QueueEntry struct {
	ID         string          `db:"id" json:"id"`
	ProfileID  UUID            `db:"profile_id" json:"profile_id"`
	Action     SyncAction      `db:"action" json:"action"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"` // full profile snapshot, nil for delete
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
}

// QueueEntryID derives the durable entry id from profile id, action and
// enqueue time.
func QueueEntryID(profileID UUID, action SyncAction, enqueuedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", profileID, action, enqueuedAt.UnixNano())
}

// NewQueueEntry builds a queue entry for the given profile mutation.
// snapshot may be nil for delete actions.
func NewQueueEntry(profileID UUID, action SyncAction, snapshot *Profile) (*QueueEntry, error) {
	now := time.Now()

	entry := &QueueEntry{
		ID:         QueueEntryID(profileID, action, now),
		ProfileID:  profileID,
		Action:     action,
		EnqueuedAt: now.Unix(),
	}

	if snapshot != nil {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("marshal queue payload: %w", err)
		}
		entry.Payload = payload
	}

	return entry, nil
}

// Snapshot decodes the profile snapshot carried by the entry. Returns nil
// for delete entries.
func (e *QueueEntry) Snapshot() (*Profile, error) {
	if len(e.Payload) == 0 {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal queue payload: %w", err)
	}
	return &p, nil
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return "sync_queue"
}
