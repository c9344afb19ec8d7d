// Package models provides data model definitions for the profile sync core.
package models

import "time"

// ConflictRecord is an audit row written whenever local and remote copies
// of a profile are found to have diverged.
type ConflictRecord struct {
	ID              UUID   `db:"id" json:"id"`
	ProfileID       UUID   `db:"profile_id" json:"profile_id"`
	LocalVersion    int    `db:"local_version" json:"local_version"`
	RemoteVersion   int    `db:"remote_version" json:"remote_version"`
	LocalUpdatedAt  int64  `db:"local_updated_at" json:"local_updated_at"`
	RemoteUpdatedAt int64  `db:"remote_updated_at" json:"remote_updated_at"`
	Resolution      string `db:"resolution" json:"resolution"` // unresolved, local, server, merge
	DetectedAt      int64  `db:"detected_at" json:"detected_at"`
}

// TableName returns the table name for ConflictRecord.
func (ConflictRecord) TableName() string {
	return "conflict_log"
}

// DetectedAtTime returns DetectedAt as time.Time.
func (c *ConflictRecord) DetectedAtTime() time.Time {
	return time.Unix(c.DetectedAt, 0)
}
