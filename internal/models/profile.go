// Package models provides data model definitions for the profile sync core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// SyncStatus describes a profile's reconciliation state with the remote.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusOffline  SyncStatus = "offline"
	SyncStatusConflict SyncStatus = "conflict"
)

// Valid reports whether s is one of the known sync statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusSynced, SyncStatusPending, SyncStatusOffline, SyncStatusConflict:
		return true
	}
	return false
}

// PersonalDetails holds the identity section of a profile.
type PersonalDetails struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
}

// AcademicBackground holds the schooling section of a profile.
type AcademicBackground struct {
	School     string   `json:"school,omitempty"`
	Board      string   `json:"board,omitempty"`
	Grade      string   `json:"grade,omitempty"`
	Stream     string   `json:"stream,omitempty"`
	Percentage float64  `json:"percentage,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
}

// Preferences holds the user-tunable section of a profile.
type Preferences struct {
	Language      string   `json:"language,omitempty"`
	Interests     []string `json:"interests,omitempty"`
	CareerGoals   []string `json:"career_goals,omitempty"`
	Notifications bool     `json:"notifications,omitempty"`
}

// Metadata carries the versioning and reconciliation state of a profile.
// Version starts at 1 and is incremented by exactly 1 on every local
// mutation; it is never decremented.
type Metadata struct {
	CreatedAt  int64      `json:"created_at"`
	UpdatedAt  int64      `json:"updated_at"`
	Version    int        `json:"version"`
	SyncStatus SyncStatus `json:"sync_status"`
}

// Profile is the versioned user record owned by the sync core. The three
// content sections are opaque to the sync core beyond their section
// boundaries.
type Profile struct {
	ID          UUID               `json:"id"`
	Personal    PersonalDetails    `json:"personal_details"`
	Academic    AcademicBackground `json:"academic_background"`
	Preferences Preferences        `json:"preferences"`
	Metadata    Metadata           `json:"metadata"`
}

// Touch bumps UpdatedAt and increments the version by exactly 1.
func (p *Profile) Touch() {
	p.Metadata.UpdatedAt = time.Now().Unix()
	p.Metadata.Version++
}

// CreatedAtTime returns Metadata.CreatedAt as time.Time.
func (p *Profile) CreatedAtTime() time.Time {
	return time.Unix(p.Metadata.CreatedAt, 0)
}

// UpdatedAtTime returns Metadata.UpdatedAt as time.Time.
func (p *Profile) UpdatedAtTime() time.Time {
	return time.Unix(p.Metadata.UpdatedAt, 0)
}

// Clone returns a deep copy of the profile. Section slices are copied so
// callers cannot mutate stored state through a returned profile.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.Academic.Subjects = append([]string(nil), p.Academic.Subjects...)
	cp.Preferences.Interests = append([]string(nil), p.Preferences.Interests...)
	cp.Preferences.CareerGoals = append([]string(nil), p.Preferences.CareerGoals...)
	return &cp
}

// TableName returns the table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}

// ProfileUpdate is a partial mutation applied over the current profile.
// Nil sections are left untouched; a provided section replaces the
// current section wholesale.
type ProfileUpdate struct {
	Personal    *PersonalDetails    `json:"personal_details,omitempty"`
	Academic    *AcademicBackground `json:"academic_background,omitempty"`
	Preferences *Preferences        `json:"preferences,omitempty"`
}
