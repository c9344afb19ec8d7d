// Package conflict resolves divergence between local and remote profile
// copies.
package conflict

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/careercompass/profilecore/internal/models"
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	// StrategyLocal keeps local field values and schedules a re-sync at
	// version server+1.
	StrategyLocal Strategy = "local"

	// StrategyServer adopts the server record verbatim.
	StrategyServer Strategy = "server"

	// StrategyMerge merges section by section, local fields winning
	// within a section.
	StrategyMerge Strategy = "merge"
)

// Errors
var (
	ErrNilProfile      = fmt.Errorf("conflict: local and server profiles must be non-nil")
	ErrIDMismatch      = fmt.Errorf("conflict: profile ID mismatch")
	ErrUnknownStrategy = fmt.Errorf("conflict: unknown strategy")
)

// Resolve produces the profile that should replace local state after a
// conflict, according to the chosen strategy. The inputs are not
// modified.
func Resolve(local, server *models.Profile, strategy Strategy) (*models.Profile, error) {
	if local == nil || server == nil {
		return nil, ErrNilProfile
	}
	if local.ID != server.ID {
		return nil, ErrIDMismatch
	}

	switch strategy {
	case StrategyLocal:
		resolved := local.Clone()
		resolved.Metadata.Version = server.Metadata.Version + 1
		resolved.Metadata.SyncStatus = models.SyncStatusPending
		return resolved, nil

	case StrategyServer:
		resolved := server.Clone()
		resolved.Metadata.SyncStatus = models.SyncStatusSynced
		return resolved, nil

	case StrategyMerge:
		return merge(local, server)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// merge performs a shallow, section-level merge: within each section the
// server copy is taken as the base and local fields overlay it, so a
// field set locally wins and fields only the server has are kept.
// Metadata: createdAt from server, updatedAt now, version server+1,
// status pending.
func merge(local, server *models.Profile) (*models.Profile, error) {
	resolved := &models.Profile{ID: server.ID}

	if err := mergeSection(server.Personal, local.Personal, &resolved.Personal); err != nil {
		return nil, fmt.Errorf("merge personal section: %w", err)
	}
	if err := mergeSection(server.Academic, local.Academic, &resolved.Academic); err != nil {
		return nil, fmt.Errorf("merge academic section: %w", err)
	}
	if err := mergeSection(server.Preferences, local.Preferences, &resolved.Preferences); err != nil {
		return nil, fmt.Errorf("merge preferences section: %w", err)
	}

	resolved.Metadata = models.Metadata{
		CreatedAt:  server.Metadata.CreatedAt,
		UpdatedAt:  time.Now().Unix(),
		Version:    server.Metadata.Version + 1,
		SyncStatus: models.SyncStatusPending,
	}
	return resolved, nil
}

// mergeSection overlays the set fields of localSection onto
// serverSection and decodes the result into out. Sections round-trip
// through their JSON form, where unset fields are omitted, so only
// locally set fields overwrite.
func mergeSection(serverSection, localSection, out interface{}) error {
	base, err := toMap(serverSection)
	if err != nil {
		return err
	}
	overlay, err := toMap(localSection)
	if err != nil {
		return err
	}

	for k, v := range overlay {
		base[k] = v
	}

	data, err := json.Marshal(base)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func toMap(section interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(section)
	if err != nil {
		return nil, err
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Detected reports whether local and remote copies diverge. The local
// copy must have unsynced changes, the remote copy must be newer by
// wall clock, and the versions must differ. Timestamp comparison is a
// heuristic: concurrent writes landing on the same second are not
// detected.
func Detected(local, remote *models.Profile) bool {
	if local == nil || remote == nil {
		return false
	}
	if local.Metadata.SyncStatus != models.SyncStatusPending {
		return false
	}
	if remote.Metadata.UpdatedAt <= local.Metadata.UpdatedAt {
		return false
	}
	return remote.Metadata.Version != local.Metadata.Version
}
