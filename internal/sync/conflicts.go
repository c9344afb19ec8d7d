package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	errs "github.com/careercompass/profilecore/internal/errors"
	"github.com/careercompass/profilecore/internal/models"
	"github.com/careercompass/profilecore/internal/sync/conflict"
)

// CheckForConflicts fetches the local and remote copies of a profile and
// reports whether they diverge. A detected conflict marks the local
// profile as conflicted and writes an audit row; the profile is then
// excluded from drains until ResolveConflict is called.
func (e *Engine) CheckForConflicts(ctx context.Context, id models.UUID) (bool, error) {
	local, err := e.store.GetProfile(ctx, id)
	if err != nil {
		return false, err
	}
	if local == nil {
		return false, nil
	}

	remote, err := e.remote.FetchProfile(ctx, id)
	if err != nil {
		if errs.Is(err, errs.ErrRemoteNotFound) {
			// Nothing on the server to conflict with.
			return false, nil
		}
		return false, err
	}

	if !conflict.Detected(local, remote) {
		return false, nil
	}

	if err := e.store.UpdateSyncStatus(ctx, id, models.SyncStatusConflict); err != nil {
		return false, err
	}

	rec := &models.ConflictRecord{
		ProfileID:       id,
		LocalVersion:    local.Metadata.Version,
		RemoteVersion:   remote.Metadata.Version,
		LocalUpdatedAt:  local.Metadata.UpdatedAt,
		RemoteUpdatedAt: remote.Metadata.UpdatedAt,
		DetectedAt:      time.Now().Unix(),
	}
	if err := e.store.RecordConflict(ctx, rec); err != nil {
		return false, err
	}

	e.log.Warn("conflict detected",
		zap.String("profile_id", id.String()),
		zap.Int("local_version", local.Metadata.Version),
		zap.Int("remote_version", remote.Metadata.Version))

	return true, nil
}

// ResolveConflict applies the chosen strategy, persists the resolved
// profile, and, when the resolution leaves local changes pending,
// re-enqueues it for sync. The resolved profile is returned.
func (e *Engine) ResolveConflict(ctx context.Context, local, server *models.Profile, strategy conflict.Strategy) (*models.Profile, error) {
	resolved, err := conflict.Resolve(local, server, strategy)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalid, "resolve conflict", err)
	}

	if err := e.store.SaveProfile(ctx, resolved); err != nil {
		return nil, err
	}
	if err := e.store.ResolveConflictRecords(ctx, resolved.ID, string(strategy)); err != nil {
		return nil, err
	}

	if resolved.Metadata.SyncStatus == models.SyncStatusPending {
		if _, err := e.store.AddToSyncQueue(ctx, resolved.ID, models.ActionUpdate, resolved); err != nil {
			return nil, err
		}
	}

	e.log.Info("conflict resolved",
		zap.String("profile_id", resolved.ID.String()),
		zap.String("strategy", string(strategy)),
		zap.Int("version", resolved.Metadata.Version))

	return resolved, nil
}
