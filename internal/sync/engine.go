// Package sync reconciles queued local profile writes with the remote
// profile service.
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	errs "github.com/careercompass/profilecore/internal/errors"
	"github.com/careercompass/profilecore/internal/models"
	"github.com/careercompass/profilecore/internal/store"
)

// RemoteAPI defines the remote profile service operations the engine
// needs. Implemented by remote.Client; mocked in tests.
type RemoteAPI interface {
	// CreateProfile performs the first sync of a profile (version 1).
	CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)

	// UpdateProfile syncs a subsequent version of a profile.
	UpdateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)

	// FetchProfile retrieves the remote copy, REMOTE_NOT_FOUND when absent.
	FetchProfile(ctx context.Context, id models.UUID) (*models.Profile, error)

	// DeleteProfile removes the remote copy.
	DeleteProfile(ctx context.Context, id models.UUID) error
}

// Engine drains the pending sync queue against the remote profile
// service and owns retry and eviction policy.
type Engine struct {
	store      *store.Store
	remote     RemoteAPI
	maxRetries int
	log        *zap.Logger

	// draining guards the single in-flight drain invariant.
	draining atomic.Bool

	lastDrain atomic.Pointer[time.Time]
}

// NewEngine creates a sync engine. maxRetries values below 1 fall back
// to the default of 3.
func NewEngine(st *store.Store, remote RemoteAPI, maxRetries int, log *zap.Logger) *Engine {
	if maxRetries < 1 {
		maxRetries = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:      st,
		remote:     remote,
		maxRetries: maxRetries,
		log:        log,
	}
}

// LastDrain returns the end time of the last completed drain.
func (e *Engine) LastDrain() *time.Time {
	return e.lastDrain.Load()
}

// SyncProfile performs the remote write for one profile: create when the
// profile is at version 1, update otherwise. Returns the acknowledged
// profile.
func (e *Engine) SyncProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	if p.Metadata.Version == 1 {
		return e.remote.CreateProfile(ctx, p)
	}
	return e.remote.UpdateProfile(ctx, p)
}

// DrainResult summarizes one full pass over the sync queue.
type DrainResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Processed int
	Succeeded int
	Evicted   int
	Skipped   int
}

// SyncAllPending drains the queue in strict enqueue order. At most one
// drain runs at a time; a second invocation while one is in flight is a
// no-op and returns (nil, nil). Entries whose profile is in conflict are
// skipped and stay queued. A transport-failed entry has its retry count
// bumped and is evicted unconditionally once the count reaches the cap;
// the profile is left pending. Storage failures abort the drain and are
// returned to the caller without touching retry counts.
func (e *Engine) SyncAllPending(ctx context.Context) (*DrainResult, error) {
	if !e.draining.CompareAndSwap(false, true) {
		e.log.Debug("drain already in flight, skipping")
		return nil, nil
	}
	defer e.draining.Store(false)

	result := &DrainResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		e.lastDrain.Store(&result.EndTime)
	}()

	entries, err := e.store.GetSyncQueue(ctx)
	if err != nil {
		return result, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		local, err := e.store.GetProfile(ctx, entry.ProfileID)
		if err != nil {
			return result, err
		}
		if local != nil && local.Metadata.SyncStatus == models.SyncStatusConflict {
			// Not eligible for sync until explicitly resolved.
			result.Skipped++
			e.log.Debug("skipping conflicted profile",
				zap.String("profile_id", entry.ProfileID.String()))
			continue
		}

		if err := e.processEntry(ctx, entry, local); err != nil {
			if errs.Is(err, errs.ErrStorage) {
				// Storage failures are not transport retries; abort the
				// drain and surface them.
				return result, err
			}
			evicted, retryErr := e.handleFailure(ctx, entry, err)
			if retryErr != nil {
				return result, retryErr
			}
			if evicted {
				result.Evicted++
			}
			continue
		}

		if err := e.store.RemoveFromSyncQueue(ctx, entry.ID); err != nil {
			return result, err
		}
		result.Succeeded++
	}

	e.log.Info("queue drain finished",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("evicted", result.Evicted),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

// processEntry performs the remote call for one queue entry and persists
// the acknowledged state. stored is the profile's current local record;
// an acknowledgment older than it is not written back, so a snapshot
// enqueued before a later local mutation can never roll the version back.
func (e *Engine) processEntry(ctx context.Context, entry *models.QueueEntry, stored *models.Profile) error {
	switch entry.Action {
	case models.ActionDelete:
		return e.remote.DeleteProfile(ctx, entry.ProfileID)

	default:
		snapshot, err := entry.Snapshot()
		if err != nil {
			return errs.Wrap(errs.ErrStorage, "decode queue payload", err)
		}

		acked, err := e.SyncProfile(ctx, snapshot)
		if err != nil {
			return err
		}

		if stored != nil && stored.Metadata.Version > acked.Metadata.Version {
			// The local record moved past this snapshot after it was
			// enqueued; keep the newer state. The entry still succeeded
			// remotely and is removed by the caller.
			e.log.Debug("stale snapshot acked, keeping newer local record",
				zap.String("profile_id", entry.ProfileID.String()),
				zap.Int("acked_version", acked.Metadata.Version),
				zap.Int("local_version", stored.Metadata.Version))
			return nil
		}

		acked.Metadata.SyncStatus = models.SyncStatusSynced
		return e.store.SaveProfile(ctx, acked)
	}
}

// handleFailure bumps the retry count and evicts the entry once the cap
// is reached. Eviction is unconditional and silent toward the caller:
// the profile stays pending with no further automatic attempt.
func (e *Engine) handleFailure(ctx context.Context, entry *models.QueueEntry, cause error) (evicted bool, err error) {
	count, err := e.store.IncrementRetry(ctx, entry.ID)
	if err != nil {
		return false, err
	}

	if count >= e.maxRetries {
		if err := e.store.RemoveFromSyncQueue(ctx, entry.ID); err != nil {
			return false, err
		}
		e.log.Warn("queue entry evicted after retry exhaustion",
			zap.String("entry_id", entry.ID),
			zap.String("profile_id", entry.ProfileID.String()),
			zap.Int("retries", count),
			zap.Error(cause))
		return true, nil
	}

	e.log.Warn("sync attempt failed, entry left queued",
		zap.String("entry_id", entry.ID),
		zap.String("profile_id", entry.ProfileID.String()),
		zap.Int("retry_count", count),
		zap.Error(cause))
	return false, nil
}
