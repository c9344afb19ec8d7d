// Package profile holds the process-wide current-profile state and
// orchestrates persistence and synchronization for it.
package profile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	errs "github.com/careercompass/profilecore/internal/errors"
	"github.com/careercompass/profilecore/internal/models"
	"github.com/careercompass/profilecore/internal/store"
	syncengine "github.com/careercompass/profilecore/internal/sync"
	"github.com/careercompass/profilecore/internal/uuid"
)

// Drainer triggers a pass over the pending sync queue. Implemented by
// sync.Engine.
type Drainer interface {
	SyncAllPending(ctx context.Context) (*syncengine.DrainResult, error)
}

// Store holds the currently active profile for the process. It is an
// explicit context object constructed at startup and passed to callers;
// there is no ambient global. All mutations funnel through its
// sequential API.
type Store struct {
	persist *store.Store
	drainer Drainer
	log     *zap.Logger

	mu      sync.Mutex
	current *models.Profile
	online  bool
}

// New creates a profile store. The initial connectivity state comes from
// the caller, typically a netmon.Monitor at startup.
func New(persist *store.Store, drainer Drainer, online bool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		persist: persist,
		drainer: drainer,
		log:     log,
		online:  online,
	}
}

// CurrentProfile returns a copy of the currently active profile, nil
// when none is loaded.
func (s *Store) CurrentProfile() *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

// Online returns the current connectivity flag.
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// CreateProfile builds a new profile from the draft's content sections,
// persists it, and makes it the current profile. Online creation
// enqueues the profile and immediately triggers a drain; offline
// creation only records it with status offline.
func (s *Store) CreateProfile(ctx context.Context, draft *models.Profile) (*models.Profile, error) {
	if draft == nil {
		return nil, errs.New(errs.ErrInvalid, "draft profile is nil")
	}

	s.mu.Lock()
	online := s.online

	now := time.Now().Unix()
	p := draft.Clone()
	p.ID = models.UUID(uuid.New())
	p.Metadata = models.Metadata{
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
		SyncStatus: statusFor(online),
	}

	if err := s.persist.SaveProfile(ctx, p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = p
	s.mu.Unlock()

	if online {
		if _, err := s.persist.AddToSyncQueue(ctx, p.ID, models.ActionCreate, p); err != nil {
			return nil, err
		}
		s.drain(ctx)
	}

	s.log.Info("profile created",
		zap.String("profile_id", p.ID.String()),
		zap.String("sync_status", string(p.Metadata.SyncStatus)))

	return s.CurrentProfile(), nil
}

// UpdateProfile merges the partial update over the current profile,
// bumps the version by exactly 1, and persists. Fails with
// NO_ACTIVE_PROFILE when no profile is loaded. Online updates enqueue
// and trigger a drain.
func (s *Store) UpdateProfile(ctx context.Context, partial *models.ProfileUpdate) (*models.Profile, error) {
	if partial == nil {
		return nil, errs.New(errs.ErrInvalid, "partial update is nil")
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, errs.New(errs.ErrNoActiveProfile, "no active profile loaded")
	}
	online := s.online

	p := s.current.Clone()
	applyUpdate(p, partial)
	p.Touch()
	p.Metadata.SyncStatus = statusFor(online)

	if err := s.persist.SaveProfile(ctx, p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.current = p
	s.mu.Unlock()

	if online {
		if _, err := s.persist.AddToSyncQueue(ctx, p.ID, models.ActionUpdate, p); err != nil {
			return nil, err
		}
		s.drain(ctx)
	}

	return s.CurrentProfile(), nil
}

// DeleteProfile removes the current profile from persistent storage and
// clears current-profile state. A remote delete is enqueued only when
// called while online.
func (s *Store) DeleteProfile(ctx context.Context) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return errs.New(errs.ErrNoActiveProfile, "no active profile loaded")
	}
	id := s.current.ID
	online := s.online

	if err := s.persist.DeleteProfile(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = nil
	s.mu.Unlock()

	if online {
		if _, err := s.persist.AddToSyncQueue(ctx, id, models.ActionDelete, nil); err != nil {
			return err
		}
		s.drain(ctx)
	}

	s.log.Info("profile deleted", zap.String("profile_id", id.String()))
	return nil
}

// LoadProfile hydrates current-profile state from persistent storage. An
// absent id yields a nil current profile rather than an error.
func (s *Store) LoadProfile(ctx context.Context, id models.UUID) (*models.Profile, error) {
	p, err := s.persist.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	if p == nil {
		return nil, nil
	}
	return p.Clone(), nil
}

// SetOnlineStatus updates the connectivity flag. Transitioning to online
// with a non-empty queue triggers a drain. Profiles created or updated
// while offline are not requeued here; they stay in status offline until
// the next online mutation.
func (s *Store) SetOnlineStatus(ctx context.Context, online bool) error {
	s.mu.Lock()
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()

	if wasOnline == online {
		return nil
	}

	s.log.Info("connectivity changed", zap.Bool("online", online))

	if !online {
		return nil
	}

	count, err := s.persist.PendingSyncCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		s.drain(ctx)
	}
	return nil
}

// drain runs one queue drain, logging instead of propagating failures:
// the local mutation is already durable and the entry stays queued for
// the next redrive.
func (s *Store) drain(ctx context.Context) {
	if s.drainer == nil {
		return
	}
	if _, err := s.drainer.SyncAllPending(ctx); err != nil {
		s.log.Warn("queue drain failed", zap.Error(err))
	}
}

func statusFor(online bool) models.SyncStatus {
	if online {
		return models.SyncStatusPending
	}
	return models.SyncStatusOffline
}

// applyUpdate overwrites whole sections of p with the sections provided
// in the partial update.
func applyUpdate(p *models.Profile, partial *models.ProfileUpdate) {
	if partial.Personal != nil {
		p.Personal = *partial.Personal
	}
	if partial.Academic != nil {
		p.Academic = *partial.Academic
	}
	if partial.Preferences != nil {
		p.Preferences = *partial.Preferences
	}
}
