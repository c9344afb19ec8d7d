// Package scheduler provides the optional background sync trigger. It
// only affects sync latency: correctness never depends on it running.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careercompass/profilecore/internal/netmon"
	syncengine "github.com/careercompass/profilecore/internal/sync"
)

// Drainer triggers a pass over the pending sync queue.
type Drainer interface {
	SyncAllPending(ctx context.Context) (*syncengine.DrainResult, error)
}

// StatusSink receives connectivity transitions, typically the profile
// store.
type StatusSink interface {
	SetOnlineStatus(ctx context.Context, online bool) error
}

// Scheduler periodically drains the sync queue while online and relays
// connectivity transitions from a Monitor to a StatusSink.
type Scheduler struct {
	drainer  Drainer
	sink     StatusSink
	monitor  netmon.Monitor
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	unsub     func()
}

// DefaultInterval is the drain period used when none is configured.
const DefaultInterval = 15 * time.Minute

// New creates a Scheduler. interval values <= 0 fall back to
// DefaultInterval.
func New(drainer Drainer, sink StatusSink, monitor netmon.Monitor, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		drainer:  drainer,
		sink:     sink,
		monitor:  monitor,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic drain loop and subscribes to connectivity
// transitions.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	if s.monitor != nil && s.sink != nil {
		s.unsub = s.monitor.Subscribe(func(online bool) {
			if err := s.sink.SetOnlineStatus(ctx, online); err != nil {
				s.log.Warn("propagating connectivity change failed", zap.Error(err))
			}
		})
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("background sync scheduler started",
		zap.Duration("interval", s.interval))
}

// Stop stops the scheduler gracefully.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.unsub != nil {
		s.unsub()
	}
	close(s.stopCh)
	s.wg.Wait()

	s.log.Info("background sync scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.monitor != nil && !s.monitor.Online() {
				continue
			}
			if _, err := s.drainer.SyncAllPending(ctx); err != nil {
				s.log.Warn("periodic drain failed", zap.Error(err))
			}
		}
	}
}
