// internal/tracker/sync.go
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// VisibilitySource is the polled fallback for hosts without a
// visibility-change signal. Hosts with a real signal call
// Tracker.SetVisible directly and leave this nil.
type VisibilitySource interface {
	Visible() bool
}

// Synchronizer decides when accumulated active time is pushed to the
// server. Each interval tick reconciles the tracker and evaluates the
// idle countdown; a push happens once the unsynced active time passes a
// small threshold, or once the time since the last push passes a
// staleness ceiling. This bounds both staleness and request volume.
type Synchronizer struct {
	tracker    *Tracker
	client     *Client
	cfg        Config
	log        *zap.Logger
	clock      func() time.Time
	visibility VisibilitySource

	// onIdleWarning fires when the remaining time before forced logout
	// drops below the warning threshold.
	onIdleWarning func(remaining time.Duration)

	lastPush time.Time
	warned   bool
}

// NewSynchronizer creates a synchronizer for the tracker. The config
// should be the same one the tracker was built with.
func NewSynchronizer(t *Tracker, c *Client, cfg Config, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		tracker: t,
		client:  c,
		cfg:     cfg.withDefaults(),
		log:     logger,
		clock:   time.Now,
	}
}

// SetVisibilitySource installs the polled visibility fallback.
func (s *Synchronizer) SetVisibilitySource(src VisibilitySource) {
	s.visibility = src
}

// SetIdleWarning installs the idle-warning callback.
func (s *Synchronizer) SetIdleWarning(fn func(remaining time.Duration)) {
	s.onIdleWarning = fn
}

// Run drives the two timers until ctx is cancelled: a fast visibility
// poll and the slower sync tick. A final flush happens on exit.
func (s *Synchronizer) Run(ctx context.Context) {
	s.lastPush = s.clock()

	visTicker := time.NewTicker(s.cfg.VisibilityPoll)
	defer visTicker.Stop()
	syncTicker := time.NewTicker(s.cfg.SyncInterval)
	defer syncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case <-visTicker.C:
			s.pollVisibility()
		case <-syncTicker.C:
			s.tick(s.clock())
		}
	}
}

func (s *Synchronizer) pollVisibility() {
	if s.visibility != nil {
		s.tracker.SetVisible(s.visibility.Visible())
	}
}

// tick runs one synchronizer cycle: reconcile and idle evaluation via
// Poll, idle warning, then the push decision.
func (s *Synchronizer) tick(now time.Time) bool {
	remaining := s.tracker.Poll()

	info, tracking := s.tracker.Lifecycle()
	if !tracking {
		return false
	}

	if remaining > 0 && remaining <= s.cfg.IdleWarning {
		if !s.warned {
			s.warned = true
			s.log.Info("idle logout imminent",
				zap.Duration("remaining", remaining))
			if s.onIdleWarning != nil {
				s.onIdleWarning(remaining)
			}
		}
	} else {
		s.warned = false
	}

	if !s.shouldPush(now) {
		return false
	}

	// Zero the local counters before the fire-and-forget dispatch so a
	// duplicate or lost request can never double-count a delta.
	delta := s.tracker.TakeDelta()
	s.lastPush = now

	if delta == (Delta{}) {
		return false
	}
	if s.client != nil {
		s.client.UpdateSession(info, delta)
	}
	return true
}

// shouldPush applies the freshness/volume trade-off: enough unsynced
// active time, or too long since the previous push.
func (s *Synchronizer) shouldPush(now time.Time) bool {
	if s.tracker.PendingActive() >= s.cfg.SyncMinActive {
		return true
	}
	return now.Sub(s.lastPush) >= s.cfg.SyncMaxStale
}

// flush pushes whatever is pending, used on shutdown.
func (s *Synchronizer) flush() {
	info, tracking := s.tracker.Lifecycle()
	if !tracking {
		return
	}
	delta := s.tracker.TakeDelta()
	if delta == (Delta{}) || s.client == nil {
		return
	}
	s.client.UpdateSession(info, delta)
}
