package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestSynchronizer(clock *fakeClock, tr *Tracker) *Synchronizer {
	s := NewSynchronizer(tr, nil, Config{}, zap.NewNop())
	s.clock = clock.Now
	s.lastPush = clock.Now()
	return s
}

func TestTickPushesWhenActiveThresholdMet(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	tr.StartTracking("dashboard")
	s := newTestSynchronizer(clock, tr)

	clock.Advance(DefaultSyncMinActive + time.Second)

	assert.True(t, s.tick(clock.Now()), "enough unsynced active time should push")
	assert.Zero(t, tr.PendingActive(), "push must consume the delta")
}

func TestTickHoldsBelowThreshold(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	tr.StartTracking("dashboard")
	s := newTestSynchronizer(clock, tr)

	clock.Advance(2 * time.Second)
	tr.Poll()

	assert.False(t, s.tick(clock.Now()))
	assert.Equal(t, 2*time.Second, tr.PendingActive(),
		"held delta must stay pending for the next tick")
}

func TestTickPushesWhenStale(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	tr.StartTracking("dashboard")
	s := newTestSynchronizer(clock, tr)

	// Keep the session out of idle with periodic interactions while the
	// staleness ceiling approaches.
	for i := 0; i < 4; i++ {
		clock.Advance(30 * time.Second)
		tr.Interact()
	}
	// Consume the accumulated active time so only staleness can trigger.
	tr.Poll()
	tr.TakeDelta()
	s.lastPush = clock.Now().Add(-DefaultSyncMaxStale)

	clock.Advance(2 * time.Second)
	assert.True(t, s.tick(clock.Now()), "staleness ceiling should force a push")
}

func TestTickNotTracking(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	s := newTestSynchronizer(clock, tr)

	assert.False(t, s.tick(clock.Now()))
}

func TestIdleWarningFiresOnce(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	tr.StartTracking("dashboard")
	s := newTestSynchronizer(clock, tr)

	var warnings []time.Duration
	s.SetIdleWarning(func(remaining time.Duration) {
		warnings = append(warnings, remaining)
	})

	clock.Advance(DefaultIdleTimeout)
	s.tick(clock.Now())
	assert.Empty(t, warnings, "no warning while plenty of idle time remains")

	clock.Advance(DefaultMaxIdle - 10*time.Second)
	s.tick(clock.Now())
	assert.Len(t, warnings, 1)
	assert.Equal(t, 10*time.Second, warnings[0])

	clock.Advance(time.Second)
	s.tick(clock.Now())
	assert.Len(t, warnings, 1, "warning must not repeat while still idle")
}
