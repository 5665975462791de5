// internal/tracker/tracker.go
package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default timing constants. The idle countdown is authoritative here:
// IdleTimeout marks the session idle, and MaxIdle (measured from the
// moment idle began) forces a logout.
const (
	DefaultIdleTimeout      = 10 * time.Minute
	DefaultMaxIdle          = 10 * time.Minute
	DefaultActivityDebounce = 10 * time.Second
	DefaultInteractionFloor = 1 * time.Second
	DefaultVisibilityPoll   = 1 * time.Second
	DefaultSyncInterval     = 60 * time.Second
	DefaultSyncMinActive    = 5 * time.Second
	DefaultSyncMaxStale     = 2 * time.Minute
	DefaultIdleWarning      = 20 * time.Second
)

// Identity is the authenticated user the tracker reports for. It is
// supplied at construction; the tracker never consults ambient state.
type Identity struct {
	UserID   string
	Username string
	Branch   string
}

// Config holds the tracker timing knobs. Zero values fall back to the
// defaults above.
type Config struct {
	IdleTimeout      time.Duration // inactivity before the session is marked idle
	MaxIdle          time.Duration // idle duration before forced logout
	ActivityDebounce time.Duration // min gap between recorded activity timestamps
	InteractionFloor time.Duration // minimum active time credited per action
	VisibilityPoll   time.Duration // how often the synchronizer polls visibility
	SyncInterval     time.Duration // synchronizer tick period
	SyncMinActive    time.Duration // unsynced active time that triggers a push
	SyncMaxStale     time.Duration // wall-clock ceiling between pushes
	IdleWarning      time.Duration // remaining-time threshold for the idle warning
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.IdleTimeout, DefaultIdleTimeout)
	def(&c.MaxIdle, DefaultMaxIdle)
	def(&c.ActivityDebounce, DefaultActivityDebounce)
	def(&c.InteractionFloor, DefaultInteractionFloor)
	def(&c.VisibilityPoll, DefaultVisibilityPoll)
	def(&c.SyncInterval, DefaultSyncInterval)
	def(&c.SyncMinActive, DefaultSyncMinActive)
	def(&c.SyncMaxStale, DefaultSyncMaxStale)
	def(&c.IdleWarning, DefaultIdleWarning)
	return c
}

// session is the in-memory state for one tracked client session.
type session struct {
	id           string
	startTime    time.Time
	lastActivity time.Time // most recent recorded interaction
	reconciledAt time.Time // high-water mark for wall-clock crediting
	isIdle       bool
	idleSince    time.Time
	pageVisible  bool
	activeTime   time.Duration
	idleTime     time.Duration
	currentPage  string
	actions      []Action
}

// Delta is the unsynced accumulation handed to the synchronizer. The
// counters are zeroed the moment the delta is taken, so a given
// millisecond of active time is pushed at most once.
type Delta struct {
	Active       time.Duration
	Idle         time.Duration
	Interactions int
}

// Stats is a read-only snapshot returned by SessionStats.
type Stats struct {
	SessionID   string
	ActiveTime  time.Duration
	IdleTime    time.Duration
	IsIdle      bool
	PageVisible bool
	ActionCount int
	CurrentPage string
}

// Tracker observes one client's interaction stream and keeps a
// continuously reconciled active-time estimate. All methods are safe
// for concurrent use; the synchronizer and the host application share
// one instance.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	id    Identity
	log   *zap.Logger
	clock func() time.Time

	client         *Client
	onForcedLogout func()

	sess  *session
	delta Delta
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source. Tests use this to drive the
// idle and reconciliation math deterministically.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithClient sets the server dispatch client. Without one the tracker
// accumulates locally and never talks to the network.
func WithClient(c *Client) Option {
	return func(t *Tracker) { t.client = c }
}

// WithForcedLogout sets the callback invoked when the idle countdown
// expires. The session is already stopped when it fires.
func WithForcedLogout(fn func()) Option {
	return func(t *Tracker) { t.onForcedLogout = fn }
}

// New creates a Tracker for the given identity. The tracker is owned by
// the application's composition root and passed by reference to
// whatever records actions.
func New(id Identity, cfg Config, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:   cfg.withDefaults(),
		id:    id,
		log:   logger,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Identity returns the identity the tracker was constructed with.
func (t *Tracker) Identity() Identity { return t.id }

// StartTracking begins a new client session on the given page. It is a
// no-op without an authenticated identity or when already tracking.
func (t *Tracker) StartTracking(page string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.id.UserID == "" || t.sess != nil {
		return
	}

	now := t.clock()
	t.sess = &session{
		id:           uuid.NewString(),
		startTime:    now,
		lastActivity: now,
		reconciledAt: now,
		pageVisible:  true,
		currentPage:  page,
	}
	t.delta = Delta{}
	t.appendLocked(now, SessionMarkerPayload{Kind: KindSessionStart}, 0)

	t.log.Debug("tracking started",
		zap.String("session_id", t.sess.id),
		zap.String("user_id", t.id.UserID),
		zap.String("page", page))

	if t.client != nil {
		t.client.StartSession(t.lifecycleLocked(now))
	}
}

// StopTracking reconciles, emits the session_end action, pushes the
// final delta, and clears the session. Safe to call when not tracking.
func (t *Tracker) StopTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked("stopped")
}

func (t *Tracker) stopLocked(reason string) {
	if t.sess == nil {
		return
	}

	now := t.clock()
	t.reconcileLocked(now)

	final := t.sess.activeTime
	t.appendLocked(now, SessionMarkerPayload{Kind: KindSessionEnd, Duration: final}, 0)

	msg := t.lifecycleLocked(now)
	delta := t.takeDeltaLocked()

	t.log.Debug("tracking stopped",
		zap.String("session_id", t.sess.id),
		zap.String("reason", reason),
		zap.Duration("active_time", final))

	t.sess = nil

	if t.client != nil {
		t.client.EndSession(msg, delta)
	}
}

// Interact is the debounced listener entry point for raw qualifying
// events (pointer-down, key-down, touch-start, scroll). It refreshes
// the activity timestamp at most once per debounce interval and always
// clears idle state; it does not append an action.
func (t *Tracker) Interact() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return
	}
	now := t.clock()
	s := t.sess

	if s.isIdle {
		t.clearIdleLocked(now)
		return
	}
	if now.Sub(s.lastActivity) >= t.cfg.ActivityDebounce {
		s.lastActivity = now
	}
}

// RecordAction appends an action, credits active time, and dispatches
// server-synced kinds. The credit is the payload's explicit duration
// when it carries one, and never less than the per-interaction floor,
// so even a zero-duration click counts. No-op when not tracking.
func (t *Tracker) RecordAction(p Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return
	}
	now := t.clock()
	t.reconcileLocked(now)

	s := t.sess
	if s.isIdle {
		t.clearIdleLocked(now)
	} else if now.Sub(s.lastActivity) >= t.cfg.ActivityDebounce {
		s.lastActivity = now
	}

	credit := t.cfg.InteractionFloor
	if d, ok := p.(interface{ ActionDuration() time.Duration }); ok {
		if dur := d.ActionDuration(); dur > credit {
			credit = dur
		}
	}
	s.activeTime += credit
	t.delta.Active += credit
	t.delta.Interactions++

	a := t.appendLocked(now, p, credit)

	if p.ActionKind().SyncedToServer() && t.client != nil {
		t.client.DispatchAction(t.id, s.id, a)
	}
}

// RecordPageView updates the current page, then records a page_view
// action for it.
func (t *Tracker) RecordPageView(page string) {
	t.mu.Lock()
	if t.sess != nil {
		t.sess.currentPage = page
	}
	t.mu.Unlock()
	t.RecordAction(PageViewPayload{Page: page})
}

// SetVisible mirrors the page-visibility signal. The hidden interval is
// never credited: going hidden reconciles first, and coming back resets
// both the activity timestamp and the crediting high-water mark to now.
func (t *Tracker) SetVisible(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil || t.sess.pageVisible == visible {
		return
	}
	now := t.clock()
	s := t.sess

	if !visible {
		t.reconcileLocked(now)
		s.pageVisible = false
		return
	}

	s.pageVisible = true
	s.lastActivity = now
	s.reconciledAt = now
	if s.isIdle {
		t.clearIdleLocked(now)
	}
}

// Poll runs the periodic idle and reconciliation checks. The
// synchronizer calls this on its tick; it returns the remaining time
// before forced logout, or zero when not idle.
func (t *Tracker) Poll() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return 0
	}
	now := t.clock()
	t.checkIdleLocked(now)
	if t.sess == nil { // forced logout tore the session down
		return 0
	}
	t.reconcileLocked(now)

	if t.sess.isIdle {
		remaining := t.cfg.MaxIdle - now.Sub(t.sess.idleSince)
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	}
	return 0
}

// TakeDelta returns the unsynced counters and zeroes them immediately,
// before any dispatch happens. A lost push loses at most one delta and
// never double-counts.
func (t *Tracker) TakeDelta() Delta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.takeDeltaLocked()
}

func (t *Tracker) takeDeltaLocked() Delta {
	d := t.delta
	t.delta = Delta{}
	return d
}

// PendingActive reports the unsynced active time without consuming it.
func (t *Tracker) PendingActive() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delta.Active
}

// Lifecycle returns the identifiers the synchronizer needs for an
// update push, and whether a session is currently being tracked.
func (t *Tracker) Lifecycle() (LifecycleInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return LifecycleInfo{}, false
	}
	return t.lifecycleLocked(t.clock()), true
}

// SessionStats reconciles and returns a diagnostic snapshot.
func (t *Tracker) SessionStats() (Stats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return Stats{}, false
	}
	t.reconcileLocked(t.clock())
	s := t.sess
	return Stats{
		SessionID:   s.id,
		ActiveTime:  s.activeTime,
		IdleTime:    s.idleTime,
		IsIdle:      s.isIdle,
		PageVisible: s.pageVisible,
		ActionCount: len(s.actions),
		CurrentPage: s.currentPage,
	}, true
}

// reconcileLocked credits wall-clock time since the last reconciliation
// point. Visible and not idle accrues active time; visible and idle
// accrues idle time; hidden accrues nothing.
func (t *Tracker) reconcileLocked(now time.Time) {
	s := t.sess
	if s == nil || !now.After(s.reconciledAt) {
		return
	}
	elapsed := now.Sub(s.reconciledAt)
	s.reconciledAt = now

	if !s.pageVisible {
		return
	}
	if s.isIdle {
		s.idleTime += elapsed
		t.delta.Idle += elapsed
		return
	}
	s.activeTime += elapsed
	t.delta.Active += elapsed
}

// checkIdleLocked transitions into idle once the inactivity window is
// exceeded, crediting active time up to the idle boundary, and forces a
// logout once the idle duration exceeds MaxIdle.
func (t *Tracker) checkIdleLocked(now time.Time) {
	s := t.sess
	if s == nil {
		return
	}

	if !s.isIdle && now.Sub(s.lastActivity) >= t.cfg.IdleTimeout {
		t.reconcileLocked(now)
		s.isIdle = true
		s.idleSince = now
		t.log.Debug("session idle",
			zap.String("session_id", s.id),
			zap.Time("idle_since", s.idleSince))
	}

	if s.isIdle && now.Sub(s.idleSince) >= t.cfg.MaxIdle {
		t.log.Info("max idle exceeded, forcing logout",
			zap.String("session_id", s.id),
			zap.String("user_id", t.id.UserID),
			zap.Duration("idle", now.Sub(s.idleSince)))
		cb := t.onForcedLogout
		t.stopLocked("idle_logout")
		if cb != nil {
			cb()
		}
	}
}

func (t *Tracker) clearIdleLocked(now time.Time) {
	s := t.sess
	s.isIdle = false
	s.idleSince = time.Time{}
	s.lastActivity = now
	s.reconciledAt = now
}

// appendLocked stores an action entry stamped with the current page.
func (t *Tracker) appendLocked(now time.Time, p Payload, credit time.Duration) Action {
	a := Action{
		Kind:     p.ActionKind(),
		Time:     now,
		Page:     t.sess.currentPage,
		Payload:  p,
		Duration: credit,
	}
	t.sess.actions = append(t.sess.actions, a)
	return a
}

func (t *Tracker) lifecycleLocked(now time.Time) LifecycleInfo {
	return LifecycleInfo{
		Identity:  t.id,
		SessionID: t.sess.id,
		Page:      t.sess.currentPage,
		Timestamp: now,
	}
}
