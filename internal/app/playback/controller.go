package playback

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/eligibility"
	"github.com/osa030/crowdbox/internal/app/filter"
	"github.com/osa030/crowdbox/internal/app/ledger"
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/settings"
	"github.com/osa030/crowdbox/internal/domain/snapshot"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Errors
var (
	ErrClosed  = errors.New("playback controller closed")
	ErrNoTrack = errors.New("no track playing")
)

// Config holds controller configuration.
type Config struct {
	TickInterval        time.Duration // Progress broadcast cadence
	EndGrace            time.Duration // Added to the remaining time before the end-watch fires
	MinWait             time.Duration // Lower bound of the end-watch delay
	DriftTolerance      time.Duration // Remaining time under which a track counts as finished
	ProviderTimeout     time.Duration // Bound for provider calls made from timers
	ConfirmWindow       time.Duration // How long the provider may lag behind a play or skip
	StartOnVoteWhenIdle bool          // Start the leader when a vote arrives while idle
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.EndGrace <= 0 {
		c.EndGrace = time.Second
	}
	if c.MinWait <= 0 {
		c.MinWait = time.Second
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = 2 * time.Second
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 15 * time.Second
	}
	if c.ConfirmWindow <= 0 {
		c.ConfirmWindow = 5 * time.Second
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, e.g. with clock.NewMock() in tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// Controller is the session state machine. It owns the vote ledger, the
// eligibility records, the playback session and the round counter.
//
// mu guards all state and is never held across provider calls. opMu
// serializes provider-facing operations (transitions, end-watch, pause and
// resume). Lock order is opMu, then mu, then the notifier's lock.
type Controller struct {
	mu   sync.Mutex
	opMu sync.Mutex

	config    Config
	clock     clock.Clock
	provider  Provider
	notifier  Notifier
	moderator *filter.Moderator

	ledger   *ledger.Ledger
	tracker  *eligibility.Tracker
	settings settings.Settings
	session  Session
	round    uint64
	state    State

	// Closed when the running transition commits; nil outside transitions.
	transition chan struct{}

	// End-watch timer and its generation. A fire whose generation no longer
	// matches is stale and ignored.
	watchTimer    *clock.Timer
	watchGen      uint64
	watchDeadline time.Time

	ticker     *clock.Ticker
	tickerDone chan struct{}

	halted  bool
	lastErr error

	events chan Event
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a new playback controller in the Idle state.
func NewController(
	config Config,
	provider Provider,
	notifier Notifier,
	moderator *filter.Moderator,
	initial settings.Settings,
	opts ...Option,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:    config.withDefaults(),
		clock:     clock.New(),
		provider:  provider,
		notifier:  notifier,
		moderator: moderator,
		ledger:    ledger.New(),
		tracker:   eligibility.NewTracker(initial.Mode(), initial.VoteTTL()),
		settings:  initial.Clone(),
		round:     1,
		state:     StateIdle,
		events:    make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	moderator.SetRules(initial.Rules())
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current engine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Round returns the current round.
func (c *Controller) Round() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// Settings returns a copy of the active settings.
func (c *Controller) Settings() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Clone()
}

// Snapshot returns the full client-facing state.
func (c *Controller) Snapshot() snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Progress returns the extrapolated progress record.
func (c *Controller) Progress() snapshot.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot(c.clock.Now())
}

// Status describes the engine for the owner dashboard.
type Status struct {
	State         State
	Round         uint64
	Halted        bool
	LastError     error
	WatchDeadline time.Time // Zero when no end-watch is armed
	Snapshot      snapshot.Snapshot
	Settings      settings.Settings
}

// Status returns the engine status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deadline time.Time
	if c.watchTimer != nil {
		deadline = c.watchDeadline
	}
	return Status{
		State:         c.state,
		Round:         c.round,
		Halted:        c.halted,
		LastError:     c.lastErr,
		WatchDeadline: deadline,
		Snapshot:      c.snapshotLocked(),
		Settings:      c.settings.Clone(),
	}
}

// Subscribe registers a viewer. The current snapshot is its first message;
// it is enqueued under the state lock so no broadcast can precede it.
func (c *Controller) Subscribe() *notification.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifier.Subscribe(notification.StateNotification(c.snapshotLocked()))
}

// SelectDevice sets the output device used for future provider calls.
func (c *Controller) SelectDevice(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.DeviceID == deviceID {
		return
	}
	c.session.DeviceID = deviceID
	zlog.Info().Msgf("playback: device selected: device=%s", deviceID)
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.session.Track, State: c.state})
	c.publishStateLocked()
}

// ClearVotes removes one track's votes (owner moderation).
// It reports whether the track had votes.
func (c *Controller) ClearVotes(trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.clearTrackLocked(trackID) {
		return false
	}
	zlog.Info().Msgf("playback: votes cleared: track=%s", trackID)
	c.publishStateLocked()
	return true
}

// ApplySettings installs new settings: eligibility mode and TTL, moderation
// rules, then purges vote entries whose tracks are now banned. A state
// broadcast follows before it returns. It returns the purged track ids.
func (c *Controller) ApplySettings(s settings.Settings) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.settings
	c.settings = s.Clone()

	c.tracker.SetTTL(s.VoteTTL())
	if c.tracker.SetMode(s.Mode()) {
		c.startRoundLocked()
		zlog.Info().Msgf("playback: vote policy switched to %s, round=%d", s.Mode(), c.round)
	}

	c.moderator.SetRules(s.Rules())
	removed := c.ledger.Purge(func(t track.Track) bool {
		return c.moderator.IsTrackBanned(c.ctx, t)
	})
	for _, id := range removed {
		c.tracker.ForgetTrack(id)
	}
	if len(removed) > 0 {
		zlog.Info().Msgf("playback: purged banned tracks: %v", removed)
	}

	if !prev.Equal(s) || len(removed) > 0 {
		c.publishStateLocked()
	}
	return removed
}

// Close stops timers and releases resources. Pending votes fail with ErrClosed.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancelWatchLocked()
	c.stopTickerLocked()
	c.endTransitionLocked()
	close(c.events)
}

func (c *Controller) snapshotLocked() snapshot.Snapshot {
	var playing *track.Track
	if c.session.Track != nil {
		t := *c.session.Track
		playing = &t
	}
	return snapshot.Snapshot{
		Votes:        c.ledger.Leaderboard(),
		PlayingTrack: playing,
		DeviceID:     c.session.DeviceID,
		Progress:     c.session.Snapshot(c.clock.Now()),
	}
}

// publishStateLocked broadcasts the full snapshot. Suppressed mid-transition;
// the commit publishes instead.
func (c *Controller) publishStateLocked() {
	if c.state == StateTransitioning || c.closed {
		return
	}
	c.notifier.Publish(notification.StateNotification(c.snapshotLocked()))
}

func (c *Controller) clearTrackLocked(trackID string) bool {
	cleared := c.ledger.Clear(trackID)
	c.tracker.ForgetTrack(trackID)
	return cleared
}

func (c *Controller) startRoundLocked() {
	c.round++
	c.tracker.StartRound()
}

// sendEventLocked sends an event without blocking.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.events <- e:
	default:
		zlog.Debug().Msgf("playback: event dropped: type=%s", e.Type)
	}
}
