package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Via tells who picked the next track.
type Via string

const (
	ViaVotes    Via = "votes"
	ViaProvider Via = "provider"
	ViaOwner    Via = "owner"
)

// AdvanceResult describes a completed transition.
type AdvanceResult struct {
	Via     Via
	TrackID string // Empty when the provider reported nothing playing or has not caught up
}

// ForceAdvance runs the end-of-track decision now (manual skip). The
// existing end-watch is cancelled before anything is rescheduled.
func (c *Controller) ForceAdvance(ctx context.Context) (AdvanceResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.cancelWatch(); err != nil {
		return AdvanceResult{}, err
	}
	zlog.Info().Msg("playback: manual skip")
	return c.advance(ctx)
}

// PlayTrack starts t immediately, bypassing the vote decision.
func (c *Controller) PlayTrack(ctx context.Context, t track.Track) (AdvanceResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.cancelWatch(); err != nil {
		return AdvanceResult{}, err
	}
	if err := c.beginTransition(); err != nil {
		return AdvanceResult{}, err
	}
	if err := c.startTrack(ctx, t, ViaOwner); err != nil {
		return AdvanceResult{}, err
	}
	return AdvanceResult{Via: ViaOwner, TrackID: t.ID}, nil
}

// Resync runs the end-watch against whatever the provider is playing now.
// Used at startup and after authorization.
func (c *Controller) Resync(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.cancelWatch(); err != nil {
		return err
	}
	if err := c.beginTransition(); err != nil {
		return err
	}
	if _, _, err := c.watch(ctx); err != nil {
		c.halt(err, "resync")
		return err
	}
	return nil
}

// Pause pauses the provider and recalibrates from its state. The end-watch
// stays armed; a paused session never reaches its deadline.
func (c *Controller) Pause(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	deviceID, err := c.deviceID()
	if err != nil {
		return err
	}
	if err := c.provider.Pause(ctx, deviceID); err != nil {
		return errors.Wrap(err, "pause")
	}

	st, stErr := c.provider.PlaybackState(ctx)
	if stErr != nil {
		zlog.Warn().Msgf("playback: state after pause unavailable: %v", stErr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if stErr == nil && st.HasItem() {
		c.session.Observe(st, now)
	}
	c.session.SetPlaying(false, now)

	zlog.Info().Msgf("playback: paused at %v", c.session.Progress(now))
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.session.Track, State: c.state})
	c.publishStateLocked()
	return nil
}

// Resume resumes the provider and recalibrates from its state. When the
// engine was halted or idle, ticking and the end-watch are re-armed.
func (c *Controller) Resume(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	deviceID, err := c.deviceID()
	if err != nil {
		return err
	}
	if err := c.provider.Resume(ctx, deviceID); err != nil {
		return errors.Wrap(err, "resume")
	}

	st, stErr := c.provider.PlaybackState(ctx)
	if stErr != nil {
		zlog.Warn().Msgf("playback: state after resume unavailable: %v", stErr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if stErr == nil && st.HasItem() {
		c.session.Observe(st, now)
	}
	c.session.SetPlaying(true, now)

	if c.session.Track != nil && (c.watchTimer == nil || c.state != StatePlaying) {
		if c.halted {
			zlog.Info().Msg("playback: resuming after halt, re-arming end-watch")
		}
		c.halted = false
		c.lastErr = nil
		c.state = StatePlaying
		c.startTickerLocked()
		c.armWatchLocked(c.session.Remaining(now))
	}

	zlog.Info().Msgf("playback: resumed at %v", c.session.Progress(now))
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.session.Track, State: c.state})
	c.publishStateLocked()
	return nil
}

// advance decides the next track: the vote winner, or the provider's own
// next track. Caller holds opMu and has cancelled the end-watch.
func (c *Controller) advance(ctx context.Context) (AdvanceResult, error) {
	if err := c.beginTransition(); err != nil {
		return AdvanceResult{}, err
	}

	c.mu.Lock()
	winner, ok := c.ledger.Winner(c.settings.MinVotesToOverride)
	deviceID := c.session.DeviceID
	var leaving string
	if c.session.Track != nil {
		leaving = c.session.Track.ID
	}
	c.mu.Unlock()

	if ok {
		zlog.Info().Msgf("playback: vote winner: track=%s votes=%d", winner.TrackID, winner.Count)
		if err := c.startTrack(ctx, winner.Track, ViaVotes); err != nil {
			return AdvanceResult{}, err
		}
		return AdvanceResult{Via: ViaVotes, TrackID: winner.TrackID}, nil
	}

	zlog.Info().Msg("playback: no vote winner, advancing provider")
	if err := c.provider.SkipToNext(ctx, deviceID); err != nil {
		err = errors.Wrap(err, "skip to next")
		c.halt(err, "advance")
		return AdvanceResult{}, err
	}

	if leaving != "" {
		c.mu.Lock()
		c.session.Await("", leaving, c.clock.Now().Add(c.config.ConfirmWindow))
		c.mu.Unlock()
	}

	st, caughtUp, err := c.watch(ctx)
	if err != nil {
		c.halt(err, "advance")
		return AdvanceResult{}, err
	}
	landed := st.Item
	if !caughtUp {
		landed = nil
	}

	// The provider may land on a paused item after skipping
	if landed != nil && !st.IsPlaying {
		if err := c.provider.Resume(ctx, deviceID); err != nil {
			zlog.Warn().Msgf("playback: resume after provider advance failed: %v", err)
		} else {
			c.mu.Lock()
			c.session.SetPlaying(true, c.clock.Now())
			c.publishStateLocked()
			c.mu.Unlock()
		}
	}

	result := AdvanceResult{Via: ViaProvider}
	if landed != nil {
		result.TrackID = landed.ID
	}

	c.mu.Lock()
	c.sendEventLocked(Event{Type: EventProviderAdvanced, Track: landed, State: c.state})
	c.mu.Unlock()
	return result, nil
}

// startTrack plays t and commits it as the current track. Caller holds opMu
// and has begun a transition.
func (c *Controller) startTrack(ctx context.Context, t track.Track, via Via) error {
	c.mu.Lock()
	deviceID := c.session.DeviceID
	c.mu.Unlock()

	if err := c.provider.Play(ctx, t, deviceID); err != nil {
		err = errors.Wrapf(err, "play %s", t.ID)
		c.halt(err, "start track")
		return err
	}

	c.mu.Lock()
	now := c.clock.Now()
	c.session.Start(t, now)
	c.session.Await(t.ID, "", now.Add(c.config.ConfirmWindow))
	c.startRoundLocked()
	c.clearTrackLocked(t.ID)
	c.halted = false
	c.lastErr = nil
	c.state = StatePlaying
	c.endTransitionLocked()
	zlog.Info().Msgf("playback: track started: track=%s name=%q via=%s round=%d", t.ID, t.Name, via, c.round)
	c.sendEventLocked(Event{Type: EventTrackStarted, Track: c.session.Track, State: c.state})
	c.publishStateLocked()
	c.startTickerLocked()
	// Armed from the local duration until the provider confirms
	c.armWatchLocked(t.Duration)
	c.mu.Unlock()

	if _, _, err := c.watch(ctx); err != nil {
		// The track is playing; the local end-watch still runs
		zlog.Warn().Msgf("playback: end-watch recalibration failed: %v", err)
		if player.IsUnauthorized(err) {
			c.halt(err, "end-watch")
		}
	}
	return nil
}

// watch queries the provider once and re-arms the end-watch from the
// observation. With nothing active it clears the track and goes idle. While
// the provider still reports the state from before a play or skip, the
// local session is kept and the provider is polled again after MinWait;
// caughtUp is false in that case.
func (c *Controller) watch(ctx context.Context) (st *player.State, caughtUp bool, err error) {
	st, err = c.provider.PlaybackState(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "playback state")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return st, false, ErrClosed
	}

	now := c.clock.Now()
	if !st.HasItem() && !c.session.AwaitingStart(now) {
		zlog.Info().Msg("playback: provider reports nothing active, waiting for next action")
		c.cancelWatchLocked()
		c.stopTickerLocked()
		c.session.Clear()
		c.state = StateIdle
		c.endTransitionLocked()
		c.publishStateLocked()
		return st, true, nil
	}

	if !c.session.Observe(st, now) {
		zlog.Debug().Msgf("playback: provider has not caught up yet, polling again in %v", c.config.MinWait)
		c.state = StatePlaying
		c.endTransitionLocked()
		c.startTickerLocked()
		c.armAfterLocked(c.config.MinWait)
		c.publishStateLocked()
		return st, false, nil
	}

	c.halted = false
	c.lastErr = nil
	c.state = StatePlaying
	c.endTransitionLocked()
	c.startTickerLocked()
	c.armWatchLocked(c.session.Remaining(now))
	c.publishStateLocked()
	return st, true, nil
}

// onTrackFinished is the end-watch timer handler. It never lets an error or
// panic escape.
func (c *Controller) onTrackFinished(gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			c.halt(errors.Newf("panic in end-watch: %v", r), "end-watch")
		}
	}()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	proceed, current := c.checkFire(gen)
	if !proceed {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.config.ProviderTimeout)
	defer cancel()

	st, err := c.provider.PlaybackState(ctx)
	if err != nil {
		c.halt(errors.Wrap(err, "playback state"), "end-watch")
		return
	}

	if c.settle(st, current) {
		return
	}

	if _, err := c.advance(ctx); err != nil {
		zlog.Error().Msgf("playback: end-of-track transition failed: %v", err)
	}
}

// settle handles a fire that needs no transition and reports whether it did.
// The provider may not have caught up with the last play or skip yet, may
// still be on the current track, or may have moved on by itself. A track the
// provider moved on to is adopted unless a vote winner should replace it.
func (c *Controller) settle(st *player.State, current *track.Track) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if !st.HasItem() {
		if c.session.AwaitingStart(now) {
			c.armAfterLocked(c.config.MinWait)
			return true
		}
		return false
	}
	if !st.IsPlaying || st.Remaining() <= c.config.DriftTolerance {
		if !c.session.Observe(st, now) {
			c.armAfterLocked(c.config.MinWait)
			return true
		}
		return false
	}

	moved := current == nil || current.ID != st.Item.ID
	if moved && c.session.AwaitingStart(now) {
		// Still the state from before our play request
		c.armAfterLocked(c.config.MinWait)
		return true
	}
	if moved {
		if _, ok := c.ledger.Winner(c.settings.MinVotesToOverride); ok {
			return false
		}
	}
	if !c.session.Observe(st, now) {
		c.armAfterLocked(c.config.MinWait)
		return true
	}
	c.armWatchLocked(c.session.Remaining(now))
	if moved {
		zlog.Info().Msgf("playback: provider moved on by itself, adopting track=%s", st.Item.ID)
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.session.Track, State: c.state})
		c.publishStateLocked()
		return true
	}
	zlog.Debug().Msgf("playback: track still playing, remaining=%v", st.Remaining())
	return true
}

// checkFire validates a timer fire. A paused session re-arms instead of advancing.
func (c *Controller) checkFire(gen uint64) (bool, *track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.watchGen {
		zlog.Debug().Msgf("playback: stale end-watch ignored: gen=%d current=%d", gen, c.watchGen)
		return false, nil
	}
	c.watchTimer = nil

	if c.session.Track != nil && !c.session.IsPlaying() {
		c.armWatchLocked(c.session.Remaining(c.clock.Now()))
		return false, nil
	}

	var current *track.Track
	if c.session.Track != nil {
		t := *c.session.Track
		current = &t
	}
	return true, current
}

// halt stops ticking and the end-watch and parks the engine in Idle until
// the next explicit action.
func (c *Controller) halt(err error, op string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case player.IsUnauthorized(err):
		zlog.Error().Msgf("playback: %s: provider unauthorized, halting until re-authorization: %v", op, err)
	case player.IsTransient(err):
		zlog.Warn().Msgf("playback: %s: transient provider failure, halting: %v", op, err)
	default:
		zlog.Error().Msgf("playback: %s: halting: %v", op, err)
	}

	c.cancelWatchLocked()
	c.stopTickerLocked()
	c.session.Freeze(c.clock.Now())
	c.halted = true
	c.lastErr = err
	c.state = StateIdle
	c.endTransitionLocked()
	c.sendEventLocked(Event{Type: EventHalted, Track: c.session.Track, State: c.state, Err: err})
	c.publishStateLocked()
}

func (c *Controller) beginTransition() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.transition == nil {
		c.transition = make(chan struct{})
	}
	c.state = StateTransitioning
	return nil
}

// endTransitionLocked releases votes queued behind the transition. The
// caller has already set the committed state.
func (c *Controller) endTransitionLocked() {
	if c.transition != nil {
		close(c.transition)
		c.transition = nil
	}
}

func (c *Controller) cancelWatch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.cancelWatchLocked()
	return nil
}

// cancelWatchLocked stops the end-watch and invalidates any fire already in flight.
func (c *Controller) cancelWatchLocked() {
	if c.watchTimer != nil {
		c.watchTimer.Stop()
		c.watchTimer = nil
	}
	c.watchGen++
}

// armWatchLocked replaces the end-watch with one that fires after
// max(MinWait, remaining+EndGrace).
func (c *Controller) armWatchLocked(remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	c.armAfterLocked(max(c.config.MinWait, remaining+c.config.EndGrace))
}

// armAfterLocked replaces the end-watch with one that fires after wait.
func (c *Controller) armAfterLocked(wait time.Duration) {
	c.cancelWatchLocked()

	gen := c.watchGen
	c.watchDeadline = c.clock.Now().Add(wait)
	c.watchTimer = c.clock.AfterFunc(wait, func() {
		c.onTrackFinished(gen)
	})
	zlog.Debug().Msgf("playback: end-watch armed: wait=%v gen=%d", wait, gen)
}

func (c *Controller) deviceID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	return c.session.DeviceID, nil
}

// String implements fmt.Stringer for logs.
func (r AdvanceResult) String() string {
	return fmt.Sprintf("via=%s track=%s", r.Via, r.TrackID)
}
