package playback

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/eligibility"
	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Vote result codes.
const (
	CodeBanned       = "banned"
	CodeAlreadyVoted = "already_voted"
)

// Ballot is one vote request with a resolved voter.
type Ballot struct {
	Identity listener.Identity
	VoterKey string   // Eligibility key, see listener.Identity.Key
	Aliases  []string // Other names seen at the voter's address, for ban matching
	Track    track.Track
}

// VoteResult is the outcome of CastVote.
type VoteResult struct {
	Accepted bool
	Code     string // CodeBanned or CodeAlreadyVoted when rejected
	Reason   string // Filter code or eligibility reason
	Count    int    // Votes for the track after an accepted vote
}

// CastVote gates the ballot through moderation and eligibility and records
// it. Votes arriving mid-transition wait for the commit and are evaluated
// against the post-transition ledger.
func (c *Controller) CastVote(ctx context.Context, b Ballot) (VoteResult, error) {
	if err := c.lockOutsideTransition(ctx); err != nil {
		return VoteResult{}, err
	}
	result, autoStart := c.castLocked(b)
	c.mu.Unlock()

	if autoStart {
		go c.startOnVote()
	}
	return result, nil
}

// PreCheck evaluates the ballot without recording it. The result may go
// stale before CastVote; CastVote checks again.
func (c *Controller) PreCheck(b Ballot) VoteResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateLocked(b, c.clock.Now())
}

// lockOutsideTransition acquires mu once no transition is running.
func (c *Controller) lockOutsideTransition(ctx context.Context) error {
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		wait := c.transition
		if wait == nil {
			return nil
		}
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}
}

func (c *Controller) castLocked(b Ballot) (VoteResult, bool) {
	now := c.clock.Now()
	if res := c.gateLocked(b, now); !res.Accepted {
		zlog.Debug().Msgf("playback: vote rejected: voter=%s track=%s code=%s reason=%s", b.Identity, b.Track.ID, res.Code, res.Reason)
		return res, false
	}

	count := c.ledger.Cast(b.Track)
	c.tracker.Record(c.ballotLocked(b, now))
	zlog.Info().Msgf("playback: vote accepted: voter=%s track=%s name=%q count=%d", b.Identity, b.Track.ID, b.Track.Name, count)
	c.publishStateLocked()

	autoStart := false
	if c.config.StartOnVoteWhenIdle && c.state == StateIdle {
		_, autoStart = c.ledger.Winner(c.settings.MinVotesToOverride)
	}
	return VoteResult{Accepted: true, Count: count}, autoStart
}

func (c *Controller) gateLocked(b Ballot, now time.Time) VoteResult {
	if res := c.moderator.CheckIdentity(c.ctx, b.Identity, b.Aliases); !res.Accepted {
		return VoteResult{Code: CodeBanned, Reason: res.Code}
	}
	if res := c.moderator.CheckTrack(c.ctx, b.Track); !res.Accepted {
		return VoteResult{Code: CodeBanned, Reason: res.Code}
	}
	if ok, reason := c.tracker.Allow(c.ballotLocked(b, now)); !ok {
		return VoteResult{Code: CodeAlreadyVoted, Reason: reason}
	}
	return VoteResult{Accepted: true}
}

func (c *Controller) ballotLocked(b Ballot, now time.Time) eligibility.Ballot {
	return eligibility.Ballot{
		VoterKey: b.VoterKey,
		TrackID:  b.Track.ID,
		Round:    c.round,
		Now:      now,
	}
}

// startOnVote starts the vote leader when the engine is idle.
func (c *Controller) startOnVote() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: panic in start on vote: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(c.ctx, c.config.ProviderTimeout)
	defer cancel()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	winner, ok := c.ledger.Winner(c.settings.MinVotesToOverride)
	idle := c.state == StateIdle && !c.closed
	if idle && ok {
		c.cancelWatchLocked()
	}
	c.mu.Unlock()
	if !idle || !ok {
		return
	}

	zlog.Info().Msgf("playback: idle, starting vote leader: track=%s", winner.TrackID)
	if err := c.beginTransition(); err != nil {
		return
	}
	if err := c.startTrack(ctx, winner.Track, ViaVotes); err != nil {
		zlog.Warn().Msgf("playback: start on vote failed: %v", err)
	}
}
