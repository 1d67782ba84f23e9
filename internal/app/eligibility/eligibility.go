// Package eligibility decides whether a voter may cast a vote.
package eligibility

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Mode selects the eligibility policy.
type Mode string

const (
	// ModePerTrack allows one vote per voter per track until the track's votes are cleared.
	ModePerTrack Mode = "perTrack"
	// ModePerRound allows one vote per voter per round.
	ModePerRound Mode = "perRound"
	// ModeTTL allows one vote per voter per track per TTL window.
	ModeTTL Mode = "ttl"
)

// DefaultTTL is the default re-vote window for ModeTTL.
const DefaultTTL = 900 * time.Second

// Rejection reasons.
const (
	ReasonTrack = "already voted this track"
	ReasonRound = "already voted this round"
	ReasonTTL   = "ttl not expired"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePerTrack, ModePerRound, ModeTTL:
		return m, nil
	default:
		return "", errors.Newf("unknown vote policy %q", s)
	}
}

// Ballot is the input to a policy decision.
type Ballot struct {
	VoterKey string
	TrackID  string
	Round    uint64
	Now      time.Time
}

// Policy is one eligibility mode.
type Policy interface {
	// Mode returns the mode this policy implements.
	Mode() Mode
	// Allow reports whether the ballot may be counted. reason is empty when allowed.
	Allow(b Ballot) (ok bool, reason string)
	// Record remembers an accepted ballot.
	Record(b Ballot)
}

// perTrackPolicy remembers (voter, track) pairs.
type perTrackPolicy struct {
	voted map[string]map[string]struct{} // trackID -> voterKey
}

func newPerTrackPolicy() *perTrackPolicy {
	return &perTrackPolicy{voted: make(map[string]map[string]struct{})}
}

func (p *perTrackPolicy) Mode() Mode { return ModePerTrack }

func (p *perTrackPolicy) Allow(b Ballot) (bool, string) {
	if _, ok := p.voted[b.TrackID][b.VoterKey]; ok {
		return false, ReasonTrack
	}
	return true, ""
}

func (p *perTrackPolicy) Record(b Ballot) {
	voters, ok := p.voted[b.TrackID]
	if !ok {
		voters = make(map[string]struct{})
		p.voted[b.TrackID] = voters
	}
	voters[b.VoterKey] = struct{}{}
}

func (p *perTrackPolicy) forget(trackID string) {
	delete(p.voted, trackID)
}

// perRoundPolicy remembers the round each voter last voted in.
type perRoundPolicy struct {
	lastRound map[string]uint64
}

func newPerRoundPolicy() *perRoundPolicy {
	return &perRoundPolicy{lastRound: make(map[string]uint64)}
}

func (p *perRoundPolicy) Mode() Mode { return ModePerRound }

func (p *perRoundPolicy) Allow(b Ballot) (bool, string) {
	if r, ok := p.lastRound[b.VoterKey]; ok && r == b.Round {
		return false, ReasonRound
	}
	return true, ""
}

func (p *perRoundPolicy) Record(b Ballot) {
	p.lastRound[b.VoterKey] = b.Round
}

func (p *perRoundPolicy) reset() {
	clear(p.lastRound)
}

// ttlPolicy remembers when each (voter, track) pair becomes eligible again.
type ttlPolicy struct {
	ttl    time.Duration
	expiry map[string]time.Time // voterKey + "|" + trackID
}

func newTTLPolicy(ttl time.Duration) *ttlPolicy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ttlPolicy{ttl: ttl, expiry: make(map[string]time.Time)}
}

func (p *ttlPolicy) Mode() Mode { return ModeTTL }

func ttlKey(b Ballot) string {
	return b.VoterKey + "|" + b.TrackID
}

func (p *ttlPolicy) Allow(b Ballot) (bool, string) {
	if until, ok := p.expiry[ttlKey(b)]; ok && b.Now.Before(until) {
		return false, ReasonTTL
	}
	return true, ""
}

func (p *ttlPolicy) Record(b Ballot) {
	p.expiry[ttlKey(b)] = b.Now.Add(p.ttl)
}

// prune drops windows that have already elapsed.
func (p *ttlPolicy) prune(now time.Time) {
	for k, until := range p.expiry {
		if !now.Before(until) {
			delete(p.expiry, k)
		}
	}
}
