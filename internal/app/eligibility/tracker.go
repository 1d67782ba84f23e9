package eligibility

import "time"

// Tracker holds the records of every mode and routes decisions to the active one.
// Records of inactive modes are kept but not consulted.
// It is not safe for concurrent use; the playback controller owns it.
type Tracker struct {
	mode     Mode
	perTrack *perTrackPolicy
	perRound *perRoundPolicy
	ttl      *ttlPolicy
}

// NewTracker creates a tracker in the given mode.
func NewTracker(mode Mode, ttl time.Duration) *Tracker {
	t := &Tracker{
		perTrack: newPerTrackPolicy(),
		perRound: newPerRoundPolicy(),
		ttl:      newTTLPolicy(ttl),
	}
	t.mode = ModePerTrack
	if _, err := ParseMode(string(mode)); err == nil {
		t.mode = mode
	}
	return t
}

// Mode returns the active mode.
func (t *Tracker) Mode() Mode {
	return t.mode
}

// TTL returns the configured TTL window.
func (t *Tracker) TTL() time.Duration {
	return t.ttl.ttl
}

// SetMode switches the active mode. It reports whether the tracker entered
// ModePerRound from another mode; the caller starts a new round in that case.
func (t *Tracker) SetMode(mode Mode) (enteredPerRound bool) {
	if mode == t.mode {
		return false
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return false
	}
	t.mode = mode
	return mode == ModePerRound
}

// SetTTL changes the TTL used for future records.
func (t *Tracker) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		t.ttl.ttl = ttl
	}
}

// Policy returns the active policy.
func (t *Tracker) Policy() Policy {
	switch t.mode {
	case ModePerRound:
		return t.perRound
	case ModeTTL:
		return t.ttl
	default:
		return t.perTrack
	}
}

// Allow checks the ballot against the active policy.
func (t *Tracker) Allow(b Ballot) (bool, string) {
	return t.Policy().Allow(b)
}

// Record stores an accepted ballot in the active policy.
func (t *Tracker) Record(b Ballot) {
	if t.mode == ModeTTL {
		t.ttl.prune(b.Now)
	}
	t.Policy().Record(b)
}

// StartRound drops round-scoped records.
func (t *Tracker) StartRound() {
	t.perRound.reset()
}

// ForgetTrack drops per-track records for a track whose votes were cleared.
func (t *Tracker) ForgetTrack(trackID string) {
	t.perTrack.forget(trackID)
}
