package playback

import (
	"time"

	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/snapshot"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Session is the local view of what is playing. The progress baseline, its
// instant and the playing flag are always set together from one observation.
type Session struct {
	Track    *track.Track
	DeviceID string

	baseline   time.Duration
	baselineAt time.Time
	playing    bool

	// Set while the provider has not caught up with a play or skip request.
	awaiting   bool
	want       string // Track id the provider should report; empty means any
	leaving    string // Track id the provider should stop reporting
	awaitUntil time.Time
}

// Start resets the session for a freshly started track.
func (s *Session) Start(t track.Track, now time.Time) {
	s.Track = &t
	s.baseline = 0
	s.baselineAt = now
	s.playing = true
	s.awaiting = false
}

// Await holds back observations until the provider reports want (or, with
// want empty, anything other than leaving), or until the deadline passes.
func (s *Session) Await(want, leaving string, until time.Time) {
	s.awaiting = true
	s.want = want
	s.leaving = leaving
	s.awaitUntil = until
}

// AwaitingStart reports whether a started track has not shown up yet.
func (s *Session) AwaitingStart(now time.Time) bool {
	return s.awaiting && s.want != "" && now.Before(s.awaitUntil)
}

func (s *Session) caughtUp(st *player.State, now time.Time) bool {
	if !s.awaiting || !now.Before(s.awaitUntil) {
		return true
	}
	if s.want != "" {
		return st.Item.ID == s.want
	}
	return st.Item.ID != s.leaving
}

// Observe recalibrates from a provider observation, adopting its item if it
// differs. Observations that predate a pending play or skip are ignored; it
// reports whether st was applied.
func (s *Session) Observe(st *player.State, now time.Time) bool {
	if !st.HasItem() {
		return false
	}
	if !s.caughtUp(st, now) {
		return false
	}
	s.awaiting = false
	if s.Track == nil || s.Track.ID != st.Item.ID {
		item := *st.Item
		s.Track = &item
	}
	s.set(st.Progress, st.IsPlaying, now)
	return true
}

// SetPlaying keeps the current position and changes the playing flag.
func (s *Session) SetPlaying(playing bool, now time.Time) {
	s.set(s.Progress(now), playing, now)
}

// Freeze stops extrapolation at the current position.
func (s *Session) Freeze(now time.Time) {
	s.SetPlaying(false, now)
}

// Clear forgets the track. The selected device is kept.
func (s *Session) Clear() {
	s.Track = nil
	s.baseline = 0
	s.baselineAt = time.Time{}
	s.playing = false
	s.awaiting = false
}

func (s *Session) set(progress time.Duration, playing bool, now time.Time) {
	if progress < 0 {
		progress = 0
	}
	s.baseline = s.capped(progress)
	s.baselineAt = now
	s.playing = playing
}

// IsPlaying reports the playing flag of the last observation.
func (s *Session) IsPlaying() bool {
	return s.Track != nil && s.playing
}

// Progress returns the extrapolated position, never beyond the duration.
func (s *Session) Progress(now time.Time) time.Duration {
	if s.Track == nil {
		return 0
	}
	if !s.playing {
		return s.baseline
	}
	elapsed := now.Sub(s.baselineAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return s.capped(s.baseline + elapsed)
}

// Remaining returns the extrapolated time left.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.Track == nil {
		return 0
	}
	return s.Track.Duration - s.Progress(now)
}

// Snapshot returns the progress record.
func (s *Session) Snapshot(now time.Time) snapshot.Progress {
	if s.Track == nil {
		return snapshot.Progress{}
	}
	return snapshot.Progress{
		TrackID:   s.Track.ID,
		Progress:  s.Progress(now),
		Duration:  s.Track.Duration,
		IsPlaying: s.playing,
	}
}

func (s *Session) capped(d time.Duration) time.Duration {
	if s.Track != nil && s.Track.Duration > 0 && d > s.Track.Duration {
		return s.Track.Duration
	}
	return d
}
