// Package snapshot provides the client-facing view of the session state.
package snapshot

import (
	"time"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// Entry is one leaderboard row.
type Entry struct {
	TrackID string
	Count   int
	Track   track.Track
}

// Progress is the extrapolated playback position of the current track.
type Progress struct {
	TrackID   string
	Progress  time.Duration
	Duration  time.Duration
	IsPlaying bool
}

// Snapshot is the full state pushed to viewers.
type Snapshot struct {
	Votes        []Entry
	PlayingTrack *track.Track
	DeviceID     string
	Progress     Progress
}
