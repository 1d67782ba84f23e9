// Package player provides the playback provider's view of the world:
// what the provider reports as playing and which output devices exist.
package player

import (
	"time"

	"github.com/osa030/crowdbox/internal/domain/track"
)

// State is a single observation of the provider's playback state.
type State struct {
	Item      *track.Track  // nil when the provider has no active item
	Progress  time.Duration // Position within Item
	IsPlaying bool
	DeviceID  string
}

// HasItem reports whether the observation carries an active item.
func (s *State) HasItem() bool {
	return s != nil && s.Item != nil
}

// Remaining returns the time left in the observed item.
func (s *State) Remaining() time.Duration {
	if !s.HasItem() {
		return 0
	}
	remaining := s.Item.Duration - s.Progress
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Device represents an output device known to the provider.
type Device struct {
	ID         string
	Name       string
	Type       string
	Active     bool
	Restricted bool
	Volume     int
}
