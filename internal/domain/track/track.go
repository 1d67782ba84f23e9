// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Track represents a playable track as reported by the provider.
// Values are never mutated once fetched.
type Track struct {
	ID          string        // Spotify Track ID
	URI         string        // Playable URI (spotify:track:...)
	Name        string        // Track name
	Artists     []string      // Artist names
	Album       string        // Album name
	AlbumArtURL string        // Cover image URL
	Duration    time.Duration // Track duration
	Explicit    bool          // Explicit content flag
	Markets     []string      // Available markets
	IsPlayable  *bool         // Playable in the configured market (nil if market not specified)
}

// ArtistLine returns the artists joined for display.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// DurationMs returns the duration in milliseconds.
func (t *Track) DurationMs() int64 {
	return t.Duration.Milliseconds()
}

// IsAvailableInMarket checks if the track is available in the specified market.
func (t *Track) IsAvailableInMarket(market string) bool {
	// If IsPlayable is set, it takes precedence (Track Relinking support)
	if t.IsPlayable != nil {
		return *t.IsPlayable
	}

	for _, m := range t.Markets {
		if m == market {
			return true
		}
	}
	return false
}
