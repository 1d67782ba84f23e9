package filter

import (
	"context"
)

// BannedArtistFilter rejects tracks with a banned artist.
type BannedArtistFilter struct{}

func (f *BannedArtistFilter) Name() string {
	return "banned_artist_filter"
}

func (f *BannedArtistFilter) Description() string {
	return "Rejects tracks where any artist name contains a banned phrase"
}

func (f *BannedArtistFilter) ReturnCodes() []string {
	return []string{"banned_artist"}
}

func (f *BannedArtistFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *BannedArtistFilter) AppliesTo(target Target) bool {
	return target == TargetTrack
}

func (f *BannedArtistFilter) Check(ctx context.Context, c Candidate, rules *Rules) Result {
	if c.Track == nil {
		return Accept()
	}

	banned := ruleValues(rules.BannedArtists, "")
	for _, artist := range c.Track.Artists {
		for _, phrase := range banned {
			if containsFold(artist, phrase) {
				return Reject("banned_artist")
			}
		}
	}
	return Accept()
}

func init() {
	Register("banned_artist_filter", func() Filter {
		return &BannedArtistFilter{}
	})
}
