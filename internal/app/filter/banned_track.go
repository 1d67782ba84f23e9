package filter

import (
	"context"
	"strings"
)

// BannedTrackFilter rejects tracks banned by id or by name substring.
type BannedTrackFilter struct{}

func (f *BannedTrackFilter) Name() string {
	return "banned_track_filter"
}

func (f *BannedTrackFilter) Description() string {
	return "Rejects tracks whose id is banned (id:<trackID>) or whose name contains a banned phrase"
}

func (f *BannedTrackFilter) ReturnCodes() []string {
	return []string{"banned_track"}
}

func (f *BannedTrackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *BannedTrackFilter) AppliesTo(target Target) bool {
	return target == TargetTrack
}

func (f *BannedTrackFilter) Check(ctx context.Context, c Candidate, rules *Rules) Result {
	if c.Track == nil {
		return Accept()
	}

	for _, id := range ruleValues(rules.BannedTracks, TrackIDPrefix) {
		if strings.EqualFold(id, c.Track.ID) {
			return Reject("banned_track")
		}
	}
	for _, phrase := range ruleValues(rules.BannedTracks, "", TrackIDPrefix) {
		if containsFold(c.Track.Name, phrase) {
			return Reject("banned_track")
		}
	}
	return Accept()
}

func init() {
	Register("banned_track_filter", func() Filter {
		return &BannedTrackFilter{}
	})
}
