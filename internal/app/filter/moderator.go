package filter

import (
	"context"
	"slices"
	"sync"

	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Moderator evaluates the chain against the current rules.
// Rules can be replaced at runtime; checks always see a consistent set.
type Moderator struct {
	mu    sync.RWMutex
	chain *Chain
	rules Rules
}

// NewModerator creates a moderator over the chain.
func NewModerator(chain *Chain, rules Rules) *Moderator {
	return &Moderator{
		chain: chain,
		rules: cloneRules(rules),
	}
}

// SetRules replaces the rules.
func (m *Moderator) SetRules(rules Rules) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = cloneRules(rules)
}

// Rules returns a copy of the current rules.
func (m *Moderator) Rules() Rules {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRules(m.rules)
}

// CheckTrack runs the track filters.
func (m *Moderator) CheckTrack(ctx context.Context, t track.Track) Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chain.Execute(ctx, TargetTrack, Candidate{Track: &t}, &m.rules)
}

// CheckIdentity runs the identity filters. aliases are other display names
// that share the identity's address and should match name bans too.
func (m *Moderator) CheckIdentity(ctx context.Context, id listener.Identity, aliases []string) Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chain.Execute(ctx, TargetIdentity, Candidate{Identity: &id, Aliases: aliases}, &m.rules)
}

// IsTrackBanned reports whether any track filter rejects t.
func (m *Moderator) IsTrackBanned(ctx context.Context, t track.Track) bool {
	return !m.CheckTrack(ctx, t).Accepted
}

// IsIdentityBanned reports whether any identity filter rejects the voter.
func (m *Moderator) IsIdentityBanned(ctx context.Context, id listener.Identity, aliases []string) bool {
	return !m.CheckIdentity(ctx, id, aliases).Accepted
}

// FilterTracks drops banned tracks, keeping order.
func (m *Moderator) FilterTracks(ctx context.Context, tracks []track.Track) []track.Track {
	out := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if !m.IsTrackBanned(ctx, t) {
			out = append(out, t)
		}
	}
	return out
}

func cloneRules(r Rules) Rules {
	return Rules{
		BannedTracks:  slices.Clone(r.BannedTracks),
		BannedArtists: slices.Clone(r.BannedArtists),
		BannedUsers:   slices.Clone(r.BannedUsers),
		MaxDuration:   r.MaxDuration,
	}
}
