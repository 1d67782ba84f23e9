package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/track"
)

func boolPtr(b bool) *bool { return &b }

func TestMarketFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		filterMarket string
		trackMarkets []string
		isPlayable   *bool
		wantAccepted bool
		wantCode     string
	}{
		{
			name:         "track available in market",
			filterMarket: "JP",
			trackMarkets: []string{"JP", "US", "UK"},
			wantAccepted: true,
		},
		{
			name:         "track not available in market",
			filterMarket: "JP",
			trackMarkets: []string{"US", "UK"},
			wantAccepted: false,
			wantCode:     "market_restriction",
		},
		{
			name:         "no market filter",
			filterMarket: "",
			trackMarkets: []string{"US"},
			wantAccepted: true,
		},
		{
			name:         "no market data",
			filterMarket: "JP",
			trackMarkets: nil,
			wantAccepted: true,
		},
		{
			name:         "relinked track not playable",
			filterMarket: "JP",
			isPlayable:   boolPtr(false),
			wantAccepted: false,
			wantCode:     "market_restriction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewMarketFilter(tt.filterMarket)

			trk := track.Track{
				ID:         "test-track",
				Markets:    tt.trackMarkets,
				IsPlayable: tt.isPlayable,
			}

			result := filter.Check(context.Background(), Candidate{Track: &trk}, &Rules{})

			assert.Equal(t, tt.wantAccepted, result.Accepted,
				"MarketFilter.Check() accepted status mismatch")

			if !tt.wantAccepted {
				assert.Equal(t, tt.wantCode, result.Code,
					"MarketFilter.Check() rejection code mismatch")
			}
		})
	}
}

func TestBannedTrackFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		banned       []string
		trk          track.Track
		wantAccepted bool
	}{
		{
			name:         "no rules",
			trk:          track.Track{ID: "abc", Name: "Song"},
			wantAccepted: true,
		},
		{
			name:         "id rule",
			banned:       []string{"id:abc"},
			trk:          track.Track{ID: "abc", Name: "Song"},
			wantAccepted: false,
		},
		{
			name:         "id rule does not match name",
			banned:       []string{"id:Song"},
			trk:          track.Track{ID: "abc", Name: "Song"},
			wantAccepted: true,
		},
		{
			name:         "name substring case-insensitive",
			banned:       []string{"macarena"},
			trk:          track.Track{ID: "abc", Name: "The MACARENA (Remix)"},
			wantAccepted: false,
		},
		{
			name:         "blank rules are ignored",
			banned:       []string{"", "  ", "id:"},
			trk:          track.Track{ID: "abc", Name: "Song"},
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &BannedTrackFilter{}
			trk := tt.trk
			result := f.Check(context.Background(), Candidate{Track: &trk}, &Rules{BannedTracks: tt.banned})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "banned_track", result.Code)
			}
		})
	}
}

func TestBannedArtistFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		banned       []string
		artists      []string
		wantAccepted bool
	}{
		{"no rules", nil, []string{"Anyone"}, true},
		{"exact", []string{"Nickelback"}, []string{"Nickelback"}, false},
		{"substring any artist", []string{"x"}, []string{"Band", "DJ X"}, false},
		{"case-insensitive", []string{"nickel"}, []string{"NICKELBACK"}, false},
		{"no match", []string{"Nickelback"}, []string{"Queen"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &BannedArtistFilter{}
			trk := track.Track{ID: "t", Artists: tt.artists}
			result := f.Check(context.Background(), Candidate{Track: &trk}, &Rules{BannedArtists: tt.banned})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "banned_artist", result.Code)
			}
		})
	}
}

func TestBannedUserFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		banned       []string
		identity     listener.Identity
		aliases      []string
		wantAccepted bool
	}{
		{
			name:         "not banned",
			banned:       []string{"mallory"},
			identity:     listener.NewIdentity("alice", "10.0.0.5"),
			wantAccepted: true,
		},
		{
			name:         "name equality case-insensitive",
			banned:       []string{"Mallory"},
			identity:     listener.NewIdentity("  mallory ", "10.0.0.5"),
			wantAccepted: false,
		},
		{
			name:         "name substring does not match",
			banned:       []string{"mall"},
			identity:     listener.NewIdentity("mallory", "10.0.0.5"),
			wantAccepted: true,
		},
		{
			name:         "address containment",
			banned:       []string{"ip:10.0.0."},
			identity:     listener.NewIdentity("alice", "10.0.0.5"),
			wantAccepted: false,
		},
		{
			name:         "address rule does not match name",
			banned:       []string{"ip:alice"},
			identity:     listener.NewIdentity("alice", "10.0.0.5"),
			wantAccepted: true,
		},
		{
			name:         "alias at same address",
			banned:       []string{"mallory"},
			identity:     listener.NewIdentity("alice", "10.0.0.5"),
			aliases:      []string{"Mallory"},
			wantAccepted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &BannedUserFilter{}
			id := tt.identity
			result := f.Check(context.Background(), Candidate{Identity: &id, Aliases: tt.aliases}, &Rules{BannedUsers: tt.banned})

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "banned_user", result.Code)
			}
		})
	}
}

func TestFilters_AppliesTo(t *testing.T) {
	tests := []struct {
		filter   Filter
		track    bool
		identity bool
	}{
		{&BannedTrackFilter{}, true, false},
		{&BannedArtistFilter{}, true, false},
		{NewDurationLimitFilter(), true, false},
		{NewMarketFilter("JP"), true, false},
		{&BannedUserFilter{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.filter.Name(), func(t *testing.T) {
			assert.Equal(t, tt.track, tt.filter.AppliesTo(TargetTrack))
			assert.Equal(t, tt.identity, tt.filter.AppliesTo(TargetIdentity))
		})
	}
}

func TestRegistry(t *testing.T) {
	registered := GetRegistered()
	for _, name := range []string{
		"banned_track_filter",
		"banned_artist_filter",
		"banned_user_filter",
		"duration_limit_filter",
		"market_filter",
	} {
		factory, ok := registered[name]
		require.True(t, ok, name)
		f := factory()
		assert.Equal(t, name, f.Name())
		assert.NotEmpty(t, f.ReturnCodes())
		assert.NotEmpty(t, f.Description())
	}
}

func newTestModerator(rules Rules) *Moderator {
	chain := NewChain()
	chain.Add(&BannedTrackFilter{})
	chain.Add(&BannedArtistFilter{})
	chain.Add(NewDurationLimitFilter())
	chain.Add(&BannedUserFilter{})
	return NewModerator(chain, rules)
}

func TestModerator(t *testing.T) {
	ctx := context.Background()
	m := newTestModerator(Rules{
		BannedTracks:  []string{"id:t2"},
		BannedArtists: []string{"Bad"},
		BannedUsers:   []string{"mallory", "ip:192.168.1.9"},
		MaxDuration:   10 * time.Minute,
	})

	tracks := []track.Track{
		{ID: "t1", Name: "Fine", Artists: []string{"Good"}, Duration: 3 * time.Minute},
		{ID: "t2", Name: "Banned by id", Artists: []string{"Good"}, Duration: 3 * time.Minute},
		{ID: "t3", Name: "Artist", Artists: []string{"Very Bad Band"}, Duration: 3 * time.Minute},
		{ID: "t4", Name: "Too long", Artists: []string{"Good"}, Duration: 11 * time.Minute},
		{ID: "t5", Name: "Also fine", Artists: []string{"Good"}, Duration: 10 * time.Minute},
	}

	filtered := m.FilterTracks(ctx, tracks)
	require.Len(t, filtered, 2)
	assert.Equal(t, "t1", filtered[0].ID)
	assert.Equal(t, "t5", filtered[1].ID)

	assert.Equal(t, "banned_artist", m.CheckTrack(ctx, tracks[2]).Code)
	assert.Equal(t, "duration_limit_exceeded", m.CheckTrack(ctx, tracks[3]).Code)

	assert.True(t, m.IsIdentityBanned(ctx, listener.NewIdentity("Mallory", "10.0.0.1"), nil))
	assert.True(t, m.IsIdentityBanned(ctx, listener.NewIdentity("alice", "192.168.1.9"), nil))
	assert.False(t, m.IsIdentityBanned(ctx, listener.NewIdentity("alice", "10.0.0.1"), nil))

	// Identity filters never reject tracks and vice versa
	assert.False(t, m.IsTrackBanned(ctx, track.Track{ID: "mallory", Name: "mallory"}))
}

func TestModerator_SetRules(t *testing.T) {
	ctx := context.Background()
	m := newTestModerator(Rules{})
	trk := track.Track{ID: "t1", Artists: []string{"X"}}

	assert.False(t, m.IsTrackBanned(ctx, trk))

	rules := Rules{BannedArtists: []string{"x"}}
	m.SetRules(rules)
	assert.True(t, m.IsTrackBanned(ctx, trk))

	// The moderator keeps its own copy
	rules.BannedArtists[0] = "y"
	assert.True(t, m.IsTrackBanned(ctx, trk))
	assert.Equal(t, []string{"x"}, m.Rules().BannedArtists)
}
