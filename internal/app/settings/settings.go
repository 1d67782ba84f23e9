// Package settings provides the runtime-adjustable voting and moderation settings.
package settings

import (
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/osa030/crowdbox/internal/app/eligibility"
	"github.com/osa030/crowdbox/internal/app/filter"
)

// Settings represents the owner-controlled runtime settings.
type Settings struct {
	VotePolicy         string   `yaml:"vote_policy" mapstructure:"vote_policy" json:"votePolicy" default:"perTrack" validate:"oneof=perTrack perRound ttl"`
	VoteTTLSeconds     int      `yaml:"vote_ttl_seconds" mapstructure:"vote_ttl_seconds" json:"voteTtlSeconds" default:"900" validate:"gte=1"`
	MinVotesToOverride int      `yaml:"min_votes_to_override" mapstructure:"min_votes_to_override" json:"minVotesToOverride" default:"1" validate:"gte=1"`
	MaxDurationMs      int64    `yaml:"max_duration_ms" mapstructure:"max_duration_ms" json:"maxDurationMs" default:"600000" validate:"gte=60000"`
	BannedArtists      []string `yaml:"banned_artists" mapstructure:"banned_artists" json:"bannedArtists"`
	BannedTracks       []string `yaml:"banned_tracks" mapstructure:"banned_tracks" json:"bannedTracks"`
	BannedUsers        []string `yaml:"banned_users" mapstructure:"banned_users" json:"bannedUsers"`
}

// Default returns settings with every default applied.
func Default() Settings {
	var s Settings
	// defaults.Set only fails on non-pointer input
	_ = defaults.Set(&s)
	return s
}

// Validate validates every field.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(err, "settings validation failed")
	}
	return nil
}

// Mode returns the eligibility mode.
func (s *Settings) Mode() eligibility.Mode {
	return eligibility.Mode(s.VotePolicy)
}

// VoteTTL returns the TTL window.
func (s *Settings) VoteTTL() time.Duration {
	return time.Duration(s.VoteTTLSeconds) * time.Second
}

// MaxDuration returns the maximum track duration.
func (s *Settings) MaxDuration() time.Duration {
	return time.Duration(s.MaxDurationMs) * time.Millisecond
}

// Rules converts the ban lists into moderation rules.
func (s *Settings) Rules() filter.Rules {
	return filter.Rules{
		BannedTracks:  slices.Clone(s.BannedTracks),
		BannedArtists: slices.Clone(s.BannedArtists),
		BannedUsers:   slices.Clone(s.BannedUsers),
		MaxDuration:   s.MaxDuration(),
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.BannedArtists = slices.Clone(s.BannedArtists)
	s.BannedTracks = slices.Clone(s.BannedTracks)
	s.BannedUsers = slices.Clone(s.BannedUsers)
	return s
}

// Equal reports whether two settings are identical.
func (s Settings) Equal(o Settings) bool {
	return s.VotePolicy == o.VotePolicy &&
		s.VoteTTLSeconds == o.VoteTTLSeconds &&
		s.MinVotesToOverride == o.MinVotesToOverride &&
		s.MaxDurationMs == o.MaxDurationMs &&
		slices.Equal(s.BannedArtists, o.BannedArtists) &&
		slices.Equal(s.BannedTracks, o.BannedTracks) &&
		slices.Equal(s.BannedUsers, o.BannedUsers)
}

// BansChanged reports whether any field affecting moderation differs.
func (s Settings) BansChanged(o Settings) bool {
	return s.MaxDurationMs != o.MaxDurationMs ||
		!slices.Equal(s.BannedArtists, o.BannedArtists) ||
		!slices.Equal(s.BannedTracks, o.BannedTracks) ||
		!slices.Equal(s.BannedUsers, o.BannedUsers)
}

// SplitList splits a list given as a single string on newlines, commas or
// semicolons. Entries are trimmed and blanks dropped.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})
	return CleanList(fields)
}

// CleanList trims entries and drops blanks. The result is never nil.
func CleanList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var validate = validator.New()
