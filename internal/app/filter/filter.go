// Package filter provides the moderation filter chain for votes and search results.
package filter

import (
	"context"
	"strings"
	"time"

	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Rule prefixes for ban list entries.
const (
	TrackIDPrefix = "id:"
	AddressPrefix = "ip:"
)

// Target is what a filter inspects.
type Target int

const (
	// TargetTrack filters inspect the track.
	TargetTrack Target = iota
	// TargetIdentity filters inspect the voter.
	TargetIdentity
)

// Rules is the moderation configuration the filters evaluate against.
type Rules struct {
	BannedTracks  []string      // "id:<trackID>" or name substring
	BannedArtists []string      // artist substring
	BannedUsers   []string      // display name or "ip:<address>"
	MaxDuration   time.Duration // 0 disables the limit
}

// Candidate is the subject of a filter check.
type Candidate struct {
	Track    *track.Track
	Identity *listener.Identity
	Aliases  []string // other display names seen at Identity.Address
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "banned_track", "banned_user", "market_restriction"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for moderation filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter inspects the given target.
	AppliesTo(target Target) bool
	// Check performs the filter check.
	Check(ctx context.Context, c Candidate, rules *Rules) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ruleValues returns trimmed, non-empty rule values, optionally restricted to
// (and stripped of) a prefix. With an empty prefix, prefixed rules are skipped.
func ruleValues(rules []string, prefix string, known ...string) []string {
	var out []string
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		lower := strings.ToLower(r)
		if prefix != "" {
			if !strings.HasPrefix(lower, prefix) {
				continue
			}
			if v := strings.TrimSpace(r[len(prefix):]); v != "" {
				out = append(out, v)
			}
			continue
		}
		prefixed := false
		for _, k := range known {
			if strings.HasPrefix(lower, k) {
				prefixed = true
				break
			}
		}
		if !prefixed {
			out = append(out, r)
		}
	}
	return out
}
