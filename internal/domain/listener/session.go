// Package listener provides the voter identity and listener session entities.
package listener

import (
	"strings"
	"time"
)

// Identity is the effective key of a voter: a display name plus the address
// the request came from. Identities are not globally unique.
type Identity struct {
	Name    string
	Address string
}

// NewIdentity creates an identity with trimmed fields. An empty name becomes "Guest".
func NewIdentity(name, address string) Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Guest"
	}
	return Identity{
		Name:    name,
		Address: strings.TrimSpace(address),
	}
}

// NormalizedName returns the lower-cased, trimmed display name.
func (i Identity) NormalizedName() string {
	return Normalize(i.Name)
}

// Key returns the rate-limiting key for the identity.
// When unifyByAddress is set, every name seen from one address shares a key.
func (i Identity) Key(unifyByAddress bool) string {
	if unifyByAddress {
		return i.Address
	}
	return i.NormalizedName() + "@" + i.Address
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return i.Name + "@" + i.Address
}

// Normalize lower-cases and trims a display name for comparisons.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Session represents a voter seen by the server.
type Session struct {
	ID         string    // UUID
	Identity   Identity  // Display name and origin address
	JoinedAt   time.Time // First seen
	LastSeenAt time.Time // Last request time
	TotalVotes int       // Accepted votes
}

// NewSession creates a new listener session.
func NewSession(id string, identity Identity, now time.Time) *Session {
	return &Session{
		ID:         id,
		Identity:   identity,
		JoinedAt:   now,
		LastSeenAt: now,
	}
}

// Touch updates the last seen time.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now
}

// RecordVote counts an accepted vote.
func (s *Session) RecordVote(now time.Time) {
	s.TotalVotes++
	s.LastSeenAt = now
}
