package listener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		address     string
		wantName    string
		wantAddress string
	}{
		{
			name:        "regular user",
			displayName: "Alice",
			address:     "10.0.0.2",
			wantName:    "Alice",
			wantAddress: "10.0.0.2",
		},
		{
			name:        "whitespace is trimmed",
			displayName: "  Bob ",
			address:     " 10.0.0.3 ",
			wantName:    "Bob",
			wantAddress: "10.0.0.3",
		},
		{
			name:        "empty name falls back to guest",
			displayName: "   ",
			address:     "10.0.0.4",
			wantName:    "Guest",
			wantAddress: "10.0.0.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewIdentity(tt.displayName, tt.address)
			assert.Equal(t, tt.wantName, id.Name)
			assert.Equal(t, tt.wantAddress, id.Address)
		})
	}
}

func TestIdentity_Key(t *testing.T) {
	alice := NewIdentity("Alice", "10.0.0.2")
	aliceUpper := NewIdentity("ALICE", "10.0.0.2")
	bob := NewIdentity("Bob", "10.0.0.2")
	aliceElsewhere := NewIdentity("Alice", "10.0.0.9")

	// Distinct per name and address by default
	assert.Equal(t, alice.Key(false), aliceUpper.Key(false))
	assert.NotEqual(t, alice.Key(false), bob.Key(false))
	assert.NotEqual(t, alice.Key(false), aliceElsewhere.Key(false))

	// Unified by address
	assert.Equal(t, alice.Key(true), bob.Key(true))
	assert.NotEqual(t, alice.Key(true), aliceElsewhere.Key(true))
}

func TestSession_RecordVote(t *testing.T) {
	joined := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	session := NewSession("listener-1", NewIdentity("Alice", "10.0.0.2"), joined)

	assert.Equal(t, 0, session.TotalVotes)
	assert.Equal(t, joined, session.JoinedAt)

	later := joined.Add(time.Minute)
	session.RecordVote(later)
	session.RecordVote(later.Add(time.Second))

	assert.Equal(t, 2, session.TotalVotes)
	assert.Equal(t, later.Add(time.Second), session.LastSeenAt)
	assert.Equal(t, joined, session.JoinedAt)
}
