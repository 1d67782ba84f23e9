package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/listener"
)

func TestListenerRegistry_Touch(t *testing.T) {
	r := NewListenerRegistry()
	t0 := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	a := r.Touch(listener.NewIdentity("Alice", "10.0.0.1"), t0)
	again := r.Touch(listener.NewIdentity(" alice ", "10.0.0.1"), t0.Add(time.Minute))
	other := r.Touch(listener.NewIdentity("Alice", "10.0.0.2"), t0)

	assert.Equal(t, a.ID, again.ID, "same normalized name and address")
	assert.NotEqual(t, a.ID, other.ID)
	assert.Equal(t, t0, again.JoinedAt)
	assert.Equal(t, t0.Add(time.Minute), again.LastSeenAt)
	assert.Equal(t, "alice", again.Identity.Name)
	assert.Equal(t, 2, r.Count())
}

func TestListenerRegistry_RecordVote(t *testing.T) {
	r := NewListenerRegistry()
	t0 := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	id := listener.NewIdentity("Bob", "10.0.0.3")

	r.RecordVote(id, t0)
	r.RecordVote(id, t0.Add(time.Second))

	s := r.Touch(id, t0.Add(2*time.Second))
	assert.Equal(t, 2, s.TotalVotes)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalVotes)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrInvalidListener)
}

func TestListenerRegistry_Aliases(t *testing.T) {
	r := NewListenerRegistry()
	t0 := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	r.Touch(listener.NewIdentity("mallory", "10.0.0.9"), t0)
	r.Touch(listener.NewIdentity("Eve", "10.0.0.9"), t0)
	r.Touch(listener.NewIdentity("Carol", "10.0.0.1"), t0)

	aliases := r.Aliases(listener.NewIdentity("Eve", "10.0.0.9"))
	assert.Equal(t, []string{"mallory"}, aliases)
	assert.Empty(t, r.Aliases(listener.NewIdentity("Dave", "10.0.0.5")))
}

func TestListenerRegistry_All(t *testing.T) {
	r := NewListenerRegistry()
	t0 := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	r.Touch(listener.NewIdentity("first", "1.1.1.1"), t0)
	r.Touch(listener.NewIdentity("second", "1.1.1.1"), t0.Add(time.Minute))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Identity.Name)
	assert.Equal(t, "first", all[1].Identity.Name)
}
