package eligibility

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"perTrack", ModePerTrack, false},
		{"perRound", ModePerRound, false},
		{"ttl", ModeTTL, false},
		{"pertrack", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPerTrack(t *testing.T) {
	tr := NewTracker(ModePerTrack, 0)
	a := Ballot{VoterKey: "a", TrackID: "x", Round: 1, Now: t0}

	ok, _ := tr.Allow(a)
	require.True(t, ok)
	tr.Record(a)

	ok, reason := tr.Allow(a)
	assert.False(t, ok)
	assert.Equal(t, ReasonTrack, reason)

	// Other tracks and other voters are unaffected
	ok, _ = tr.Allow(Ballot{VoterKey: "a", TrackID: "y", Round: 1, Now: t0})
	assert.True(t, ok)
	ok, _ = tr.Allow(Ballot{VoterKey: "b", TrackID: "x", Round: 1, Now: t0})
	assert.True(t, ok)

	// A new round does not reset per-track records
	tr.StartRound()
	ok, _ = tr.Allow(Ballot{VoterKey: "a", TrackID: "x", Round: 2, Now: t0})
	assert.False(t, ok)

	// Clearing the track does
	tr.ForgetTrack("x")
	ok, _ = tr.Allow(a)
	assert.True(t, ok)
}

// Random vote sequences never count a (voter, track) pair twice unless the
// track was forgotten in between.
func TestPerTrack_NoDoubleCount(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	voters := []string{"a", "b", "c"}
	tracks := []string{"x", "y", "z"}

	for run := 0; run < 50; run++ {
		tr := NewTracker(ModePerTrack, 0)
		counted := make(map[[2]string]bool)

		for step := 0; step < 200; step++ {
			tid := tracks[rng.Intn(len(tracks))]
			if rng.Intn(10) == 0 {
				tr.ForgetTrack(tid)
				for _, v := range voters {
					delete(counted, [2]string{v, tid})
				}
				continue
			}
			b := Ballot{VoterKey: voters[rng.Intn(len(voters))], TrackID: tid, Now: t0}
			ok, _ := tr.Allow(b)
			pair := [2]string{b.VoterKey, b.TrackID}
			if ok {
				require.False(t, counted[pair], "pair %v counted twice", pair)
				counted[pair] = true
				tr.Record(b)
			} else {
				require.True(t, counted[pair])
			}
		}
	}
}

func TestPerRound(t *testing.T) {
	tr := NewTracker(ModePerRound, 0)

	tr.Record(Ballot{VoterKey: "a", TrackID: "x", Round: 1, Now: t0})

	ok, reason := tr.Allow(Ballot{VoterKey: "a", TrackID: "y", Round: 1, Now: t0})
	assert.False(t, ok, "one vote per round regardless of track")
	assert.Equal(t, ReasonRound, reason)

	ok, _ = tr.Allow(Ballot{VoterKey: "b", TrackID: "y", Round: 1, Now: t0})
	assert.True(t, ok)

	ok, _ = tr.Allow(Ballot{VoterKey: "a", TrackID: "y", Round: 2, Now: t0})
	assert.True(t, ok, "next round is open")

	tr.StartRound()
	ok, _ = tr.Allow(Ballot{VoterKey: "a", TrackID: "y", Round: 1, Now: t0})
	assert.True(t, ok, "records dropped on new round")
}

func TestTTL_Scenario(t *testing.T) {
	tr := NewTracker(ModeTTL, 10*time.Second)

	vote := func(offset time.Duration) (bool, string) {
		b := Ballot{VoterKey: "a", TrackID: "y", Round: 1, Now: t0.Add(offset)}
		ok, reason := tr.Allow(b)
		if ok {
			tr.Record(b)
		}
		return ok, reason
	}

	ok, _ := vote(0)
	assert.True(t, ok)

	ok, reason := vote(5 * time.Second)
	assert.False(t, ok)
	assert.Equal(t, ReasonTTL, reason)

	ok, _ = vote(11 * time.Second)
	assert.True(t, ok)

	ok, reason = vote(12 * time.Second)
	assert.False(t, ok, "window restarts on the accepted vote")
	assert.Equal(t, ReasonTTL, reason)
}

func TestTTL_ExactBoundary(t *testing.T) {
	tr := NewTracker(ModeTTL, 10*time.Second)
	tr.Record(Ballot{VoterKey: "a", TrackID: "y", Now: t0})

	ok, _ := tr.Allow(Ballot{VoterKey: "a", TrackID: "y", Now: t0.Add(10 * time.Second)})
	assert.True(t, ok)
}

func TestTTL_IndependentOfRoundAndTracks(t *testing.T) {
	tr := NewTracker(ModeTTL, time.Minute)
	tr.Record(Ballot{VoterKey: "a", TrackID: "y", Round: 1, Now: t0})
	tr.StartRound()

	ok, _ := tr.Allow(Ballot{VoterKey: "a", TrackID: "y", Round: 2, Now: t0.Add(time.Second)})
	assert.False(t, ok)

	ok, _ = tr.Allow(Ballot{VoterKey: "a", TrackID: "z", Round: 2, Now: t0.Add(time.Second)})
	assert.True(t, ok)
}

func TestTracker_DefaultsAndTTL(t *testing.T) {
	tr := NewTracker("bogus", 0)
	assert.Equal(t, ModePerTrack, tr.Mode())
	assert.Equal(t, DefaultTTL, tr.TTL())

	tr.SetTTL(0)
	assert.Equal(t, DefaultTTL, tr.TTL())
	tr.SetTTL(time.Minute)
	assert.Equal(t, time.Minute, tr.TTL())
}

func TestTracker_SetMode(t *testing.T) {
	tests := []struct {
		name string
		from Mode
		to   Mode
		want bool
	}{
		{"into perRound", ModePerTrack, ModePerRound, true},
		{"from ttl into perRound", ModeTTL, ModePerRound, true},
		{"already perRound", ModePerRound, ModePerRound, false},
		{"into ttl", ModePerRound, ModeTTL, false},
		{"unknown mode", ModePerTrack, "bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(tt.from, 0)
			assert.Equal(t, tt.want, tr.SetMode(tt.to))
		})
	}
}

func TestTracker_SwitchKeepsOldRecords(t *testing.T) {
	tr := NewTracker(ModePerTrack, 0)
	b := Ballot{VoterKey: "a", TrackID: "x", Round: 1, Now: t0}
	tr.Record(b)

	tr.SetMode(ModeTTL)
	ok, _ := tr.Allow(b)
	assert.True(t, ok, "perTrack records are not consulted in ttl mode")

	tr.SetMode(ModePerTrack)
	ok, reason := tr.Allow(b)
	assert.False(t, ok, "perTrack records survive the round trip")
	assert.Equal(t, ReasonTrack, reason)
}
