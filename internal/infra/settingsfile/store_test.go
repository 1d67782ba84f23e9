package settingsfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/app/settings"
)

func TestStore_LoadMissingFileYieldsDefaults(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "settings.yaml"))
	assert.False(t, s.Exists())

	st, err := s.Load()
	require.NoError(t, err)
	assert.True(t, st.Equal(settings.Default()))
}

func TestStore_SaveLoad(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "settings.yaml"))
	st := settings.Default()
	st.VotePolicy = "ttl"
	st.VoteTTLSeconds = 60
	st.BannedArtists = []string{"Nickelback"}

	require.NoError(t, s.Save(st))
	assert.True(t, s.Exists())

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.True(t, loaded.Equal(st))
}

func TestStore_Load(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, st settings.Settings)
	}{
		{
			name:    "empty file",
			content: "",
			check: func(t *testing.T, st settings.Settings) {
				assert.Equal(t, "perTrack", st.VotePolicy)
			},
		},
		{
			name:    "partial with string lists",
			content: "vote_policy: perRound\nbanned_users: \"alice, ip:10.0.0.9\"\n",
			check: func(t *testing.T, st settings.Settings) {
				assert.Equal(t, "perRound", st.VotePolicy)
				assert.Equal(t, []string{"alice", "ip:10.0.0.9"}, st.BannedUsers)
				assert.Equal(t, 900, st.VoteTTLSeconds)
			},
		},
		{
			name:    "invalid value",
			content: "min_votes_to_override: 0\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "vote_policy: [\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			st, err := New(path).Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, st)
		})
	}
}

func TestStore_WatchReloadsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := New(path)
	s.debounce = 10 * time.Millisecond
	require.NoError(t, s.Save(settings.Default()))

	var (
		mu  sync.Mutex
		got []settings.Settings
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(st settings.Settings) {
			mu.Lock()
			got = append(got, st)
			mu.Unlock()
		})
	}()
	// Let the watcher register
	time.Sleep(50 * time.Millisecond)

	// Own writes are not reported
	require.NoError(t, s.Save(settings.Default()))
	// Invalid edits are skipped
	require.NoError(t, os.WriteFile(path, []byte("vote_policy: sometimes\n"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("vote_policy: ttl\nvote_ttl_seconds: 30\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].VotePolicy == "ttl"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, st := range got {
		assert.Equal(t, "ttl", st.VotePolicy)
		assert.Equal(t, 30, st.VoteTTLSeconds)
	}
	mu.Unlock()

	cancel()
	assert.NoError(t, <-done)
}

func TestStore_WatchAppliesValidFieldsOfPartlyInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := New(path)
	s.debounce = 10 * time.Millisecond
	base := settings.Default()
	base.MinVotesToOverride = 3
	require.NoError(t, s.Save(base))

	got := make(chan settings.Settings, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Watch(ctx, func(st settings.Settings) { got <- st })
	}()
	time.Sleep(50 * time.Millisecond)

	edit := "vote_policy: perRound\nmin_votes_to_override: 0\nvote_ttl_seconds: soon\nbanned_artists: \"x; y\"\n"
	require.NoError(t, os.WriteFile(path, []byte(edit), 0o644))

	select {
	case st := <-got:
		assert.Equal(t, "perRound", st.VotePolicy)
		assert.Equal(t, []string{"x", "y"}, st.BannedArtists)
		assert.Equal(t, 3, st.MinVotesToOverride, "invalid field keeps its value")
		assert.Equal(t, base.VoteTTLSeconds, st.VoteTTLSeconds, "undecodable field keeps its value")
	case <-time.After(2 * time.Second):
		t.Fatal("reload not reported")
	}
}
