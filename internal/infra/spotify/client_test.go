package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/track"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsRetryable_ProviderErrors(t *testing.T) {
	assert.True(t, isRetryable(spotify.Error{Status: 429, Message: "slow down"}))
	assert.True(t, isRetryable(spotify.Error{Status: 503, Message: "unavailable"}))
	assert.False(t, isRetryable(spotify.Error{Status: 404, Message: "non existing id"}))
	assert.False(t, isRetryable(player.Unauthorized(nil, "no credential")))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "noop"))

	err := classify(spotify.Error{Status: 401, Message: "The access token expired"}, "failed to pause")
	assert.True(t, player.IsUnauthorized(err))

	err = classify(spotify.Error{Status: 502, Message: "bad gateway"}, "failed to pause")
	assert.True(t, player.IsTransient(err))

	err = classify(errors.New("connection reset"), "failed to pause")
	assert.True(t, player.IsTransient(err))

	err = classify(player.Unauthorized(nil, "no credential"), "failed to pause")
	assert.True(t, player.IsUnauthorized(err))
	assert.False(t, player.IsTransient(err))
}

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uri", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"url", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"url with query", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc", "4uLU6hMCjMI75M1A2tKUQC"},
		{"intl url", "https://open.spotify.com/intl-ja/track/abc123/", "abc123"},
		{"plain id", " abc123 ", "abc123"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTrackID(tt.input))
		})
	}
}

// fakeAPI serves the subset of the Web API the client uses.
type fakeAPI struct {
	mu       sync.Mutex
	requests []string
	status   map[string][]int // Queued status codes per "METHOD path"
	state    string
}

func (f *fakeAPI) queue(key string, codes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = make(map[string][]int)
	}
	f.status[key] = append(f.status[key], codes...)
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, key) {
			n++
		}
	}
	return n
}

const trackJSON = `{"id":"abc","uri":"spotify:track:abc","name":"Song","duration_ms":185000,
"artists":[{"name":"Band"},{"name":"Guest"}],"album":{"name":"Album","images":[{"url":"https://img/1"}]},
"explicit":false,"available_markets":["JP","US"]}`

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, key+"?"+r.URL.RawQuery)
	var code int
	if q := f.status[key]; len(q) > 0 {
		code = q[0]
		f.status[key] = q[1:]
	}
	state := f.state
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer access-1" {
		code = http.StatusUnauthorized
	}
	if code >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"error":{"status":%d,"message":"failure %d"}}`, code, code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch key {
	case "GET /me/player":
		if state == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		fmt.Fprint(w, state)
	case "GET /me/player/devices":
		fmt.Fprint(w, `{"devices":[{"id":"dev1","is_active":true,"name":"Bar Speaker","type":"Speaker","volume_percent":60}]}`)
	case "GET /tracks/abc":
		fmt.Fprint(w, trackJSON)
	case "GET /search":
		fmt.Fprintf(w, `{"tracks":{"items":[%s],"total":1}}`, trackJSON)
	case "PUT /me/player/play", "PUT /me/player/pause", "POST /me/player/next":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"status":404,"message":"not found"}}`)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()

	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(tokens.Close)

	api := &fakeAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	c, err := New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh-1",
		Market:       "JP",
		APIBaseURL:   server.URL,
		TokenURL:     tokens.URL,
	})
	require.NoError(t, err)
	c.retryDelay = time.Millisecond
	return c, api
}

func TestNew_RequiresClientCredentials(t *testing.T) {
	_, err := New(Config{ClientID: "id"})
	assert.Error(t, err)

	c, err := New(Config{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.False(t, c.Authorized())
	assert.Equal(t, "JP", c.Market())

	_, err = c.PlaybackState(context.Background())
	assert.True(t, player.IsUnauthorized(err))
}

func TestClient_PlaybackState(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	st, err := c.PlaybackState(ctx)
	require.NoError(t, err)
	assert.False(t, st.HasItem(), "204 means nothing active")

	api.mu.Lock()
	api.state = `{"device":{"id":"dev1","is_active":true,"name":"Bar Speaker"},"progress_ms":61000,"is_playing":true,"item":` + trackJSON + `}`
	api.mu.Unlock()

	st, err = c.PlaybackState(ctx)
	require.NoError(t, err)
	require.True(t, st.HasItem())
	assert.Equal(t, "abc", st.Item.ID)
	assert.Equal(t, 61*time.Second, st.Progress)
	assert.Equal(t, 185*time.Second, st.Item.Duration)
	assert.True(t, st.IsPlaying)
	assert.Equal(t, "dev1", st.DeviceID)
	assert.Equal(t, []string{"Band", "Guest"}, st.Item.Artists)
	assert.Equal(t, 2, api.count("GET /me/player?market=JP"))
}

func TestClient_ReadsAreRetried(t *testing.T) {
	c, api := newTestClient(t)
	api.queue("GET /tracks/abc", http.StatusServiceUnavailable, http.StatusTooManyRequests)

	tr, err := c.GetTrack(context.Background(), "spotify:track:abc")
	require.NoError(t, err)
	assert.Equal(t, "Song", tr.Name)
	assert.Equal(t, 3, api.count("GET /tracks/abc"))

	// Cached
	_, err = c.GetTrack(context.Background(), "https://open.spotify.com/track/abc")
	require.NoError(t, err)
	assert.Equal(t, 3, api.count("GET /tracks/abc"))
}

func TestClient_ControlIsNotRetried(t *testing.T) {
	c, api := newTestClient(t)
	api.queue("POST /me/player/next", http.StatusServiceUnavailable)

	err := c.SkipToNext(context.Background(), "dev1")
	require.Error(t, err)
	assert.True(t, player.IsTransient(err))
	assert.Equal(t, 1, api.count("POST /me/player/next"))
}

func TestClient_UnauthorizedIsClassified(t *testing.T) {
	c, api := newTestClient(t)
	api.queue("PUT /me/player/pause", http.StatusUnauthorized)

	err := c.Pause(context.Background(), "")
	require.Error(t, err)
	assert.True(t, player.IsUnauthorized(err))
	assert.Equal(t, 1, api.count("PUT /me/player/pause"))
}

func TestClient_GetTrackNotFound(t *testing.T) {
	c, api := newTestClient(t)
	api.queue("GET /tracks/missing", http.StatusNotFound)

	_, err := c.GetTrack(context.Background(), "spotify:track:missing")
	require.Error(t, err)
	assert.True(t, player.IsNotFound(err))
	assert.Equal(t, 1, api.count("GET /tracks/missing"), "not found is never retried")
}

func TestClient_Controls(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, track.Track{ID: "abc"}, "dev1"))
	require.NoError(t, c.Resume(ctx, ""))
	require.NoError(t, c.Pause(ctx, "dev1"))
	require.NoError(t, c.SkipToNext(ctx, "dev1"))

	assert.Equal(t, 1, api.count("PUT /me/player/play?device_id=dev1"))
	assert.Equal(t, 2, api.count("PUT /me/player/play"), "resume targets the active device")
	assert.Equal(t, 1, api.count("PUT /me/player/pause?device_id=dev1"))
	assert.Equal(t, 1, api.count("POST /me/player/next?device_id=dev1"))
}

func TestClient_DevicesAndSearch(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	devices, err := c.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, player.Device{ID: "dev1", Name: "Bar Speaker", Type: "Speaker", Active: true, Volume: 60}, devices[0])

	tracks, err := c.Search(ctx, "song", 100)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "spotify:track:abc", tracks[0].URI)
	assert.Equal(t, "https://img/1", tracks[0].AlbumArtURL)

	// Search results warm the cache
	_, err = c.GetTrack(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 0, api.count("GET /tracks/abc"))

	_, err = c.Search(ctx, "  ", 10)
	assert.Error(t, err)
}

func TestTrackURL(t *testing.T) {
	assert.Equal(t, "https://open.spotify.com/track/abc", TrackURL("abc"))
}
