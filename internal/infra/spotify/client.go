// Package spotify provides the playback provider adapter for the Spotify API.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Scopes required to observe and control playback.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
}

// Client is a Spotify API client implementing the playback provider.
type Client struct {
	client     *spotify.Client
	creds      *Credentials
	market     string
	maxRetries int
	retryDelay time.Duration
	tracks     *lru.Cache[string, track.Track]
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	RefreshToken   string // Used when the token file holds nothing
	TokenFile      string // Optional; persists tokens issued by the callback
	Market         string
	RefreshTimeout time.Duration
	RequestTimeout time.Duration
	CacheSize      int

	// Endpoint overrides, used by tests
	APIBaseURL string
	TokenURL   string
}

// New creates a new Spotify client. A missing refresh token is not an error:
// calls fail as unauthorized until the owner completes authorization.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client id and secret are required")
	}

	endpoint := oauth2.Endpoint{AuthURL: spotifyauth.AuthURL, TokenURL: spotifyauth.TokenURL}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     endpoint,
	}

	opts := []CredentialsOption{WithRefreshTimeout(cfg.RefreshTimeout)}
	var store *TokenStore
	if cfg.TokenFile != "" {
		store = NewTokenStore(cfg.TokenFile)
		opts = append(opts, WithTokenStore(store))
	}
	creds := NewCredentials(conf, opts...)

	if err := restore(creds, store, cfg.RefreshToken); err != nil {
		return nil, err
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: creds, Base: http.DefaultTransport},
		Timeout:   requestTimeout,
	}
	var clientOpts []spotify.ClientOption
	if cfg.APIBaseURL != "" {
		base := cfg.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		clientOpts = append(clientOpts, spotify.WithBaseURL(base))
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, track.Track](size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create track cache")
	}

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     spotify.New(httpClient, clientOpts...),
		creds:      creds,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
		tracks:     cache,
	}, nil
}

func restore(creds *Credentials, store *TokenStore, refreshToken string) error {
	if store != nil {
		tok, err := store.Load()
		if err != nil {
			return err
		}
		if tok != nil {
			return creds.Restore(tok)
		}
	}
	if refreshToken != "" {
		return creds.Restore(&oauth2.Token{RefreshToken: refreshToken})
	}
	return nil
}

// Market returns the configured market.
func (c *Client) Market() string {
	return c.market
}

// Authorized reports whether a usable credential is held.
func (c *Client) Authorized() bool {
	return c.creds.Authorized()
}

// AuthURL returns the consent page URL for the authorization code flow.
func (c *Client) AuthURL(state string) string {
	return c.creds.AuthURL(state)
}

// Exchange completes the authorization code flow and installs the credential.
func (c *Client) Exchange(ctx context.Context, code string) error {
	return c.creds.Exchange(ctx, code)
}

// PlaybackState returns what the provider is currently playing.
func (c *Client) PlaybackState(ctx context.Context) (*player.State, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	var result *spotify.PlayerState
	err := c.retry(ctx, func() error {
		s, err := c.client.PlayerState(ctx, spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, classify(err, "failed to get playback state")
	}
	return c.convertState(result), nil
}

// Play starts t on the device. An empty device id targets the active device.
func (c *Client) Play(ctx context.Context, t track.Track, deviceID string) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	uri := t.URI
	if uri == "" {
		uri = "spotify:track:" + t.ID
	}
	opts := playOptions(deviceID)
	opts.URIs = []spotify.URI{spotify.URI(uri)}
	return classify(c.client.PlayOpt(ctx, opts), "failed to play track")
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	return classify(c.client.PauseOpt(ctx, playOptions(deviceID)), "failed to pause")
}

// Resume resumes the current item.
func (c *Client) Resume(ctx context.Context, deviceID string) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	return classify(c.client.PlayOpt(ctx, playOptions(deviceID)), "failed to resume")
}

// SkipToNext advances the provider's own queue by one.
func (c *Client) SkipToNext(ctx context.Context, deviceID string) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	return classify(c.client.NextOpt(ctx, playOptions(deviceID)), "failed to skip to next")
}

// Devices lists the output devices known to the provider.
func (c *Client) Devices(ctx context.Context) ([]player.Device, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	var result []spotify.PlayerDevice
	err := c.retry(ctx, func() error {
		d, err := c.client.PlayerDevices(ctx)
		if err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, classify(err, "failed to list devices")
	}

	devices := make([]player.Device, 0, len(result))
	for _, d := range result {
		devices = append(devices, convertDevice(d))
	}
	return devices, nil
}

// GetTrack retrieves track information by ID, URL, or URI. Results are cached.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*track.Track, error) {
	id := extractTrackID(trackID)
	if id == "" {
		return nil, player.NotFound(nil, "track id is required")
	}
	if t, ok := c.tracks.Get(id); ok {
		return &t, nil
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		var se spotify.Error
		if errors.As(err, &se) && (se.Status == http.StatusNotFound || se.Status == http.StatusBadRequest) {
			return nil, player.NotFound(err, "track "+id)
		}
		return nil, classify(err, "failed to get track")
	}

	t := c.convertTrack(result)
	c.tracks.Add(id, *t)
	return t, nil
}

// Search searches for tracks on Spotify.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, classify(err, "failed to search")
	}
	if result == nil || result.Tracks == nil {
		return []track.Track{}, nil
	}

	tracks := make([]track.Track, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		t := c.convertTrack(&result.Tracks.Tracks[i])
		c.tracks.Add(t.ID, *t)
		tracks = append(tracks, *t)
	}
	return tracks, nil
}

func (c *Client) ensure(ctx context.Context) error {
	_, err := c.creds.Ensure(ctx)
	return err
}

func playOptions(deviceID string) *spotify.PlayOptions {
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	return opts
}

func (c *Client) convertState(s *spotify.PlayerState) *player.State {
	if s == nil {
		return &player.State{}
	}
	st := &player.State{
		IsPlaying: s.Playing,
		DeviceID:  string(s.Device.ID),
	}
	if s.Item != nil && s.Item.ID != "" {
		st.Item = c.convertTrack(s.Item)
		st.Progress = time.Duration(s.Progress) * time.Millisecond
	}
	return st
}

func convertDevice(d spotify.PlayerDevice) player.Device {
	return player.Device{
		ID:         string(d.ID),
		Name:       d.Name,
		Type:       d.Type,
		Active:     d.Active,
		Restricted: d.Restricted,
		Volume:     int(d.Volume),
	}
}

// convertTrack converts a Spotify FullTrack to domain Track.
func (c *Client) convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	markets := make([]string, len(t.AvailableMarkets))
	for i, m := range t.AvailableMarkets {
		markets[i] = string(m)
	}

	// Requests carry the market, so an omitted list means relinked availability
	if len(markets) == 0 && c.market != "" {
		markets = append(markets, c.market)
	}

	uri := string(t.URI)
	if uri == "" {
		uri = "spotify:track:" + string(t.ID)
	}

	return &track.Track{
		ID:          string(t.ID),
		URI:         uri,
		Name:        t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		AlbumArtURL: albumArt,
		Duration:    time.Duration(t.Duration) * time.Millisecond,
		Explicit:    t.Explicit,
		Markets:     markets,
		IsPlayable:  t.IsPlayable,
	}
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an idempotent read with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(lastErr, ctx.Err().Error())
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if player.IsUnauthorized(err) {
		return false
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= http.StatusInternalServerError
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// classify marks err as unauthorized (401, or a credential failure already
// classified as such) or transient (everything else).
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if player.IsUnauthorized(err) || player.IsTransient(err) {
		return errors.Wrap(err, msg)
	}
	var se spotify.Error
	if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		return player.Unauthorized(err, msg)
	}
	return player.Transient(err, msg)
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// Handle URL format: https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			// Remove query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a track ID
	return input
}
