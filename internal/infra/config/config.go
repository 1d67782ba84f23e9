// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/crowdbox/internal/app/settings"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	Admin        AdminConfig             `yaml:"admin"`
	Spotify      SpotifyConfig           `yaml:"spotify"`
	Playback     PlaybackConfig          `yaml:"playback"`
	Identity     IdentityConfig          `yaml:"identity"`
	Notification NotificationConfig      `yaml:"notification"`
	Settings     SettingsConfig          `yaml:"settings"`
	Search       SearchConfig            `yaml:"search"`
	Filters      map[string]FilterConfig `yaml:"filters"`
	Messages     MessagesConfig          `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID         string `yaml:"client_id" validate:"required"`
	ClientSecret     string `yaml:"client_secret" validate:"required"`
	RefreshToken     string `yaml:"refresh_token"`
	RedirectURL      string `yaml:"redirect_url" default:"http://127.0.0.1:8080/auth/callback" validate:"url"`
	TokenFile        string `yaml:"token_file" default:"data/token.yaml"`
	Market           string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
	RefreshTimeoutMs int    `yaml:"refresh_timeout_ms" default:"10000" validate:"gte=1000,lte=60000"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms" default:"15000" validate:"gte=1000,lte=60000"`
	CacheSize        int    `yaml:"cache_size" default:"512" validate:"gte=1"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	TickIntervalMs      int    `yaml:"tick_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	EndGraceMs          int    `yaml:"end_grace_ms" default:"1000" validate:"gte=0,lte=10000"`
	MinWaitMs           int    `yaml:"min_wait_ms" default:"1000" validate:"gte=100,lte=10000"`
	DriftToleranceMs    int    `yaml:"drift_tolerance_ms" default:"2000" validate:"gte=0,lte=30000"`
	ProviderTimeoutMs   int    `yaml:"provider_timeout_ms" default:"15000" validate:"gte=1000,lte=60000"`
	ConfirmWindowMs     int    `yaml:"confirm_window_ms" default:"5000" validate:"gte=0,lte=60000"`
	StartOnVoteWhenIdle *bool  `yaml:"start_on_vote_when_idle" default:"true"`
	DeviceID            string `yaml:"device_id"`
}

// IdentityConfig controls how voters are keyed.
type IdentityConfig struct {
	UnifyByAddress    bool  `yaml:"unify_by_address"`
	TrustForwardedFor *bool `yaml:"trust_forwarded_for" default:"true"`
}

// NotificationConfig represents broadcaster configuration.
type NotificationConfig struct {
	BufferSize int `yaml:"buffer_size" default:"32" validate:"gte=1,lte=4096"`
}

// SettingsConfig locates the live settings file. Defaults seed it when absent.
type SettingsConfig struct {
	Path     string            `yaml:"path" default:"data/settings.yaml"`
	Watch    *bool             `yaml:"watch" default:"true"`
	Defaults settings.Settings `yaml:"defaults"`
}

// SearchConfig represents provider search configuration.
type SearchConfig struct {
	Limit int `yaml:"limit" default:"20" validate:"gte=1,lte=50"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success               string `yaml:"success" default:"Vote accepted"`
	DefaultError          string `yaml:"default_error" default:"Vote rejected"`
	Banned                string `yaml:"banned" default:"This request is not allowed"`
	AlreadyVoted          string `yaml:"already_voted" default:"You have already voted"`
	TrackNotFound         string `yaml:"track_not_found" default:"Track not found"`
	InvalidInput          string `yaml:"invalid_input" default:"Invalid request"`
	MarketRestriction     string `yaml:"market_restriction" default:"This track is not available here"`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"This track is too long"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("CROWDBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// GetMessage returns the message for the given result code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "banned", "banned_user", "banned_track", "banned_artist":
		return c.Messages.Banned
	case "already_voted":
		return c.Messages.AlreadyVoted
	case "track_not_found":
		return c.Messages.TrackNotFound
	case "invalid_input":
		return c.Messages.InvalidInput
	case "market_restriction":
		return c.Messages.MarketRestriction
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if c.Playback.MinWaitMs > c.Playback.ProviderTimeoutMs {
		return errors.Newf("min_wait_ms (%d) must not exceed provider_timeout_ms (%d)", c.Playback.MinWaitMs, c.Playback.ProviderTimeoutMs)
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// StartOnVote reports whether an accepted vote starts playback when idle.
func (c *PlaybackConfig) StartOnVote() bool {
	return c.StartOnVoteWhenIdle == nil || *c.StartOnVoteWhenIdle
}

// TrustsForwardedFor reports whether X-Forwarded-For is used for the address.
func (c *IdentityConfig) TrustsForwardedFor() bool {
	return c.TrustForwardedFor == nil || *c.TrustForwardedFor
}

// WatchEnabled reports whether the settings file is hot reloaded.
func (c *SettingsConfig) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// Ms converts a millisecond setting to a duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
