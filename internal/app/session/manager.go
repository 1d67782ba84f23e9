// Package session provides the session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/filter"
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/playback"
	"github.com/osa030/crowdbox/internal/app/session/registry"
	"github.com/osa030/crowdbox/internal/app/settings"
	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/snapshot"
	"github.com/osa030/crowdbox/internal/domain/track"
	"github.com/osa030/crowdbox/internal/infra/config"
)

// CodeTrackNotFound rejects a vote for a track the provider does not know.
const CodeTrackNotFound = "track_not_found"

// authStateTTL bounds how long an authorization link stays usable.
const authStateTTL = 10 * time.Minute

// Provider is the playback provider plus catalog, device and credential access.
type Provider interface {
	playback.Provider
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
	Devices(ctx context.Context) ([]player.Device, error)
	Authorized() bool
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// SettingsStore persists live settings.
type SettingsStore interface {
	Exists() bool
	Load() (settings.Settings, error)
	Save(settings.Settings) error
	Watch(ctx context.Context, fn func(settings.Settings)) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// Manager manages the voting session.
type Manager struct {
	mu sync.Mutex // Serializes settings updates and auth states

	config *config.Config
	clock  clock.Clock

	provider     Provider
	store        SettingsStore
	listenerReg  *registry.ListenerRegistry
	notification *notification.Manager
	moderator    *filter.Moderator
	playback     *playback.Controller

	authStates map[string]time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new session manager. Settings come from the store, or
// from the configured defaults when the store is empty.
func NewManager(cfg *config.Config, provider Provider, store SettingsStore, opts ...Option) (*Manager, error) {
	initial, err := loadSettings(cfg, store)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:       cfg,
		clock:        clock.New(),
		provider:     provider,
		store:        store,
		listenerReg:  registry.NewListenerRegistry(),
		notification: notification.NewManager(cfg.Notification.BufferSize),
		authStates:   make(map[string]time.Time),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	chain, err := m.setupFilters()
	if err != nil {
		cancel()
		return nil, err
	}
	m.moderator = filter.NewModerator(chain, initial.Rules())

	m.playback = playback.NewController(playback.Config{
		TickInterval:        config.Ms(cfg.Playback.TickIntervalMs),
		EndGrace:            config.Ms(cfg.Playback.EndGraceMs),
		MinWait:             config.Ms(cfg.Playback.MinWaitMs),
		DriftTolerance:      config.Ms(cfg.Playback.DriftToleranceMs),
		ProviderTimeout:     config.Ms(cfg.Playback.ProviderTimeoutMs),
		ConfirmWindow:       config.Ms(cfg.Playback.ConfirmWindowMs),
		StartOnVoteWhenIdle: cfg.Playback.StartOnVote(),
	}, provider, m.notification, m.moderator, initial, playback.WithClock(m.clock))

	if cfg.Playback.DeviceID != "" {
		m.playback.SelectDevice(cfg.Playback.DeviceID)
	}
	return m, nil
}

func loadSettings(cfg *config.Config, store SettingsStore) (settings.Settings, error) {
	if !store.Exists() {
		initial := cfg.Settings.Defaults.Clone()
		if err := initial.Validate(); err != nil {
			return settings.Settings{}, errors.Wrap(err, "invalid default settings")
		}
		if err := store.Save(initial); err != nil {
			return settings.Settings{}, errors.Wrap(err, "failed to seed settings file")
		}
		return initial, nil
	}
	s, err := store.Load()
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "failed to load settings")
	}
	return s, nil
}

// setupFilters builds the moderation chain. Ban filters always run; the
// market and minimum duration checks follow the filters config.
func (m *Manager) setupFilters() (*filter.Chain, error) {
	cfg := m.config
	chain := filter.NewChain()

	chain.Add(&filter.BannedUserFilter{})
	chain.Add(&filter.BannedTrackFilter{})
	chain.Add(&filter.BannedArtistFilter{})

	duration := filter.NewDurationLimitFilter()
	if err := duration.ValidateConfig(cfg.FilterSettings("duration_limit_filter")); err != nil {
		return nil, errors.Wrap(err, "invalid duration_limit_filter settings")
	}
	chain.Add(duration)

	if cfg.IsFilterEnabled("market_filter") {
		chain.Add(filter.NewMarketFilter(cfg.Spotify.Market))
	}
	return chain, nil
}

// Start starts background work: the event loop, the settings watcher and the
// initial resync with whatever the provider is playing.
func (m *Manager) Start(ctx context.Context) error {
	go m.playbackLoop()

	if m.config.Settings.WatchEnabled() {
		go func() {
			if err := m.store.Watch(m.ctx, m.onSettingsReloaded); err != nil {
				zlog.Error().Msgf("settings watcher stopped: %v", err)
			}
		}()
	}

	if !m.provider.Authorized() {
		zlog.Warn().Msg("provider not authorized yet, open /auth/login to connect an account")
		return nil
	}
	if err := m.playback.Resync(ctx); err != nil {
		zlog.Warn().Msgf("initial resync failed: %v", err)
	}
	return nil
}

// Done returns a channel that is closed when the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops the engine and ends every subscription.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		m.playback.Close()
		m.notification.Close()
		close(m.done)
	})
}

// VoteRequest is a listener's vote.
type VoteRequest struct {
	Name    string `validate:"max=64"`
	Address string `validate:"required,max=256"`
	TrackID string `validate:"required,max=256"`
}

// VoteResult is the outcome of a vote.
type VoteResult struct {
	playback.VoteResult
	Track *track.Track // Resolved track; nil when rejected before lookup
}

var validate = validator.New()

// Vote resolves the voter and the track and casts the vote. Rejections are
// results, not errors; errors mean invalid input or provider failure.
func (m *Manager) Vote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	if err := validate.Struct(req); err != nil {
		return VoteResult{}, errors.Mark(errors.Wrap(err, "vote request"), ErrInvalidInput)
	}

	id := listener.NewIdentity(req.Name, req.Address)
	m.listenerReg.Touch(id, m.clock.Now())
	ballot := m.ballot(id, track.Track{ID: req.TrackID})

	// Cheap check before the provider round trip
	if res := m.playback.PreCheck(ballot); !res.Accepted {
		zlog.Info().Msgf("vote rejected: voter=%s track=%s code=%s reason=%s", id, req.TrackID, res.Code, res.Reason)
		return VoteResult{VoteResult: res}, nil
	}

	t, err := m.provider.GetTrack(ctx, req.TrackID)
	if player.IsNotFound(err) {
		return VoteResult{VoteResult: playback.VoteResult{Code: CodeTrackNotFound}}, nil
	}
	if err != nil {
		return VoteResult{}, errors.Wrap(err, "failed to resolve track")
	}
	ballot.Track = *t

	res, err := m.playback.CastVote(ctx, ballot)
	if err != nil {
		return VoteResult{}, err
	}
	if res.Accepted {
		m.listenerReg.RecordVote(id, m.clock.Now())
	}
	return VoteResult{VoteResult: res, Track: t}, nil
}

func (m *Manager) ballot(id listener.Identity, t track.Track) playback.Ballot {
	unify := m.config.Identity.UnifyByAddress
	b := playback.Ballot{
		Identity: id,
		VoterKey: id.Key(unify),
		Track:    t,
	}
	if unify {
		b.Aliases = m.listenerReg.Aliases(id)
	}
	return b
}

// Search queries the provider and drops tracks the moderation rules reject.
func (m *Manager) Search(ctx context.Context, query string) ([]track.Track, error) {
	if err := validate.Var(query, "required,max=200"); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "search query"), ErrInvalidInput)
	}
	tracks, err := m.provider.Search(ctx, query, m.config.Search.Limit)
	if err != nil {
		return nil, err
	}
	return m.moderator.FilterTracks(ctx, tracks), nil
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() snapshot.Snapshot {
	return m.playback.Snapshot()
}

// Subscribe registers a viewer whose first message is the current snapshot.
func (m *Manager) Subscribe() *notification.Subscription {
	return m.playback.Subscribe()
}

// Unsubscribe removes a viewer.
func (m *Manager) Unsubscribe(sub *notification.Subscription) {
	m.notification.Unsubscribe(sub.ID)
}

// Forward pumps a subscription into send until ctx ends or the viewer is evicted.
func (m *Manager) Forward(ctx context.Context, sub *notification.Subscription, send func(notification.Notification) error) error {
	return m.notification.Forward(ctx, sub, send)
}

// Status is the owner's view of the session.
type Status struct {
	playback.Status
	Authorized  bool
	Listeners   int
	Subscribers int
}

// Status returns the engine status.
func (m *Manager) Status() Status {
	return Status{
		Status:      m.playback.Status(),
		Authorized:  m.provider.Authorized(),
		Listeners:   m.listenerReg.Count(),
		Subscribers: m.notification.SubscriberCount(),
	}
}

// Pause pauses playback.
func (m *Manager) Pause(ctx context.Context) error {
	return m.playback.Pause(ctx)
}

// Resume resumes playback, re-arming the engine after a halt.
func (m *Manager) Resume(ctx context.Context) error {
	return m.playback.Resume(ctx)
}

// Skip ends the current track now.
func (m *Manager) Skip(ctx context.Context) (playback.AdvanceResult, error) {
	res, err := m.playback.ForceAdvance(ctx)
	if err == nil {
		zlog.Info().Msgf("skipped by owner: %s", res)
	}
	return res, err
}

// PlayTrack starts a track chosen by the owner.
func (m *Manager) PlayTrack(ctx context.Context, trackID string) (playback.AdvanceResult, error) {
	if err := validate.Var(trackID, "required,max=256"); err != nil {
		return playback.AdvanceResult{}, errors.Mark(errors.Wrap(err, "track id"), ErrInvalidInput)
	}
	t, err := m.provider.GetTrack(ctx, trackID)
	if err != nil {
		return playback.AdvanceResult{}, errors.Wrap(err, "failed to resolve track")
	}
	return m.playback.PlayTrack(ctx, *t)
}

// Devices lists the provider's output devices.
func (m *Manager) Devices(ctx context.Context) ([]player.Device, error) {
	return m.provider.Devices(ctx)
}

// SelectDevice sets the output device after checking the provider knows it.
func (m *Manager) SelectDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return invalidInput("device id is required")
	}
	devices, err := m.provider.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.ID == deviceID {
			m.playback.SelectDevice(deviceID)
			return nil
		}
	}
	return errors.Mark(errors.Wrapf(ErrUnknownDevice, "device %s", deviceID), ErrInvalidInput)
}

// ClearVotes removes one track's votes.
func (m *Manager) ClearVotes(trackID string) (bool, error) {
	if trackID == "" {
		return false, invalidInput("track id is required")
	}
	return m.playback.ClearVotes(trackID), nil
}

// Listeners returns every voter seen, most recent first.
func (m *Manager) Listeners() []listener.Session {
	return m.listenerReg.All()
}

// Settings returns the active settings.
func (m *Manager) Settings() settings.Settings {
	return m.playback.Settings()
}

// UpdateResult reports a settings update.
type UpdateResult struct {
	Settings settings.Settings
	Invalid  []settings.FieldError // Reported and ignored
	Purged   []string              // Track ids whose votes were removed by new bans
}

// UpdateSettings applies the valid fields of u, persists and broadcasts.
func (m *Manager) UpdateSettings(u settings.Update) (UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, invalid := u.Apply(m.playback.Settings())
	res, err := m.commitLocked(next)
	res.Invalid = invalid
	return res, err
}

// UpdateSettingsMap is UpdateSettings for loosely typed input such as form
// values. Lists may be newline, comma or semicolon separated.
func (m *Manager) UpdateSettingsMap(values map[string]any) (UpdateResult, error) {
	u, decodeErrs, err := settings.DecodeUpdate(values)
	if err != nil {
		return UpdateResult{}, errors.Mark(err, ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, invalid := u.Apply(m.playback.Settings())
	res, err := m.commitLocked(next)
	res.Invalid = append(decodeErrs, invalid...)
	return res, err
}

func (m *Manager) commitLocked(next settings.Settings) (UpdateResult, error) {
	if !next.Equal(m.playback.Settings()) {
		if err := m.store.Save(next); err != nil {
			return UpdateResult{Settings: m.playback.Settings()}, errors.Wrap(err, "failed to persist settings")
		}
	}
	purged := m.playback.ApplySettings(next)
	zlog.Info().Msgf("settings updated: policy=%s ttl=%ds min_votes=%d purged=%d",
		next.VotePolicy, next.VoteTTLSeconds, next.MinVotesToOverride, len(purged))
	return UpdateResult{Settings: next, Purged: purged}, nil
}

func (m *Manager) onSettingsReloaded(s settings.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := m.playback.ApplySettings(s)
	zlog.Info().Msgf("settings reloaded from file: policy=%s purged=%d", s.VotePolicy, len(purged))
}

// AuthURL returns a consent page URL with a fresh single-use state.
func (m *Manager) AuthURL() string {
	state := uuid.New().String()
	now := m.clock.Now()

	m.mu.Lock()
	for s, exp := range m.authStates {
		if now.After(exp) {
			delete(m.authStates, s)
		}
	}
	m.authStates[state] = now.Add(authStateTTL)
	m.mu.Unlock()

	return m.provider.AuthURL(state)
}

// CompleteAuth finishes the authorization callback and resyncs playback.
func (m *Manager) CompleteAuth(ctx context.Context, state, code string) error {
	m.mu.Lock()
	exp, ok := m.authStates[state]
	delete(m.authStates, state)
	m.mu.Unlock()

	if !ok || m.clock.Now().After(exp) {
		return ErrInvalidState
	}
	if code == "" {
		return invalidInput("authorization code is required")
	}
	if err := m.provider.Exchange(ctx, code); err != nil {
		return err
	}
	zlog.Info().Msg("provider authorized")

	if err := m.playback.Resync(ctx); err != nil {
		zlog.Warn().Msgf("resync after authorization failed: %v", err)
	}
	return nil
}

// playbackLoop handles playback events.
func (m *Manager) playbackLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback loop panicked: %v", r)
			// Restart loop to keep draining events
			zlog.Info().Msg("restarting playback loop")
			go m.playbackLoop()
		}
	}()

	events := m.playback.Events()
	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handlePlaybackEvent(event)
		}
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	var trackID string
	if event.Track != nil {
		trackID = event.Track.ID
	}

	switch event.Type {
	case playback.EventHalted:
		if player.IsUnauthorized(event.Err) {
			zlog.Warn().Msg("playback halted: provider authorization required, open /auth/login")
			return
		}
		zlog.Warn().Msgf("playback halted: track=%s err=%v; resume to re-arm", trackID, event.Err)
	default:
		zlog.Debug().Msgf("playback event: type=%s state=%s track=%s", event.Type, event.State, trackID)
	}
}
