package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/app/filter"
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/settings"
	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// fakeProvider simulates a player whose position follows the mock clock.
type fakeProvider struct {
	mu  sync.Mutex
	clk *clock.Mock

	item      *track.Track
	base      time.Duration
	baseAt    time.Time
	isPlaying bool

	next []track.Track // Provider's own queue for SkipToNext

	stateErr     error
	playErr      error
	panicOnState bool
	playGate     chan struct{}

	// With lag set, the first state read after a play or skip still
	// reports the state from before it.
	lag   bool
	stale *player.State

	played     []string
	skipCount  int
	stateCalls int
	pauseCount int
	resumes    int
}

func newFakeProvider(clk *clock.Mock) *fakeProvider {
	return &fakeProvider{clk: clk}
}

func (p *fakeProvider) load(t track.Track, progress time.Duration, playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.item = &t
	p.base = progress
	p.baseAt = p.clk.Now()
	p.isPlaying = playing
}

func (p *fakeProvider) progressLocked() time.Duration {
	if p.item == nil {
		return 0
	}
	pos := p.base
	if p.isPlaying {
		pos += p.clk.Now().Sub(p.baseAt)
	}
	if pos > p.item.Duration {
		pos = p.item.Duration
	}
	return pos
}

func (p *fakeProvider) PlaybackState(ctx context.Context) (*player.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateCalls++
	if p.panicOnState {
		panic("provider exploded")
	}
	if p.stateErr != nil {
		return nil, p.stateErr
	}
	if p.stale != nil {
		st := p.stale
		p.stale = nil
		return st, nil
	}
	return p.stateLocked(), nil
}

func (p *fakeProvider) stateLocked() *player.State {
	if p.item == nil {
		return &player.State{}
	}
	item := *p.item
	return &player.State{
		Item:      &item,
		Progress:  p.progressLocked(),
		IsPlaying: p.isPlaying,
	}
}

func (p *fakeProvider) holdStaleLocked() {
	if p.lag {
		p.stale = p.stateLocked()
	}
}

func (p *fakeProvider) Play(ctx context.Context, t track.Track, deviceID string) error {
	p.mu.Lock()
	gate := p.playGate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.holdStaleLocked()
	p.played = append(p.played, t.ID)
	p.item = &t
	p.base = 0
	p.baseAt = p.clk.Now()
	p.isPlaying = true
	return nil
}

func (p *fakeProvider) Pause(ctx context.Context, deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseCount++
	p.base = p.progressLocked()
	p.baseAt = p.clk.Now()
	p.isPlaying = false
	return nil
}

func (p *fakeProvider) Resume(ctx context.Context, deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumes++
	if p.stateErr != nil {
		return p.stateErr
	}
	p.base = p.progressLocked()
	p.baseAt = p.clk.Now()
	p.isPlaying = true
	return nil
}

func (p *fakeProvider) SkipToNext(ctx context.Context, deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipCount++
	p.holdStaleLocked()
	if len(p.next) == 0 {
		p.item = nil
		return nil
	}
	t := p.next[0]
	p.next = p.next[1:]
	p.item = &t
	p.base = 0
	p.baseAt = p.clk.Now()
	p.isPlaying = true
	return nil
}

func (p *fakeProvider) set(fn func(p *fakeProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakeProvider) get(fn func(p *fakeProvider) int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p)
}

func (p *fakeProvider) playedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

// recordingNotifier wraps a real manager and keeps every published message.
type recordingNotifier struct {
	*notification.Manager
	mu   sync.Mutex
	sent []notification.Notification
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{Manager: notification.NewManager(256)}
}

func (n *recordingNotifier) Publish(msg notification.Notification) uint64 {
	seq := n.Manager.Publish(msg)
	msg.SequenceNo = seq
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	return seq
}

func (n *recordingNotifier) count(kind notification.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, m := range n.sent {
		if m.Kind == kind {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) lastState() *notification.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == notification.KindState {
			m := n.sent[i]
			return &m
		}
	}
	return nil
}

type harness struct {
	t        *testing.T
	clk      *clock.Mock
	provider *fakeProvider
	notifier *recordingNotifier
	ctrl     *Controller
}

func newHarness(t *testing.T, cfg Config, mutate func(*settings.Settings)) *harness {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC))

	s := settings.Default()
	if mutate != nil {
		mutate(&s)
	}

	chain := filter.NewChain()
	chain.Add(&filter.BannedTrackFilter{})
	chain.Add(&filter.BannedArtistFilter{})
	chain.Add(filter.NewDurationLimitFilter())
	chain.Add(&filter.BannedUserFilter{})

	h := &harness{
		t:        t,
		clk:      clk,
		provider: newFakeProvider(clk),
		notifier: newRecordingNotifier(),
	}
	h.ctrl = NewController(cfg, h.provider, h.notifier, filter.NewModerator(chain, filter.Rules{}), s, WithClock(clk))
	t.Cleanup(h.ctrl.Close)

	// Drain events so the buffer never matters
	go func() {
		for range h.ctrl.Events() {
		}
	}()
	return h
}

func (h *harness) vote(name, addr string, t track.Track) VoteResult {
	h.t.Helper()
	id := listener.NewIdentity(name, addr)
	res, err := h.ctrl.CastVote(context.Background(), Ballot{
		Identity: id,
		VoterKey: id.Key(false),
		Track:    t,
	})
	require.NoError(h.t, err)
	return res
}

func (h *harness) tickerRunning() bool {
	h.ctrl.mu.Lock()
	defer h.ctrl.mu.Unlock()
	return h.ctrl.ticker != nil
}

func (h *harness) watchArmed() bool {
	h.ctrl.mu.Lock()
	defer h.ctrl.mu.Unlock()
	return h.ctrl.watchTimer != nil
}

func mkTrack(id string, d time.Duration, artists ...string) track.Track {
	if len(artists) == 0 {
		artists = []string{"Artist " + id}
	}
	return track.Track{
		ID:       id,
		URI:      "spotify:track:" + id,
		Name:     "Track " + id,
		Artists:  artists,
		Duration: d,
	}
}
