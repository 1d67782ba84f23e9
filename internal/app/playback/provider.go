package playback

import (
	"context"

	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// Provider is the playback surface the engine drives. Failures are
// classified with player.ErrUnauthorized or player.ErrTransient.
type Provider interface {
	// PlaybackState returns the current observation; a state without an item
	// means nothing is active.
	PlaybackState(ctx context.Context) (*player.State, error)
	Play(ctx context.Context, t track.Track, deviceID string) error
	Pause(ctx context.Context, deviceID string) error
	Resume(ctx context.Context, deviceID string) error
	SkipToNext(ctx context.Context, deviceID string) error
}

// Notifier fans notifications out to viewers. Publish must not block.
type Notifier interface {
	Publish(n notification.Notification) uint64
	Subscribe(initial notification.Notification) *notification.Subscription
}
