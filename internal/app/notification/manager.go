// Package notification provides the notification manager for broadcasting state to viewers.
package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/domain/snapshot"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 32

// Kind is the notification variant.
type Kind int

const (
	KindState    Kind = iota // Full snapshot
	KindProgress             // Progress-only record
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Notification is one message to viewers. Exactly one of State and Progress is set.
type Notification struct {
	SequenceNo uint64
	Kind       Kind
	State      *snapshot.Snapshot
	Progress   *snapshot.Progress
}

// StateNotification builds a state message.
func StateNotification(s snapshot.Snapshot) Notification {
	return Notification{Kind: KindState, State: &s}
}

// ProgressNotification builds a progress message.
func ProgressNotification(p snapshot.Progress) Notification {
	return Notification{Kind: KindProgress, Progress: &p}
}

// Subscription is one subscriber's queue. C is closed on Unsubscribe, on
// eviction and when the manager closes.
type Subscription struct {
	ID string
	C  <-chan Notification

	ch      chan Notification
	evicted bool
}

// Evicted reports whether the subscriber was dropped for falling behind.
// Only meaningful after C is closed.
func (s *Subscription) Evicted() bool {
	return s.evicted
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.Mutex
	subscriptions map[string]*Subscription
	sequenceNo    uint64
	bufferSize    int
	closed        bool
}

// NewManager creates a new notification manager.
func NewManager(bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    bufferSize,
	}
}

// Subscribe adds a new subscription whose first message is initial.
// Messages published after Subscribe returns are delivered after initial.
func (m *Manager) Subscribe(initial Notification) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Notification, m.bufferSize)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		ch: ch,
	}
	if m.closed {
		close(ch)
		return sub
	}

	m.sequenceNo++
	initial.SequenceNo = m.sequenceNo
	ch <- initial

	m.subscriptions[sub.ID] = sub
	zlog.Debug().Msgf("subscriber added: id=%s, total=%d", sub.ID, len(m.subscriptions))
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return
	}
	delete(m.subscriptions, subscriptionID)
	close(sub.ch)
	zlog.Debug().Msgf("subscriber removed: id=%s, total=%d", subscriptionID, len(m.subscriptions))
}

// Publish stamps the next sequence number and enqueues the notification for
// every subscriber without blocking. Subscribers whose queue is full are evicted.
func (m *Manager) Publish(n Notification) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sequenceNo++
	n.SequenceNo = m.sequenceNo

	for id, sub := range m.subscriptions {
		select {
		case sub.ch <- n:
		default:
			delete(m.subscriptions, id)
			sub.evicted = true
			close(sub.ch)
			zlog.Warn().Msgf("subscriber evicted: id=%s, kind=%s, seq=%d", id, n.Kind, n.SequenceNo)
		}
	}
	return n.SequenceNo
}

// SequenceNo returns the last assigned sequence number.
func (m *Manager) SequenceNo() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// Close closes the manager and ends all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sub := range m.subscriptions {
		delete(m.subscriptions, id)
		close(sub.ch)
	}
	m.closed = true
}

// Forward delivers the subscription's notifications to send until the
// subscription ends, ctx is done or send fails. It always unsubscribes.
func (m *Manager) Forward(ctx context.Context, sub *Subscription, send func(Notification) error) error {
	defer m.Unsubscribe(sub.ID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-sub.C:
			if !ok {
				if sub.Evicted() {
					return ErrEvicted
				}
				return nil
			}
			if err := send(n); err != nil {
				return err
			}
		}
	}
}
