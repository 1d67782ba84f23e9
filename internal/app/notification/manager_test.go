package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/crowdbox/internal/domain/snapshot"
)

func drain(sub *Subscription) []Notification {
	var out []Notification
	for {
		select {
		case n, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "state", KindState.String())
	assert.Equal(t, "progress", KindProgress.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

func TestManager_SubscribeReceivesInitialFirst(t *testing.T) {
	m := NewManager(8)
	m.Publish(ProgressNotification(snapshot.Progress{TrackID: "before"}))

	sub := m.Subscribe(StateNotification(snapshot.Snapshot{DeviceID: "dev"}))
	m.Publish(ProgressNotification(snapshot.Progress{TrackID: "after"}))

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, KindState, got[0].Kind)
	assert.Equal(t, "dev", got[0].State.DeviceID)
	assert.Equal(t, KindProgress, got[1].Kind)
	assert.Equal(t, "after", got[1].Progress.TrackID)
	assert.Less(t, got[0].SequenceNo, got[1].SequenceNo)
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager(16)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))

	var last uint64
	for i := 0; i < 10; i++ {
		seq := m.Publish(ProgressNotification(snapshot.Progress{}))
		assert.Greater(t, seq, last)
		last = seq
	}
	assert.Equal(t, last, m.SequenceNo())

	got := drain(sub)
	require.Len(t, got, 11)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].SequenceNo+1, got[i].SequenceNo)
	}
}

func TestManager_EvictsSlowSubscriber(t *testing.T) {
	m := NewManager(2)
	slow := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	fast := m.Subscribe(StateNotification(snapshot.Snapshot{}))

	// slow never reads; fast keeps up
	for i := 0; i < 3; i++ {
		drain(fast)
		m.Publish(ProgressNotification(snapshot.Progress{}))
	}

	assert.Equal(t, 1, m.SubscriberCount())

	got := drain(slow)
	assert.Len(t, got, 2, "queue content is still readable")
	_, ok := <-slow.C
	assert.False(t, ok, "channel closed")
	assert.True(t, slow.Evicted())
	assert.False(t, fast.Evicted())
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager(4)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	drain(sub)

	m.Unsubscribe(sub.ID)
	m.Unsubscribe(sub.ID)
	assert.Equal(t, 0, m.SubscriberCount())

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.False(t, sub.Evicted())

	// Publishing with no subscribers is fine
	m.Publish(StateNotification(snapshot.Snapshot{}))
}

func TestManager_Close(t *testing.T) {
	m := NewManager(4)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	m.Close()

	drain(sub)
	_, ok := <-sub.C
	assert.False(t, ok)

	late := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	_, ok = <-late.C
	assert.False(t, ok, "subscriptions after close end immediately")
}

func TestManager_Forward(t *testing.T) {
	m := NewManager(8)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))

	var mu sync.Mutex
	var got []Kind
	done := make(chan error, 1)
	go func() {
		done <- m.Forward(context.Background(), sub, func(n Notification) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, n.Kind)
			return nil
		})
	}()

	m.Publish(ProgressNotification(snapshot.Progress{}))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	m.Unsubscribe(sub.ID)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Forward did not return")
	}
	assert.Equal(t, []Kind{KindState, KindProgress}, got)
}

func TestManager_ForwardStopsOnSendError(t *testing.T) {
	m := NewManager(8)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	boom := errors.New("boom")

	err := m.Forward(context.Background(), sub, func(Notification) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.SubscriberCount(), "forward unsubscribes")
}

func TestManager_ForwardContextCancel(t *testing.T) {
	m := NewManager(8)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	drain(sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Forward(ctx, sub, func(Notification) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_ForwardEvicted(t *testing.T) {
	m := NewManager(1)
	sub := m.Subscribe(StateNotification(snapshot.Snapshot{}))
	m.Publish(ProgressNotification(snapshot.Progress{}))

	err := m.Forward(context.Background(), sub, func(Notification) error { return nil })
	assert.ErrorIs(t, err, ErrEvicted)
}
