// Package registry tracks the voters seen by the server.
package registry

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/crowdbox/internal/domain/listener"
)

var ErrInvalidListener = errors.New("invalid listener")

// ListenerRegistry manages listener sessions with thread-safe access.
// Listeners are anonymous and keyed by (normalized name, address).
type ListenerRegistry struct {
	mu        sync.RWMutex
	listeners map[string]*listener.Session // name@address -> session
	byAddress map[string][]string          // address -> keys seen there
}

// NewListenerRegistry creates a new listener registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{
		listeners: make(map[string]*listener.Session),
		byAddress: make(map[string][]string),
	}
}

// Touch upserts the listener for id and returns a copy of its session.
func (r *ListenerRegistry) Touch(id listener.Identity, now time.Time) listener.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.upsertLocked(id, now)
}

// RecordVote counts an accepted vote for id.
func (r *ListenerRegistry) RecordVote(id listener.Identity, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(id, now).RecordVote(now)
}

func (r *ListenerRegistry) upsertLocked(id listener.Identity, now time.Time) *listener.Session {
	key := id.Key(false)
	if s, ok := r.listeners[key]; ok {
		s.Touch(now)
		// Keep the latest spelling of the display name
		s.Identity.Name = id.Name
		return s
	}
	s := listener.NewSession(uuid.New().String(), id, now)
	r.listeners[key] = s
	r.byAddress[id.Address] = append(r.byAddress[id.Address], key)
	return s
}

// Aliases returns the other display names seen at id's address.
func (r *ListenerRegistry) Aliases(id listener.Identity) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	self := id.Key(false)
	var names []string
	for _, key := range r.byAddress[id.Address] {
		if key == self {
			continue
		}
		if s, ok := r.listeners[key]; ok {
			names = append(names, s.Identity.Name)
		}
	}
	return names
}

// Get retrieves a listener session by ID.
func (r *ListenerRegistry) Get(listenerID string) (listener.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.listeners {
		if s.ID == listenerID {
			return *s, nil
		}
	}
	return listener.Session{}, ErrInvalidListener
}

// All returns all listener sessions, most recently seen first.
func (r *ListenerRegistry) All() []listener.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]listener.Session, 0, len(r.listeners))
	for _, s := range r.listeners {
		result = append(result, *s)
	}
	slices.SortFunc(result, func(a, b listener.Session) int {
		if c := b.LastSeenAt.Compare(a.LastSeenAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// Count returns the number of listeners.
func (r *ListenerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
