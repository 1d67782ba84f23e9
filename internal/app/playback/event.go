package playback

import "github.com/osa030/crowdbox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted     EventType = iota // A track was started by the engine
	EventProviderAdvanced                  // The provider picked the next track
	EventStateChanged                      // Pause/resume or device change
	EventHalted                            // The engine stopped tracking playback
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventProviderAdvanced:
		return "provider_advanced"
	case EventStateChanged:
		return "state_changed"
	case EventHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Track *track.Track // Current track (nil for some events)
	State State        // Engine state after the event
	Err   error        // Set for EventHalted caused by a failure
}
