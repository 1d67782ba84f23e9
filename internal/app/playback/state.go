// Package playback provides the session state machine: what is playing, how
// far along it is, and what plays next.
package playback

// State represents the engine state.
type State int

const (
	StateIdle          State = iota // Nothing tracked, no end-watch scheduled
	StatePlaying                    // A track is active; ticker and end-watch are armed
	StateTransitioning              // Deciding and committing the next track
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}
