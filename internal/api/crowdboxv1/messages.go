package crowdboxv1

import "time"

// NotificationType names a notification variant.
type NotificationType string

const (
	NotificationTypeState    NotificationType = "state"
	NotificationTypeProgress NotificationType = "progress"
)

// Track is track metadata.
type Track struct {
	ID          string   `json:"id"`
	URI         string   `json:"uri"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album,omitempty"`
	AlbumArtURL string   `json:"albumArtUrl,omitempty"`
	DurationMs  int64    `json:"durationMs"`
}

// VoteEntry is one leaderboard row.
type VoteEntry struct {
	TrackID string `json:"trackId"`
	Count   int    `json:"count"`
	Track   Track  `json:"track"`
}

// Progress is the extrapolated playback position.
type Progress struct {
	TrackID    string `json:"trackId,omitempty"`
	ProgressMs int64  `json:"progressMs"`
	DurationMs int64  `json:"durationMs"`
	IsPlaying  bool   `json:"isPlaying"`
}

// State is the full client-facing snapshot.
type State struct {
	Votes        []VoteEntry `json:"votes"`
	PlayingTrack *Track      `json:"playingTrack,omitempty"`
	DeviceID     string      `json:"deviceId,omitempty"`
	Progress     Progress    `json:"progress"`
}

// Notification is one broadcast message. Exactly one of State and Progress is set.
type Notification struct {
	Type       NotificationType `json:"type"`
	SequenceNo uint64           `json:"seq"`
	State      *State           `json:"state,omitempty"`
	Progress   *Progress        `json:"progress,omitempty"`
}

// Listener service

type VoteRequest struct {
	Name    string `json:"name"`
	TrackID string `json:"trackId"`
}

type VoteResponse struct {
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message"`
	Count    int    `json:"count,omitempty"`
	Track    *Track `json:"track,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Tracks []Track `json:"tracks"`
}

type GetStateRequest struct{}

type GetStateResponse struct {
	State State `json:"state"`
}

type SubscribeRequest struct{}

// Admin service

type Settings struct {
	VotePolicy         string   `json:"votePolicy"`
	VoteTTLSeconds     int      `json:"voteTtlSeconds"`
	MinVotesToOverride int      `json:"minVotesToOverride"`
	MaxDurationMs      int64    `json:"maxDurationMs"`
	BannedArtists      []string `json:"bannedArtists"`
	BannedTracks       []string `json:"bannedTracks"`
	BannedUsers        []string `json:"bannedUsers"`
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	EngineState   string     `json:"engineState"`
	Round         uint64     `json:"round"`
	Halted        bool       `json:"halted"`
	LastError     string     `json:"lastError,omitempty"`
	WatchDeadline *time.Time `json:"watchDeadline,omitempty"`
	Authorized    bool       `json:"authorized"`
	ListenerCount int        `json:"listenerCount"`
	Subscribers   int        `json:"subscribers"`
	State         State      `json:"state"`
	Settings      Settings   `json:"settings"`
}

type PauseRequest struct{}

type PauseResponse struct{}

type ResumeRequest struct{}

type ResumeResponse struct{}

type SkipRequest struct{}

type SkipResponse struct {
	Via     string `json:"via"`
	TrackID string `json:"trackId,omitempty"`
}

type PlayTrackRequest struct {
	TrackID string `json:"trackId"`
}

type PlayTrackResponse struct {
	TrackID string `json:"trackId"`
}

type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Active     bool   `json:"active"`
	Restricted bool   `json:"restricted,omitempty"`
	Volume     int    `json:"volume"`
}

type ListDevicesRequest struct{}

type ListDevicesResponse struct {
	Devices []Device `json:"devices"`
}

type SelectDeviceRequest struct {
	DeviceID string `json:"deviceId"`
}

type SelectDeviceResponse struct{}

type GetSettingsRequest struct{}

type GetSettingsResponse struct {
	Settings Settings `json:"settings"`
}

// UpdateSettingsRequest carries settings fields keyed by their file names
// (vote_policy, banned_artists, ...). List values may be arrays or strings
// separated by newlines, commas or semicolons.
type UpdateSettingsRequest struct {
	Values map[string]any `json:"values"`
}

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type UpdateSettingsResponse struct {
	Settings Settings     `json:"settings"`
	Invalid  []FieldError `json:"invalid,omitempty"`
	Purged   []string     `json:"purged,omitempty"`
}

type ClearVotesRequest struct {
	TrackID string `json:"trackId"`
}

type ClearVotesResponse struct {
	Cleared bool `json:"cleared"`
}

type Listener struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	JoinedAt   time.Time `json:"joinedAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	TotalVotes int       `json:"totalVotes"`
}

type ListListenersRequest struct{}

type ListListenersResponse struct {
	Listeners []Listener `json:"listeners"`
}
