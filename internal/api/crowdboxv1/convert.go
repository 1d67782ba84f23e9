package crowdboxv1

import (
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/settings"
	"github.com/osa030/crowdbox/internal/domain/listener"
	"github.com/osa030/crowdbox/internal/domain/player"
	"github.com/osa030/crowdbox/internal/domain/snapshot"
	"github.com/osa030/crowdbox/internal/domain/track"
)

// FromTrack converts a domain track.
func FromTrack(t track.Track) Track {
	return Track{
		ID:          t.ID,
		URI:         t.URI,
		Name:        t.Name,
		Artists:     t.Artists,
		Artist:      t.ArtistLine(),
		Album:       t.Album,
		AlbumArtURL: t.AlbumArtURL,
		DurationMs:  t.DurationMs(),
	}
}

// FromTracks converts a track list. The result is never nil.
func FromTracks(tracks []track.Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, FromTrack(t))
	}
	return out
}

// FromProgress converts a progress record.
func FromProgress(p snapshot.Progress) Progress {
	return Progress{
		TrackID:    p.TrackID,
		ProgressMs: p.Progress.Milliseconds(),
		DurationMs: p.Duration.Milliseconds(),
		IsPlaying:  p.IsPlaying,
	}
}

// FromSnapshot converts a full snapshot.
func FromSnapshot(s snapshot.Snapshot) State {
	st := State{
		Votes:    make([]VoteEntry, 0, len(s.Votes)),
		DeviceID: s.DeviceID,
		Progress: FromProgress(s.Progress),
	}
	for _, e := range s.Votes {
		st.Votes = append(st.Votes, VoteEntry{TrackID: e.TrackID, Count: e.Count, Track: FromTrack(e.Track)})
	}
	if s.PlayingTrack != nil {
		t := FromTrack(*s.PlayingTrack)
		st.PlayingTrack = &t
	}
	return st
}

// FromNotification converts a broadcast message.
func FromNotification(n notification.Notification) *Notification {
	out := &Notification{SequenceNo: n.SequenceNo}
	switch n.Kind {
	case notification.KindProgress:
		out.Type = NotificationTypeProgress
		if n.Progress != nil {
			p := FromProgress(*n.Progress)
			out.Progress = &p
		}
	default:
		out.Type = NotificationTypeState
		if n.State != nil {
			s := FromSnapshot(*n.State)
			out.State = &s
		}
	}
	return out
}

// FromSettings converts runtime settings.
func FromSettings(s settings.Settings) Settings {
	return Settings{
		VotePolicy:         s.VotePolicy,
		VoteTTLSeconds:     s.VoteTTLSeconds,
		MinVotesToOverride: s.MinVotesToOverride,
		MaxDurationMs:      s.MaxDurationMs,
		BannedArtists:      nonNil(s.BannedArtists),
		BannedTracks:       nonNil(s.BannedTracks),
		BannedUsers:        nonNil(s.BannedUsers),
	}
}

// FromFieldErrors converts rejected settings fields.
func FromFieldErrors(errs []settings.FieldError) []FieldError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, FieldError{Field: e.Field, Reason: e.Reason})
	}
	return out
}

// FromDevice converts an output device.
func FromDevice(d player.Device) Device {
	return Device{
		ID:         d.ID,
		Name:       d.Name,
		Type:       d.Type,
		Active:     d.Active,
		Restricted: d.Restricted,
		Volume:     d.Volume,
	}
}

// FromListener converts a listener session.
func FromListener(s listener.Session) Listener {
	return Listener{
		ID:         s.ID,
		Name:       s.Identity.Name,
		Address:    s.Identity.Address,
		JoinedAt:   s.JoinedAt,
		LastSeenAt: s.LastSeenAt,
		TotalVotes: s.TotalVotes,
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
