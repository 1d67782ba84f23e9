// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/crowdbox/internal/api/connect"
	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
	"github.com/osa030/crowdbox/internal/api/crowdboxv1/crowdboxv1connect"
)

var (
	app    = kingpin.New("crowdbox-admincli", "crowdbox jukebox admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	statusCmd = app.Command("status", "Get engine status")
	pauseCmd  = app.Command("pause", "Pause playback")
	resumeCmd = app.Command("resume", "Resume playback (re-arms after a halt)")
	skipCmd   = app.Command("skip", "Skip the current track")

	playCmd   = app.Command("play", "Play a track now")
	playTrack = playCmd.Arg("track-id", "Spotify track ID, URI or URL").Required().String()

	devicesCmd = app.Command("devices", "List output devices")

	deviceCmd = app.Command("device", "Select the output device")
	deviceID  = deviceCmd.Arg("device-id", "Device ID").Required().String()

	settingsCmd    = app.Command("settings", "Show or change runtime settings")
	settingsShow   = settingsCmd.Command("show", "Show settings").Default()
	settingsSet    = settingsCmd.Command("set", "Change settings")
	settingsValues = settingsSet.Arg("values", "key=value pairs, e.g. vote_policy=ttl banned_artists='A,B'").Required().StringMap()

	clearCmd   = app.Command("clear", "Clear votes for a track")
	clearTrack = clearCmd.Arg("track-id", "Track ID").Required().String()

	listCmd = app.Command("list-listeners", "List all listeners").Alias("list")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := crowdboxv1connect.NewAdminServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewAdminTokenClientInterceptor(*token)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case pauseCmd.FullCommand():
		_, err = client.Pause(ctx, connect.NewRequest(&crowdboxv1.PauseRequest{}))
		done(err, "Playback paused")
	case resumeCmd.FullCommand():
		_, err = client.Resume(ctx, connect.NewRequest(&crowdboxv1.ResumeRequest{}))
		done(err, "Playback resumed")
	case skipCmd.FullCommand():
		err = skip(ctx, client)
	case playCmd.FullCommand():
		err = play(ctx, client, *playTrack)
	case devicesCmd.FullCommand():
		err = listDevices(ctx, client)
	case deviceCmd.FullCommand():
		_, err = client.SelectDevice(ctx, connect.NewRequest(&crowdboxv1.SelectDeviceRequest{DeviceID: *deviceID}))
		done(err, "Device selected")
	case settingsShow.FullCommand():
		err = showSettings(ctx, client)
	case settingsSet.FullCommand():
		err = updateSettings(ctx, client, *settingsValues)
	case clearCmd.FullCommand():
		err = clearVotes(ctx, client, *clearTrack)
	case listCmd.FullCommand():
		err = listListeners(ctx, client)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func done(err error, msg string) {
	if err == nil {
		fmt.Println(msg)
	}
}

func status(ctx context.Context, client *crowdboxv1connect.AdminServiceClient) error {
	resp, err := client.GetStatus(ctx, connect.NewRequest(&crowdboxv1.GetStatusRequest{}))
	if err != nil {
		return err
	}

	s := resp.Msg
	fmt.Println("\n=== CURRENT STATUS ===")
	fmt.Printf("Engine: %s (round %d)\n", s.EngineState, s.Round)
	fmt.Printf("Spotify authorized: %v\n", s.Authorized)
	if s.Halted {
		fmt.Printf("HALTED: %s (run 'resume' to re-arm)\n", s.LastError)
	}
	if s.WatchDeadline != nil {
		fmt.Printf("Next decision at: %s\n", s.WatchDeadline.Local().Format(time.TimeOnly))
	}
	fmt.Printf("Listeners: %d, viewers: %d\n", s.ListenerCount, s.Subscribers)
	fmt.Printf("Vote policy: %s (min votes %d)\n", s.Settings.VotePolicy, s.Settings.MinVotesToOverride)
	if s.State.DeviceID != "" {
		fmt.Printf("Device: %s\n", s.State.DeviceID)
	}

	if t := s.State.PlayingTrack; t != nil {
		p := s.State.Progress
		fmt.Printf("\nCurrently Playing:\n")
		fmt.Printf("  %s - %s [%s]\n", t.Artist, t.Name, t.ID)
		fmt.Printf("  %s / %s (playing: %v)\n", formatMs(p.ProgressMs), formatMs(p.DurationMs), p.IsPlaying)
	} else {
		fmt.Println("\nNo track currently playing")
	}

	printVotes(s.State.Votes)
	fmt.Println()
	return nil
}

func printVotes(votes []crowdboxv1.VoteEntry) {
	if len(votes) == 0 {
		fmt.Println("\nNo votes")
		return
	}
	fmt.Printf("\nVotes (%d):\n", len(votes))
	for i, v := range votes {
		fmt.Printf("  %2d. %3d  %s - %s [%s]\n", i+1, v.Count, v.Track.Artist, v.Track.Name, v.TrackID)
	}
}

func skip(ctx context.Context, client *crowdboxv1connect.AdminServiceClient) error {
	resp, err := client.Skip(ctx, connect.NewRequest(&crowdboxv1.SkipRequest{}))
	if err != nil {
		return err
	}
	if resp.Msg.TrackID == "" {
		fmt.Printf("Track skipped (next chosen by %s, nothing playing)\n", resp.Msg.Via)
		return nil
	}
	fmt.Printf("Track skipped, now playing %s (chosen by %s)\n", resp.Msg.TrackID, resp.Msg.Via)
	return nil
}

func play(ctx context.Context, client *crowdboxv1connect.AdminServiceClient, trackID string) error {
	resp, err := client.PlayTrack(ctx, connect.NewRequest(&crowdboxv1.PlayTrackRequest{TrackID: trackID}))
	if err != nil {
		return err
	}
	fmt.Printf("Now playing %s\n", resp.Msg.TrackID)
	return nil
}

func listDevices(ctx context.Context, client *crowdboxv1connect.AdminServiceClient) error {
	resp, err := client.ListDevices(ctx, connect.NewRequest(&crowdboxv1.ListDevicesRequest{}))
	if err != nil {
		return err
	}
	fmt.Printf("Devices (%d):\n", len(resp.Msg.Devices))
	for _, d := range resp.Msg.Devices {
		active := " "
		if d.Active {
			active = "*"
		}
		fmt.Printf("  %s %s: %s (%s, volume %d%%)\n", active, d.ID, d.Name, d.Type, d.Volume)
	}
	return nil
}

func showSettings(ctx context.Context, client *crowdboxv1connect.AdminServiceClient) error {
	resp, err := client.GetSettings(ctx, connect.NewRequest(&crowdboxv1.GetSettingsRequest{}))
	if err != nil {
		return err
	}
	printSettings(resp.Msg.Settings)
	return nil
}

func printSettings(s crowdboxv1.Settings) {
	fmt.Printf("vote_policy:           %s\n", s.VotePolicy)
	fmt.Printf("vote_ttl_seconds:      %d\n", s.VoteTTLSeconds)
	fmt.Printf("min_votes_to_override: %d\n", s.MinVotesToOverride)
	fmt.Printf("max_duration_ms:       %d\n", s.MaxDurationMs)
	fmt.Printf("banned_artists:        %s\n", strings.Join(s.BannedArtists, ", "))
	fmt.Printf("banned_tracks:         %s\n", strings.Join(s.BannedTracks, ", "))
	fmt.Printf("banned_users:          %s\n", strings.Join(s.BannedUsers, ", "))
}

func updateSettings(ctx context.Context, client *crowdboxv1connect.AdminServiceClient, values map[string]string) error {
	req := &crowdboxv1.UpdateSettingsRequest{Values: make(map[string]any, len(values))}
	for k, v := range values {
		req.Values[k] = v
	}
	resp, err := client.UpdateSettings(ctx, connect.NewRequest(req))
	if err != nil {
		return err
	}

	for _, fe := range resp.Msg.Invalid {
		fmt.Printf("Ignored %s: %s\n", fe.Field, fe.Reason)
	}
	if len(resp.Msg.Purged) > 0 {
		purged := append([]string(nil), resp.Msg.Purged...)
		sort.Strings(purged)
		fmt.Printf("Votes removed for newly banned tracks: %s\n", strings.Join(purged, ", "))
	}
	printSettings(resp.Msg.Settings)
	return nil
}

func clearVotes(ctx context.Context, client *crowdboxv1connect.AdminServiceClient, trackID string) error {
	resp, err := client.ClearVotes(ctx, connect.NewRequest(&crowdboxv1.ClearVotesRequest{TrackID: trackID}))
	if err != nil {
		return err
	}
	if resp.Msg.Cleared {
		fmt.Println("Votes cleared")
	} else {
		fmt.Println("Track had no votes")
	}
	return nil
}

func listListeners(ctx context.Context, client *crowdboxv1connect.AdminServiceClient) error {
	resp, err := client.ListListeners(ctx, connect.NewRequest(&crowdboxv1.ListListenersRequest{}))
	if err != nil {
		return err
	}

	fmt.Printf("Listeners (%d):\n", len(resp.Msg.Listeners))
	for _, l := range resp.Msg.Listeners {
		fmt.Printf("  %s: %s @ %s (votes: %d, last seen: %s)\n",
			l.ID, l.Name, l.Address, l.TotalVotes, l.LastSeenAt.Local().Format(time.DateTime))
	}
	return nil
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
