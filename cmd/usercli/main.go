// Package main provides the user CLI entry point for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
	"github.com/osa030/crowdbox/internal/api/crowdboxv1/crowdboxv1connect"
	"github.com/osa030/crowdbox/internal/infra/spotify"
)

var (
	app    = kingpin.New("crowdbox-usercli", "crowdbox jukebox user client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	name   = app.Flag("name", "Display name").Short('n').Envar("CROWDBOX_NAME").String()

	voteCmd   = app.Command("vote", "Vote for a track")
	voteTrack = voteCmd.Arg("track-id", "Spotify track ID, URI or URL").Required().String()

	searchCmd   = app.Command("search", "Search tracks")
	searchQuery = searchCmd.Arg("query", "Search query").Required().String()

	stateCmd = app.Command("state", "Show the leaderboard and the playing track")

	subscribeCmd = app.Command("subscribe", "Subscribe to notifications")
	showProgress = subscribeCmd.Flag("progress", "Print progress ticks").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := crowdboxv1connect.NewListenerServiceClient(
		http.DefaultClient,
		*server,
	)

	ctx := context.Background()

	var err error
	switch command {
	case voteCmd.FullCommand():
		err = vote(ctx, client, *name, *voteTrack)
	case searchCmd.FullCommand():
		err = search(ctx, client, *searchQuery)
	case stateCmd.FullCommand():
		err = state(ctx, client)
	case subscribeCmd.FullCommand():
		err = subscribe(ctx, client, *showProgress)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func vote(ctx context.Context, client *crowdboxv1connect.ListenerServiceClient, name, trackID string) error {
	resp, err := client.Vote(ctx, connect.NewRequest(&crowdboxv1.VoteRequest{
		Name:    name,
		TrackID: trackID,
	}))
	if err != nil {
		return err
	}

	if resp.Msg.Accepted {
		fmt.Printf("Success: %s (%d votes)\n", resp.Msg.Message, resp.Msg.Count)
	} else {
		fmt.Printf("Rejected [%s]: %s\n", resp.Msg.Code, resp.Msg.Message)
	}
	return nil
}

func search(ctx context.Context, client *crowdboxv1connect.ListenerServiceClient, query string) error {
	resp, err := client.Search(ctx, connect.NewRequest(&crowdboxv1.SearchRequest{Query: query}))
	if err != nil {
		return err
	}
	fmt.Printf("Results (%d):\n", len(resp.Msg.Tracks))
	for _, t := range resp.Msg.Tracks {
		fmt.Printf("  %s  %s - %s (%s)\n", t.ID, t.Artist, t.Name, formatMs(t.DurationMs))
		fmt.Printf("      %s\n", spotify.TrackURL(t.ID))
	}
	return nil
}

func state(ctx context.Context, client *crowdboxv1connect.ListenerServiceClient) error {
	resp, err := client.GetState(ctx, connect.NewRequest(&crowdboxv1.GetStateRequest{}))
	if err != nil {
		return err
	}
	printState(&resp.Msg.State)
	return nil
}

func subscribe(ctx context.Context, client *crowdboxv1connect.ListenerServiceClient, progress bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.Subscribe(ctx, connect.NewRequest(&crowdboxv1.SubscribeRequest{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	for stream.Receive() {
		printNotification(stream.Msg(), progress)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		if connect.CodeOf(err) == connect.CodeResourceExhausted {
			fmt.Println("Dropped for falling behind; subscribe again for a fresh snapshot")
		}
		return err
	}
	fmt.Println("\nUnsubscribed")
	return nil
}

func printNotification(n *crowdboxv1.Notification, progress bool) {
	switch n.Type {
	case crowdboxv1.NotificationTypeState:
		fmt.Printf("\n[Sequence: %d] === STATE ===\n", n.SequenceNo)
		if n.State != nil {
			printState(n.State)
		}
	case crowdboxv1.NotificationTypeProgress:
		if progress && n.Progress != nil {
			fmt.Printf("[Sequence: %d] %s / %s\n", n.SequenceNo, formatMs(n.Progress.ProgressMs), formatMs(n.Progress.DurationMs))
		}
	default:
		fmt.Printf("\n[Sequence: %d] === UNKNOWN EVENT (%s) ===\n", n.SequenceNo, n.Type)
	}
}

func printState(s *crowdboxv1.State) {
	if t := s.PlayingTrack; t != nil {
		fmt.Printf("Now playing: %s - %s [%s / %s]\n", t.Artist, t.Name,
			formatMs(s.Progress.ProgressMs), formatMs(s.Progress.DurationMs))
		if t.AlbumArtURL != "" {
			fmt.Printf("  Album Art URL: %s\n", t.AlbumArtURL)
		}
	} else {
		fmt.Println("Nothing playing")
	}
	if len(s.Votes) == 0 {
		fmt.Println("No votes yet")
		return
	}
	fmt.Println("Votes:")
	for i, v := range s.Votes {
		fmt.Printf("  %2d. %3d  %s - %s [%s]\n", i+1, v.Count, v.Track.Artist, v.Track.Name, v.TrackID)
	}
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
