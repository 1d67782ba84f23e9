package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
	"github.com/osa030/crowdbox/internal/api/crowdboxv1/crowdboxv1connect"
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/playback"
	"github.com/osa030/crowdbox/internal/app/session"
	"github.com/osa030/crowdbox/internal/infra/config"
)

// ListenerService implements the ListenerService RPC.
type ListenerService struct {
	session *session.Manager
	config  *config.Config
}

// NewListenerService creates a new ListenerService.
func NewListenerService(session *session.Manager, cfg *config.Config) *ListenerService {
	return &ListenerService{
		session: session,
		config:  cfg,
	}
}

// Ensure ListenerService implements the interface.
var _ crowdboxv1connect.ListenerServiceHandler = (*ListenerService)(nil)

// Vote handles vote submissions. Policy rejections are successful responses
// carrying a code and a display message.
func (s *ListenerService) Vote(
	ctx context.Context,
	req *connect.Request[crowdboxv1.VoteRequest],
) (*connect.Response[crowdboxv1.VoteResponse], error) {
	addr := clientAddress(req.Header(), req.Peer().Addr, s.config.Identity.TrustsForwardedFor())

	res, err := s.session.Vote(ctx, session.VoteRequest{
		Name:    req.Msg.Name,
		Address: addr,
		TrackID: req.Msg.TrackID,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &crowdboxv1.VoteResponse{
		Accepted: res.Accepted,
		Code:     res.Code,
		Reason:   res.Reason,
		Count:    res.Count,
		Message:  s.message(res.VoteResult),
	}
	if res.Track != nil {
		t := crowdboxv1.FromTrack(*res.Track)
		resp.Track = &t
	}
	return connect.NewResponse(resp), nil
}

func (s *ListenerService) message(res playback.VoteResult) string {
	switch {
	case res.Accepted:
		return s.config.GetMessage("success")
	case res.Code == playback.CodeBanned:
		// Filter codes carry their own messages
		return s.config.GetMessage(res.Reason)
	default:
		return s.config.GetMessage(res.Code)
	}
}

// Search returns provider search results with banned tracks removed.
func (s *ListenerService) Search(
	ctx context.Context,
	req *connect.Request[crowdboxv1.SearchRequest],
) (*connect.Response[crowdboxv1.SearchResponse], error) {
	tracks, err := s.session.Search(ctx, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.SearchResponse{
		Tracks: crowdboxv1.FromTracks(tracks),
	}), nil
}

// GetState returns the current snapshot.
func (s *ListenerService) GetState(
	ctx context.Context,
	req *connect.Request[crowdboxv1.GetStateRequest],
) (*connect.Response[crowdboxv1.GetStateResponse], error) {
	return connect.NewResponse(&crowdboxv1.GetStateResponse{
		State: crowdboxv1.FromSnapshot(s.session.Snapshot()),
	}), nil
}

// Subscribe streams notifications: the current snapshot first, then every
// state and progress broadcast. An evicted subscriber gets ResourceExhausted
// and should resubscribe.
func (s *ListenerService) Subscribe(
	ctx context.Context,
	req *connect.Request[crowdboxv1.SubscribeRequest],
	stream *connect.ServerStream[crowdboxv1.Notification],
) error {
	sub := s.session.Subscribe()
	zlog.Debug().Msgf("subscriber joined: id=%s peer=%s", sub.ID, req.Peer().Addr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.session.Done():
			cancel()
		}
	}()

	err := s.session.Forward(ctx, sub, func(n notification.Notification) error {
		return stream.Send(crowdboxv1.FromNotification(n))
	})
	zlog.Debug().Msgf("subscriber left: id=%s err=%v", sub.ID, err)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, notification.ErrEvicted):
		return connect.NewError(connect.CodeResourceExhausted, err)
	default:
		return err
	}
}
