package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/crowdbox/internal/app/playback"
	"github.com/osa030/crowdbox/internal/app/session"
	"github.com/osa030/crowdbox/internal/domain/player"
)

// toConnectError maps engine and provider failures to Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	switch {
	case errors.Is(err, session.ErrInvalidInput):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case player.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	case player.IsUnauthorized(err):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case player.IsTransient(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, playback.ErrNoTrack):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, playback.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		zlog.Error().Msgf("unexpected error: %+v", err)
		return connect.NewError(connect.CodeInternal, err)
	}
}
