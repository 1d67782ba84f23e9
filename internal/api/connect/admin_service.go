package connect

import (
	"context"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"

	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
	"github.com/osa030/crowdbox/internal/api/crowdboxv1/crowdboxv1connect"
	"github.com/osa030/crowdbox/internal/app/session"
	"github.com/osa030/crowdbox/internal/infra/config"
)

// AdminService implements the AdminService RPC.
type AdminService struct {
	session *session.Manager
	config  *config.Config
}

// NewAdminService creates a new AdminService.
func NewAdminService(session *session.Manager, cfg *config.Config) *AdminService {
	return &AdminService{
		session: session,
		config:  cfg,
	}
}

// Ensure AdminService implements the interface.
var _ crowdboxv1connect.AdminServiceHandler = (*AdminService)(nil)

// GetStatus returns the engine status.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[crowdboxv1.GetStatusRequest],
) (*connect.Response[crowdboxv1.GetStatusResponse], error) {
	st := s.session.Status()

	resp := &crowdboxv1.GetStatusResponse{
		EngineState:   st.State.String(),
		Round:         st.Round,
		Halted:        st.Halted,
		Authorized:    st.Authorized,
		ListenerCount: st.Listeners,
		Subscribers:   st.Subscribers,
		State:         crowdboxv1.FromSnapshot(st.Snapshot),
		Settings:      crowdboxv1.FromSettings(st.Settings),
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	if !st.WatchDeadline.IsZero() {
		deadline := st.WatchDeadline
		resp.WatchDeadline = &deadline
	}
	return connect.NewResponse(resp), nil
}

// Pause pauses playback.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[crowdboxv1.PauseRequest],
) (*connect.Response[crowdboxv1.PauseResponse], error) {
	if err := s.session.Pause(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.PauseResponse{}), nil
}

// Resume resumes playback.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[crowdboxv1.ResumeRequest],
) (*connect.Response[crowdboxv1.ResumeResponse], error) {
	if err := s.session.Resume(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.ResumeResponse{}), nil
}

// Skip ends the current track and runs the next-track decision.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[crowdboxv1.SkipRequest],
) (*connect.Response[crowdboxv1.SkipResponse], error) {
	res, err := s.session.Skip(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.SkipResponse{
		Via:     string(res.Via),
		TrackID: res.TrackID,
	}), nil
}

// PlayTrack starts a track immediately.
func (s *AdminService) PlayTrack(
	ctx context.Context,
	req *connect.Request[crowdboxv1.PlayTrackRequest],
) (*connect.Response[crowdboxv1.PlayTrackResponse], error) {
	res, err := s.session.PlayTrack(ctx, req.Msg.TrackID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.PlayTrackResponse{TrackID: res.TrackID}), nil
}

// ListDevices lists the provider's output devices.
func (s *AdminService) ListDevices(
	ctx context.Context,
	req *connect.Request[crowdboxv1.ListDevicesRequest],
) (*connect.Response[crowdboxv1.ListDevicesResponse], error) {
	devices, err := s.session.Devices(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	resp := &crowdboxv1.ListDevicesResponse{Devices: make([]crowdboxv1.Device, 0, len(devices))}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, crowdboxv1.FromDevice(d))
	}
	return connect.NewResponse(resp), nil
}

// SelectDevice sets the output device.
func (s *AdminService) SelectDevice(
	ctx context.Context,
	req *connect.Request[crowdboxv1.SelectDeviceRequest],
) (*connect.Response[crowdboxv1.SelectDeviceResponse], error) {
	if err := s.session.SelectDevice(ctx, req.Msg.DeviceID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.SelectDeviceResponse{}), nil
}

// GetSettings returns the active settings.
func (s *AdminService) GetSettings(
	ctx context.Context,
	req *connect.Request[crowdboxv1.GetSettingsRequest],
) (*connect.Response[crowdboxv1.GetSettingsResponse], error) {
	return connect.NewResponse(&crowdboxv1.GetSettingsResponse{
		Settings: crowdboxv1.FromSettings(s.session.Settings()),
	}), nil
}

// UpdateSettings applies the valid fields and reports the rest.
func (s *AdminService) UpdateSettings(
	ctx context.Context,
	req *connect.Request[crowdboxv1.UpdateSettingsRequest],
) (*connect.Response[crowdboxv1.UpdateSettingsResponse], error) {
	res, err := s.session.UpdateSettingsMap(req.Msg.Values)
	if err != nil {
		return nil, toConnectError(err)
	}
	if len(res.Invalid) > 0 {
		zlog.Warn().Msgf("settings update had invalid fields: %v", res.Invalid)
	}
	return connect.NewResponse(&crowdboxv1.UpdateSettingsResponse{
		Settings: crowdboxv1.FromSettings(res.Settings),
		Invalid:  crowdboxv1.FromFieldErrors(res.Invalid),
		Purged:   res.Purged,
	}), nil
}

// ClearVotes removes one track's votes.
func (s *AdminService) ClearVotes(
	ctx context.Context,
	req *connect.Request[crowdboxv1.ClearVotesRequest],
) (*connect.Response[crowdboxv1.ClearVotesResponse], error) {
	cleared, err := s.session.ClearVotes(req.Msg.TrackID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&crowdboxv1.ClearVotesResponse{Cleared: cleared}), nil
}

// ListListeners lists every voter seen, most recent first.
func (s *AdminService) ListListeners(
	ctx context.Context,
	req *connect.Request[crowdboxv1.ListListenersRequest],
) (*connect.Response[crowdboxv1.ListListenersResponse], error) {
	listeners := s.session.Listeners()
	resp := &crowdboxv1.ListListenersResponse{Listeners: make([]crowdboxv1.Listener, 0, len(listeners))}
	for _, l := range listeners {
		resp.Listeners = append(resp.Listeners, crowdboxv1.FromListener(l))
	}
	return connect.NewResponse(resp), nil
}
