package crowdboxv1connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
)

const (
	// AdminServiceName is the fully-qualified name of the AdminService.
	AdminServiceName = "crowdbox.v1.AdminService"
)

const (
	AdminServiceGetStatusProcedure      = "/crowdbox.v1.AdminService/GetStatus"
	AdminServicePauseProcedure          = "/crowdbox.v1.AdminService/Pause"
	AdminServiceResumeProcedure         = "/crowdbox.v1.AdminService/Resume"
	AdminServiceSkipProcedure           = "/crowdbox.v1.AdminService/Skip"
	AdminServicePlayTrackProcedure      = "/crowdbox.v1.AdminService/PlayTrack"
	AdminServiceListDevicesProcedure    = "/crowdbox.v1.AdminService/ListDevices"
	AdminServiceSelectDeviceProcedure   = "/crowdbox.v1.AdminService/SelectDevice"
	AdminServiceGetSettingsProcedure    = "/crowdbox.v1.AdminService/GetSettings"
	AdminServiceUpdateSettingsProcedure = "/crowdbox.v1.AdminService/UpdateSettings"
	AdminServiceClearVotesProcedure     = "/crowdbox.v1.AdminService/ClearVotes"
	AdminServiceListListenersProcedure  = "/crowdbox.v1.AdminService/ListListeners"
)

// AdminServiceHandler is implemented by the owner-facing service.
type AdminServiceHandler interface {
	GetStatus(context.Context, *connect.Request[crowdboxv1.GetStatusRequest]) (*connect.Response[crowdboxv1.GetStatusResponse], error)
	Pause(context.Context, *connect.Request[crowdboxv1.PauseRequest]) (*connect.Response[crowdboxv1.PauseResponse], error)
	Resume(context.Context, *connect.Request[crowdboxv1.ResumeRequest]) (*connect.Response[crowdboxv1.ResumeResponse], error)
	Skip(context.Context, *connect.Request[crowdboxv1.SkipRequest]) (*connect.Response[crowdboxv1.SkipResponse], error)
	PlayTrack(context.Context, *connect.Request[crowdboxv1.PlayTrackRequest]) (*connect.Response[crowdboxv1.PlayTrackResponse], error)
	ListDevices(context.Context, *connect.Request[crowdboxv1.ListDevicesRequest]) (*connect.Response[crowdboxv1.ListDevicesResponse], error)
	SelectDevice(context.Context, *connect.Request[crowdboxv1.SelectDeviceRequest]) (*connect.Response[crowdboxv1.SelectDeviceResponse], error)
	GetSettings(context.Context, *connect.Request[crowdboxv1.GetSettingsRequest]) (*connect.Response[crowdboxv1.GetSettingsResponse], error)
	UpdateSettings(context.Context, *connect.Request[crowdboxv1.UpdateSettingsRequest]) (*connect.Response[crowdboxv1.UpdateSettingsResponse], error)
	ClearVotes(context.Context, *connect.Request[crowdboxv1.ClearVotesRequest]) (*connect.Response[crowdboxv1.ClearVotesResponse], error)
	ListListeners(context.Context, *connect.Request[crowdboxv1.ListListenersRequest]) (*connect.Response[crowdboxv1.ListListenersResponse], error)
}

// NewAdminServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{crowdboxv1.WithCodec()}, opts...)

	handlers := map[string]http.Handler{
		AdminServiceGetStatusProcedure:      connect.NewUnaryHandler(AdminServiceGetStatusProcedure, svc.GetStatus, opts...),
		AdminServicePauseProcedure:          connect.NewUnaryHandler(AdminServicePauseProcedure, svc.Pause, opts...),
		AdminServiceResumeProcedure:         connect.NewUnaryHandler(AdminServiceResumeProcedure, svc.Resume, opts...),
		AdminServiceSkipProcedure:           connect.NewUnaryHandler(AdminServiceSkipProcedure, svc.Skip, opts...),
		AdminServicePlayTrackProcedure:      connect.NewUnaryHandler(AdminServicePlayTrackProcedure, svc.PlayTrack, opts...),
		AdminServiceListDevicesProcedure:    connect.NewUnaryHandler(AdminServiceListDevicesProcedure, svc.ListDevices, opts...),
		AdminServiceSelectDeviceProcedure:   connect.NewUnaryHandler(AdminServiceSelectDeviceProcedure, svc.SelectDevice, opts...),
		AdminServiceGetSettingsProcedure:    connect.NewUnaryHandler(AdminServiceGetSettingsProcedure, svc.GetSettings, opts...),
		AdminServiceUpdateSettingsProcedure: connect.NewUnaryHandler(AdminServiceUpdateSettingsProcedure, svc.UpdateSettings, opts...),
		AdminServiceClearVotesProcedure:     connect.NewUnaryHandler(AdminServiceClearVotesProcedure, svc.ClearVotes, opts...),
		AdminServiceListListenersProcedure:  connect.NewUnaryHandler(AdminServiceListListenersProcedure, svc.ListListeners, opts...),
	}
	return "/" + AdminServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// AdminServiceClient is a client for the AdminService.
type AdminServiceClient struct {
	getStatus      *connect.Client[crowdboxv1.GetStatusRequest, crowdboxv1.GetStatusResponse]
	pause          *connect.Client[crowdboxv1.PauseRequest, crowdboxv1.PauseResponse]
	resume         *connect.Client[crowdboxv1.ResumeRequest, crowdboxv1.ResumeResponse]
	skip           *connect.Client[crowdboxv1.SkipRequest, crowdboxv1.SkipResponse]
	playTrack      *connect.Client[crowdboxv1.PlayTrackRequest, crowdboxv1.PlayTrackResponse]
	listDevices    *connect.Client[crowdboxv1.ListDevicesRequest, crowdboxv1.ListDevicesResponse]
	selectDevice   *connect.Client[crowdboxv1.SelectDeviceRequest, crowdboxv1.SelectDeviceResponse]
	getSettings    *connect.Client[crowdboxv1.GetSettingsRequest, crowdboxv1.GetSettingsResponse]
	updateSettings *connect.Client[crowdboxv1.UpdateSettingsRequest, crowdboxv1.UpdateSettingsResponse]
	clearVotes     *connect.Client[crowdboxv1.ClearVotesRequest, crowdboxv1.ClearVotesResponse]
	listListeners  *connect.Client[crowdboxv1.ListListenersRequest, crowdboxv1.ListListenersResponse]
}

// NewAdminServiceClient constructs a client. Calls need the admin token
// header; see connect.WithInterceptors.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	opts = append([]connect.ClientOption{crowdboxv1.WithCodec()}, opts...)
	return &AdminServiceClient{
		getStatus:      connect.NewClient[crowdboxv1.GetStatusRequest, crowdboxv1.GetStatusResponse](httpClient, baseURL+AdminServiceGetStatusProcedure, opts...),
		pause:          connect.NewClient[crowdboxv1.PauseRequest, crowdboxv1.PauseResponse](httpClient, baseURL+AdminServicePauseProcedure, opts...),
		resume:         connect.NewClient[crowdboxv1.ResumeRequest, crowdboxv1.ResumeResponse](httpClient, baseURL+AdminServiceResumeProcedure, opts...),
		skip:           connect.NewClient[crowdboxv1.SkipRequest, crowdboxv1.SkipResponse](httpClient, baseURL+AdminServiceSkipProcedure, opts...),
		playTrack:      connect.NewClient[crowdboxv1.PlayTrackRequest, crowdboxv1.PlayTrackResponse](httpClient, baseURL+AdminServicePlayTrackProcedure, opts...),
		listDevices:    connect.NewClient[crowdboxv1.ListDevicesRequest, crowdboxv1.ListDevicesResponse](httpClient, baseURL+AdminServiceListDevicesProcedure, opts...),
		selectDevice:   connect.NewClient[crowdboxv1.SelectDeviceRequest, crowdboxv1.SelectDeviceResponse](httpClient, baseURL+AdminServiceSelectDeviceProcedure, opts...),
		getSettings:    connect.NewClient[crowdboxv1.GetSettingsRequest, crowdboxv1.GetSettingsResponse](httpClient, baseURL+AdminServiceGetSettingsProcedure, opts...),
		updateSettings: connect.NewClient[crowdboxv1.UpdateSettingsRequest, crowdboxv1.UpdateSettingsResponse](httpClient, baseURL+AdminServiceUpdateSettingsProcedure, opts...),
		clearVotes:     connect.NewClient[crowdboxv1.ClearVotesRequest, crowdboxv1.ClearVotesResponse](httpClient, baseURL+AdminServiceClearVotesProcedure, opts...),
		listListeners:  connect.NewClient[crowdboxv1.ListListenersRequest, crowdboxv1.ListListenersResponse](httpClient, baseURL+AdminServiceListListenersProcedure, opts...),
	}
}

// GetStatus calls crowdbox.v1.AdminService.GetStatus.
func (c *AdminServiceClient) GetStatus(ctx context.Context, req *connect.Request[crowdboxv1.GetStatusRequest]) (*connect.Response[crowdboxv1.GetStatusResponse], error) {
	return c.getStatus.CallUnary(ctx, req)
}

// Pause calls crowdbox.v1.AdminService.Pause.
func (c *AdminServiceClient) Pause(ctx context.Context, req *connect.Request[crowdboxv1.PauseRequest]) (*connect.Response[crowdboxv1.PauseResponse], error) {
	return c.pause.CallUnary(ctx, req)
}

// Resume calls crowdbox.v1.AdminService.Resume.
func (c *AdminServiceClient) Resume(ctx context.Context, req *connect.Request[crowdboxv1.ResumeRequest]) (*connect.Response[crowdboxv1.ResumeResponse], error) {
	return c.resume.CallUnary(ctx, req)
}

// Skip calls crowdbox.v1.AdminService.Skip.
func (c *AdminServiceClient) Skip(ctx context.Context, req *connect.Request[crowdboxv1.SkipRequest]) (*connect.Response[crowdboxv1.SkipResponse], error) {
	return c.skip.CallUnary(ctx, req)
}

// PlayTrack calls crowdbox.v1.AdminService.PlayTrack.
func (c *AdminServiceClient) PlayTrack(ctx context.Context, req *connect.Request[crowdboxv1.PlayTrackRequest]) (*connect.Response[crowdboxv1.PlayTrackResponse], error) {
	return c.playTrack.CallUnary(ctx, req)
}

// ListDevices calls crowdbox.v1.AdminService.ListDevices.
func (c *AdminServiceClient) ListDevices(ctx context.Context, req *connect.Request[crowdboxv1.ListDevicesRequest]) (*connect.Response[crowdboxv1.ListDevicesResponse], error) {
	return c.listDevices.CallUnary(ctx, req)
}

// SelectDevice calls crowdbox.v1.AdminService.SelectDevice.
func (c *AdminServiceClient) SelectDevice(ctx context.Context, req *connect.Request[crowdboxv1.SelectDeviceRequest]) (*connect.Response[crowdboxv1.SelectDeviceResponse], error) {
	return c.selectDevice.CallUnary(ctx, req)
}

// GetSettings calls crowdbox.v1.AdminService.GetSettings.
func (c *AdminServiceClient) GetSettings(ctx context.Context, req *connect.Request[crowdboxv1.GetSettingsRequest]) (*connect.Response[crowdboxv1.GetSettingsResponse], error) {
	return c.getSettings.CallUnary(ctx, req)
}

// UpdateSettings calls crowdbox.v1.AdminService.UpdateSettings.
func (c *AdminServiceClient) UpdateSettings(ctx context.Context, req *connect.Request[crowdboxv1.UpdateSettingsRequest]) (*connect.Response[crowdboxv1.UpdateSettingsResponse], error) {
	return c.updateSettings.CallUnary(ctx, req)
}

// ClearVotes calls crowdbox.v1.AdminService.ClearVotes.
func (c *AdminServiceClient) ClearVotes(ctx context.Context, req *connect.Request[crowdboxv1.ClearVotesRequest]) (*connect.Response[crowdboxv1.ClearVotesResponse], error) {
	return c.clearVotes.CallUnary(ctx, req)
}

// ListListeners calls crowdbox.v1.AdminService.ListListeners.
func (c *AdminServiceClient) ListListeners(ctx context.Context, req *connect.Request[crowdboxv1.ListListenersRequest]) (*connect.Response[crowdboxv1.ListListenersResponse], error) {
	return c.listListeners.CallUnary(ctx, req)
}
