// Package crowdboxv1connect provides Connect handlers and clients for the
// crowdbox.v1 services.
package crowdboxv1connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
)

const (
	// ListenerServiceName is the fully-qualified name of the ListenerService.
	ListenerServiceName = "crowdbox.v1.ListenerService"
)

const (
	ListenerServiceVoteProcedure      = "/crowdbox.v1.ListenerService/Vote"
	ListenerServiceSearchProcedure    = "/crowdbox.v1.ListenerService/Search"
	ListenerServiceGetStateProcedure  = "/crowdbox.v1.ListenerService/GetState"
	ListenerServiceSubscribeProcedure = "/crowdbox.v1.ListenerService/Subscribe"
)

// ListenerServiceHandler is implemented by the listener-facing service.
type ListenerServiceHandler interface {
	Vote(context.Context, *connect.Request[crowdboxv1.VoteRequest]) (*connect.Response[crowdboxv1.VoteResponse], error)
	Search(context.Context, *connect.Request[crowdboxv1.SearchRequest]) (*connect.Response[crowdboxv1.SearchResponse], error)
	GetState(context.Context, *connect.Request[crowdboxv1.GetStateRequest]) (*connect.Response[crowdboxv1.GetStateResponse], error)
	Subscribe(context.Context, *connect.Request[crowdboxv1.SubscribeRequest], *connect.ServerStream[crowdboxv1.Notification]) error
}

// NewListenerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler.
func NewListenerServiceHandler(svc ListenerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{crowdboxv1.WithCodec()}, opts...)

	vote := connect.NewUnaryHandler(ListenerServiceVoteProcedure, svc.Vote, opts...)
	search := connect.NewUnaryHandler(ListenerServiceSearchProcedure, svc.Search, opts...)
	getState := connect.NewUnaryHandler(ListenerServiceGetStateProcedure, svc.GetState, opts...)
	subscribe := connect.NewServerStreamHandler(ListenerServiceSubscribeProcedure, svc.Subscribe, opts...)

	return "/" + ListenerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ListenerServiceVoteProcedure:
			vote.ServeHTTP(w, r)
		case ListenerServiceSearchProcedure:
			search.ServeHTTP(w, r)
		case ListenerServiceGetStateProcedure:
			getState.ServeHTTP(w, r)
		case ListenerServiceSubscribeProcedure:
			subscribe.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ListenerServiceClient is a client for the ListenerService.
type ListenerServiceClient struct {
	vote      *connect.Client[crowdboxv1.VoteRequest, crowdboxv1.VoteResponse]
	search    *connect.Client[crowdboxv1.SearchRequest, crowdboxv1.SearchResponse]
	getState  *connect.Client[crowdboxv1.GetStateRequest, crowdboxv1.GetStateResponse]
	subscribe *connect.Client[crowdboxv1.SubscribeRequest, crowdboxv1.Notification]
}

// NewListenerServiceClient constructs a client. baseURL is the server's
// scheme and authority, e.g. http://127.0.0.1:8080.
func NewListenerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ListenerServiceClient {
	opts = append([]connect.ClientOption{crowdboxv1.WithCodec()}, opts...)
	return &ListenerServiceClient{
		vote:      connect.NewClient[crowdboxv1.VoteRequest, crowdboxv1.VoteResponse](httpClient, baseURL+ListenerServiceVoteProcedure, opts...),
		search:    connect.NewClient[crowdboxv1.SearchRequest, crowdboxv1.SearchResponse](httpClient, baseURL+ListenerServiceSearchProcedure, opts...),
		getState:  connect.NewClient[crowdboxv1.GetStateRequest, crowdboxv1.GetStateResponse](httpClient, baseURL+ListenerServiceGetStateProcedure, opts...),
		subscribe: connect.NewClient[crowdboxv1.SubscribeRequest, crowdboxv1.Notification](httpClient, baseURL+ListenerServiceSubscribeProcedure, opts...),
	}
}

// Vote calls crowdbox.v1.ListenerService.Vote.
func (c *ListenerServiceClient) Vote(ctx context.Context, req *connect.Request[crowdboxv1.VoteRequest]) (*connect.Response[crowdboxv1.VoteResponse], error) {
	return c.vote.CallUnary(ctx, req)
}

// Search calls crowdbox.v1.ListenerService.Search.
func (c *ListenerServiceClient) Search(ctx context.Context, req *connect.Request[crowdboxv1.SearchRequest]) (*connect.Response[crowdboxv1.SearchResponse], error) {
	return c.search.CallUnary(ctx, req)
}

// GetState calls crowdbox.v1.ListenerService.GetState.
func (c *ListenerServiceClient) GetState(ctx context.Context, req *connect.Request[crowdboxv1.GetStateRequest]) (*connect.Response[crowdboxv1.GetStateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

// Subscribe calls crowdbox.v1.ListenerService.Subscribe.
func (c *ListenerServiceClient) Subscribe(ctx context.Context, req *connect.Request[crowdboxv1.SubscribeRequest]) (*connect.ServerStreamForClient[crowdboxv1.Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
