// Package web serves the plain HTTP endpoints: the dashboard WebSocket, the
// provider authorization flow and the health check.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	crowdboxv1 "github.com/osa030/crowdbox/internal/api/crowdboxv1"
	"github.com/osa030/crowdbox/internal/app/notification"
	"github.com/osa030/crowdbox/internal/app/session"
	"github.com/osa030/crowdbox/internal/infra/config"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	// Dashboards are served from other origins (signage players, file://)
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves the web endpoints.
type Handler struct {
	session *session.Manager
	config  *config.Config
}

// NewHandler creates a new Handler.
func NewHandler(session *session.Manager, cfg *config.Config) *Handler {
	return &Handler{session: session, config: cfg}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /auth/login", h.login)
	mux.HandleFunc("GET /auth/callback", h.callback)
	mux.HandleFunc("GET /ws", h.ws)
}

type healthResponse struct {
	Status     string `json:"status"`
	State      string `json:"state"`
	Halted     bool   `json:"halted"`
	Authorized bool   `json:"authorized"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	st := h.session.Status()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:     "ok",
		State:      st.State.String(),
		Halted:     st.Halted,
		Authorized: st.Authorized,
	})
}

// login redirects the owner to the provider's consent page. The admin token
// is required so a guest cannot bind their own account.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Admin-Token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.config.Admin.Token)) != 1 {
		http.Error(w, "admin token required", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, h.session.AuthURL(), http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		zlog.Warn().Msgf("authorization denied: %s", reason)
		http.Error(w, "authorization denied: "+reason, http.StatusBadRequest)
		return
	}

	err := h.session.CompleteAuth(r.Context(), q.Get("state"), q.Get("code"))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Authorized. You can close this window.\n"))
	case errors.Is(err, session.ErrInvalidState), errors.Is(err, session.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		zlog.Error().Msgf("authorization callback failed: %v", err)
		http.Error(w, "authorization failed", http.StatusBadGateway)
	}
}

// ws streams notifications as JSON text frames. Inbound messages are
// discarded; a read error ends the stream.
func (h *Handler) ws(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Msgf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
		case <-h.session.Done():
			cancel()
		}
	}()

	// WriteControl may run concurrently with the writer below
	go func() {
		ping := time.NewTicker(pingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	sub := h.session.Subscribe()
	zlog.Debug().Msgf("websocket viewer joined: id=%s remote=%s", sub.ID, r.RemoteAddr)

	err = h.session.Forward(ctx, sub, func(n notification.Notification) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(crowdboxv1.FromNotification(n))
	})
	if errors.Is(err, notification.ErrEvicted) {
		zlog.Debug().Msgf("websocket viewer evicted: id=%s", sub.ID)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
			time.Now().Add(writeTimeout))
		return
	}
	zlog.Debug().Msgf("websocket viewer left: id=%s", sub.ID)
}
