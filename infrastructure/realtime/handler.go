package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/errors"
	"linkup/observability"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Authenticator resolves the identity carried by a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

type Config struct {
	BufferSize         int
	PingInterval       time.Duration
	TrustQueryIdentity bool
	AllowedOrigins     []string
}

// Handler upgrades GET /ws and runs one Connection per request.
type Handler struct {
	log        *slog.Logger
	auth       Authenticator
	presence   Presence
	monitoring *observability.MonitoringManager
	config     Config
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewHandler(log *slog.Logger, authenticator Authenticator, presence Presence,
	monitoring *observability.MonitoringManager, config Config) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		log:        log,
		auth:       authenticator,
		presence:   presence,
		monitoring: monitoring,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin lets non-browser clients in and browsers only from the allow-list.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(h.config.AllowedOrigins, origin)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.identify(r)
	if err != nil {
		h.log.Debug("Websocket handshake rejected", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	if !h.track() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.wg.Done()
	h.monitoring.ConnectionOpened()
	defer h.monitoring.ConnectionClosed()

	// Hijacked connections outlive the request context, so the handler context drives shutdown
	NewConnection(h.log, userID, conn, h.config.BufferSize, h.config.PingInterval).Serve(h.ctx, h.presence)
}

// identify derives the caller from a signed token, or from the userId query
// parameter when the legacy trust mode is enabled.
func (h *Handler) identify(r *http.Request) (domain.UserID, error) {
	if h.config.TrustQueryIdentity {
		userID, ok := domain.ParseUserID(r.URL.Query().Get("userId"))
		if !ok {
			return "", errors.ErrInvalidIdentity
		}
		return userID, nil
	}
	user, err := h.auth.Authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// track counts a new connection unless Shutdown already started.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

// Shutdown closes every open connection and waits for their release, or for ctx.
// Connections upgraded afterwards are closed at once.
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.log.Warn("Websocket connections still open at shutdown")
	}
}
