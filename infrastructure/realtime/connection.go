// Package realtime carries presence and pushed events over websockets.
package realtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/sink"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512
)

// Presence receives the Open and Closed transitions of every connection.
type Presence interface {
	Connect(ctx context.Context, userID domain.UserID, session contract.Session) error
	Disconnect(ctx context.Context, userID domain.UserID, session contract.Session) error
}

// Connection is one websocket session of one user.
// Its state only moves forward: Connecting -> Open -> Closed.
type Connection struct {
	log          *slog.Logger
	userID       domain.UserID
	conn         *websocket.Conn
	sink         *sink.WebSocketSink
	state        atomic.Int32
	pingInterval time.Duration
}

func NewConnection(log *slog.Logger, userID domain.UserID, conn *websocket.Conn,
	bufferSize int, pingInterval time.Duration) *Connection {
	connectionID := domain.NewConnectionID()
	return &Connection{
		log:          log.With("user_id", userID, "connection_id", connectionID),
		userID:       userID,
		conn:         conn,
		sink:         sink.NewWebSocketSink(connectionID, bufferSize),
		pingInterval: pingInterval,
	}
}

func (c *Connection) ID() domain.ConnectionID { return c.sink.ConnectionID() }

func (c *Connection) State() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

func (c *Connection) transition(from, to domain.ConnectionState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

func (c *Connection) session() contract.Session {
	return contract.Session{ConnectionID: c.ID(), Sink: c.sink}
}

// Serve opens the connection, pumps events until a transport fault,
// a client close or ctx cancellation, then closes it.
// It blocks for the whole lifetime of the connection.
func (c *Connection) Serve(ctx context.Context, presence Presence) {
	if !c.transition(domain.Connecting, domain.Open) {
		return
	}
	if err := presence.Connect(ctx, c.userID, c.session()); err != nil {
		c.log.Warn("Presence registration failed", "error", err)
		c.Close()
		return
	}
	c.log.Debug("Connection open")

	defer func() {
		c.Close()
		// The disconnect must reach the presence worker even when ctx is gone
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
		defer cancel()
		if err := presence.Disconnect(releaseCtx, c.userID, c.session()); err != nil {
			c.log.Warn("Presence release failed", "error", err)
		}
		c.log.Debug("Connection closed")
	}()

	go c.readLoop()
	c.writeLoop(ctx)
}

// readLoop discards client frames. It exists so control frames are processed
// and a dead peer is detected through the read deadline.
func (c *Connection) readLoop() {
	defer c.sink.Close()
	c.conn.SetReadLimit(maxInboundSize)
	pongWait := c.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Transport fault", "error", err)
			}
			return
		}
	}
}

func (c *Connection) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(writeWait)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
			return
		case <-c.sink.Done():
			return
		case evt := <-c.sink.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event.ToEnvelope(evt)); err != nil {
				c.log.Debug("Failed to push event", "event", evt.Name(), "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Connection) pongWait() time.Duration {
	return c.pingInterval * 2
}

// Close moves the connection to Closed and releases the socket. Idempotent.
func (c *Connection) Close() {
	if c.transition(domain.Open, domain.Closed) || c.transition(domain.Connecting, domain.Closed) {
		c.sink.Close()
		_ = c.conn.Close()
	}
}
