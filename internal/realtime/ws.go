package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var pingPayload = []byte(`{"type":"ping"}`)

// Upgrader upgrades subscription requests. Subscribers authenticate with a
// token in the query, so the origin is not checked.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSConn adapts a websocket to Conn. Writes are serialized and bounded by a deadline.
type WSConn struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu   sync.Mutex
	dead bool
}

// NewWSConn wraps conn.
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	return &WSConn{id: uuid.NewString(), conn: conn, writeTimeout: writeTimeout}
}

// ID implements Conn.
func (c *WSConn) ID() string { return c.id }

// Send implements Conn. A failed write closes the socket so the reader stops too.
func (c *WSConn) Send(payload []byte) Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return Dead
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.dead = true
		_ = c.conn.Close()
		return Dead
	}
	return Alive
}

// Close sends a close frame with code and reason, then closes the socket.
func (c *WSConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return
	}
	c.dead = true
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	_ = c.conn.Close()
}

type inbound struct {
	Type string `json:"type"`
}

// Serve subscribes c and blocks until the peer disconnects or ctx ends.
// A ping is sent every pingInterval; inbound messages are read for
// liveness only and never terminate the connection on their own.
func Serve(ctx context.Context, b *Broadcaster, c *WSConn, pingInterval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.Subscribe(c)
	defer b.Unsubscribe(c)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.Send(pingPayload) == Dead {
					b.logger.Debug("ping failed", "conn", c.ID())
					cancel()
					return
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		c.Close(websocket.CloseGoingAway, "")
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				b.logger.Debug("subscriber read failed", "conn", c.ID(), "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Debug("ignoring malformed subscriber message", "conn", c.ID(), "error", err)
			continue
		}
		if msg.Type != "pong" {
			b.logger.Debug("ignoring subscriber message", "conn", c.ID(), "type", msg.Type)
		}
	}
}
