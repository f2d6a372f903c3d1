package publish

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a subscriber transport. WriteMessage is only ever called from one
// goroutine at a time; Close may be called concurrently with it.
type Conn interface {
	WriteMessage(ctx context.Context, data []byte) error
	Close() error
	RemoteAddr() string
}

// closeGracePeriod bounds how long Close waits to send the close frame.
const closeGracePeriod = time.Second

// WebSocketConn adapts a gorilla WebSocket connection to Conn.
type WebSocketConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps conn
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

// WriteMessage sends data as a single text message. The context deadline
// becomes the socket write deadline.
func (c *WebSocketConn) WriteMessage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and closes the connection.
func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
