package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds each frame write.
const DefaultWriteTimeout = 5 * time.Second

// WebsocketConn adapts a gorilla/websocket connection to Conn. Writes are
// serialized; gorilla allows one concurrent writer.
type WebsocketConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewWebsocketConn wraps ws. A non-positive writeTimeout uses DefaultWriteTimeout.
func NewWebsocketConn(ws *websocket.Conn, writeTimeout time.Duration) *WebsocketConn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebsocketConn{ws: ws, writeTimeout: writeTimeout}
}

func (c *WebsocketConn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.writeTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// Send writes msg as a JSON text frame.
func (c *WebsocketConn) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if err := c.ws.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	return c.ws.WriteJSON(msg)
}

// Close sends a close frame with code and reason, then closes the socket.
// Later calls are no-ops.
func (c *WebsocketConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	frame := websocket.FormatCloseMessage(code, reason)
	werr := c.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.writeTimeout))
	cerr := c.ws.Close()
	if werr != nil && werr != websocket.ErrCloseSent {
		return werr
	}
	return cerr
}

// Drain reads and discards client frames until the connection fails, so
// control frames are processed. It returns the read error.
func (c *WebsocketConn) Drain() error {
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			return err
		}
	}
}
