package server

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeConn wraps a websocket connection with write synchronization, so
// broadcasts fanned out from other sessions' goroutines cannot interleave
// with this session's own writes.
type SafeConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// NewSafeConn wraps ws for concurrent writers.
func NewSafeConn(ws *websocket.Conn) *SafeConn {
	return &SafeConn{ws: ws}
}

// ReadMessage reads the next frame. Only the owning session goroutine
// reads, so no read-side locking is needed.
func (c *SafeConn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

// WriteJSON marshals v and writes it as a single text frame.
func (c *SafeConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return net.ErrClosed
	}
	c.closeMu.Unlock()

	return c.ws.WriteJSON(v)
}

// SetReadDeadline arms or disarms the read deadline.
func (c *SafeConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// Close closes the underlying websocket. Idempotent.
func (c *SafeConn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

// RemoteAddr returns the peer address.
func (c *SafeConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
