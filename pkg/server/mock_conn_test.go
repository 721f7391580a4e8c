package server

import (
	"io"
	"net"
	"sync"
	"time"
)

// mockConn is a scriptable Conn for state machine tests. Frames queued
// with push are returned by ReadMessage in order; finish makes the next
// read report EOF, close makes it report a closed transport.
type mockConn struct {
	mu           sync.Mutex
	incoming     chan []byte
	writes       []any
	writeErr     error
	lastDeadline time.Time
	closed       chan struct{}
	closeOnce    sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		incoming: make(chan []byte, 32),
		closed:   make(chan struct{}),
	}
}

func (c *mockConn) push(frames ...string) {
	for _, f := range frames {
		c.incoming <- []byte(f)
	}
}

// finish ends the script: the next ReadMessage after the queued frames
// returns io.EOF, as a client disconnect would.
func (c *mockConn) finish() {
	close(c.incoming)
}

func (c *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case raw, ok := <-c.incoming:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, raw, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *mockConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *mockConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDeadline = t
	return nil
}

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345}
}

// written returns a snapshot of everything sent to this connection.
func (c *mockConn) written() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *mockConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}
