package server

import (
	"net"
	"time"
)

// Conn is the transport surface a session relies on: one persistent
// message-oriented connection delivering one JSON frame per message. The
// websocket layer owns the connection lifecycle; the server never outlives
// it. *SafeConn satisfies this in production, tests substitute mocks.
type Conn interface {
	// ReadMessage blocks for the next frame from the client.
	ReadMessage() (messageType int, p []byte, err error)
	// WriteJSON sends one message to the client. Safe for concurrent use.
	WriteJSON(v any) error
	// SetReadDeadline arms the login/idle timeout policy. The zero time
	// disarms it.
	SetReadDeadline(t time.Time) error
	Close() error
	RemoteAddr() net.Addr
}
