package server

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"chatrelay/pkg/history"
	"chatrelay/pkg/protocol"
)

// State is the lifecycle state of a connection's session.
type State int

const (
	StateNew State = iota
	StateAwaitingLogin
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionHandler drives one connection through the login-then-relay state
// machine: authenticate the first frame, then relay chat messages through
// the history store and broadcast hub until the connection closes. Each
// handler runs on its own goroutine and processes its connection's frames
// strictly in sequence.
type SessionHandler struct {
	id       string
	conn     Conn
	remote   string
	state    State
	username string

	registry *Registry
	hub      *Hub
	auth     *AuthGate
	store    *history.Store
	config   ServerConfig
	metrics  *Metrics
	clock    func() time.Time
}

// NewSessionHandler creates a handler for one accepted connection.
func NewSessionHandler(conn Conn, registry *Registry, hub *Hub, auth *AuthGate, store *history.Store, config ServerConfig, metrics *Metrics) *SessionHandler {
	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &SessionHandler{
		id:       uuid.NewString(),
		conn:     conn,
		remote:   remote,
		state:    StateNew,
		registry: registry,
		hub:      hub,
		auth:     auth,
		store:    store,
		config:   config,
		metrics:  metrics,
		clock:    time.Now,
	}
}

// State returns the handler's current lifecycle state.
func (h *SessionHandler) State() State {
	return h.state
}

// Run drives the session to completion. It returns when the connection is
// closed, an auth attempt is rejected, or a protocol error terminates the
// session.
func (h *SessionHandler) Run() {
	defer h.closeSession()

	h.state = StateAwaitingLogin
	if !h.authenticate() {
		return
	}
	h.relayLoop()
}

// authenticate reads the first frame and runs it through the auth gate.
// On success the session is registered and the join sequence is sent.
func (h *SessionHandler) authenticate() bool {
	if h.config.LoginTimeout > 0 {
		h.conn.SetReadDeadline(h.clock().Add(h.config.LoginTimeout))
	}

	_, raw, err := h.conn.ReadMessage()
	if err != nil {
		debugLog.Printf("Session %s (%s): closed before login: %v", h.id, h.remote, err)
		return false
	}

	result := h.auth.Evaluate(raw)
	if !result.OK {
		return h.reject(result.Reason)
	}

	// Register first: Evaluate's already-online check is advisory, the
	// registry arbitrates races between simultaneous logins.
	if _, err := h.registry.Register(h.id, h.conn, result.Username); err != nil {
		if errors.Is(err, ErrUsernameOnline) {
			return h.reject(ReasonAlreadyOnline)
		}
		log.Printf("Session %s: register failed: %v", h.id, err)
		return false
	}

	h.username = result.Username
	h.state = StateAuthenticated
	log.Printf("User %q connected from %s (%d online)", h.username, h.remote, h.registry.Count())

	if err := h.conn.WriteJSON(protocol.NewAuthSuccess(h.username)); err != nil {
		log.Printf("Session %s: failed to send auth response: %v", h.id, err)
		return false
	}

	h.hub.Broadcast(protocol.NewStatus(fmt.Sprintf("'%s' joined the chat", h.username), h.timestamp()), h.id)

	if err := h.conn.WriteJSON(protocol.NewChatHistory(h.store.Snapshot())); err != nil {
		log.Printf("Session %s: failed to send chat history: %v", h.id, err)
		return false
	}

	h.hub.Broadcast(protocol.NewUserList(h.registry.Usernames()), "")
	return true
}

// reject sends a failed auth_response and terminates the session. One
// login attempt per connection; there is no retry after a rejection.
func (h *SessionHandler) reject(reason string) bool {
	log.Printf("Session %s (%s): login rejected: %s", h.id, h.remote, reason)
	if h.metrics != nil {
		h.metrics.RecordAuthFailure(reason)
	}
	if err := h.conn.WriteJSON(protocol.NewAuthFailure(reason)); err != nil {
		debugLog.Printf("Session %s: failed to send rejection: %v", h.id, err)
	}
	return false
}

// relayLoop processes frames until the transport closes or a protocol
// error terminates the session.
func (h *SessionHandler) relayLoop() {
	for {
		if h.config.IdleTimeout > 0 {
			h.conn.SetReadDeadline(h.clock().Add(h.config.IdleTimeout))
		} else {
			h.conn.SetReadDeadline(time.Time{})
		}

		_, raw, err := h.conn.ReadMessage()
		if err != nil {
			debugLog.Printf("Session %s (%q): read ended: %v", h.id, h.username, err)
			return
		}

		if !h.handleFrame(raw) {
			return
		}
	}
}

// handleFrame processes one frame in the authenticated state. It returns
// false when the session must terminate.
func (h *SessionHandler) handleFrame(raw []byte) bool {
	msg, err := protocol.Decode(raw)
	if err != nil {
		var unknown *protocol.UnknownTypeError
		if errors.As(err, &unknown) {
			log.Printf("Session %s (%q): ignoring message of unknown type %q", h.id, h.username, unknown.Type)
			return true
		}
		// An unparseable payload is a fatal protocol error: the whole
		// session terminates, not just this message.
		log.Printf("Session %s (%q): unparseable payload, closing: %v", h.id, h.username, err)
		return false
	}

	switch m := msg.(type) {
	case *protocol.ChatMessage:
		h.relayChat(m)
	default:
		// Recognized type that a client has no business sending mid-session.
		log.Printf("Session %s (%q): ignoring unexpected %T", h.id, h.username, msg)
	}
	return true
}

// relayChat stamps, stores and fans out one chat message. The sender and
// timestamp are always overwritten; nothing client-supplied survives but
// the body.
func (h *SessionHandler) relayChat(m *protocol.ChatMessage) {
	m.Type = protocol.TypeChatMessage
	m.Sender = h.username
	m.Timestamp = h.timestamp()

	if err := h.store.Append(*m); err != nil {
		// Non-fatal: the in-memory log is authoritative, the relay goes on.
		log.Printf("Warning: failed to persist history: %v", err)
		if h.metrics != nil {
			h.metrics.RecordHistoryPersistFailure()
		}
	}
	if h.metrics != nil {
		h.metrics.RecordHistorySize(h.store.Len())
	}

	h.hub.Broadcast(m, h.id)
}

// closeSession is the terminal transition. If the session had registered,
// it unregisters and announces the departure to the remaining clients.
func (h *SessionHandler) closeSession() {
	wasAuthenticated := h.state == StateAuthenticated
	h.state = StateClosed
	h.conn.Close()

	if !wasAuthenticated {
		return
	}
	if h.registry.Unregister(h.id) == nil {
		// Already removed (server shutdown); nothing to announce.
		return
	}

	log.Printf("User %q disconnected (%d online)", h.username, h.registry.Count())
	h.hub.Broadcast(protocol.NewStatus(fmt.Sprintf("'%s' left the chat", h.username), h.timestamp()), "")
	h.hub.Broadcast(protocol.NewUserList(h.registry.Usernames()), "")
}

func (h *SessionHandler) timestamp() string {
	return h.clock().Format(protocol.TimestampFormat)
}
