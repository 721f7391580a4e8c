package server

import (
	"errors"
	"sync"
)

// ErrUsernameOnline is returned by Register when a live session already
// holds the requested username.
var ErrUsernameOnline = errors.New("username already online")

// Session binds one connection to one authenticated username. At most one
// session exists per connection and per username at any time.
type Session struct {
	ID       string // connection ID, assigned at accept
	Username string
	Conn     Conn
}

// Registry is the authoritative map of live connections to authenticated
// sessions. It enforces username uniqueness. One mutex covers every
// operation: register, unregister and the snapshot reads form a single
// critical section so a broadcast sees a stable membership.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // connection ID -> session
	byName   map[string]string   // username -> connection ID
	metrics  *Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byName:   make(map[string]string),
		metrics:  metrics,
	}
}

// Register creates a session for conn under username. It fails with
// ErrUsernameOnline if the name is already held; this check is the
// authoritative uniqueness guarantee, regardless of any earlier advisory
// check during authentication.
func (r *Registry) Register(connID string, conn Conn, username string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[username]; taken {
		return nil, ErrUsernameOnline
	}

	sess := &Session{ID: connID, Username: username, Conn: conn}
	r.sessions[connID] = sess
	r.byName[username] = connID

	if r.metrics != nil {
		r.metrics.RecordActiveSessions(len(r.sessions))
		r.metrics.RecordSessionCreated()
	}
	return sess, nil
}

// Unregister removes the session for connID. Removing an absent
// connection is a no-op, not an error. It returns the removed session, or
// nil if there was none.
func (r *Registry) Unregister(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return nil
	}
	delete(r.sessions, connID)
	delete(r.byName, sess.Username)

	if r.metrics != nil {
		r.metrics.RecordActiveSessions(len(r.sessions))
	}
	return sess
}

// Lookup returns the session for connID, if any.
func (r *Registry) Lookup(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	return sess, ok
}

// IsOnline reports whether username currently holds a live session.
func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byName[username]
	return ok
}

// Usernames returns a snapshot of all online usernames at call time.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// Sessions returns a snapshot of all live sessions at call time.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every live connection and empties the registry. Used
// during server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sess := range r.sessions {
		sess.Conn.Close()
	}
	r.sessions = make(map[string]*Session)
	r.byName = make(map[string]string)

	if r.metrics != nil {
		r.metrics.RecordActiveSessions(0)
	}
}
