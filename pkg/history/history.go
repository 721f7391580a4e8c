// Package history owns the bounded, durable chat message log. The log is
// loaded once at startup, mutated only by Append, and rewritten to disk in
// full after every append. The in-memory sequence is authoritative: a
// failed write to disk is reported but never rolls back the append.
package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"chatrelay/pkg/protocol"
)

// DefaultLimit is the maximum number of messages retained when no explicit
// limit is configured.
const DefaultLimit = 1000

// Store is a bounded FIFO log of chat messages backed by a single JSON
// file. All methods are safe for concurrent use; the mutex also serializes
// file rewrites so overlapping appends cannot interleave their writes.
type Store struct {
	mu       sync.Mutex
	path     string
	limit    int
	messages []protocol.ChatMessage
}

// NewStore creates a store persisting to path. A non-positive limit falls
// back to DefaultLimit.
func NewStore(path string, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{path: path, limit: limit}
}

// Load reads the durable log into memory. A missing file starts the store
// empty; an unparseable file is logged and also starts the store empty.
// Load never fails startup.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: cannot read history file %s: %v (starting empty)", s.path, err)
		}
		s.messages = nil
		return
	}

	var messages []protocol.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		log.Printf("Warning: history file %s is corrupt: %v (starting empty)", s.path, err)
		s.messages = nil
		return
	}

	if len(messages) > s.limit {
		messages = messages[len(messages)-s.limit:]
	}
	s.messages = messages
}

// Append adds a message to the log, evicting from the front once the limit
// is exceeded, then rewrites the whole file. The returned error reports a
// persistence failure only; the in-memory log has already been updated and
// remains authoritative.
func (s *Store) Append(msg protocol.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if len(s.messages) > s.limit {
		s.messages = s.messages[len(s.messages)-s.limit:]
	}

	return s.persistLocked()
}

// persistLocked rewrites the full log to disk. Caller holds s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the log at call time. The copy is immune to
// later appends, and callers may not mutate the store through it.
func (s *Store) Snapshot() []protocol.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
