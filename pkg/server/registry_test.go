package server

import (
	"fmt"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry(nil)
	conn := newMockConn()

	sess, err := reg.Register("conn-1", conn, "user1")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if sess.Username != "user1" {
		t.Errorf("session username = %q, want user1", sess.Username)
	}

	got, ok := reg.Lookup("conn-1")
	if !ok || got != sess {
		t.Fatal("lookup should return the registered session")
	}
	if _, ok := reg.Lookup("conn-2"); ok {
		t.Fatal("lookup of unknown connection should report none")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	reg := NewRegistry(nil)

	if _, err := reg.Register("conn-1", newMockConn(), "user1"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := reg.Register("conn-2", newMockConn(), "user1"); err != ErrUsernameOnline {
		t.Fatalf("expected ErrUsernameOnline, got %v", err)
	}

	// The registry still holds exactly one session for the username.
	if reg.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Count())
	}
	if !reg.IsOnline("user1") {
		t.Fatal("user1 should still be online")
	}
}

func TestUnregisterAbsentIsNoop(t *testing.T) {
	reg := NewRegistry(nil)
	if sess := reg.Unregister("never-registered"); sess != nil {
		t.Fatalf("expected nil for absent connection, got %+v", sess)
	}
}

func TestUnregisterFreesUsername(t *testing.T) {
	reg := NewRegistry(nil)
	if _, err := reg.Register("conn-1", newMockConn(), "user1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	removed := reg.Unregister("conn-1")
	if removed == nil || removed.Username != "user1" {
		t.Fatalf("unexpected removed session: %+v", removed)
	}

	if _, err := reg.Register("conn-2", newMockConn(), "user1"); err != nil {
		t.Fatalf("username should be free after unregister: %v", err)
	}
}

func TestUsernamesSnapshot(t *testing.T) {
	reg := NewRegistry(nil)
	for i, name := range []string{"user1", "user2", "user3"} {
		if _, err := reg.Register(fmt.Sprintf("conn-%d", i), newMockConn(), name); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	names := reg.Usernames()
	if len(names) != 3 {
		t.Fatalf("expected 3 usernames, got %d", len(names))
	}

	seen := make(map[string]bool)
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"user1", "user2", "user3"} {
		if !seen[want] {
			t.Errorf("missing username %s in snapshot", want)
		}
	}

	// Mutations after the snapshot must not affect it.
	reg.Unregister("conn-0")
	if len(names) != 3 {
		t.Fatal("snapshot changed after unregister")
	}
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	reg := NewRegistry(nil)

	const attempts = 16
	var wg sync.WaitGroup
	successes := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			if _, err := reg.Register(id, newMockConn(), "user1"); err == nil {
				successes <- id
			}
		}(i)
	}
	wg.Wait()
	close(successes)

	var winners []string
	for id := range successes {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly 1 successful register, got %d", len(winners))
	}
	if reg.Count() != 1 {
		t.Fatalf("expected 1 live session, got %d", reg.Count())
	}
}

// TestUsernameUniquenessInvariant checks that no interleaving of register
// and unregister calls ever leaves two live sessions with the same name.
func TestUsernameUniquenessInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := NewRegistry(nil)
		model := make(map[string]string) // connID -> username
		nextID := 0

		ops := rapid.IntRange(1, 60).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "register") {
				username := fmt.Sprintf("user%d", rapid.IntRange(1, 5).Draw(t, "user"))
				id := fmt.Sprintf("conn-%d", nextID)
				nextID++

				_, err := reg.Register(id, newMockConn(), username)

				nameTaken := false
				for _, n := range model {
					if n == username {
						nameTaken = true
					}
				}
				if nameTaken && err == nil {
					t.Fatalf("register accepted duplicate username %s", username)
				}
				if !nameTaken && err != nil {
					t.Fatalf("register rejected free username %s: %v", username, err)
				}
				if err == nil {
					model[id] = username
				}
			} else if len(model) > 0 {
				var id string
				for k := range model {
					id = k
					break
				}
				if reg.Unregister(id) == nil {
					t.Fatalf("unregister of live connection %s returned nil", id)
				}
				delete(model, id)
			}

			names := reg.Usernames()
			seen := make(map[string]bool, len(names))
			for _, n := range names {
				if seen[n] {
					t.Fatalf("duplicate username %s in registry", n)
				}
				seen[n] = true
			}
			if len(names) != len(model) {
				t.Fatalf("registry has %d sessions, model has %d", len(names), len(model))
			}
		}
	})
}
