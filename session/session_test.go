package session

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/wfunc/diceserver/game"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []any
}

func (m *MockConnection) Send(frame any) error         { m.sent = append(m.sent, frame); return nil }
func (m *MockConnection) ReadMessage() ([]byte, error) { return nil, nil }
func (m *MockConnection) Close() error                 { return nil }
func (m *MockConnection) RemoteAddr() net.Addr         { return &net.TCPAddr{} }

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Detach(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	if _, removed := manager.Detach(sessionID); !removed {
		t.Fatal("Detach should report the session as removed")
	}
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}
	if _, exists = manager.Get(sessionID); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByPlayerID(t *testing.T) {
	manager := NewManager()
	a := NewSession("a", &MockConnection{})
	b := NewSession("b", &MockConnection{})
	c := NewSession("c", &MockConnection{})
	_ = a.Bind("10", game.Key{})
	_ = b.Bind("10", game.Key{})
	_ = c.Bind("11", game.Key{})
	manager.Add(a)
	manager.Add(b)
	manager.Add(c)

	if got := manager.GetByPlayerID("10"); len(got) != 2 {
		t.Errorf("Expected 2 sessions for player 10, got %d", len(got))
	}
	if got := manager.GetByPlayerID("12"); len(got) != 0 {
		t.Errorf("Expected no sessions for player 12, got %d", len(got))
	}
}

func TestManager_Detach(t *testing.T) {
	manager := NewManager()
	a := NewSession("a", &MockConnection{})
	b := NewSession("b", &MockConnection{})
	_ = a.Bind("10", game.Key{})
	_ = b.Bind("10", game.Key{})
	manager.Add(a)
	manager.Add(b)

	if remaining, removed := manager.Detach("a"); !removed || remaining != 1 {
		t.Errorf("Expected a removed with 1 remaining, got removed=%v remaining=%d", removed, remaining)
	}
	if remaining, removed := manager.Detach("b"); !removed || remaining != 0 {
		t.Errorf("Expected b removed as the last connection, got removed=%v remaining=%d", removed, remaining)
	}
	if _, removed := manager.Detach("a"); removed {
		t.Error("Detaching a session twice should report it as already gone")
	}
}

func TestManager_DetachConcurrentLastConnection(t *testing.T) {
	for round := 0; round < 100; round++ {
		manager := NewManager()
		a := NewSession("a", &MockConnection{})
		b := NewSession("b", &MockConnection{})
		_ = a.Bind("10", game.Key{})
		_ = b.Bind("10", game.Key{})
		manager.Add(a)
		manager.Add(b)

		var wg sync.WaitGroup
		var mu sync.Mutex
		last := 0
		for _, id := range []string{"a", "b"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if remaining, removed := manager.Detach(id); removed && remaining == 0 {
					mu.Lock()
					last++
					mu.Unlock()
				}
			}(id)
		}
		wg.Wait()

		if last != 1 {
			t.Fatalf("Expected exactly one last connection, got %d", last)
		}
	}
}

func TestSession_Bind(t *testing.T) {
	sess := NewSession("s", &MockConnection{})
	key := game.Key{SalonID: "1", TableID: "2"}

	if err := sess.Bind("", key); err != nil {
		t.Fatalf("Binding a table should succeed, got: %v", err)
	}
	if err := sess.Bind("10", game.Key{}); err != nil {
		t.Fatalf("Binding a player later should succeed, got: %v", err)
	}
	if sess.PlayerID() != "10" || sess.Key() != key {
		t.Errorf("Unexpected identity %s %v", sess.PlayerID(), sess.Key())
	}

	if err := sess.Bind("10", key); err != nil {
		t.Errorf("Repeating the same identity should succeed, got: %v", err)
	}
	if err := sess.Bind("11", key); !errors.Is(err, ErrRebind) {
		t.Errorf("Expected ErrRebind for another player, got: %v", err)
	}
	if err := sess.Bind("10", game.Key{SalonID: "1", TableID: "3"}); !errors.Is(err, ErrRebind) {
		t.Errorf("Expected ErrRebind for another table, got: %v", err)
	}
}

func TestSession_DisconnectOnce(t *testing.T) {
	sess := NewSession("s", &MockConnection{})
	calls := 0
	for i := 0; i < 3; i++ {
		sess.Disconnect(func() { calls++ })
	}
	if calls != 1 {
		t.Errorf("Expected disconnect to run once, ran %d times", calls)
	}
}
