// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/network"
)

var ErrRebind = errors.New("connection already bound to another identity")

// Session is one client connection and the identity it has declared.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	LastActive time.Time

	playerID       models.PlayerID
	key            game.Key
	mutex          sync.RWMutex
	disconnectOnce sync.Once
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Bind fills in the identity fields that are still empty. Changing a field
// that is already set returns ErrRebind.
func (s *Session) Bind(playerID models.PlayerID, key game.Key) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if playerID != "" && s.playerID != "" && playerID != s.playerID {
		return ErrRebind
	}
	if key.SalonID != "" && s.key.SalonID != "" && key != s.key {
		return ErrRebind
	}
	if playerID != "" {
		s.playerID = playerID
	}
	if key.SalonID != "" {
		s.key = key
	}
	return nil
}

func (s *Session) PlayerID() models.PlayerID {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.playerID
}

func (s *Session) Key() game.Key {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.key
}

func (s *Session) Send(frame any) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(frame)
}

func (s *Session) GetID() string {
	return s.ID
}

// Disconnect runs fn the first time it is called and never again.
func (s *Session) Disconnect(fn func()) {
	s.disconnectOnce.Do(fn)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager indexes live connections.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Detach removes sessionID and counts the connections its player still has, in
// one step. removed is false when the session was already gone.
func (m *Manager) Detach(sessionID string) (remaining int, removed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return 0, false
	}
	delete(m.sessions, sessionID)

	playerID := session.PlayerID()
	if playerID == "" {
		return 0, true
	}
	for _, other := range m.sessions {
		if other.PlayerID() == playerID {
			remaining++
		}
	}
	return remaining, true
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// GetByPlayerID returns every connection bound to playerID.
func (m *Manager) GetByPlayerID(playerID models.PlayerID) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID() == playerID {
			result = append(result, session)
		}
	}
	return result
}

// All returns a snapshot of the live connections.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
