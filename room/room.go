// room/room.go
package room

import (
	"errors"
	"sync"

	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/models"
)

// Key addresses one table: (salon id, table id).
type Key = game.Key

var (
	ErrAlreadyExists = errors.New("table already has an active game")
	ErrNotFound      = game.ErrNotFound
)

// Manager is the registry of active games, at most one per table.
type Manager struct {
	games map[Key]*game.Game
	mutex sync.RWMutex
}

// NewRoomManager creates an empty registry.
func NewRoomManager() *Manager {
	return &Manager{
		games: make(map[Key]*game.Game),
	}
}

// Create registers g under its key. An occupied key is rejected unless the game
// holding it has already completed.
func (m *Manager) Create(g *game.Game) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, exists := m.games[g.Key]; exists && !existing.Terminal() {
		return ErrAlreadyExists
	}
	m.games[g.Key] = g
	return nil
}

// Get returns the game at key.
func (m *Manager) Get(key Key) (*game.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	g, exists := m.games[key]
	if !exists {
		return nil, ErrNotFound
	}
	return g, nil
}

// Remove detaches the game at key if it is still gameID. It reports whether a
// game was removed.
func (m *Manager) Remove(key Key, gameID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if g, exists := m.games[key]; exists && g.ID == gameID {
		delete(m.games, key)
		return true
	}
	return false
}

// FindByPlayer returns the game in which playerID holds a seat.
func (m *Manager) FindByPlayer(playerID models.PlayerID) (*game.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, g := range m.games {
		if g.Has(playerID) {
			return g, nil
		}
	}
	return nil, ErrNotFound
}

// Count returns the number of registered games.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.games)
}

// Games returns a snapshot of the registered games.
func (m *Manager) Games() []*game.Game {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	games := make([]*game.Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	return games
}
