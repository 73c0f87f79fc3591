// persistence/memory.go
package persistence

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wfunc/diceserver/models"
)

type memoryProfile struct {
	balance    decimal.Decimal
	reputation int64
}

// MemoryStore keeps everything in process. It backs the "memory" storage backend
// and the integration tests.
type MemoryStore struct {
	profiles map[models.PlayerID]*memoryProfile
	seats    map[[2]string][]models.PlayerID
	records  []*models.SettlementRecord
	mutex    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[models.PlayerID]*memoryProfile),
		seats:    make(map[[2]string][]models.PlayerID),
	}
}

// SeedProfile creates or overwrites a profile.
func (s *MemoryStore) SeedProfile(playerID models.PlayerID, balance decimal.Decimal, reputation int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.profiles[playerID] = &memoryProfile{balance: balance, reputation: reputation}
}

// Seat places players at a table.
func (s *MemoryStore) Seat(salonID, tableID string, players ...models.PlayerID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := [2]string{salonID, tableID}
	s.seats[key] = append(s.seats[key], players...)
}

func (s *MemoryStore) FindBalance(ctx context.Context, playerID models.PlayerID) (decimal.Decimal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.profiles[playerID]
	if !ok {
		return decimal.Zero, ErrRecordNotFound
	}
	return p.balance, nil
}

func (s *MemoryStore) Reputation(playerID models.PlayerID) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.profiles[playerID]
	if !ok {
		return 0, ErrRecordNotFound
	}
	return p.reputation, nil
}

func (s *MemoryStore) ApplyReward(ctx context.Context, playerID models.PlayerID, reward models.Reward) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, ok := s.profiles[playerID]
	if !ok {
		return ErrRecordNotFound
	}
	p.reputation += p.reputation * int64(reward.ReputationPercent) / 100
	p.balance = p.balance.Add(reward.Currency)
	return nil
}

func (s *MemoryStore) DeductEntryCost(ctx context.Context, playerID models.PlayerID, amount decimal.Decimal) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, ok := s.profiles[playerID]
	if !ok {
		return ErrRecordNotFound
	}
	if p.balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	p.balance = p.balance.Sub(amount)
	return nil
}

func (s *MemoryStore) SeatedPlayers(ctx context.Context, salonID, tableID string) ([]models.PlayerID, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	seated := s.seats[[2]string{salonID, tableID}]
	return append([]models.PlayerID(nil), seated...), nil
}

func (s *MemoryStore) ClearSeatedPlayers(ctx context.Context, salonID, tableID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.seats, [2]string{salonID, tableID})
	return nil
}

func (s *MemoryStore) AppendSettlementRecord(ctx context.Context, record *models.SettlementRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, r := range s.records {
		if r.GameID == record.GameID {
			return ErrDuplicateRecord
		}
	}
	s.records = append(s.records, record)
	return nil
}

// Records returns the archived records in append order.
func (s *MemoryStore) Records() []*models.SettlementRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]*models.SettlementRecord(nil), s.records...)
}

func (s *MemoryStore) Close() error {
	return nil
}
