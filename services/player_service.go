// services/player_service.go
package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wfunc/diceserver/logger"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/persistence"
)

var ErrInsufficientBalance = persistence.ErrInsufficientBalance

// PlayerService handles the table entry fee against the profile store.
type PlayerService struct {
	profiles persistence.ProfileStore
}

func NewPlayerService(profiles persistence.ProfileStore) *PlayerService {
	return &PlayerService{profiles: profiles}
}

// CheckEntry verifies that every player can cover amount. It changes nothing.
func (s *PlayerService) CheckEntry(ctx context.Context, players []models.PlayerID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	for _, id := range players {
		balance, err := s.profiles.FindBalance(ctx, id)
		if err != nil {
			return fmt.Errorf("balance of player %s: %w", id, err)
		}
		if balance.LessThan(amount) {
			return fmt.Errorf("%w: player %s has %s, entry is %s", ErrInsufficientBalance, id, balance, amount)
		}
	}
	return nil
}

// ChargeEntry deducts amount from each player. Failures are logged and the
// remaining players are still charged. It returns how many were charged.
func (s *PlayerService) ChargeEntry(ctx context.Context, gameID string, players []models.PlayerID, amount decimal.Decimal) int {
	if !amount.IsPositive() {
		return 0
	}
	charged := 0
	for _, id := range players {
		if err := s.profiles.DeductEntryCost(ctx, id, amount); err != nil {
			logger.Log.Errorf("charge entry %s to player %s for game %s: %v", amount, id, gameID, err)
			continue
		}
		charged++
	}
	return charged
}
