// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wfunc/diceserver/models"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_persistence.go github.com/wfunc/diceserver/persistence ProfileStore,TableDirectory,ResultArchive

// ProfileStore owns player balances and reputation.
type ProfileStore interface {
	FindBalance(ctx context.Context, playerID models.PlayerID) (decimal.Decimal, error)
	ApplyReward(ctx context.Context, playerID models.PlayerID, reward models.Reward) error
	DeductEntryCost(ctx context.Context, playerID models.PlayerID, amount decimal.Decimal) error
}

// TableDirectory owns which players are seated at a salon table.
type TableDirectory interface {
	SeatedPlayers(ctx context.Context, salonID, tableID string) ([]models.PlayerID, error)
	ClearSeatedPlayers(ctx context.Context, salonID, tableID string) error
}

// ResultArchive is an append-only log of settled games.
type ResultArchive interface {
	AppendSettlementRecord(ctx context.Context, record *models.SettlementRecord) error
}

// Store bundles the three collaborators; every backend implements all of them.
type Store interface {
	ProfileStore
	TableDirectory
	ResultArchive
	Close() error
}

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateRecord     = errors.New("settlement record already archived")
)
