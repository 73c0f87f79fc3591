// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormProfile is the slice of a user profile the game server touches.
type GormProfile struct {
	gorm.Model
	PlayerID         string          `gorm:"uniqueIndex;not null"`
	Balance          decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	ReputationPoints int64           `gorm:"not null;default:0"`
}

// GormSeat is one player seated at a salon table.
type GormSeat struct {
	ID       uint   `gorm:"primaryKey"`
	SalonID  string `gorm:"index:idx_seat_table;not null"`
	TableID  string `gorm:"index:idx_seat_table;not null"`
	PlayerID string `gorm:"not null"`
	SeatedAt time.Time
}

// GormSettlement is the archived header of a settled game.
type GormSettlement struct {
	ID        uint                   `gorm:"primaryKey"`
	GameID    string                 `gorm:"uniqueIndex;not null"`
	SalonID   string                 `gorm:"index;not null"`
	TableID   string                 `gorm:"not null"`
	WinnerID  string
	Abandoned bool                   `gorm:"default:false"`
	Players   []GormSettlementPlayer `gorm:"foreignKey:SettlementID"`
	StartedAt time.Time
	SettledAt time.Time              `gorm:"index"`
}

// GormSettlementPlayer stores one participant's rolls as a postgres integer array.
type GormSettlementPlayer struct {
	ID                uint            `gorm:"primaryKey"`
	SettlementID      uint            `gorm:"index;not null"`
	PlayerID          string          `gorm:"not null"`
	Rolls             pq.Int64Array   `gorm:"type:integer[]"`
	Total             int
	Rank              int
	Bot               bool
	ReputationPercent int
	Currency          decimal.Decimal `gorm:"type:numeric(20,4)"`
	RewardError       string
}
