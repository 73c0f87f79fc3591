// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wfunc/diceserver/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL implements Store on PostgreSQL through GORM.
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens the connection pool and migrates the schema.
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormProfile{},
		&models.GormSeat{},
		&models.GormSettlement{},
		&models.GormSettlementPlayer{},
	)
}

func (p *GormPostgreSQL) FindBalance(ctx context.Context, playerID models.PlayerID) (decimal.Decimal, error) {
	var profile models.GormProfile
	err := p.db.WithContext(ctx).Where("player_id = ?", playerID.String()).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ErrRecordNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return profile.Balance, nil
}

// ApplyReward grows reputation by a percentage and credits currency in one transaction.
func (p *GormPostgreSQL) ApplyReward(ctx context.Context, playerID models.PlayerID, reward models.Reward) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.GormProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("player_id = ?", playerID.String()).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		updates := map[string]interface{}{
			"reputation_points": gorm.Expr("reputation_points + reputation_points * ? / 100", reward.ReputationPercent),
		}
		if !reward.Currency.IsZero() {
			updates["balance"] = gorm.Expr("balance + ?", reward.Currency)
		}
		return tx.Model(&profile).Updates(updates).Error
	})
}

func (p *GormPostgreSQL) DeductEntryCost(ctx context.Context, playerID models.PlayerID, amount decimal.Decimal) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.GormProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("player_id = ?", playerID.String()).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		if profile.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		return tx.Model(&profile).Update("balance", gorm.Expr("balance - ?", amount)).Error
	})
}

func (p *GormPostgreSQL) SeatedPlayers(ctx context.Context, salonID, tableID string) ([]models.PlayerID, error) {
	var seats []models.GormSeat
	if err := p.db.WithContext(ctx).
		Where("salon_id = ? AND table_id = ?", salonID, tableID).
		Order("seated_at").Find(&seats).Error; err != nil {
		return nil, err
	}

	players := make([]models.PlayerID, 0, len(seats))
	for _, s := range seats {
		players = append(players, models.PlayerID(s.PlayerID))
	}
	return players, nil
}

func (p *GormPostgreSQL) ClearSeatedPlayers(ctx context.Context, salonID, tableID string) error {
	return p.db.WithContext(ctx).
		Where("salon_id = ? AND table_id = ?", salonID, tableID).
		Delete(&models.GormSeat{}).Error
}

func (p *GormPostgreSQL) AppendSettlementRecord(ctx context.Context, record *models.SettlementRecord) error {
	row := toGormSettlement(record)
	err := p.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRecord
	}
	return err
}

func toGormSettlement(record *models.SettlementRecord) models.GormSettlement {
	row := models.GormSettlement{
		GameID:    record.GameID,
		SalonID:   record.SalonID,
		TableID:   record.TableID,
		WinnerID:  record.WinnerID.String(),
		Abandoned: record.Abandoned,
		StartedAt: record.StartedAt,
		SettledAt: record.SettledAt,
	}
	for _, pr := range record.Players {
		rolls := make([]int64, len(pr.Rolls))
		for i, r := range pr.Rolls {
			rolls[i] = int64(r)
		}
		row.Players = append(row.Players, models.GormSettlementPlayer{
			PlayerID:          pr.PlayerID.String(),
			Rolls:             rolls,
			Total:             pr.Total,
			Rank:              pr.Rank,
			Bot:               pr.Bot,
			ReputationPercent: pr.Reward.ReputationPercent,
			Currency:          pr.Reward.Currency,
			RewardError:       pr.RewardError,
		})
	}
	return row
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
