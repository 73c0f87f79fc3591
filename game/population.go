package game

import (
	"context"
	"fmt"

	"github.com/wfunc/diceserver/models"
)

// Population decides who sits at a table when a game starts.
type Population interface {
	Seats(ctx context.Context, key Key, requested []models.PlayerID) ([]Seat, error)
}

// SeatSource reports the players already seated at a table.
type SeatSource interface {
	SeatedPlayers(ctx context.Context, salonID, tableID string) ([]models.PlayerID, error)
}

// HumanPopulation seats exactly the players named in the start command.
type HumanPopulation struct{}

func (HumanPopulation) Seats(_ context.Context, _ Key, requested []models.PlayerID) ([]Seat, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: start requires at least one player", ErrInvalidCommand)
	}
	return humanSeats(requested), nil
}

// BotPopulation seats the humans at the table and pads it with bots up to Size.
// When the command names no players the directory's seated players are used.
type BotPopulation struct {
	Directory SeatSource
	Size      int
}

func (b BotPopulation) Seats(ctx context.Context, key Key, requested []models.PlayerID) ([]Seat, error) {
	humans := requested
	if len(humans) == 0 && b.Directory != nil {
		seated, err := b.Directory.SeatedPlayers(ctx, key.SalonID, key.TableID)
		if err != nil {
			return nil, fmt.Errorf("seated players for %s: %w", key, err)
		}
		humans = seated
	}
	if len(humans) == 0 {
		return nil, fmt.Errorf("%w: no players seated at %s", ErrInvalidCommand, key)
	}

	seats := humanSeats(humans)
	taken := make(map[models.PlayerID]bool, len(seats))
	for _, s := range seats {
		taken[s.PlayerID] = true
	}
	for n := 1; len(seats) < b.Size; n++ {
		id := models.PlayerID(fmt.Sprintf("bot-%d", n))
		if taken[id] {
			continue
		}
		seats = append(seats, Seat{PlayerID: id, Bot: true})
	}
	return seats, nil
}

func humanSeats(ids []models.PlayerID) []Seat {
	seats := make([]Seat, 0, len(ids))
	for _, id := range ids {
		seats = append(seats, Seat{PlayerID: id})
	}
	return seats
}
