// models/models.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PlayerID identifies a participant. Clients send it either as a JSON number
// (telegram ids) or as a string (bots), so both forms decode.
type PlayerID string

func (id *PlayerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PlayerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player id must be a string or a number: %w", err)
	}
	*id = PlayerID(n.String())
	return nil
}

func (id PlayerID) String() string {
	return string(id)
}

// Less orders ids numerically when both are integers, lexicographically otherwise.
func (id PlayerID) Less(other PlayerID) bool {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(other), 10, 64)
	if errA == nil && errB == nil {
		return a < b
	}
	return id < other
}

// Reward is the effect applied to one participant's profile at settlement.
type Reward struct {
	ReputationPercent int             `json:"reputation_percent"`
	Currency          decimal.Decimal `json:"currency"`
}

// PlayerResult is one participant's line in a settlement record.
type PlayerResult struct {
	PlayerID    PlayerID `json:"player_id"`
	Rolls       []int    `json:"rolls"`
	Total       int      `json:"total_roll"`
	Rank        int      `json:"rank"`
	Bot         bool     `json:"bot,omitempty"`
	Reward      Reward   `json:"reward"`
	RewardError string   `json:"reward_error,omitempty"`
}

// SettlementRecord is the immutable outcome of one game.
type SettlementRecord struct {
	GameID    string         `json:"game_id"`
	SalonID   string         `json:"salon_id"`
	TableID   string         `json:"table_id"`
	WinnerID  PlayerID       `json:"winner_id"`
	Abandoned bool           `json:"abandoned"`
	Players   []PlayerResult `json:"players"`
	StartedAt time.Time      `json:"started_at"`
	SettledAt time.Time      `json:"settled_at"`
}

// Player returns the result line for id.
func (r *SettlementRecord) Player(id PlayerID) (PlayerResult, bool) {
	for _, p := range r.Players {
		if p.PlayerID == id {
			return p, true
		}
	}
	return PlayerResult{}, false
}
