package game

import (
	"time"

	"github.com/wfunc/diceserver/models"
)

// Participant is one seat at a table. Only the owning Game mutates it.
type Participant struct {
	ID           models.PlayerID
	Rolls        []int
	Active       bool
	Bot          bool
	LastActionAt time.Time
}

func (p *Participant) Total() int {
	total := 0
	for _, r := range p.Rolls {
		total += r
	}
	return total
}

func (p *Participant) done(limit int) bool {
	return len(p.Rolls) >= limit
}

func (p *Participant) state() PlayerState {
	return PlayerState{
		PlayerID: p.ID,
		Rolls:    append([]int(nil), p.Rolls...),
		Total:    p.Total(),
		Active:   p.Active,
		Bot:      p.Bot,
	}
}

// PlayerState is a detached copy of a participant.
type PlayerState struct {
	PlayerID models.PlayerID
	Rolls    []int
	Total    int
	Active   bool
	Bot      bool
}
