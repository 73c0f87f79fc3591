// broadcast/broadcast.go
package broadcast

import (
	"sync"
	"time"

	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/logger"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/network"
	"github.com/wfunc/diceserver/session"
	"github.com/wfunc/diceserver/timer"
)

// SendFailureFunc is told about a connection whose send failed.
type SendFailureFunc func(s *session.Session, err error)

// Scheduler pushes frames to the connections of a game's players, immediately
// on events and periodically for every tracked game.
type Scheduler struct {
	sessions      *session.Manager
	timers        *timer.TimerManager
	interval      time.Duration
	tracked       map[string]int64 // game id -> timer id
	mutex         sync.Mutex
	onSendFailure SendFailureFunc
}

func NewScheduler(sessions *session.Manager, timers *timer.TimerManager, interval time.Duration) *Scheduler {
	return &Scheduler{
		sessions: sessions,
		timers:   timers,
		interval: interval,
		tracked:  make(map[string]int64),
	}
}

// OnSendFailure sets the callback for failed sends. Set it before publishing.
func (b *Scheduler) OnSendFailure(fn SendFailureFunc) {
	b.onSendFailure = fn
}

// Publish sends frame to every connection bound to one of players and returns
// the number of successful sends.
func (b *Scheduler) Publish(frame any, players []models.PlayerID) int {
	sent := 0
	for _, playerID := range players {
		sent += b.SendTo(playerID, frame)
	}
	return sent
}

// SendTo sends frame to every connection bound to playerID.
func (b *Scheduler) SendTo(playerID models.PlayerID, frame any) int {
	sent := 0
	for _, s := range b.sessions.GetByPlayerID(playerID) {
		if err := s.Send(frame); err != nil {
			logger.Log.Warnf("send to player %s on %s failed: %v", playerID, s.ID, err)
			if b.onSendFailure != nil {
				b.onSendFailure(s, err)
			}
			continue
		}
		sent++
	}
	return sent
}

// PublishSnapshot pushes a roll_update for snap to the game's humans.
func (b *Scheduler) PublishSnapshot(snap game.Snapshot) int {
	return b.Publish(network.NewRollUpdate(snap), humans(snap))
}

// AnnounceWinner sends every human a winner frame addressed to them.
func (b *Scheduler) AnnounceWinner(snap game.Snapshot) {
	for _, playerID := range humans(snap) {
		b.SendTo(playerID, network.NewWinnerAnnounced(snap, playerID))
	}
}

// Track starts the heartbeat that re-pushes g's latest snapshot. A game that
// has already completed is not tracked.
func (b *Scheduler) Track(g *game.Game) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.tracked[g.ID]; exists || g.Terminal() {
		return
	}
	b.tracked[g.ID] = b.timers.AddTimer(b.interval, b.interval, func() {
		b.PublishSnapshot(g.Snapshot())
	})
}

// Untrack stops the heartbeat for gameID.
func (b *Scheduler) Untrack(gameID string) {
	b.mutex.Lock()
	timerID, exists := b.tracked[gameID]
	delete(b.tracked, gameID)
	b.mutex.Unlock()

	if exists {
		b.timers.RemoveTimer(timerID)
	}
}

func (b *Scheduler) Tracked() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.tracked)
}

func humans(snap game.Snapshot) []models.PlayerID {
	ids := make([]models.PlayerID, 0, len(snap.Players))
	for _, p := range snap.Players {
		if !p.Bot {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}
