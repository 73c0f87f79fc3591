package game

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/diceserver/dice"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/state"
)

// Faces is the number of faces on the dice players roll.
const Faces = 6

// Key locates a table: salon (tier) and table within it.
type Key struct {
	SalonID string
	TableID string
}

func (k Key) String() string {
	return k.SalonID + "/" + k.TableID
}

// Seat is a participant assignment produced by a Population.
type Seat struct {
	PlayerID models.PlayerID
	Bot      bool
}

type Options struct {
	RoundLimit int
	// Roller rolls for bot seats when the client does not supply their values.
	Roller dice.Roller
	Now    func() time.Time
	NewID  func() string
}

// Outcome describes the effect of one command on a game.
type Outcome struct {
	// Accepted is false for idempotent no-ops such as a roll past the limit.
	Accepted  bool
	Completed bool
	Abandoned bool
	Snapshot  Snapshot
}

// Snapshot is a detached, read-only view of a game.
type Snapshot struct {
	GameID     string
	Key        Key
	Phase      state.Phase
	RoundLimit int
	Players    []PlayerState
	WinnerID   models.PlayerID
	Abandoned  bool
	CreatedAt  time.Time
	StartedAt  time.Time
}

// Game is the authoritative state of one table. Every mutation happens under mu;
// nothing under mu performs I/O.
type Game struct {
	ID        string
	Key       Key
	CreatedAt time.Time

	roundLimit   int
	participants []*Participant
	index        map[models.PlayerID]*Participant
	machine      *state.Machine
	startedAt    time.Time
	winnerID     models.PlayerID
	abandoned    bool
	settled      atomic.Bool

	roller dice.Roller
	now    func() time.Time
	newID  func() string
	mu     sync.Mutex
}

// New seats a table in the waiting phase. Membership is fixed from here on.
func New(key Key, seats []Seat, opts Options) (*Game, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidCommand)
	}
	if opts.RoundLimit < 1 {
		return nil, fmt.Errorf("%w: round limit %d", ErrInvalidCommand, opts.RoundLimit)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Roller == nil {
		opts.Roller = dice.New(nil)
	}

	g := &Game{
		Key:          key,
		CreatedAt:    opts.Now(),
		roundLimit:   opts.RoundLimit,
		participants: make([]*Participant, 0, len(seats)),
		index:        make(map[models.PlayerID]*Participant, len(seats)),
		machine:      state.NewGameMachine(),
		roller:       opts.Roller,
		now:          opts.Now,
		newID:        opts.NewID,
	}

	for _, s := range seats {
		if s.PlayerID == "" {
			return nil, fmt.Errorf("%w: empty player id", ErrInvalidCommand)
		}
		if _, dup := g.index[s.PlayerID]; dup {
			return nil, fmt.Errorf("%w: player %s seated twice", ErrInvalidCommand, s.PlayerID)
		}
		p := &Participant{ID: s.PlayerID, Active: true, Bot: s.Bot, LastActionAt: g.CreatedAt}
		g.participants = append(g.participants, p)
		g.index[s.PlayerID] = p
	}

	g.machine.OnEnter(state.Completed, g.decideWinner)
	return g, nil
}

// Start moves the table from waiting to started and assigns its id.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.machine.Transition(state.Started); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	g.ID = g.newID()
	g.startedAt = g.now()
	return nil
}

// Roll appends value to the player's sequence. Rolls past the round limit are
// ignored. The completion check runs in the same critical section as the append,
// so exactly one call observes Outcome.Completed.
func (g *Game) Roll(playerID models.PlayerID, value int, botRolls map[models.PlayerID]int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.index[playerID]
	if !ok {
		return Outcome{}, ErrPlayerNotFound
	}
	if err := g.checkStarted(); err != nil {
		return Outcome{}, err
	}
	if p.Bot {
		return Outcome{}, fmt.Errorf("%w: bots roll server-side", ErrInvalidCommand)
	}
	// Clients report die faces only. Zeros are reserved for forfeited rolls.
	if value < 1 || value > Faces {
		return Outcome{}, fmt.Errorf("%w: roll %d out of range", ErrInvalidCommand, value)
	}
	if p.done(g.roundLimit) {
		return Outcome{Snapshot: g.snapshotLocked()}, nil
	}

	now := g.now()
	p.Rolls = append(p.Rolls, value)
	p.LastActionAt = now
	g.rollBots(len(p.Rolls), botRolls, now)

	out := Outcome{Accepted: true}
	out.Completed = g.completeIfDone()
	out.Snapshot = g.snapshotLocked()
	return out, nil
}

// rollBots brings every bot up to target rolls, preferring client-supplied values.
func (g *Game) rollBots(target int, supplied map[models.PlayerID]int, now time.Time) {
	for _, b := range g.participants {
		if !b.Bot {
			continue
		}
		for len(b.Rolls) < target && !b.done(g.roundLimit) {
			v, ok := supplied[b.ID]
			if !ok || v < 1 || v > Faces {
				v = g.roller.Roll(Faces)
			}
			b.Rolls = append(b.Rolls, v)
			b.LastActionAt = now
		}
	}
}

// Disconnect forfeits the player's remaining rolls as zeros. When no connected
// human is left the game completes as abandoned.
func (g *Game) Disconnect(playerID models.PlayerID) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.index[playerID]
	if !ok {
		return Outcome{}, ErrPlayerNotFound
	}
	if g.machine.Is(state.Completed) {
		return Outcome{}, ErrAlreadyCompleted
	}
	if !p.Active {
		return Outcome{Snapshot: g.snapshotLocked()}, nil
	}

	p.Active = false
	p.LastActionAt = g.now()
	for !p.done(g.roundLimit) {
		p.Rolls = append(p.Rolls, 0)
	}

	out := Outcome{Accepted: true}
	if g.machine.Is(state.Started) {
		if !g.hasActiveHuman() {
			g.abandoned = true
			out.Completed = g.machine.Transition(state.Completed) == nil
		} else {
			out.Completed = g.completeIfDone()
		}
	}
	out.Abandoned = out.Completed && g.abandoned
	out.Snapshot = g.snapshotLocked()
	return out, nil
}

func (g *Game) checkStarted() error {
	switch g.machine.Current() {
	case state.Started:
		return nil
	case state.Completed:
		return ErrAlreadyCompleted
	default:
		return fmt.Errorf("%w: game not started", ErrInvalidCommand)
	}
}

func (g *Game) completeIfDone() bool {
	for _, p := range g.participants {
		if !p.done(g.roundLimit) {
			return false
		}
	}
	return g.machine.Transition(state.Completed) == nil
}

func (g *Game) hasActiveHuman() bool {
	for _, p := range g.participants {
		if p.Active && !p.Bot {
			return true
		}
	}
	return false
}

func (g *Game) decideWinner() {
	if g.abandoned {
		return
	}
	g.winnerID = Winner(g.statesLocked())
}

func (g *Game) statesLocked() []PlayerState {
	players := make([]PlayerState, 0, len(g.participants))
	for _, p := range g.participants {
		players = append(players, p.state())
	}
	return players
}

func (g *Game) snapshotLocked() Snapshot {
	return Snapshot{
		GameID:     g.ID,
		Key:        g.Key,
		Phase:      g.machine.Current(),
		RoundLimit: g.roundLimit,
		Players:    g.statesLocked(),
		WinnerID:   g.winnerID,
		Abandoned:  g.abandoned,
		CreatedAt:  g.CreatedAt,
		StartedAt:  g.startedAt,
	}
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) Phase() state.Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.machine.Current()
}

// Terminal reports whether the game has completed.
func (g *Game) Terminal() bool {
	return g.Phase() == state.Completed
}

// Has reports whether playerID holds a seat.
func (g *Game) Has(playerID models.PlayerID) bool {
	_, ok := g.index[playerID]
	return ok
}

// PlayerIDs lists the seats in seating order.
func (g *Game) PlayerIDs() []models.PlayerID {
	ids := make([]models.PlayerID, len(g.participants))
	for i, p := range g.participants {
		ids[i] = p.ID
	}
	return ids
}

// MarkSettled returns true exactly once, for the caller that owns settlement.
func (g *Game) MarkSettled() bool {
	return g.settled.CompareAndSwap(false, true)
}
