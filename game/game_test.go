package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/diceserver/dice"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/state"
)

func newStarted(t *testing.T, limit int, seats ...Seat) *Game {
	t.Helper()
	g, err := New(Key{SalonID: "1", TableID: "2"}, seats, Options{RoundLimit: limit, Roller: dice.Fixed(3)})
	require.NoError(t, err)
	require.NoError(t, g.Start())
	return g
}

func humans(ids ...models.PlayerID) []Seat {
	return humanSeats(ids)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Key{}, nil, Options{RoundLimit: 5})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = New(Key{}, humans("A", "A"), Options{RoundLimit: 5})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = New(Key{}, humans("A"), Options{})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestStart_AssignsIDOnce(t *testing.T) {
	g, err := New(Key{SalonID: "1", TableID: "2"}, humans("A"), Options{RoundLimit: 5})
	require.NoError(t, err)
	assert.Equal(t, state.Waiting, g.Phase())

	_, err = g.Roll("A", 3, nil)
	assert.ErrorIs(t, err, ErrInvalidCommand, "rolls before start are rejected")

	require.NoError(t, g.Start())
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, state.Started, g.Phase())
	assert.ErrorIs(t, g.Start(), ErrInvalidCommand)
}

func TestRoll_CompletesAfterAllRolls(t *testing.T) {
	g := newStarted(t, 5, humans("A", "B")...)

	for i := 0; i < 5; i++ {
		out, err := g.Roll("A", 5, nil)
		require.NoError(t, err)
		assert.False(t, out.Completed)
	}
	for i := 0; i < 4; i++ {
		out, err := g.Roll("B", 1, nil)
		require.NoError(t, err)
		assert.False(t, out.Completed)
	}

	out, err := g.Roll("B", 1, nil)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.False(t, out.Abandoned)
	assert.Equal(t, models.PlayerID("A"), out.Snapshot.WinnerID)
	assert.Equal(t, state.Completed, out.Snapshot.Phase)
	assert.Equal(t, 25, out.Snapshot.Players[0].Total)
	assert.Equal(t, 5, out.Snapshot.Players[1].Total)
}

func TestRoll_ExcessRollsIgnored(t *testing.T) {
	g := newStarted(t, 2, humans("A", "B")...)

	for i := 0; i < 2; i++ {
		_, err := g.Roll("A", 6, nil)
		require.NoError(t, err)
	}
	out, err := g.Roll("A", 6, nil)
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Len(t, out.Snapshot.Players[0].Rolls, 2)
}

func TestRoll_Errors(t *testing.T) {
	g := newStarted(t, 1, humans("A")...)

	_, err := g.Roll("Z", 3, nil)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = g.Roll("A", 7, nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = g.Roll("A", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	out, err := g.Roll("A", 3, nil)
	require.NoError(t, err)
	require.True(t, out.Completed)

	_, err = g.Roll("A", 3, nil)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestRoll_ConcurrentCompletionObservedOnce(t *testing.T) {
	ids := []models.PlayerID{"1", "2", "3", "4", "5", "6", "7", "8"}
	g := newStarted(t, 5, humans(ids...)...)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for _, id := range ids {
		for i := 0; i < 7; i++ {
			wg.Add(1)
			go func(id models.PlayerID) {
				defer wg.Done()
				out, err := g.Roll(id, 4, nil)
				if err != nil {
					assert.ErrorIs(t, err, ErrAlreadyCompleted)
					return
				}
				if out.Completed {
					mu.Lock()
					completed++
					mu.Unlock()
				}
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, 1, completed)
	snap := g.Snapshot()
	for _, p := range snap.Players {
		assert.Len(t, p.Rolls, 5)
	}
}

func TestDisconnect_ZeroFills(t *testing.T) {
	g := newStarted(t, 5, humans("A", "B")...)

	for i := 0; i < 5; i++ {
		_, err := g.Roll("A", 2, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := g.Roll("B", 6, nil)
		require.NoError(t, err)
	}

	out, err := g.Disconnect("B")
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.False(t, out.Abandoned)
	assert.Equal(t, []int{6, 6, 0, 0, 0}, out.Snapshot.Players[1].Rolls)
	assert.Equal(t, models.PlayerID("B"), out.Snapshot.WinnerID, "12 beats 10")

	_, err = g.Disconnect("B")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestDisconnect_Idempotent(t *testing.T) {
	g := newStarted(t, 5, humans("A", "B", "C")...)

	out, err := g.Disconnect("A")
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.False(t, out.Completed)

	out, err = g.Disconnect("A")
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Len(t, out.Snapshot.Players[0].Rolls, 5)

	_, err = g.Disconnect("nobody")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestDisconnect_LastHumanAbandons(t *testing.T) {
	g := newStarted(t, 5, humans("A", "B")...)

	_, err := g.Disconnect("A")
	require.NoError(t, err)
	out, err := g.Disconnect("B")
	require.NoError(t, err)

	assert.True(t, out.Completed)
	assert.True(t, out.Abandoned)
	assert.Empty(t, out.Snapshot.WinnerID)
}

func TestRoll_BotsFollowHumans(t *testing.T) {
	g := newStarted(t, 3, Seat{PlayerID: "7"}, Seat{PlayerID: "bot-1", Bot: true}, Seat{PlayerID: "bot-2", Bot: true})

	out, err := g.Roll("7", 6, map[models.PlayerID]int{"bot-1": 1})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out.Snapshot.Players[1].Rolls)
	assert.Equal(t, []int{3}, out.Snapshot.Players[2].Rolls, "missing bot values come from the roller")

	_, err = g.Roll("bot-1", 6, nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = g.Roll("7", 6, nil)
	require.NoError(t, err)
	out, err = g.Roll("7", 6, nil)
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, models.PlayerID("7"), out.Snapshot.WinnerID)
}

func TestDisconnect_BotTableAbandonsWithoutHumans(t *testing.T) {
	g := newStarted(t, 3, Seat{PlayerID: "7"}, Seat{PlayerID: "bot-1", Bot: true})

	out, err := g.Disconnect("7")
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.True(t, out.Abandoned)
}

func TestMarkSettled(t *testing.T) {
	g := newStarted(t, 1, humans("A")...)
	assert.True(t, g.MarkSettled())
	assert.False(t, g.MarkSettled())
}
