package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/diceserver/events"
	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/logger"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/network"
	"github.com/wfunc/diceserver/room"
	"github.com/wfunc/diceserver/services"
	"github.com/wfunc/diceserver/session"
	"github.com/wfunc/diceserver/settlement"
)

// handleFrame decodes and runs one inbound frame. It returns false when the
// connection should be closed.
func (s *GameServer) handleFrame(sess *session.Session, raw []byte) bool {
	start := time.Now()
	s.monitor.IncFramesReceived()
	defer func() { s.monitor.ObserveFrameLatency(time.Since(start)) }()

	cmd, err := network.DecodeCommand(raw)
	if err != nil {
		s.reject(sess, err)
		return true
	}

	playerID, key := cmd.Identity()
	if err := sess.Bind(playerID, key); err != nil {
		s.reject(sess, err)
		return true
	}

	switch c := cmd.(type) {
	case network.Hello:
		logger.Log.Infof("Session %s identified as player %q at %s", sess.GetID(), sess.PlayerID(), sess.Key())
	case network.StartGame:
		err = s.startGame(sess, c)
	case network.RollDice:
		err = s.rollDice(sess, c)
	case network.Disconnect:
		logger.Log.Infof("Session %s requested disconnect", sess.GetID())
		return false
	}

	if err != nil {
		s.reject(sess, err)
	}
	return true
}

// reject logs a dropped command and tells only the sender.
func (s *GameServer) reject(sess *session.Session, err error) {
	logger.Log.Warnf("Dropped frame from session %s: %v", sess.GetID(), err)
	s.monitor.IncFramesDropped(dropReason(err))
	if sendErr := sess.Send(network.NewErrorFrame(err)); sendErr != nil {
		logger.Log.Warnf("Failed to send error to session %s: %v", sess.GetID(), sendErr)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, room.ErrNotFound), errors.Is(err, game.ErrPlayerNotFound):
		return "not_found"
	case errors.Is(err, room.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, game.ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, services.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "invalid"
	}
}

func (s *GameServer) startGame(sess *session.Session, c network.StartGame) error {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if existing, err := s.roomManager.Get(c.Key); err == nil && !existing.Terminal() {
		return room.ErrAlreadyExists
	}

	rules := s.cfg.Game
	tier := rules.Tier(c.Key.SalonID)
	bots := c.Bots || tier.Bots

	var population game.Population = game.HumanPopulation{}
	if bots {
		population = game.BotPopulation{Directory: s.directory, Size: rules.BotTableSize}
	}
	seats, err := population.Seats(ctx, c.Key, c.Players)
	if err != nil {
		return err
	}
	humans := humanIDs(seats)

	if rules.ChargeEntry {
		if err := s.playerService.CheckEntry(ctx, humans, tier.Entry()); err != nil {
			return err
		}
	}

	g, err := game.New(c.Key, seats, game.Options{
		RoundLimit: rules.RoundLimitFor(c.Key.SalonID, bots),
		Roller:     s.roller,
	})
	if err != nil {
		return err
	}
	if err := g.Start(); err != nil {
		return err
	}
	if err := s.roomManager.Create(g); err != nil {
		return err
	}
	s.monitor.SetActiveGames(s.roomManager.Count())
	logger.Log.Infof("Game %s started at %s with %d players, session %s", g.ID, g.Key, len(seats), sess.GetID())

	if rules.ChargeEntry {
		s.playerService.ChargeEntry(ctx, g.ID, humans, tier.Entry())
	}

	s.broadcaster.Track(g)
	snap := g.Snapshot()
	frame := network.NewGameStarted(snap)
	s.broadcaster.Publish(frame, humans)
	if sess.PlayerID() == "" || !g.Has(sess.PlayerID()) {
		if err := sess.Send(frame); err != nil {
			logger.Log.Warnf("Failed to confirm start to session %s: %v", sess.GetID(), err)
		}
	}

	ids := make([]string, len(seats))
	for i, seat := range seats {
		ids[i] = seat.PlayerID.String()
	}
	if err := s.publisher.Publish(ctx, events.SubjectGameStarted, events.GameStarted{
		GameID:  g.ID,
		SalonID: c.Key.SalonID,
		TableID: c.Key.TableID,
		Players: ids,
	}); err != nil {
		logger.Log.Warnf("Failed to publish start of game %s: %v", g.ID, err)
	}
	return nil
}

func (s *GameServer) rollDice(sess *session.Session, c network.RollDice) error {
	playerID := c.PlayerID
	if playerID == "" {
		playerID = sess.PlayerID()
	}
	if playerID == "" {
		return fmt.Errorf("%w: roll_dice without player_id", network.ErrInvalidCommand)
	}

	g, err := s.lookupGame(c.Key, sess, playerID)
	if err != nil {
		return err
	}
	out, err := g.Roll(playerID, c.Value, c.BotRolls)
	if err != nil {
		return err
	}
	s.afterOutcome(g, out)
	return nil
}

// forfeit runs the disconnect path for the player bound to sess. It is skipped
// while the server shuts down.
func (s *GameServer) forfeit(sess *session.Session) {
	if s.shuttingDown.Load() {
		return
	}
	playerID := sess.PlayerID()
	if playerID == "" {
		return
	}

	g, err := s.lookupGame(game.Key{}, sess, playerID)
	if err != nil {
		return
	}
	out, err := g.Disconnect(playerID)
	if err != nil {
		logger.Log.Debugf("Disconnect of player %s from game %s ignored: %v", playerID, g.ID, err)
		return
	}
	logger.Log.Infof("Player %s left game %s, remaining rolls forfeited", playerID, g.ID)
	s.afterOutcome(g, out)
}

// lookupGame resolves the table from the frame, then the connection, then the
// player's seat.
func (s *GameServer) lookupGame(key game.Key, sess *session.Session, playerID models.PlayerID) (*game.Game, error) {
	if key.SalonID == "" {
		key = sess.Key()
	}
	if key.SalonID == "" {
		return s.roomManager.FindByPlayer(playerID)
	}
	return s.roomManager.Get(key)
}

// afterOutcome broadcasts an accepted change and settles a completed game.
func (s *GameServer) afterOutcome(g *game.Game, out game.Outcome) {
	if !out.Accepted {
		return
	}
	s.broadcaster.PublishSnapshot(out.Snapshot)
	if out.Completed {
		s.finish(g, out.Snapshot)
	}
}

func (s *GameServer) finish(g *game.Game, snap game.Snapshot) {
	s.broadcaster.Untrack(g.ID)
	if !snap.Abandoned {
		s.broadcaster.AnnounceWinner(snap)
	}

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if _, err := s.settlement.Settle(ctx, g); err != nil {
		if errors.Is(err, settlement.ErrAlreadySettled) {
			logger.Log.Debugf("Game %s already settled", g.ID)
		} else {
			logger.Log.Errorf("Settlement of game %s finished with errors: %v", g.ID, err)
		}
	}
	s.monitor.SetActiveGames(s.roomManager.Count())
}

func humanIDs(seats []game.Seat) []models.PlayerID {
	ids := make([]models.PlayerID, 0, len(seats))
	for _, seat := range seats {
		if !seat.Bot {
			ids = append(ids, seat.PlayerID)
		}
	}
	return ids
}
