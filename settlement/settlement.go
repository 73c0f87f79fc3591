package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/diceserver/config"
	"github.com/wfunc/diceserver/events"
	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/logger"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/persistence"
	"github.com/wfunc/diceserver/state"
)

var (
	// ErrCollaborator wraps every failure of an external store during settlement.
	ErrCollaborator   = errors.New("settlement collaborator failed")
	ErrNotCompleted   = errors.New("game not completed")
	ErrAlreadySettled = errors.New("game already settled")
)

const (
	OutcomeSettled   = "settled"
	OutcomeAbandoned = "abandoned"
)

// Registry is the part of the table registry settlement needs.
type Registry interface {
	Remove(key game.Key, gameID string) bool
}

// Recorder observes finished settlements.
type Recorder interface {
	SettlementRecorded(outcome string, failures int)
}

type Engine struct {
	profiles  persistence.ProfileStore
	tables    persistence.TableDirectory
	archive   persistence.ResultArchive
	registry  Registry
	rules     config.GameConfig
	publisher events.Publisher
	recorder  Recorder
	now       func() time.Time
}

type Option func(*Engine)

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	profiles persistence.ProfileStore,
	tables persistence.TableDirectory,
	archive persistence.ResultArchive,
	registry Registry,
	rules config.GameConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		profiles:  profiles,
		tables:    tables,
		archive:   archive,
		registry:  registry,
		rules:     rules,
		publisher: events.NopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settle ranks, rewards, archives and retires a completed game. Only the first
// call for a game does any work. Collaborator failures are logged and joined
// into the returned error; the returned record is always the one archived.
func (e *Engine) Settle(ctx context.Context, g *game.Game) (*models.SettlementRecord, error) {
	snap := g.Snapshot()
	if snap.Phase != state.Completed {
		return nil, ErrNotCompleted
	}
	if !g.MarkSettled() {
		return nil, ErrAlreadySettled
	}

	record := e.buildRecord(snap)
	var failures []error

	if !record.Abandoned {
		failures = append(failures, e.applyRewards(ctx, record)...)
	}

	if err := e.archive.AppendSettlementRecord(ctx, record); err != nil {
		logger.Log.Errorf("archive settlement of game %s: %v", record.GameID, err)
		failures = append(failures, fmt.Errorf("%w: archive: %w", ErrCollaborator, err))
	}

	if !e.registry.Remove(snap.Key, snap.GameID) {
		logger.Log.Warnf("game %s was no longer registered at %s", snap.GameID, snap.Key)
	}

	if err := e.tables.ClearSeatedPlayers(ctx, snap.Key.SalonID, snap.Key.TableID); err != nil {
		logger.Log.Errorf("clear seated players at %s: %v", snap.Key, err)
		failures = append(failures, fmt.Errorf("%w: clear table: %w", ErrCollaborator, err))
	}

	if err := e.publisher.Publish(ctx, events.SubjectGameSettled, record); err != nil {
		logger.Log.Warnf("publish settlement of game %s: %v", record.GameID, err)
	}

	outcome := OutcomeSettled
	if record.Abandoned {
		outcome = OutcomeAbandoned
	}
	if e.recorder != nil {
		e.recorder.SettlementRecorded(outcome, len(failures))
	}
	logger.Log.Infof("game %s at %s %s, winner %q, %d failures",
		record.GameID, snap.Key, outcome, record.WinnerID, len(failures))

	return record, errors.Join(failures...)
}

func (e *Engine) buildRecord(snap game.Snapshot) *models.SettlementRecord {
	record := &models.SettlementRecord{
		GameID:    snap.GameID,
		SalonID:   snap.Key.SalonID,
		TableID:   snap.Key.TableID,
		WinnerID:  snap.WinnerID,
		Abandoned: snap.Abandoned,
		StartedAt: snap.StartedAt,
		SettledAt: e.now(),
	}

	tier := e.rules.Tier(snap.Key.SalonID)
	for i, p := range game.Rank(snap.Players) {
		result := models.PlayerResult{
			PlayerID: p.PlayerID,
			Rolls:    p.Rolls,
			Total:    p.Total,
			Rank:     i + 1,
			Bot:      p.Bot,
		}
		if !snap.Abandoned && !p.Bot {
			result.Reward.ReputationPercent = e.rules.RankReward(i)
			if p.PlayerID == snap.WinnerID {
				result.Reward.Currency = tier.Payout()
			}
		}
		record.Players = append(record.Players, result)
	}
	return record
}

// applyRewards credits each human in turn. A failure is noted on that player's
// line and does not stop the others.
func (e *Engine) applyRewards(ctx context.Context, record *models.SettlementRecord) []error {
	var failures []error
	for i := range record.Players {
		p := &record.Players[i]
		if p.Bot {
			continue
		}
		if err := e.profiles.ApplyReward(ctx, p.PlayerID, p.Reward); err != nil {
			logger.Log.Errorf("apply reward to player %s in game %s: %v", p.PlayerID, record.GameID, err)
			p.RewardError = err.Error()
			failures = append(failures, fmt.Errorf("%w: reward %s: %w", ErrCollaborator, p.PlayerID, err))
		}
	}
	return failures
}
