package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/models"
)

// Inbound actions.
const (
	ActionStartGame  = "start_game"
	ActionRollDice   = "roll_dice"
	ActionDisconnect = "disconnect"
)

// Outbound actions.
const (
	ActionGameStarted     = "game_started"
	ActionRollUpdate      = "roll_update"
	ActionWinnerAnnounced = "winner_announced"
	ActionError           = "error"
)

var ErrInvalidCommand = errors.New("invalid command")

// Command is one decoded inbound frame: StartGame, RollDice, Disconnect or Hello.
type Command interface {
	Identity() (models.PlayerID, game.Key)
}

type StartGame struct {
	Initiator models.PlayerID
	Players   []models.PlayerID
	Key       game.Key
	Bots      bool
}

type RollDice struct {
	PlayerID models.PlayerID
	Key      game.Key
	Value    int
	BotRolls map[models.PlayerID]int
}

type Disconnect struct {
	PlayerID models.PlayerID
	Key      game.Key
}

// Hello only identifies the connection.
type Hello struct {
	PlayerID models.PlayerID
	Key      game.Key
}

func (c StartGame) Identity() (models.PlayerID, game.Key)  { return c.Initiator, c.Key }
func (c RollDice) Identity() (models.PlayerID, game.Key)   { return c.PlayerID, c.Key }
func (c Disconnect) Identity() (models.PlayerID, game.Key) { return c.PlayerID, c.Key }
func (c Hello) Identity() (models.PlayerID, game.Key)      { return c.PlayerID, c.Key }

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var id models.PlayerID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = flexString(id)
	return nil
}

// playerRef accepts a bare id or an object carrying player_id.
type playerRef models.PlayerID

func (p *playerRef) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var obj struct {
			PlayerID models.PlayerID `json:"player_id"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		*p = playerRef(obj.PlayerID)
		return nil
	}
	var id models.PlayerID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*p = playerRef(id)
	return nil
}

type inboundFrame struct {
	Action   string                  `json:"action"`
	PlayerID models.PlayerID         `json:"player_id"`
	Roll     *int                    `json:"roll"`
	Players  []playerRef             `json:"players"`
	BotRolls map[models.PlayerID]int `json:"bot_rolls"`
	SalonID  flexString              `json:"salon_id"`
	TableID  flexString              `json:"table_id"`
	Bots     bool                    `json:"bots"`
}

// DecodeCommand parses one inbound frame. Malformed JSON, unknown actions and
// missing required fields return an error wrapping ErrInvalidCommand.
func DecodeCommand(raw []byte) (Command, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	key := game.Key{SalonID: string(f.SalonID), TableID: string(f.TableID)}

	switch f.Action {
	case ActionStartGame:
		if key.SalonID == "" || key.TableID == "" {
			return nil, fmt.Errorf("%w: start_game requires salon_id and table_id", ErrInvalidCommand)
		}
		players := make([]models.PlayerID, 0, len(f.Players))
		for _, p := range f.Players {
			if p == "" {
				return nil, fmt.Errorf("%w: empty player id", ErrInvalidCommand)
			}
			players = append(players, models.PlayerID(p))
		}
		return StartGame{Initiator: f.PlayerID, Players: players, Key: key, Bots: f.Bots}, nil

	case ActionRollDice:
		if f.Roll == nil {
			return nil, fmt.Errorf("%w: roll_dice requires roll", ErrInvalidCommand)
		}
		return RollDice{PlayerID: f.PlayerID, Key: key, Value: *f.Roll, BotRolls: f.BotRolls}, nil

	case ActionDisconnect:
		return Disconnect{PlayerID: f.PlayerID, Key: key}, nil

	case "":
		if f.PlayerID == "" && key.SalonID == "" && key.TableID == "" {
			return nil, fmt.Errorf("%w: empty frame", ErrInvalidCommand)
		}
		return Hello{PlayerID: f.PlayerID, Key: key}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, f.Action)
	}
}

// PlayerView is one participant in an outbound frame.
type PlayerView struct {
	PlayerID models.PlayerID `json:"player_id"`
	Rolls    []int           `json:"rolls"`
	Total    int             `json:"total_roll"`
	Active   bool            `json:"active"`
	Bot      bool            `json:"bot,omitempty"`
}

type GameStarted struct {
	Action     string       `json:"action"`
	GameID     string       `json:"game_id"`
	SalonID    string       `json:"salon_id"`
	TableID    string       `json:"table_id"`
	RoundLimit int          `json:"round_limit"`
	Players    []PlayerView `json:"players"`
}

type RollUpdate struct {
	Action  string       `json:"action"`
	GameID  string       `json:"game_id"`
	SalonID string       `json:"salon_id"`
	TableID string       `json:"table_id"`
	Phase   string       `json:"phase"`
	Players []PlayerView `json:"players"`
}

type WinnerAnnounced struct {
	Action   string          `json:"action"`
	GameID   string          `json:"game_id"`
	WinnerID models.PlayerID `json:"winner_id"`
	Message  string          `json:"message"`
	Players  []PlayerView    `json:"players"`
}

type ErrorFrame struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

func playerViews(snap game.Snapshot) []PlayerView {
	views := make([]PlayerView, 0, len(snap.Players))
	for _, p := range snap.Players {
		views = append(views, PlayerView{
			PlayerID: p.PlayerID,
			Rolls:    p.Rolls,
			Total:    p.Total,
			Active:   p.Active,
			Bot:      p.Bot,
		})
	}
	return views
}

func NewGameStarted(snap game.Snapshot) GameStarted {
	return GameStarted{
		Action:     ActionGameStarted,
		GameID:     snap.GameID,
		SalonID:    snap.Key.SalonID,
		TableID:    snap.Key.TableID,
		RoundLimit: snap.RoundLimit,
		Players:    playerViews(snap),
	}
}

func NewRollUpdate(snap game.Snapshot) RollUpdate {
	return RollUpdate{
		Action:  ActionRollUpdate,
		GameID:  snap.GameID,
		SalonID: snap.Key.SalonID,
		TableID: snap.Key.TableID,
		Phase:   string(snap.Phase),
		Players: playerViews(snap),
	}
}

// NewWinnerAnnounced builds the frame for one recipient; the winner is told
// "You won!" and everyone else who won.
func NewWinnerAnnounced(snap game.Snapshot, recipient models.PlayerID) WinnerAnnounced {
	msg := "Winner: " + snap.WinnerID.String()
	if recipient == snap.WinnerID {
		msg = "You won!"
	}
	return WinnerAnnounced{
		Action:   ActionWinnerAnnounced,
		GameID:   snap.GameID,
		WinnerID: snap.WinnerID,
		Message:  msg,
		Players:  playerViews(snap),
	}
}

func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{Action: ActionError, Error: err.Error()}
}
