package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/diceserver/config"
	"github.com/wfunc/diceserver/dice"
	"github.com/wfunc/diceserver/game"
	"github.com/wfunc/diceserver/models"
	"github.com/wfunc/diceserver/network"
	"github.com/wfunc/diceserver/persistence"
	"github.com/wfunc/diceserver/session"
)

type HubSuite struct {
	suite.Suite
	cfg   *config.Config
	store *persistence.MemoryStore
	srv   *GameServer
	http  *httptest.Server
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.cfg = config.Default()
	s.cfg.Game.ChargeEntry = false
	s.cfg.Game.HeartbeatInterval = time.Hour
	s.cfg.Server.RateLimit = 0
	s.store = persistence.NewMemoryStore()
	s.start()
}

func (s *HubSuite) start() {
	s.srv = NewGameServer(s.cfg, s.store, WithRoller(dice.Fixed(2)))
	s.http = httptest.NewServer(s.srv.Router())
}

func (s *HubSuite) TearDownTest() {
	s.http.Close()
	s.srv.timers.Stop()
}

type frame map[string]interface{}

func (s *HubSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

func (s *HubSuite) send(conn *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, data))
}

// expect reads frames until one with the given action arrives.
func (s *HubSuite) expect(conn *websocket.Conn, action string) frame {
	deadline := time.Now().Add(3 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		s.Require().NoError(err, "waiting for %s", action)
		var f frame
		s.Require().NoError(json.Unmarshal(data, &f))
		if f["action"] == action {
			return f
		}
	}
}

// identify binds conn to playerID at salon 1 table 2 and waits for the binding.
func (s *HubSuite) identify(conn *websocket.Conn, playerID string) {
	before := len(s.srv.sessionManager.GetByPlayerID(models.PlayerID(playerID)))
	s.send(conn, frame{"player_id": playerID, "salon_id": "1", "table_id": "2"})
	s.Require().Eventually(func() bool {
		return len(s.srv.sessionManager.GetByPlayerID(models.PlayerID(playerID))) == before+1
	}, 2*time.Second, 5*time.Millisecond)
}

// seat returns the current state of playerID at salon 1 table 2.
func (s *HubSuite) seat(playerID models.PlayerID) (game.PlayerState, bool) {
	g, err := s.srv.roomManager.Get(game.Key{SalonID: "1", TableID: "2"})
	if err != nil {
		return game.PlayerState{}, false
	}
	for _, p := range g.Snapshot().Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return game.PlayerState{}, false
}

func (s *HubSuite) startTable(conn *websocket.Conn, players ...string) frame {
	s.send(conn, frame{"action": "start_game", "salon_id": "1", "table_id": "2", "players": players})
	return s.expect(conn, "game_started")
}

func rollsOf(f frame, playerID string) []interface{} {
	for _, p := range f["players"].([]interface{}) {
		pm := p.(map[string]interface{})
		if pm["player_id"] == playerID {
			return pm["rolls"].([]interface{})
		}
	}
	return nil
}

func (s *HubSuite) TestDisconnectForfeitsAndSettles() {
	p1, p2 := s.dial(), s.dial()
	s.identify(p1, "101")
	s.identify(p2, "102")

	started := s.startTable(p1, "101", "102")
	s.expect(p2, "game_started")
	gameID := started["game_id"].(string)
	s.NotEmpty(gameID)

	for i := 0; i < 5; i++ {
		s.send(p1, frame{"action": "roll_dice", "player_id": 101, "roll": 1})
		s.expect(p1, "roll_update")
	}
	for i := 0; i < 2; i++ {
		s.send(p2, frame{"action": "roll_dice", "player_id": 102, "roll": 6})
		s.expect(p2, "roll_update")
	}
	s.Require().NoError(p2.Close())

	winner := s.expect(p1, "winner_announced")
	s.Equal("102", winner["winner_id"])
	s.Equal("Winner: 102", winner["message"])

	s.Require().Eventually(func() bool { return len(s.store.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	record := s.store.Records()[0]
	s.Equal(gameID, record.GameID)
	s.Equal("1", record.SalonID)
	s.Equal("2", record.TableID)
	line1, _ := record.Player("101")
	line2, _ := record.Player("102")
	s.Equal([]int{1, 1, 1, 1, 1}, line1.Rolls)
	s.Equal([]int{6, 6, 0, 0, 0}, line2.Rolls)

	s.Eventually(func() bool { return s.srv.roomManager.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	s.Equal(0, s.srv.broadcaster.Tracked())
}

func (s *HubSuite) TestWinnerGetsPersonalMessage() {
	p1, p2 := s.dial(), s.dial()
	s.identify(p1, "101")
	s.identify(p2, "102")
	s.startTable(p1, "101", "102")

	for i := 0; i < 5; i++ {
		s.send(p1, frame{"action": "roll_dice", "roll": 5})
		s.send(p2, frame{"action": "roll_dice", "roll": 1})
	}

	s.Equal("You won!", s.expect(p1, "winner_announced")["message"])
	s.Equal("Winner: 101", s.expect(p2, "winner_announced")["message"])
}

func (s *HubSuite) TestRollForUnknownTableOrPlayer() {
	p1 := s.dial()
	s.identify(p1, "101")
	s.startTable(p1, "101", "102")

	stranger := s.dial()
	s.send(stranger, frame{"action": "roll_dice", "player_id": 7, "roll": 3, "salon_id": "9", "table_id": "9"})
	s.Contains(s.expect(stranger, "error")["error"], game.ErrNotFound.Error())

	seated := s.dial()
	s.send(seated, frame{"action": "roll_dice", "player_id": 7, "roll": 3, "salon_id": "1", "table_id": "2"})
	s.Contains(s.expect(seated, "error")["error"], game.ErrPlayerNotFound.Error())

	g, err := s.srv.roomManager.Get(game.Key{SalonID: "1", TableID: "2"})
	s.Require().NoError(err)
	for _, p := range g.Snapshot().Players {
		s.Empty(p.Rolls, "existing game must be untouched")
	}
}

func (s *HubSuite) TestOccupiedTableRejected() {
	p1 := s.dial()
	s.identify(p1, "101")
	first := s.startTable(p1, "101", "102")

	other := s.dial()
	s.send(other, frame{"action": "start_game", "salon_id": "1", "table_id": "2", "players": []string{"201"}})
	s.Contains(s.expect(other, "error")["error"], "already has an active game")

	g, err := s.srv.roomManager.Get(game.Key{SalonID: "1", TableID: "2"})
	s.Require().NoError(err)
	s.Equal(first["game_id"], g.ID)
}

func (s *HubSuite) TestMalformedFrameKeepsConnection() {
	conn := s.dial()
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	s.expect(conn, "error")

	s.send(conn, frame{"action": "fold"})
	s.Contains(s.expect(conn, "error")["error"], "unknown action")

	s.identify(conn, "101")
	s.startTable(conn, "101")
}

func (s *HubSuite) TestEntryChargedOnlyWhenAllCanPay() {
	s.cfg.Game.ChargeEntry = true
	s.store.SeedProfile("101", decimal.NewFromInt(100), 10)
	s.store.SeedProfile("102", decimal.NewFromInt(5), 10)

	conn := s.dial()
	s.identify(conn, "101")
	s.send(conn, frame{"action": "start_game", "salon_id": "1", "table_id": "2", "players": []string{"101", "102"}})
	s.Contains(s.expect(conn, "error")["error"], "insufficient balance")
	s.Equal(0, s.srv.roomManager.Count())

	s.store.SeedProfile("102", decimal.NewFromInt(100), 10)
	s.startTable(conn, "101", "102")

	for _, id := range []models.PlayerID{"101", "102"} {
		balance, err := s.store.FindBalance(context.Background(), id)
		s.Require().NoError(err)
		s.True(decimal.NewFromInt(80).Equal(balance), "player %s balance %s", id, balance)
	}
}

func (s *HubSuite) TestBotTableFromDirectory() {
	s.store.Seat("1", "2", "101")
	conn := s.dial()
	s.identify(conn, "101")

	s.send(conn, frame{"action": "start_game", "salon_id": "1", "table_id": "2", "bots": true})
	started := s.expect(conn, "game_started")
	s.EqualValues(10, started["round_limit"])
	s.Len(started["players"], 4)

	s.send(conn, frame{"action": "roll_dice", "roll": 6, "bot_rolls": map[string]int{"bot-1": 1}})
	update := s.expect(conn, "roll_update")
	s.Equal([]interface{}{float64(1)}, rollsOf(update, "bot-1"))
	s.Equal([]interface{}{float64(2)}, rollsOf(update, "bot-2"))
}

func (s *HubSuite) TestAllPlayersLeaveAbandons() {
	p1 := s.dial()
	s.identify(p1, "101")
	s.startTable(p1, "101")
	s.Require().NoError(p1.Close())

	s.Require().Eventually(func() bool { return len(s.store.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	s.True(s.store.Records()[0].Abandoned)
	s.Empty(s.store.Records()[0].WinnerID)
}

func (s *HubSuite) TestPlayerForfeitsWhenLastConnectionCloses() {
	a, b, p2 := s.dial(), s.dial(), s.dial()
	s.identify(a, "101")
	s.identify(b, "101")
	s.identify(p2, "102")
	s.startTable(a, "101", "102")
	s.expect(p2, "game_started")

	s.Require().NoError(a.Close())
	s.Require().NoError(b.Close())

	s.Require().Eventually(func() bool {
		p, ok := s.seat("101")
		return ok && !p.Active && len(p.Rolls) == 5
	}, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		s.send(p2, frame{"action": "roll_dice", "roll": 1})
	}
	s.Equal("You won!", s.expect(p2, "winner_announced")["message"])
	s.Require().Eventually(func() bool { return len(s.store.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Equal(0, s.srv.broadcaster.Tracked())
}

func (s *HubSuite) TestOtherConnectionKeepsPlayerSeated() {
	a, b := s.dial(), s.dial()
	s.identify(a, "101")
	s.identify(b, "101")
	s.startTable(a, "101", "102")

	s.Require().NoError(a.Close())
	s.Require().Eventually(func() bool {
		return len(s.srv.sessionManager.GetByPlayerID("101")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	p, ok := s.seat("101")
	s.Require().True(ok)
	s.True(p.Active)
	s.Empty(p.Rolls)

	s.send(b, frame{"action": "roll_dice", "roll": 4})
	s.Equal([]interface{}{float64(4)}, rollsOf(s.expect(b, "roll_update"), "101"))
}

func (s *HubSuite) TestSimultaneousFinalRollsSettleOnce() {
	a, b, p2 := s.dial(), s.dial(), s.dial()
	s.identify(a, "101")
	s.identify(b, "101")
	s.identify(p2, "102")
	s.startTable(a, "101", "102")

	for i := 0; i < 5; i++ {
		s.send(p2, frame{"action": "roll_dice", "roll": 3})
	}
	for i := 0; i < 4; i++ {
		s.send(a, frame{"action": "roll_dice", "roll": 6})
	}
	s.Require().Eventually(func() bool {
		first, _ := s.seat("101")
		second, _ := s.seat("102")
		return len(first.Rolls) == 4 && len(second.Rolls) == 5
	}, 2*time.Second, 5*time.Millisecond)

	final, err := json.Marshal(frame{"action": "roll_dice", "roll": 6})
	s.Require().NoError(err)
	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, conn := range []*websocket.Conn{a, b} {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			<-start
			errs <- conn.WriteMessage(websocket.TextMessage, final)
		}(conn)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	s.Require().Eventually(func() bool { return len(s.store.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Never(func() bool { return len(s.store.Records()) > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	s.Equal(models.PlayerID("101"), s.store.Records()[0].WinnerID)
	s.Equal(0, s.srv.roomManager.Count())
	s.Equal(0, s.srv.broadcaster.Tracked())
}

// replyConn answers the first game_started it is sent with a roll on the same
// session, before the send returns.
type replyConn struct {
	srv     *GameServer
	sess    *session.Session
	mu      sync.Mutex
	replied bool
}

func (c *replyConn) Send(frame any) error {
	if _, ok := frame.(network.GameStarted); !ok {
		return nil
	}
	c.mu.Lock()
	first := !c.replied
	c.replied = true
	c.mu.Unlock()
	if first {
		c.srv.handleFrame(c.sess, []byte(`{"action":"roll_dice","roll":4}`))
	}
	return nil
}

func (c *replyConn) ReadMessage() ([]byte, error) { return nil, nil }
func (c *replyConn) Close() error                 { return nil }
func (c *replyConn) RemoteAddr() net.Addr         { return &net.TCPAddr{} }

func (s *HubSuite) TestGameEndingDuringStartLeavesNoHeartbeat() {
	s.cfg.Game.RoundLimit = 1
	conn := &replyConn{srv: s.srv}
	sess := session.NewSession("instant", conn)
	conn.sess = sess
	s.srv.sessionManager.Add(sess)

	start := []byte(`{"action":"start_game","player_id":"101","salon_id":"1","table_id":"2","players":["101"]}`)
	s.Require().True(s.srv.handleFrame(sess, start))

	s.True(conn.replied)
	s.Require().Len(s.store.Records(), 1)
	s.Equal(0, s.srv.roomManager.Count())
	s.Equal(0, s.srv.broadcaster.Tracked())
	s.Equal(0, s.srv.timers.Len())
}

func TestHealthAndMetrics(t *testing.T) {
	cfg := config.Default()
	srv := NewGameServer(cfg, persistence.NewMemoryStore())
	defer srv.timers.Stop()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","games":0,"connections":0}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dice_online_connections")
}
