package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/diceserver/broadcast"
	"github.com/wfunc/diceserver/config"
	"github.com/wfunc/diceserver/dice"
	"github.com/wfunc/diceserver/events"
	"github.com/wfunc/diceserver/logger"
	"github.com/wfunc/diceserver/monitor"
	"github.com/wfunc/diceserver/network"
	"github.com/wfunc/diceserver/persistence"
	"github.com/wfunc/diceserver/room"
	gameserver_rpc "github.com/wfunc/diceserver/rpc"
	"github.com/wfunc/diceserver/services"
	"github.com/wfunc/diceserver/session"
	"github.com/wfunc/diceserver/settlement"
	"github.com/wfunc/diceserver/timer"
)

const (
	writeWait       = 10 * time.Second
	maxFrameSize    = 64 << 10
	settleTimeout   = 30 * time.Second
	timerResolution = 50 * time.Millisecond
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	router         chi.Router
	httpServer     *http.Server
	roomManager    *room.Manager
	sessionManager *session.Manager
	playerService  *services.PlayerService
	broadcaster    *broadcast.Scheduler
	settlement     *settlement.Engine
	timers         *timer.TimerManager
	directory      persistence.TableDirectory
	publisher      events.Publisher
	monitor        *monitor.Monitor
	roller         dice.Roller
	rpcServer      *gameserver_rpc.Server
	shuttingDown   atomic.Bool
	shutdownOnce   sync.Once
}

type Option func(*GameServer)

// WithPublisher sets the event publisher. The default drops events.
func WithPublisher(p events.Publisher) Option {
	return func(s *GameServer) { s.publisher = p }
}

// WithMonitor sets the metrics monitor. The default has its own registry.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *GameServer) { s.monitor = m }
}

// WithRoller sets the dice used for bot seats.
func WithRoller(r dice.Roller) Option {
	return func(s *GameServer) { s.roller = r }
}

func NewGameServer(cfg *config.Config, store persistence.Store, opts ...Option) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		playerService:  services.NewPlayerService(store),
		timers:         timer.NewTimerManager(timerResolution),
		directory:      store,
		publisher:      events.NopPublisher{},
		roller:         dice.New(nil),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.monitor == nil {
		s.monitor = monitor.NewMonitor(cfg.Server.MetricsNamespace)
	}

	s.broadcaster = broadcast.NewScheduler(s.sessionManager, s.timers, cfg.Game.HeartbeatInterval)
	s.broadcaster.OnSendFailure(func(sess *session.Session, err error) {
		go s.dropSession(sess)
	})

	s.settlement = settlement.NewEngine(store, store, store, s.roomManager, cfg.Game,
		settlement.WithPublisher(s.publisher),
		settlement.WithRecorder(s.monitor),
	)

	s.router = s.routes()
	return s
}

func (s *GameServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	ws := r.With()
	if s.cfg.Server.RateLimit > 0 {
		ws = r.With(httprate.LimitByIP(s.cfg.Server.RateLimit, time.Minute))
	}
	ws.Get("/ws", s.handleWebSocket)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.monitor.Handler())
	return r
}

// Router is the HTTP handler of the gateway.
func (s *GameServer) Router() http.Handler {
	return s.router
}

// Start runs the admin RPC server and serves HTTP until Shutdown.
func (s *GameServer) Start() error {
	rpcServer, err := gameserver_rpc.NewServer(s.cfg.Server.RPCAddress)
	if err != nil {
		return err
	}
	s.rpcServer = rpcServer
	go s.rpcServer.Start()
	s.rpcServer.SetServing(true)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.HTTPAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes the open ones. Games in
// progress are not forfeited.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.shuttingDown.Store(true)
		if s.rpcServer != nil {
			s.rpcServer.SetServing(false)
		}
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		for _, sess := range s.sessionManager.All() {
			_ = sess.Close()
		}
		s.timers.Stop()
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
	})
	return err
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":      "ok",
		"games":       s.roomManager.Count(),
		"connections": s.sessionManager.Count(),
	}
	if s.shuttingDown.Load() {
		status = http.StatusServiceUnavailable
		body["status"] = "shutting_down"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	wsConn := network.NewWSConnection(conn, writeWait)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlineConnections()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		sess.Disconnect(func() { s.leave(sess) })
		_ = wsConn.Close()
		s.monitor.DecOnlineConnections()
	}()

	for {
		raw, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warnf("Read error on session %s: %v", sess.GetID(), err)
			}
			return
		}
		if !s.handleFrame(sess, raw) {
			return
		}
	}
}

// dropSession treats a failed send as a disconnect of that connection.
func (s *GameServer) dropSession(sess *session.Session) {
	sess.Disconnect(func() { s.leave(sess) })
	_ = sess.Close()
}

// leave unregisters sess and forfeits its player when it was their last
// connection.
func (s *GameServer) leave(sess *session.Session) {
	remaining, removed := s.sessionManager.Detach(sess.GetID())
	if removed && remaining == 0 {
		s.forfeit(sess)
	}
}
