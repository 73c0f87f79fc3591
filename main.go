package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/diceserver/config"
	"github.com/wfunc/diceserver/events"
	"github.com/wfunc/diceserver/logger"
	"github.com/wfunc/diceserver/persistence"
	"github.com/wfunc/diceserver/server"
)

func openStore(ctx context.Context, cfg config.StorageConfig) (persistence.Store, error) {
	switch cfg.Backend {
	case "mongo":
		return persistence.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case "postgres":
		return persistence.NewGormPostgreSQL(
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.DBName,
		)
	default:
		return persistence.NewMemoryStore(), nil
	}
}

func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml and .env")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer store.Close()
	logger.Log.Infof("Storage backend %s ready.", cfg.Storage.Backend)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Nats.URL != "" {
		p, err := events.NewNATSPublisher(cfg.Nats.URL, cfg.Nats.Token, cfg.Nats.SubjectPrefix)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to NATS: %v", err)
		}
		publisher = p
		logger.Log.Infof("Publishing game events to %s", cfg.Nats.URL)
	}
	defer publisher.Close()

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, store, server.WithPublisher(publisher))

	errCh := make(chan error, 1)
	go func() {
		errCh <- gameServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Log.Info("Shutting down game server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("Shutdown: %v", err)
		}
	}
}
