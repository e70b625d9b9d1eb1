package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mathcards/grinddeck-server/internal/config"
	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/server"
	"github.com/mathcards/grinddeck-server/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting grind deck server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	history, err := storage.OpenHistory(ctx,
		cfg.Storage.History.Driver,
		cfg.Storage.History.DSN,
		cfg.Storage.History.MaxSessions,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to open history store", zap.Error(err))
	}
	defer history.Close()
	logger.Info("history store initialized",
		zap.String("driver", cfg.Storage.History.Driver),
		zap.Int("max_sessions", cfg.Storage.History.MaxSessions),
	)

	kv, err := storage.OpenKV(cfg.Storage.KV.Driver, cfg.Storage.KV.Service, cfg.Storage.KV.FallbackPath)
	if err != nil {
		logger.Fatal("failed to open key-value store", zap.Error(err))
	}
	logger.Info("key-value store initialized", zap.String("driver", cfg.Storage.KV.Driver))

	replays := game.NewReplayRecorder(logger, cfg.Storage.ReplayDir)

	engineOpts := []game.Option{
		game.WithKeyValueStore(kv, cfg.Storage.KV.KeyPrefix),
		game.WithHistory(history),
		game.WithEndHook(replays.Hook()),
	}
	if cfg.Game.Seed != 0 {
		engineOpts = append(engineOpts, game.WithSeed(cfg.Game.Seed))
	}

	gameMgr := game.NewManager(logger,
		game.WithEngineOptions(engineOpts...),
		game.WithRetention(cfg.Server.SessionTTL),
	)
	go gameMgr.Run(ctx, cfg.Server.TickInterval)
	logger.Info("game manager initialized",
		zap.Duration("tick_interval", cfg.Server.TickInterval),
		zap.Duration("session_ttl", cfg.Server.SessionTTL),
	)

	srv := server.New(cfg, gameMgr, history, replays, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTP.Address,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server",
			zap.String("address", cfg.Server.HTTP.Address),
			zap.String("websocket_path", cfg.Server.WebSocket.Path),
		)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()
	srv.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete", zap.Error(err))
	}

	logger.Info("grind deck server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
