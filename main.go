package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"investstream/config"
	"investstream/internal/adapters/logger"
	"investstream/internal/adapters/sqlite"
	"investstream/internal/adapters/wsclient"
	"investstream/internal/app"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Event Store (Database Adapter)
	store, err := sqlite.NewStore(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize event store")
		log.Fatalf("FATAL: Failed to initialize event store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing event store")
		}
	}()

	// 4. Initialize Stream Client (WebSocket Adapter)
	streamClient, err := wsclient.New(wsclient.Config{
		URL:                  cfg.StreamURL,
		Token:                cfg.AuthToken,
		Logger:               appLogger,
		PingInterval:         cfg.PingInterval,
		ReconnectMinDelay:    cfg.ReconnectMinDelay,
		ReconnectMaxDelay:    cfg.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize stream client")
		log.Fatalf("FATAL: Failed to initialize stream client: %v", err)
	}

	// 5. Initialize Consumer Service
	service, err := app.New(app.Config{
		FIGIs:          cfg.FIGIs,
		CandleInterval: cfg.CandleInterval,
		OrderBookDepth: cfg.OrderBookDepth,
	}, appLogger, streamClient, store)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize consumer service")
		log.Fatalf("FATAL: Failed to initialize consumer service: %v", err)
	}

	// 6. Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Run(ctx); err != nil && ctx.Err() == nil {
		appLogger.Error(ctx, err, "Consumer service exited with error")
		log.Fatalf("FATAL: Consumer service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
