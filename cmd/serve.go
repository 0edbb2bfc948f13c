package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/MariDenig/chatBot-hist/api"
	"github.com/MariDenig/chatBot-hist/internal/bot"
	"github.com/MariDenig/chatBot-hist/internal/config"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// executeServe starts the HTTP API server and blocks until SIGINT or
// SIGTERM.
func executeServe() error {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The Mongo client connects lazily; a down database does not stop
	// startup because the failover store keeps the chat flow working.
	mongo, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}
	defer func() {
		if err := mongo.Close(context.Background()); err != nil {
			logger.Warn("closing storage", "error", err)
		}
	}()

	if mongo.Connected(ctx) {
		logger.Info("connected to MongoDB", "database", cfg.MongoDatabase)
	} else {
		logger.Warn("MongoDB unreachable, transcripts will stay in memory until it recovers")
	}

	st := store.NewFailover(mongo, store.NewMemory(), logger.With("component", "failover"))

	gen, err := bot.NewGenerator(ctx, cfg, logger.With("component", "generator"))
	if err != nil {
		return fmt.Errorf("failed to set up the model client: %w", err)
	}

	responder := bot.NewResponder(
		gen,
		bot.NewWeatherClient(cfg.OpenWeatherAPIKey, logger.With("component", "weather")),
		bot.NewClock(cfg.Timezone, logger.With("component", "clock")),
		st,
		logger.With("component", "responder"),
	)

	server := api.NewServer(cfg, st, responder, logger.With("component", "api"))
	return server.Run(ctx, cfg.Addr())
}
