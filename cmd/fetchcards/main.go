// Command fetchcards resolves link preview metadata for pending cards.
// Run it periodically, e.g. from cron; overlapping runs exit immediately.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crabber/internal/cards"
	"crabber/internal/config"
	"crabber/internal/database"
	"crabber/internal/middleware"
	"crabber/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := cards.NewWorker(
		repository.NewCardRepository(db),
		cards.NewHTTPFetcher(cfg.CardFetchTimeout(), cfg.CardUserAgent),
		cards.Options{
			LockDir:         cfg.CardLockDir,
			RequestsPerSec:  cfg.CardFetchRPS,
			BreakerFailures: cfg.CardBreakerFailures,
		},
	)

	res, err := worker.Run(ctx)
	if err != nil {
		middleware.Logger.Error("Card fetch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if res.Locked {
		middleware.Logger.Info("Another card fetch is running, exiting")
		return
	}
	middleware.Logger.Info("Card fetch finished",
		slog.Int("ready", res.Ready),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped),
	)
}
