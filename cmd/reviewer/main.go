package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/steemit/sdgforum/internal/db"
	"github.com/steemit/sdgforum/internal/moderation"
	"github.com/steemit/sdgforum/internal/review"
	"github.com/steemit/sdgforum/pkg/config"
	"github.com/steemit/sdgforum/pkg/logging"
	"github.com/steemit/sdgforum/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting SDG Forum re-review sweeper")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	scorer, err := review.NewScorer(&cfg.Review, logging.WithComponent("relevance-scorer"))
	if err != nil {
		logger.Fatal("Failed to initialize relevance scorer", zap.Error(err))
	}

	threads := db.NewThreadRepository(db.NewRepository(database.DB))
	engine := moderation.NewEngine(scorer, threads, cfg.Moderation.MatchThreshold, logging.WithComponent("moderation"))
	reports := moderation.NewAggregator(engine, threads, cfg.Moderation.ReportThreshold, logging.WithComponent("report-aggregator"))
	sweeper := moderation.NewSweeper(reports, threads, cfg.Moderation.SweepInterval, cfg.Moderation.SweepBatch, logging.WithComponent("sweeper"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sweeper stopped with error", zap.Error(err))
	}

	logger.Info("Sweeper exited")
}
