package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steemit/sdgforum/internal/api"
	"github.com/steemit/sdgforum/internal/cache"
	"github.com/steemit/sdgforum/internal/category"
	"github.com/steemit/sdgforum/internal/chat"
	"github.com/steemit/sdgforum/internal/dashboard"
	"github.com/steemit/sdgforum/internal/db"
	"github.com/steemit/sdgforum/internal/interaction"
	"github.com/steemit/sdgforum/internal/moderation"
	"github.com/steemit/sdgforum/internal/review"
	"github.com/steemit/sdgforum/internal/thread"
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
	logger.Info("Starting SDG Forum API Server")

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if _, err := database.SeedCategories(ctx); err != nil {
		logger.Fatal("Failed to seed categories", zap.Error(err))
	}

	// Initialize Redis cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisCache.Close()

	auth, err := api.NewAuthenticator(&cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to initialize authenticator", zap.Error(err))
	}

	scorer, err := review.NewScorer(&cfg.Review, logging.WithComponent("relevance-scorer"))
	if err != nil {
		logger.Fatal("Failed to initialize relevance scorer", zap.Error(err))
	}

	// Repositories
	repo := db.NewRepository(database.DB)
	threadRepo := db.NewThreadRepository(repo)
	interactions := interaction.NewAggregator(db.NewInteractionRepository(repo))

	// Services
	categories := category.NewService(db.NewCategoryRepository(repo), redisCache, logging.WithComponent("category"))
	engine := moderation.NewEngine(scorer, threadRepo, cfg.Moderation.MatchThreshold, logging.WithComponent("moderation"))
	reports := moderation.NewAggregator(engine, threadRepo, cfg.Moderation.ReportThreshold, logging.WithComponent("report-aggregator"))
	threads := thread.NewService(threadRepo, categories, engine, reports, interactions, logging.WithComponent("thread"))
	dash := dashboard.NewService(db.NewDashboardRepository(repo), interactions)

	hub := chat.NewHub(logging.WithComponent("chat-hub"))
	relay := chat.NewRelay(hub, redisCache, logging.WithComponent("chat-relay"))
	chatService := chat.NewService(db.NewChatRepository(repo), categories, chat.NewGenerator(), chat.Options{
		MaxMessageLength: cfg.Chat.MaxMessageSize,
		PageLimit:        cfg.Chat.PageLimit,
	}, logging.WithComponent("chat"))
	chatService.SetBroadcaster(relay)

	created, err := chatService.EnsureSDGGroups(ctx)
	if err != nil {
		logger.Fatal("Failed to create SDG chat groups", zap.Error(err))
	}
	if created > 0 {
		logger.Info("Created SDG chat groups", zap.Int("count", created))
	}

	health := map[string]api.HealthChecker{"database": database}
	if redisCache.Enabled() {
		health["redis"] = redisCache
	}

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	api.NewRouter(api.Services{
		Threads:    threads,
		Chat:       chatService,
		Categories: categories,
		Dashboard:  dash,
		Hub:        hub,
		Health:     health,
	}, auth, cfg.Server.AllowedOrigins).SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return relay.Start(gctx)
	})
	g.Go(func() error {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server exited")
}
