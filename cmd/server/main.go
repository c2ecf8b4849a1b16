package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/referral-hub/internal/api"
	"github.com/hugh/referral-hub/internal/auth"
	"github.com/hugh/referral-hub/internal/circle"
	"github.com/hugh/referral-hub/internal/database"
	"github.com/hugh/referral-hub/internal/payouts"
	"github.com/hugh/referral-hub/internal/referrals"
	"github.com/hugh/referral-hub/internal/tasks"
	"github.com/hugh/referral-hub/pkg/config"
	"github.com/hugh/referral-hub/pkg/queue"
	"github.com/hugh/referral-hub/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting Referral Hub server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, notifications will be sent inline", "error", err)
		redisClient = nil
	}

	// Asynq client for enqueueing receiver notifications
	var asynqClient *asynq.Client
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
	}

	// Community directory client
	directory := circle.NewClient(&cfg.Circle)
	if cfg.Circle.Token == "" {
		logger.Warn("CIRCLE_API_TOKEN not set, directory lookups will fail")
	}

	// Initialize services
	sessions := auth.NewSessionStore(db, cfg.Session.TTL())
	authService := auth.NewService(db, directory, sessions, logger)

	var notifier referrals.Notifier
	if asynqClient != nil {
		notifier = tasks.NewQueueNotifier(asynqClient, logger)
	} else {
		notifier = tasks.NewDirectNotifier(directory, logger)
	}
	referralService := referrals.NewService(db, directory, notifier, logger)

	processor := payouts.NewStripeClient(cfg.Stripe.SecretKey)
	payoutService := payouts.NewService(db, processor, cfg.Stripe.WebhookSecret, cfg.Server.BaseURL, logger)
	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, payout account creation will fail")
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:              db,
		Redis:           redisClient,
		Logger:          logger,
		Sessions:        sessions,
		AuthService:     authService,
		ReferralService: referralService,
		PayoutService:   payoutService,
		RateLimitReqs:   cfg.RateLimit.Requests,
		RateLimitSecs:   cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
