package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/referral-hub/internal/api/handlers"
	"github.com/hugh/referral-hub/internal/api/middleware"
	"github.com/hugh/referral-hub/internal/auth"
	"github.com/hugh/referral-hub/internal/payouts"
	"github.com/hugh/referral-hub/internal/referrals"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB              *gorm.DB
	Redis           *redis.Client
	Logger          *slog.Logger
	Sessions        *auth.SessionStore
	AuthService     *auth.Service
	ReferralService *referrals.Service
	PayoutService   *payouts.Service
	AllowedOrigins  []string // CORS allowed origins
	RateLimitReqs   int      // Rate limit requests per window
	RateLimitSecs   int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Sessions)
	referralHandler := handlers.NewReferralHandler(cfg.ReferralService)
	payoutHandler := handlers.NewPayoutHandler(cfg.PayoutService)
	webhookHandler := handlers.NewWebhookHandler(cfg.PayoutService, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/code", authHandler.IssueCode)
		r.Post("/auth/verify", authHandler.VerifyCode)

		// Stripe calls this; signature verification is the auth
		r.Post("/webhooks/stripe", webhookHandler.HandleStripe)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Sessions))

			// Re-applied per user so one member cannot exhaust the
			// shared IP budget behind a proxy
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimitByUser(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.Route("/referrals", func(r chi.Router) {
				r.Get("/", referralHandler.List)
				r.Post("/", referralHandler.Create)
				r.Put("/{id}/stage", referralHandler.UpdateStage)
			})

			r.Route("/payouts", func(r chi.Router) {
				r.Post("/account", payoutHandler.Ensure)
				r.Get("/account", payoutHandler.Status)
			})
		})
	})

	return &Router{r}
}
