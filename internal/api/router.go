package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamestats/internal/api/handler"
	apimiddleware "github.com/mcoot/gamestats/internal/api/middleware"
	"github.com/mcoot/gamestats/internal/metrics"
	"github.com/mcoot/gamestats/internal/middleware"
	"github.com/mcoot/gamestats/internal/services/account"
	"github.com/mcoot/gamestats/internal/services/stats"
	"github.com/mcoot/gamestats/internal/services/token"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AccountService *account.Service
	StatsService   *stats.Service
	TokenService   *token.Service
	Metrics        *metrics.Metrics
	CORS           middleware.CORSConfig
	RateLimit      middleware.RateLimitConfig

	// Context bounds background work such as rate limiter cleanup.
	// Defaults to context.Background().
	Context context.Context
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	r := mux.NewRouter()

	// Create handlers
	accountHandler := handler.NewAccountHandler(cfg.AccountService, cfg.Logger)
	statsHandler := handler.NewStatsHandler(cfg.StatsService, cfg.Logger)

	// Create middleware
	authMiddleware := apimiddleware.Auth(cfg.TokenService)
	rateLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimit, cfg.Logger, apimiddleware.RateLimited)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(apimiddleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))
	api.Use(middleware.Metrics(cfg.Metrics, routeTemplate))

	// Credential routes are rate limited per client
	credentials := api.NewRoute().Subrouter()
	credentials.Use(rateLimiter.Middleware)
	credentials.HandleFunc("/accounts", accountHandler.Register).Methods(http.MethodPost)
	credentials.HandleFunc("/sessions", accountHandler.Login).Methods(http.MethodPost)

	// Public routes
	api.HandleFunc("/players/{id}", accountHandler.GetPlayer).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", statsHandler.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	// Protected routes
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/me", accountHandler.Me).Methods(http.MethodGet)
	protected.HandleFunc("/players/{id}/stats", statsHandler.ReportOutcome).Methods(http.MethodPost)

	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	return middleware.CORS(cfg.CORS, cfg.Logger)(r)
}

// routeTemplate labels metrics by route pattern rather than raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
