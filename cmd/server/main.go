package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/gamestats/internal/api"
	"github.com/mcoot/gamestats/internal/config"
	"github.com/mcoot/gamestats/internal/factory"
	"github.com/mcoot/gamestats/internal/middleware"
)

func main() {
	// Load configuration from .env and the environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create application factory
	app, err := factory.New(ctx, factory.FromServerConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("storage close error", slog.String("error", err.Error()))
		}
	}()

	rateLimit := middleware.DefaultRateLimitConfig()
	rateLimit.Enabled = cfg.RateLimitEnabled
	rateLimit.RequestsPerSecond = cfg.RateLimitRPS
	rateLimit.BurstSize = cfg.RateLimitBurst
	rateLimit.TrustProxy = cfg.TrustProxy

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AccountService: app.AccountService,
		StatsService:   app.StatsService,
		TokenService:   app.TokenService,
		Metrics:        app.Metrics,
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins},
		RateLimit:      rateLimit,
		Context:        ctx,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()), slog.String("storage", cfg.Storage))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
