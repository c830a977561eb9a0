package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string
	Debug          bool
}

// CORS creates middleware that answers preflight requests and sets CORS
// headers for the configured origins. With no origins configured it is a
// pass-through.
func CORS(cfg CORSConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: methods,
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         600,
		Debug:          cfg.Debug,
	})

	logger.Info("CORS configured",
		slog.Any("allowed_origins", cfg.AllowedOrigins),
		slog.Any("allowed_methods", methods),
	)

	return c.Handler
}
