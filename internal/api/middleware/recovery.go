package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/gamestats/internal/api/apierr"
	"github.com/mcoot/gamestats/internal/middleware"
)

// Recovery creates panic recovery middleware for the API
// Returns JSON error responses on panic
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}

// RateLimited writes the JSON 429 body used by the API rate limiter
func RateLimited(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewRateLimitedError())
}
