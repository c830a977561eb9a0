package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/gamestats/internal/api/apierr"
)

// MaxBodyBytes caps every JSON request body
const MaxBodyBytes = 1 << 20

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// writeError writes the mapped error response. Anything that maps to a
// 500 is logged with the underlying cause; the client sees a generic body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if apierr.IsInternal(err) {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	apierr.WriteError(w, err)
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are
// ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apierr.NewInvalidRequestError("request body too large")
		case errors.Is(err, io.EOF):
			return apierr.NewInvalidRequestError("request body is required")
		default:
			return apierr.NewInvalidRequestError("invalid request body")
		}
	}
	if dec.More() {
		return apierr.NewInvalidRequestError("request body must be a single JSON object")
	}
	return nil
}
