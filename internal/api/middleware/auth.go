package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/gamestats/internal/api/apierr"
	"github.com/mcoot/gamestats/internal/model"
)

type contextKey string

const (
	playerIDContextKey contextKey = "player_id"
	tokenContextKey    contextKey = "token"
)

// TokenVerifier resolves a bearer token to a player ID
type TokenVerifier interface {
	Verify(token string) (model.PlayerID, error)
}

// Auth creates authentication middleware. Requests without a valid bearer
// token end with 401 and never reach next.
func Auth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			playerID, err := tokens.Verify(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, playerIDContextKey, playerID)
			ctx = context.WithValue(ctx, tokenContextKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the token from "Authorization: Bearer <token>"
func extractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetPlayerID returns the authenticated player ID from the request context
func GetPlayerID(ctx context.Context) (model.PlayerID, bool) {
	id, ok := ctx.Value(playerIDContextKey).(model.PlayerID)
	return id, ok && id != ""
}

// GetToken returns the verified bearer token from the request context
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// MustGetPlayerID returns the authenticated player ID or panics
func MustGetPlayerID(ctx context.Context) model.PlayerID {
	id, ok := GetPlayerID(ctx)
	if !ok {
		panic("no player in context - auth middleware not applied?")
	}
	return id
}
