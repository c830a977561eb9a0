package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamestats/internal/api"
	"github.com/mcoot/gamestats/internal/api/apierr"
	"github.com/mcoot/gamestats/internal/api/handler"
	"github.com/mcoot/gamestats/internal/api/response"
	"github.com/mcoot/gamestats/internal/factory"
	"github.com/mcoot/gamestats/internal/middleware"
	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T, opts ...func(*api.RouterConfig)) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := factory.NewTestApp()
	cfg := api.RouterConfig{
		Logger:         testutil.NopLogger(),
		AccountService: app.AccountService,
		StatsService:   app.StatsService,
		TokenService:   app.TokenService,
		Metrics:        app.Metrics,
		RateLimit:      middleware.RateLimitConfig{Enabled: false},
		Context:        ctx,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{
		handler: api.NewRouter(cfg),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) register(t *testing.T, name, email string) response.AuthResponse {
	t.Helper()

	body := map[string]string{"name": name, "email": email, "secret": "password123"}
	rr := ts.request(http.MethodPost, "/api/v1/accounts", body, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) report(t *testing.T, token, result string) response.PlayerResponse {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/players/me/stats", map[string]string{"result": result}, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp response.PlayerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.register(t, "Alice", "alice@example.com")

	assert.Equal(t, "Alice", resp.Player.Name)
	assert.NotEmpty(t, resp.Player.ID)
	assert.Zero(t, resp.Player.TotalGames)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, ts.app.MockClock.Now().Add(24*time.Hour), resp.ExpiresAt.UTC())
}

func TestRegisterNeverExposesCredential(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"name": "Alice", "secret": "password123"}
	rr := ts.request(http.MethodPost, "/api/v1/accounts", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	assert.NotContains(t, rr.Body.String(), "password123")
	assert.NotContains(t, rr.Body.String(), "$2a$")
	assert.NotContains(t, rr.Body.String(), "credential")
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"short secret", map[string]string{"name": "Bob", "secret": "short"}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"blank name", map[string]string{"name": "   ", "secret": "password123"}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"bad email", map[string]string{"name": "Bob", "email": "not-an-email", "secret": "password123"}, http.StatusBadRequest, apierr.CodeValidationFailed},
		{"duplicate name", map[string]string{"name": "ALICE", "secret": "password123"}, http.StatusBadRequest, apierr.CodeDuplicateName},
		{"duplicate email", map[string]string{"name": "Bob", "email": "alice@example.com", "secret": "password123"}, http.StatusBadRequest, apierr.CodeDuplicateEmail},
		{"malformed body", `{"name":`, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"empty body", "", http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"trailing data", `{"name":"Bob","secret":"password123"}{}`, http.StatusBadRequest, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.register(t, "Alice", "alice@example.com")

			rr := ts.request(http.MethodPost, "/api/v1/accounts", tt.body, "")
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "alice@example.com")

	for _, body := range []map[string]string{
		{"name": "alice", "secret": "password123"},
		{"email": "ALICE@example.com", "secret": "password123"},
	} {
		rr := ts.request(http.MethodPost, "/api/v1/sessions", body, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp response.AuthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, registered.Player.ID, resp.Player.ID)
		assert.NotEmpty(t, resp.Token)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "Alice", "")

	wrongSecret := ts.request(http.MethodPost, "/api/v1/sessions",
		map[string]string{"name": "Alice", "secret": "wrong-secret"}, "")
	unknownName := ts.request(http.MethodPost, "/api/v1/sessions",
		map[string]string{"name": "Nobody", "secret": "wrong-secret"}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongSecret.Code)
	assert.Equal(t, wrongSecret.Code, unknownName.Code)
	assert.Equal(t, wrongSecret.Body.String(), unknownName.Body.String())
	assert.Equal(t, apierr.CodeInvalidCredentials, decodeError(t, wrongSecret).Code)
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	rr := ts.request(http.MethodGet, "/api/v1/me", nil, registered.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.PlayerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, registered.Player.ID, resp.Player.ID)
	assert.Equal(t, "Alice", resp.Player.Name)
}

func TestUnauthorizedTokens(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	// Swap the first signature character
	sig := strings.LastIndex(registered.Token, ".") + 1
	swapped := byte('A')
	if registered.Token[sig] == 'A' {
		swapped = 'B'
	}
	tampered := registered.Token[:sig] + string(swapped) + registered.Token[sig+1:]

	for name, token := range map[string]string{
		"missing":  "",
		"garbage":  "not-a-token",
		"tampered": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			rr := ts.request(http.MethodGet, "/api/v1/me", nil, token)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, apierr.CodeUnauthorized, decodeError(t, rr).Code)
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	ts.app.MockClock.Advance(24 * time.Hour)

	rr := ts.request(http.MethodGet, "/api/v1/me", nil, registered.Token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/players/me/stats", map[string]string{"result": "win"}, registered.Token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	p, err := ts.app.AccountService.GetPlayer(context.Background(), model.PlayerID(registered.Player.ID))
	require.NoError(t, err)
	assert.Zero(t, p.TotalGames)
}

func TestGetPlayer(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	rr := ts.request(http.MethodGet, "/api/v1/players/"+registered.Player.ID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.PlayerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Alice", resp.Player.Name)

	rr = ts.request(http.MethodGet, "/api/v1/players/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decodeError(t, rr).Code)
}

func TestReportOutcome(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	ts.report(t, registered.Token, "win")
	ts.report(t, registered.Token, "win")
	ts.report(t, registered.Token, "loss")
	resp := ts.report(t, registered.Token, "TIE")

	assert.Equal(t, 2, resp.Player.Wins)
	assert.Equal(t, 1, resp.Player.Losses)
	assert.Equal(t, 1, resp.Player.Ties)
	assert.Equal(t, 4, resp.Player.TotalGames)
}

func TestReportOutcomeWithOwnID(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	rr := ts.request(http.MethodPost, "/api/v1/players/"+registered.Player.ID+"/stats",
		map[string]string{"result": "win"}, registered.Token)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReportOutcomeForAnotherPlayerForbidden(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "Alice", "")
	bob := ts.register(t, "Bob", "")

	rr := ts.request(http.MethodPost, "/api/v1/players/"+bob.Player.ID+"/stats",
		map[string]string{"result": "win"}, alice.Token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeForbidden, decodeError(t, rr).Code)

	p, err := ts.app.AccountService.GetPlayer(context.Background(), model.PlayerID(bob.Player.ID))
	require.NoError(t, err)
	assert.Zero(t, p.TotalGames)
}

func TestReportOutcomeIgnoresBodyID(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "Alice", "")
	bob := ts.register(t, "Bob", "")

	body := map[string]string{"result": "win", "id": bob.Player.ID, "playerId": bob.Player.ID}
	rr := ts.request(http.MethodPost, "/api/v1/players/me/stats", body, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.PlayerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, alice.Player.ID, resp.Player.ID)
	assert.Equal(t, 1, resp.Player.Wins)

	p, err := ts.app.AccountService.GetPlayer(context.Background(), model.PlayerID(bob.Player.ID))
	require.NoError(t, err)
	assert.Zero(t, p.TotalGames)
}

func TestReportOutcomeErrors(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")

	rr := ts.request(http.MethodPost, "/api/v1/players/me/stats", map[string]string{"result": "draw"}, registered.Token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidOutcome, decodeError(t, rr).Code)

	huge := `{"result":"` + strings.Repeat("a", handler.MaxBodyBytes+1) + `"}`
	rr = ts.request(http.MethodPost, "/api/v1/players/me/stats", huge, registered.Token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
}

func TestReportOutcomeForDeletedTokenSubject(t *testing.T) {
	ts := newTestServer(t)

	// A validly signed token for a player that was never stored
	token, err := ts.app.TokenService.Issue("ghost", time.Hour)
	require.NoError(t, err)

	rr := ts.request(http.MethodPost, "/api/v1/players/me/stats", map[string]string{"result": "win"}, token.Value)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decodeError(t, rr).Code)
}

func TestLeaderboard(t *testing.T) {
	ts := newTestServer(t)

	// A wins 5 of 10, B wins 5 of 5, C wins 3 of 3
	for name, results := range map[string][]string{
		"A": append(repeat("win", 5), repeat("loss", 5)...),
		"B": repeat("win", 5),
		"C": repeat("win", 3),
	} {
		registered := ts.register(t, name, "")
		for _, result := range results {
			ts.report(t, registered.Token, result)
		}
	}
	ts.register(t, "Idle", "")

	rr := ts.request(http.MethodGet, "/api/v1/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.LeaderboardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "B", resp.Entries[0].Name)
	assert.Equal(t, 100.0, resp.Entries[0].WinRate)
	assert.Equal(t, "A", resp.Entries[1].Name)
	assert.Equal(t, 50.0, resp.Entries[1].WinRate)
	assert.Equal(t, "C", resp.Entries[2].Name)

	rr = ts.request(http.MethodGet, "/api/v1/leaderboard?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "B", resp.Entries[0].Name)
}

func TestLeaderboardEmpty(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "Idle", "")

	rr := ts.request(http.MethodGet, "/api/v1/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"entries":[]}`, rr.Body.String())
}

func TestLeaderboardBadLimit(t *testing.T) {
	ts := newTestServer(t)

	for _, limit := range []string{"abc", "-1", "1.5"} {
		rr := ts.request(http.MethodGet, "/api/v1/leaderboard?limit="+limit, nil, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, limit)
		assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
	}
}

func TestCredentialRoutesRateLimited(t *testing.T) {
	ts := newTestServer(t, func(cfg *api.RouterConfig) {
		cfg.RateLimit = middleware.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 0.001,
			BurstSize:         2,
		}
	})

	body := map[string]string{"name": "Nobody", "secret": "password123"}
	for i := 0; i < 2; i++ {
		rr := ts.request(http.MethodPost, "/api/v1/sessions", body, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := ts.request(http.MethodPost, "/api/v1/sessions", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, decodeError(t, rr).Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Other routes are not limited
	rr = ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, func(cfg *api.RouterConfig) {
		cfg.CORS = middleware.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "Alice", "")
	ts.report(t, registered.Token, "win")
	ts.request(http.MethodGet, "/api/v1/health", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `gamestats_outcomes_total{result="win"} 1`)
	assert.Contains(t, body, `route="/api/v1/health"`)
	assert.Contains(t, body, `route="/api/v1/players/{id}/stats"`)
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
