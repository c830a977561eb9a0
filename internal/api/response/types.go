package response

import (
	"time"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/services/account"
	"github.com/mcoot/gamestats/internal/services/stats"
)

// Player is the public projection of a player. It has no field that could
// carry credential material.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Ties       int       `json:"ties"`
	TotalGames int       `json:"totalGames"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:         string(p.ID),
		Name:       p.Name,
		Wins:       p.Wins,
		Losses:     p.Losses,
		Ties:       p.Ties,
		TotalGames: p.TotalGames,
		CreatedAt:  p.CreatedAt,
	}
}

// PlayerResponse wraps a single player
type PlayerResponse struct {
	Player Player `json:"player"`
}

// NewPlayerResponse creates a PlayerResponse
func NewPlayerResponse(p *model.Player) PlayerResponse {
	return PlayerResponse{Player: PlayerFromModel(p)}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player    Player    `json:"player"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *account.Session) AuthResponse {
	return AuthResponse{
		Player:    PlayerFromModel(s.Player),
		Token:     s.Token.Value,
		ExpiresAt: s.Token.ExpiresAt,
	}
}

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Ties       int     `json:"ties"`
	TotalGames int     `json:"totalGames"`
	WinRate    float64 `json:"winRate"`
}

// LeaderboardResponse is the response for the leaderboard endpoint
type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardFromEntries converts ranked stats entries
func LeaderboardFromEntries(entries []stats.Entry) LeaderboardResponse {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{
			ID:         string(e.Player.ID),
			Name:       e.Player.Name,
			Wins:       e.Player.Wins,
			Losses:     e.Player.Losses,
			Ties:       e.Player.Ties,
			TotalGames: e.Player.TotalGames,
			WinRate:    e.WinRate,
		}
	}
	return LeaderboardResponse{Entries: out}
}

// HealthResponse is the response for the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}
