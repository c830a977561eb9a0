package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mcoot/gamestats/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintf(o.w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case Leaderboard:
		o.printLeaderboard(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Ties       int       `json:"ties"`
	TotalGames int       `json:"totalGames"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (p Player) toModel() *model.Player {
	return &model.Player{
		ID:         model.PlayerID(p.ID),
		Name:       p.Name,
		Wins:       p.Wins,
		Losses:     p.Losses,
		Ties:       p.Ties,
		TotalGames: p.TotalGames,
		CreatedAt:  p.CreatedAt,
	}
}

func playerFromModel(p *model.Player) Player {
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

// PlayerResult wraps a single player
type PlayerResult struct {
	Player Player `json:"player"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player    Player    `json:"player"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
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

// Leaderboard response type
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	_, _ = fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Name, p.ID)
	_, _ = fmt.Fprintf(o.w, "Record: %d-%d-%d (%d games)\n", p.Wins, p.Losses, p.Ties, p.TotalGames)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	_, _ = fmt.Fprintf(o.w, "Token expires: %s\n", a.ExpiresAt.Format(time.RFC3339))
}

func (o *Output) printLeaderboard(l Leaderboard) {
	if len(l.Entries) == 0 {
		_, _ = fmt.Fprintln(o.w, "No ranked players yet")
		return
	}
	_, _ = fmt.Fprintf(o.w, "%-4s %-32s %5s %6s %5s %6s %7s\n", "#", "NAME", "WINS", "LOSSES", "TIES", "GAMES", "WIN%")
	for i, e := range l.Entries {
		_, _ = fmt.Fprintf(o.w, "%-4d %-32s %5d %6d %5d %6d %7.1f\n",
			i+1, e.Name, e.Wins, e.Losses, e.Ties, e.TotalGames, e.WinRate)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}
