package model

import (
	"strings"
	"time"
)

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Name length bounds, counted in characters after trimming
const (
	MinNameLength = 1
	MaxNameLength = 32
)

// Player is the durable account and statistics record
type Player struct {
	ID    PlayerID
	Name  string
	Email string // optional, lower-cased; empty when not supplied

	// CredentialHash is the bcrypt hash of the player's secret.
	// It must never leave the server.
	CredentialHash string

	Wins       int
	Losses     int
	Ties       int
	TotalGames int

	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// NameKey returns the normalized form used to enforce name uniqueness
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeEmail returns the stored form of an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Record applies an outcome to the counters in memory.
// Storage backends that cannot push the increment down use this.
func (p *Player) Record(outcome Outcome) {
	switch outcome {
	case OutcomeWin:
		p.Wins++
	case OutcomeLoss:
		p.Losses++
	case OutcomeTie:
		p.Ties++
	default:
		return
	}
	p.TotalGames++
}

// Clone returns a deep copy of the player
func (p *Player) Clone() *Player {
	c := *p
	if p.LastLoginAt != nil {
		t := *p.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// WinRate returns wins/totalGames as a percentage rounded to one decimal.
// Returns 0 for a player with no games.
func (p *Player) WinRate() float64 {
	if p.TotalGames == 0 {
		return 0
	}
	return roundTenth(float64(p.Wins) / float64(p.TotalGames) * 100)
}
