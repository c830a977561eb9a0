package model

import (
	"math"
	"strings"
)

// Outcome is the terminal result of one game from one player's perspective
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// Outcomes lists every valid outcome
var Outcomes = []Outcome{OutcomeWin, OutcomeLoss, OutcomeTie}

// ParseOutcome parses a result string, ignoring case and surrounding space
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", ErrInvalidOutcome
	}
	return o, nil
}

// Valid reports whether o is one of win, loss or tie
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeTie:
		return true
	}
	return false
}

// CounterField returns the persisted counter name for the outcome
func (o Outcome) CounterField() string {
	switch o {
	case OutcomeWin:
		return "wins"
	case OutcomeLoss:
		return "losses"
	case OutcomeTie:
		return "ties"
	}
	return ""
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
