// Package reporting submits a finished game's outcome at most once per game.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/gamestats/internal/model"
)

// ErrAlreadyReported is returned by Observe when the current game has a
// report in flight or already accepted
var ErrAlreadyReported = errors.New("outcome already reported for this game")

// Reporter sends an outcome for the authenticated player
type Reporter interface {
	ReportOutcome(ctx context.Context, outcome model.Outcome) (*model.Player, error)
}

// State is the guard's position in its two-state machine
type State int

const (
	StateArmed State = iota
	StateFired
)

func (s State) String() string {
	if s == StateFired {
		return "fired"
	}
	return "armed"
}

// Guard fires one report per game instance. The armed/fired flag is
// independent of the player record handed to OnReported.
type Guard struct {
	reporter   Reporter
	onReported func(*model.Player)
	logger     *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
}

// Option configures a Guard
type Option func(*Guard)

// WithOnReported sets a callback run after a report succeeds. It may call
// Observe again; that call returns ErrAlreadyReported.
func WithOnReported(fn func(*model.Player)) Option {
	return func(g *Guard) { g.onReported = fn }
}

// WithLogger sets the guard's logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// New creates an armed guard for the first game
func New(reporter Reporter, opts ...Option) *Guard {
	g := &Guard{
		reporter: reporter,
		logger:   slog.New(slog.DiscardHandler),
		state:    StateArmed,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGame starts a new game instance and arms the guard
func (g *Guard) NewGame() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.state = StateArmed
}

// State returns the current state
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Generation returns the current game instance number
func (g *Guard) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// Observe handles one "game concluded" observation. When armed it flips to
// fired before calling the Reporter. A failed call re-arms the guard for
// the same game so the next observation can retry; the guard never
// retries by itself.
func (g *Guard) Observe(ctx context.Context, outcome model.Outcome) (*model.Player, error) {
	if !outcome.Valid() {
		return nil, model.ErrInvalidOutcome
	}

	g.mu.Lock()
	if g.state == StateFired {
		g.mu.Unlock()
		return nil, ErrAlreadyReported
	}
	g.state = StateFired
	generation := g.generation
	g.mu.Unlock()

	player, err := g.reporter.ReportOutcome(ctx, outcome)
	if err != nil {
		g.mu.Lock()
		rearmed := g.generation == generation
		if rearmed {
			g.state = StateArmed
		}
		g.mu.Unlock()

		g.logger.Warn("outcome report failed",
			slog.String("outcome", string(outcome)),
			slog.Uint64("generation", generation),
			slog.Bool("rearmed", rearmed),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("report outcome: %w", err)
	}

	g.logger.Info("outcome reported",
		slog.String("outcome", string(outcome)),
		slog.Uint64("generation", generation))

	if g.onReported != nil {
		g.onReported(player)
	}
	return player, nil
}
