package stats

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/gamestats/internal/metrics"
	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/storage"
)

// Leaderboard bounds
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Entry is one leaderboard row
type Entry struct {
	Player  *model.Player
	WinRate float64
}

// Service records match outcomes and ranks players
type Service struct {
	storage storage.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new stats Service
func New(storage storage.Storage, metrics *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		metrics: metrics,
		logger:  logger,
	}
}

// ReportOutcome applies one outcome to the player's counters and returns
// the refreshed record
func (s *Service) ReportOutcome(ctx context.Context, playerID model.PlayerID, result string) (*model.Player, error) {
	outcome, err := model.ParseOutcome(result)
	if err != nil {
		return nil, err
	}

	player, err := s.storage.IncrementOutcome(ctx, playerID, outcome)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) || errors.Is(err, model.ErrInvalidOutcome) {
			return nil, err
		}
		return nil, fmt.Errorf("increment outcome: %w", err)
	}

	s.metrics.ObserveOutcome(string(outcome))
	s.logger.Info("outcome recorded",
		slog.String("player_id", string(playerID)),
		slog.String("result", string(outcome)),
		slog.Int("total_games", player.TotalGames),
	)
	return player, nil
}

// Leaderboard returns up to limit ranked players that have played at least
// one game. limit <= 0 means DefaultLimit; anything above MaxLimit is clamped.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	players, err := s.storage.ListRankedCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	ranked := make([]*model.Player, 0, len(players))
	for _, p := range players {
		if p.TotalGames > 0 {
			ranked = append(ranked, p)
		}
	}
	slices.SortFunc(ranked, compareRank)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]Entry, len(ranked))
	for i, p := range ranked {
		entries[i] = Entry{Player: p, WinRate: p.WinRate()}
	}
	return entries, nil
}

// ClampLimit applies the leaderboard default and ceiling
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// compareRank orders by wins desc, then win rate desc, then name.
// Win rates are compared by cross-multiplying so no precision is lost.
func compareRank(a, b *model.Player) int {
	if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
		return c
	}
	left := int64(a.Wins) * int64(b.TotalGames)
	right := int64(b.Wins) * int64(a.TotalGames)
	if c := cmp.Compare(right, left); c != 0 {
		return c
	}
	if c := cmp.Compare(model.NameKey(a.Name), model.NameKey(b.Name)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
