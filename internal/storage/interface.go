package storage

import (
	"context"
	"time"

	"github.com/mcoot/gamestats/internal/model"
)

// Storage defines the interface for player persistence.
//
// Implementations must enforce name and email uniqueness atomically with
// creation, and must apply IncrementOutcome as a single unit scoped to the
// one record: a reader never observes a counter bumped without TotalGames,
// and concurrent increments for the same player serialize.
type Storage interface {
	// CreatePlayer persists a new player. Returns model.ErrDuplicateName or
	// model.ErrDuplicateEmail on conflict, leaving the existing record intact.
	CreatePlayer(ctx context.Context, player *model.Player) error

	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByName(ctx context.Context, name string) (*model.Player, error)
	GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error)

	// RecordLogin sets LastLoginAt
	RecordLogin(ctx context.Context, id model.PlayerID, at time.Time) error

	// IncrementOutcome bumps the outcome's counter and TotalGames by one and
	// returns the refreshed record
	IncrementOutcome(ctx context.Context, id model.PlayerID, outcome model.Outcome) (*model.Player, error)

	// ListRankedCandidates returns every player with TotalGames > 0, unordered
	ListRankedCandidates(ctx context.Context) ([]*model.Player, error)

	Close() error
}
