package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
//
// The structural lock guards the maps only. Each record carries its own
// mutex, so outcome reports for different players never contend.
type Storage struct {
	mu sync.RWMutex

	players    map[model.PlayerID]*entry
	nameIndex  map[string]model.PlayerID
	emailIndex map[string]model.PlayerID
}

type entry struct {
	mu     sync.Mutex
	player *model.Player
}

// snapshot returns a copy of the record taken under the record lock
func (e *entry) snapshot() *model.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player.Clone()
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:    make(map[model.PlayerID]*entry),
		nameIndex:  make(map[string]model.PlayerID),
		emailIndex: make(map[string]model.PlayerID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := model.NameKey(player.Name)
	emailKey := model.NormalizeEmail(player.Email)
	if _, ok := s.nameIndex[nameKey]; ok {
		return model.ErrDuplicateName
	}
	if emailKey != "" {
		if _, ok := s.emailIndex[emailKey]; ok {
			return model.ErrDuplicateEmail
		}
	}

	s.players[player.ID] = &entry{player: player.Clone()}
	s.nameIndex[nameKey] = player.ID
	if emailKey != "" {
		s.emailIndex[emailKey] = player.ID
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	s.mu.RLock()
	id, ok := s.nameIndex[model.NameKey(name)]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.GetPlayer(ctx, id)
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	s.mu.RLock()
	id, ok := s.emailIndex[model.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.GetPlayer(ctx, id)
}

func (s *Storage) RecordLogin(ctx context.Context, id model.PlayerID, at time.Time) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.player.LastLoginAt = &at
	return nil
}

func (s *Storage) IncrementOutcome(ctx context.Context, id model.PlayerID, outcome model.Outcome) (*model.Player, error) {
	if !outcome.Valid() {
		return nil, model.ErrInvalidOutcome
	}
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.player.Record(outcome)
	return e.player.Clone(), nil
}

func (s *Storage) ListRankedCandidates(ctx context.Context) ([]*model.Player, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.players))
	for _, e := range s.players {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var players []*model.Player
	for _, e := range entries {
		p := e.snapshot()
		if p.TotalGames > 0 {
			players = append(players, p)
		}
	}
	return players, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) lookup(id model.PlayerID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return e, nil
}
