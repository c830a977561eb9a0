// Package storagetest holds the behavioural suite every storage backend
// must pass. Backend packages embed Suite and supply a fresh store per test.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/storage"
)

// Suite exercises the storage.Storage contract
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store; it is called before each test
	NewStorage func() storage.Storage

	Store storage.Storage
	Ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.Store = s.NewStorage()
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func (s *Suite) newPlayer(id, name, email string) *model.Player {
	return &model.Player{
		ID:             model.PlayerID(id),
		Name:           name,
		Email:          email,
		CredentialHash: "hash-" + id,
		CreatedAt:      baseTime,
	}
}

func (s *Suite) create(id, name, email string) *model.Player {
	p := s.newPlayer(id, name, email)
	s.Require().NoError(s.Store.CreatePlayer(s.Ctx, p))
	return p
}

// Create / lookup tests

func (s *Suite) TestCreateAndGetPlayer() {
	s.create("player-1", "Alice", "alice@example.com")

	p, err := s.Store.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), p.ID)
	s.Equal("Alice", p.Name)
	s.Equal("alice@example.com", p.Email)
	s.Equal("hash-player-1", p.CredentialHash)
	s.True(p.CreatedAt.Equal(baseTime))
	s.Nil(p.LastLoginAt)
	s.Zero(p.Wins)
	s.Zero(p.TotalGames)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetPlayerByNameIgnoresCase() {
	s.create("player-1", "Alice", "")

	p, err := s.Store.GetPlayerByName(s.Ctx, "aLiCe")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), p.ID)
}

func (s *Suite) TestGetPlayerByNameNotFound() {
	_, err := s.Store.GetPlayerByName(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetPlayerByEmail() {
	s.create("player-1", "Alice", "alice@example.com")

	p, err := s.Store.GetPlayerByEmail(s.Ctx, "Alice@Example.com")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), p.ID)

	_, err = s.Store.GetPlayerByEmail(s.Ctx, "bob@example.com")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestDuplicateNameFailsWithoutOverwrite() {
	s.create("player-1", "Alice", "")

	err := s.Store.CreatePlayer(s.Ctx, s.newPlayer("player-2", "ALICE", ""))
	s.ErrorIs(err, model.ErrDuplicateName)

	p, err := s.Store.GetPlayerByName(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), p.ID)
	s.Equal("hash-player-1", p.CredentialHash)

	_, err = s.Store.GetPlayer(s.Ctx, "player-2")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestDuplicateEmailFails() {
	s.create("player-1", "Alice", "shared@example.com")

	err := s.Store.CreatePlayer(s.Ctx, s.newPlayer("player-2", "Bob", "shared@example.com"))
	s.ErrorIs(err, model.ErrDuplicateEmail)

	_, err = s.Store.GetPlayerByName(s.Ctx, "Bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestPlayersWithoutEmailDoNotConflict() {
	s.create("player-1", "Alice", "")
	s.create("player-2", "Bob", "")
}

// Login tests

func (s *Suite) TestRecordLogin() {
	s.create("player-1", "Alice", "")
	at := baseTime.Add(time.Hour)

	s.Require().NoError(s.Store.RecordLogin(s.Ctx, "player-1", at))

	p, err := s.Store.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Require().NotNil(p.LastLoginAt)
	s.True(p.LastLoginAt.Equal(at))
}

func (s *Suite) TestRecordLoginUnknownPlayer() {
	err := s.Store.RecordLogin(s.Ctx, "nonexistent", baseTime)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Outcome tests

func (s *Suite) TestIncrementOutcomeTouchesOneCounter() {
	s.create("player-1", "Alice", "")
	for _, o := range []model.Outcome{model.OutcomeWin, model.OutcomeWin, model.OutcomeLoss} {
		_, err := s.Store.IncrementOutcome(s.Ctx, "player-1", o)
		s.Require().NoError(err)
	}

	p, err := s.Store.IncrementOutcome(s.Ctx, "player-1", model.OutcomeTie)
	s.Require().NoError(err)

	s.Equal(2, p.Wins)
	s.Equal(1, p.Losses)
	s.Equal(1, p.Ties)
	s.Equal(4, p.TotalGames)
	s.Equal("Alice", p.Name)
}

func (s *Suite) TestIncrementOutcomeUnknownPlayer() {
	_, err := s.Store.IncrementOutcome(s.Ctx, "nonexistent", model.OutcomeWin)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.Store.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestIncrementOutcomeRejectsInvalidOutcome() {
	s.create("player-1", "Alice", "")

	_, err := s.Store.IncrementOutcome(s.Ctx, "player-1", model.Outcome("draw"))
	s.ErrorIs(err, model.ErrInvalidOutcome)

	p, err := s.Store.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Zero(p.TotalGames)
}

func (s *Suite) TestConcurrentIncrementsKeepTotalConsistent() {
	s.create("player-1", "Alice", "")

	const perOutcome = 10
	var wg sync.WaitGroup
	for _, o := range model.Outcomes {
		for i := 0; i < perOutcome; i++ {
			wg.Add(1)
			go func(o model.Outcome) {
				defer wg.Done()
				_, err := s.Store.IncrementOutcome(s.Ctx, "player-1", o)
				s.NoError(err)
			}(o)
		}
	}
	wg.Wait()

	p, err := s.Store.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(perOutcome, p.Wins)
	s.Equal(perOutcome, p.Losses)
	s.Equal(perOutcome, p.Ties)
	s.Equal(p.Wins+p.Losses+p.Ties, p.TotalGames)
}

// Leaderboard candidate tests

func (s *Suite) TestListRankedCandidatesSkipsPlayersWithoutGames() {
	s.create("player-1", "Alice", "")
	s.create("player-2", "Bob", "")
	s.create("player-3", "Carol", "")

	_, err := s.Store.IncrementOutcome(s.Ctx, "player-1", model.OutcomeWin)
	s.Require().NoError(err)
	_, err = s.Store.IncrementOutcome(s.Ctx, "player-3", model.OutcomeLoss)
	s.Require().NoError(err)

	players, err := s.Store.ListRankedCandidates(s.Ctx)
	s.Require().NoError(err)

	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
		s.Positive(p.TotalGames)
	}
	s.ElementsMatch([]string{"Alice", "Carol"}, names)
}

func (s *Suite) TestListRankedCandidatesEmpty() {
	players, err := s.Store.ListRankedCandidates(s.Ctx)
	s.Require().NoError(err)
	s.Empty(players)
}
