package reporting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamestats/internal/model"
)

// fakeReporter answers immediately with err, or player when err is nil
type fakeReporter struct {
	calls  atomic.Int32
	err    error
	player *model.Player
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{
		player: &model.Player{ID: "player-1", Name: "Alice", Wins: 1, TotalGames: 1},
	}
}

func (f *fakeReporter) ReportOutcome(ctx context.Context, outcome model.Outcome) (*model.Player, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.player.Clone(), nil
}

// pendingCall is one in-flight report held by blockingReporter
type pendingCall struct {
	outcome model.Outcome
	reply   chan error
}

// blockingReporter holds every call until the test replies to it
type blockingReporter struct {
	calls   atomic.Int32
	pending chan pendingCall
}

func newBlockingReporter() *blockingReporter {
	return &blockingReporter{pending: make(chan pendingCall, 16)}
}

func (b *blockingReporter) ReportOutcome(ctx context.Context, outcome model.Outcome) (*model.Player, error) {
	b.calls.Add(1)
	call := pendingCall{outcome: outcome, reply: make(chan error)}
	b.pending <- call
	if err := <-call.reply; err != nil {
		return nil, err
	}
	return &model.Player{ID: "player-1", TotalGames: 1}, nil
}

type GuardSuite struct {
	suite.Suite
	ctx context.Context
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *GuardSuite) nextCall(b *blockingReporter) pendingCall {
	select {
	case call := <-b.pending:
		return call
	case <-time.After(2 * time.Second):
		s.FailNow("reporter was not called")
		return pendingCall{}
	}
}

func (s *GuardSuite) TestStartsArmed() {
	g := New(newFakeReporter())
	s.Equal(StateArmed, g.State())
	s.Equal("armed", g.State().String())
}

func (s *GuardSuite) TestThreeObservationsInFlightSendOneReport() {
	reporter := newBlockingReporter()
	g := New(reporter)

	done := make(chan error, 1)
	go func() {
		_, err := g.Observe(s.ctx, model.OutcomeWin)
		done <- err
	}()
	call := s.nextCall(reporter)
	s.Equal(model.OutcomeWin, call.outcome)
	s.Equal(StateFired, g.State())

	for i := 0; i < 2; i++ {
		_, err := g.Observe(s.ctx, model.OutcomeWin)
		s.ErrorIs(err, ErrAlreadyReported)
	}

	call.reply <- nil
	s.NoError(<-done)
	s.Equal(int32(1), reporter.calls.Load())
	s.Equal(StateFired, g.State())
}

func (s *GuardSuite) TestConcurrentObservationsSendOneReport() {
	reporter := newFakeReporter()
	g := New(reporter)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Observe(s.ctx, model.OutcomeLoss); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), reporter.calls.Load())
	s.Equal(int32(1), accepted.Load())
}

func (s *GuardSuite) TestSuccessStaysFiredUntilNewGame() {
	reporter := newFakeReporter()
	g := New(reporter)

	p, err := g.Observe(s.ctx, model.OutcomeWin)
	s.Require().NoError(err)
	s.Equal(1, p.Wins)

	_, err = g.Observe(s.ctx, model.OutcomeWin)
	s.ErrorIs(err, ErrAlreadyReported)

	g.NewGame()
	s.Equal(StateArmed, g.State())
	s.Equal(uint64(1), g.Generation())

	_, err = g.Observe(s.ctx, model.OutcomeTie)
	s.Require().NoError(err)
	s.Equal(int32(2), reporter.calls.Load())
}

func (s *GuardSuite) TestFailureRearmsForOneRetry() {
	reporter := newFakeReporter()
	reporter.err = errors.New("connection refused")
	g := New(reporter)

	_, err := g.Observe(s.ctx, model.OutcomeWin)
	s.Require().Error(err)
	s.ErrorIs(err, reporter.err)
	s.Equal(StateArmed, g.State())
	// Nothing is resent until the conclusion is observed again
	s.Equal(int32(1), reporter.calls.Load())

	reporter.err = nil
	_, err = g.Observe(s.ctx, model.OutcomeWin)
	s.Require().NoError(err)
	s.Equal(int32(2), reporter.calls.Load())
	s.Equal(StateFired, g.State())
}

func (s *GuardSuite) TestStaleFailureDoesNotRearmNewGame() {
	reporter := newBlockingReporter()
	g := New(reporter)

	first := make(chan error, 1)
	go func() {
		_, err := g.Observe(s.ctx, model.OutcomeWin)
		first <- err
	}()
	oldCall := s.nextCall(reporter)

	// A new game starts and reports while the old call is still pending
	g.NewGame()
	second := make(chan error, 1)
	go func() {
		_, err := g.Observe(s.ctx, model.OutcomeLoss)
		second <- err
	}()
	newCall := s.nextCall(reporter)
	s.Equal(model.OutcomeLoss, newCall.outcome)

	oldCall.reply <- errors.New("server error")
	s.Error(<-first)
	s.Equal(StateFired, g.State())

	_, err := g.Observe(s.ctx, model.OutcomeLoss)
	s.ErrorIs(err, ErrAlreadyReported)

	newCall.reply <- nil
	s.NoError(<-second)
	s.Equal(StateFired, g.State())
	s.Equal(int32(2), reporter.calls.Load())
}

func (s *GuardSuite) TestCallbackUpdatingCacheDoesNotRetrigger() {
	reporter := newFakeReporter()

	var cached *model.Player
	var g *Guard
	g = New(reporter, WithOnReported(func(p *model.Player) {
		cached = p
		// Replacing the cached record re-evaluates "game concluded"
		if cached.TotalGames > 0 {
			_, err := g.Observe(s.ctx, model.OutcomeWin)
			s.ErrorIs(err, ErrAlreadyReported)
		}
	}))

	_, err := g.Observe(s.ctx, model.OutcomeWin)
	s.Require().NoError(err)
	s.Require().NotNil(cached)
	s.Equal("Alice", cached.Name)
	s.Equal(int32(1), reporter.calls.Load())
}

func (s *GuardSuite) TestInvalidOutcomeKeepsGuardArmed() {
	reporter := newFakeReporter()
	g := New(reporter)

	_, err := g.Observe(s.ctx, model.Outcome("draw"))
	s.ErrorIs(err, model.ErrInvalidOutcome)
	s.Equal(StateArmed, g.State())
	s.Zero(reporter.calls.Load())
}
