package factory

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamestats/internal/dependencies/mocks"
	"github.com/mcoot/gamestats/internal/storage/memory"
)

// TestTokenKey signs tokens in test apps
var TestTokenKey = []byte("test-signing-key-0123456789abcdef")

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDs
	Memory    *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDs := mocks.NewMockIDs()

	app, err := newWithDependencies(store, mockClock, mockIDs, Config{
		TokenKey:   TestTokenKey,
		BcryptCost: bcrypt.MinCost,
	}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		panic("factory: test app: " + err.Error())
	}

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDs:   mockIDs,
		Memory:    store,
	}
}
