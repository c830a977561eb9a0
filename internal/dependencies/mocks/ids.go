package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/gamestats/internal/dependencies/ids"
)

// MockIDs is a mock implementation of ids.Generator for testing
type MockIDs struct {
	mu sync.Mutex

	// Queued is returned in order before falling back to a sequence
	Queued []string
	next   int
	seq    int
}

// Ensure MockIDs implements Generator
var _ ids.Generator = (*MockIDs)(nil)

// NewMockIDs creates a new MockIDs
func NewMockIDs() *MockIDs {
	return &MockIDs{}
}

// NewID returns the next queued ID, or "id-N" once the queue is drained
func (m *MockIDs) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next < len(m.Queued) {
		id := m.Queued[m.next]
		m.next++
		return id
	}
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

// Queue adds IDs to the result queue
func (m *MockIDs) Queue(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queued = append(m.Queued, values...)
}
