package db

import (
	"sync"
	"time"
)

// ConnectionState is a point-in-time copy of the connection bookkeeping
type ConnectionState struct {
	Connected           bool
	MockMode            bool
	LastError           error
	LastAttemptAt       time.Time
	LastSuccessAt       time.Time
	Attempts            uint64
	ConsecutiveFailures uint
	HealthChecked       bool
}

// StateManager tracks connectivity for one Database. Every query attempt updates it,
// possibly from many goroutines at once.
type StateManager struct {
	mu    sync.Mutex
	state ConnectionState
	now   func() time.Time
}

// NewStateManager creates a manager. mockMode is fixed here or by Open's bootstrap.
func NewStateManager(mockMode bool) *StateManager {
	return &StateManager{
		state: ConnectionState{MockMode: mockMode},
		now:   time.Now,
	}
}

func (m *StateManager) RecordAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Attempts++
	m.state.LastAttemptAt = m.now()
}

func (m *StateManager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Connected = true
	m.state.LastError = nil
	m.state.ConsecutiveFailures = 0
	m.state.LastSuccessAt = m.now()
	m.state.HealthChecked = true
}

// RecordFailure never enables mock mode; see enterMockMode.
func (m *StateManager) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Connected = false
	m.state.LastError = err
	m.state.ConsecutiveFailures++
}

// Reset zeroes the counters and the health flag, leaving mock mode and the last error alone
func (m *StateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Attempts = 0
	m.state.ConsecutiveFailures = 0
	m.state.HealthChecked = false
}

func (m *StateManager) Snapshot() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *StateManager) MockMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.MockMode
}

// enterMockMode switches to the empty fallback. It refuses once anything has succeeded,
// so fabricated emptiness never replaces a working connection.
func (m *StateManager) enterMockMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.LastSuccessAt.IsZero() {
		return false
	}
	m.state.MockMode = true
	m.state.Connected = false
	return true
}
