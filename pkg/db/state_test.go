package db

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStateManager_SuccessAndFailure(t *testing.T) {
	m := NewStateManager(false)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = fixedClock(now)

	initial := m.Snapshot()
	assert.False(t, initial.Connected)
	assert.False(t, initial.MockMode)
	assert.False(t, initial.HealthChecked)

	boom := errors.New("boom")
	m.RecordAttempt()
	m.RecordFailure(boom)
	m.RecordAttempt()
	m.RecordFailure(boom)

	s := m.Snapshot()
	assert.False(t, s.Connected)
	assert.Equal(t, boom, s.LastError)
	assert.Equal(t, uint(2), s.ConsecutiveFailures)
	assert.Equal(t, uint64(2), s.Attempts)
	assert.Equal(t, now, s.LastAttemptAt)
	assert.False(t, s.MockMode, "failures alone never enable mock mode")

	m.RecordAttempt()
	m.RecordSuccess()

	s = m.Snapshot()
	assert.True(t, s.Connected)
	assert.Nil(t, s.LastError)
	assert.Equal(t, uint(0), s.ConsecutiveFailures)
	assert.Equal(t, now, s.LastSuccessAt)
	assert.True(t, s.HealthChecked)
}

func TestStateManager_ResetKeepsMockModeAndLastError(t *testing.T) {
	m := NewStateManager(true)
	boom := errors.New("boom")
	m.RecordAttempt()
	m.RecordFailure(boom)
	m.RecordSuccess()
	m.RecordFailure(boom)

	m.Reset()

	s := m.Snapshot()
	assert.Equal(t, uint64(0), s.Attempts)
	assert.Equal(t, uint(0), s.ConsecutiveFailures)
	assert.False(t, s.HealthChecked)
	assert.True(t, s.MockMode)
	assert.Equal(t, boom, s.LastError)
}

func TestStateManager_SnapshotIsACopy(t *testing.T) {
	m := NewStateManager(false)
	before := m.Snapshot()
	m.RecordSuccess()
	assert.False(t, before.Connected)
	assert.True(t, m.Snapshot().Connected)
}

func TestStateManager_MockModeNeverAfterSuccess(t *testing.T) {
	t.Run("enters before any success", func(t *testing.T) {
		m := NewStateManager(false)
		m.RecordFailure(errors.New("down"))
		assert.True(t, m.enterMockMode())
		assert.True(t, m.MockMode())
	})

	t.Run("refuses after a success", func(t *testing.T) {
		m := NewStateManager(false)
		m.RecordSuccess()
		m.RecordFailure(errors.New("down"))
		assert.False(t, m.enterMockMode())
		assert.False(t, m.MockMode())
	})

	t.Run("success does not leave mock mode", func(t *testing.T) {
		m := NewStateManager(true)
		m.RecordSuccess()
		assert.True(t, m.Snapshot().MockMode)
	})
}

func TestStateManager_ConcurrentUpdates(t *testing.T) {
	m := NewStateManager(false)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAttempt()
			m.RecordFailure(errors.New("x"))
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, uint64(50), s.Attempts)
	assert.Equal(t, uint(50), s.ConsecutiveFailures)
}
