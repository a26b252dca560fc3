package db_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AliciaSchep/posdash/internal/testutil"
	"github.com/AliciaSchep/posdash/pkg/db"
)

func newDatabase(driver db.Driver) *db.Database {
	opts := db.DefaultOptions()
	opts.Logger = testutil.DiscardLogger()
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = time.Millisecond
	return db.New(driver, db.NewStateManager(false), "fake", opts)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		driver := testutil.NewFakeDriver().On("health_check", db.Row{"ok": int32(1)})
		status := newDatabase(driver).Health(context.Background())
		assert.Equal(t, db.HealthStatus{IsHealthy: true, Message: "database connection healthy"}, status)
	})

	t.Run("unreachable", func(t *testing.T) {
		driver := testutil.NewFakeDriver().OnError("health_check", errors.New("dial tcp: connection refused"))
		d := newDatabase(driver)
		status := d.Health(context.Background())
		assert.False(t, status.IsHealthy)
		assert.False(t, status.MockMode)
		assert.Contains(t, status.Message, "connection refused")
		assert.False(t, d.State.Snapshot().Connected)
	})

	t.Run("uses the health timeout", func(t *testing.T) {
		driver := testutil.NewFakeDriver().WithDelay(time.Second)
		opts := db.DefaultOptions()
		opts.Logger = testutil.DiscardLogger()
		opts.HealthTimeout = 20 * time.Millisecond
		d := db.New(driver, db.NewStateManager(false), "fake", opts)

		start := time.Now()
		status := d.Health(context.Background())
		assert.False(t, status.IsHealthy)
		assert.Contains(t, status.Message, "timeout")
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("mock mode", func(t *testing.T) {
		d, err := db.Open(context.Background(), "", db.DefaultOptions())
		assert.NoError(t, err)
		status := d.Health(context.Background())
		assert.False(t, status.IsHealthy)
		assert.True(t, status.MockMode)
	})
}

func TestEstablish(t *testing.T) {
	t.Run("connects on first probe", func(t *testing.T) {
		driver := testutil.NewFakeDriver()
		d := newDatabase(driver)

		assert.True(t, d.Establish(context.Background(), 3))
		assert.True(t, d.State.Snapshot().Connected)
		assert.Equal(t, 1, driver.Calls("health_check"))
	})

	t.Run("recovers on a later probe", func(t *testing.T) {
		var calls int32
		driver := testutil.NewFakeDriver().OnFunc("health_check", func(context.Context, db.QueryRequest) ([]db.Row, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, errors.New("failed to fetch")
			}
			return []db.Row{{"ok": 1}}, nil
		})
		d := newDatabase(driver)

		assert.True(t, d.Establish(context.Background(), 3))
		assert.False(t, d.State.MockMode())
	})

	t.Run("falls back to mock mode when every probe fails", func(t *testing.T) {
		driver := testutil.NewFakeDriver().OnError("health_check", errors.New("no such host"))
		d := newDatabase(driver)

		assert.False(t, d.Establish(context.Background(), 3))
		assert.Equal(t, 3, driver.Calls("health_check"))
		assert.True(t, d.State.MockMode())

		rows := d.Executor.Query(context.Background(), db.NewQuery("sales", "SELECT 1"))
		assert.Empty(t, rows)
		assert.Equal(t, 3, driver.TotalCalls(), "mock mode does not reach the driver")
	})

	t.Run("failed ping skips the health query", func(t *testing.T) {
		driver := testutil.NewFakeDriver()
		driver.PingErr = errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")
		d := newDatabase(driver)

		assert.False(t, d.Establish(context.Background(), 2))
		assert.Equal(t, 0, driver.Calls("health_check"))
		assert.True(t, d.State.MockMode())

		snap := d.State.Snapshot()
		assert.Equal(t, uint64(2), snap.Attempts)
		assert.ErrorContains(t, snap.LastError, "connection refused")
	})

	t.Run("never falls back after a success", func(t *testing.T) {
		driver := testutil.NewFakeDriver().OnError("health_check", errors.New("no such host"))
		d := newDatabase(driver)
		d.State.RecordSuccess()

		assert.False(t, d.Establish(context.Background(), 2))
		assert.False(t, d.State.MockMode())
	})
}

func TestProber(t *testing.T) {
	t.Run("skips while connected", func(t *testing.T) {
		driver := testutil.NewFakeDriver()
		d := testutil.NewConnectedDatabase(driver)
		assert.False(t, db.NewProber(d, time.Second).ProbeOnce(context.Background()))
		assert.Equal(t, 0, driver.TotalCalls())
	})

	t.Run("restores connectivity", func(t *testing.T) {
		driver := testutil.NewFakeDriver()
		d := testutil.NewConnectedDatabase(driver)
		d.State.RecordFailure(errors.New("failed to fetch"))

		assert.True(t, db.NewProber(d, time.Second).ProbeOnce(context.Background()))
		assert.True(t, d.State.Snapshot().Connected)
	})

	t.Run("idle in mock mode", func(t *testing.T) {
		d, err := db.Open(context.Background(), "", db.DefaultOptions())
		assert.NoError(t, err)
		assert.False(t, db.NewProber(d, time.Second).ProbeOnce(context.Background()))
	})

	t.Run("run stops with context", func(t *testing.T) {
		driver := testutil.NewFakeDriver()
		d := testutil.NewConnectedDatabase(driver)
		d.State.RecordFailure(errors.New("failed to fetch"))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := db.NewProber(d, 10*time.Millisecond).Run(ctx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, d.State.Snapshot().Connected)
		assert.GreaterOrEqual(t, driver.Calls("health_check"), 1)
	})
}

func TestDatabase_CloseClosesDriver(t *testing.T) {
	driver := testutil.NewFakeDriver()
	d := newDatabase(driver)
	assert.False(t, driver.Closed())

	d.Close()
	assert.True(t, driver.Closed())
}
