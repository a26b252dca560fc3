package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliciaSchep/posdash/internal/testutil"
	"github.com/AliciaSchep/posdash/pkg/db"
)

func newExecutor(driver db.Driver, mock bool, opts ...db.ExecutorOption) *db.Executor {
	opts = append([]db.ExecutorOption{db.WithLogger(testutil.DiscardLogger())}, opts...)
	return db.NewExecutor(driver, db.NewStateManager(mock), opts...)
}

func TestExecutor_Success(t *testing.T) {
	driver := testutil.NewFakeDriver().On("sales", db.Row{"id": int32(1)}, db.Row{"id": int32(2)})
	exec := newExecutor(driver, false)

	res := exec.Run(context.Background(), db.NewQuery("sales", "SELECT id FROM sales WHERE user_id = $1", 7))

	assert.Equal(t, db.StatusOK, res.Status)
	assert.Len(t, res.Rows, 2)
	assert.NoError(t, res.Err)

	state := exec.State().Snapshot()
	assert.True(t, state.Connected)
	assert.True(t, state.HealthChecked)
	assert.Equal(t, uint64(1), state.Attempts)
}

func TestExecutor_EmptyIsNotAnError(t *testing.T) {
	exec := newExecutor(testutil.NewFakeDriver(), false)

	res := exec.Run(context.Background(), db.NewQuery("nothing", "SELECT 1 WHERE false"))
	assert.Equal(t, db.StatusEmpty, res.Status)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	assert.True(t, exec.State().Snapshot().Connected)
}

func TestExecutor_FailureIsLenientByDefault(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "sales" does not exist`}
	driver := testutil.NewFakeDriver().OnError("sales", pgErr)
	exec := newExecutor(driver, false)
	req := db.NewQuery("sales", "SELECT * FROM sales")

	rows := exec.Query(context.Background(), req)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows, err := exec.Fetch(context.Background(), req, db.Lenient)
	assert.NoError(t, err)
	assert.Empty(t, rows)

	state := exec.State().Snapshot()
	assert.False(t, state.Connected)
	assert.Equal(t, uint(2), state.ConsecutiveFailures)
	assert.ErrorIs(t, state.LastError, pgErr)
}

func TestExecutor_StrictSurfacesClassifiedError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	driver := testutil.NewFakeDriver().OnError("insert_sale", pgErr)
	exec := newExecutor(driver, false)

	_, err := exec.Fetch(context.Background(), db.NewQuery("insert_sale", "INSERT INTO sales DEFAULT VALUES"), db.Strict)
	require.Error(t, err)

	var qe *db.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "insert_sale", qe.Query)
	assert.Equal(t, db.KindPermanent, qe.Kind)
	assert.ErrorIs(t, err, pgErr)
	assert.False(t, db.IsRetryable(err))
}

func TestExecutor_TimeoutStopsWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// The handler ignores its context, like a driver that cannot be interrupted.
	driver := testutil.NewFakeDriver().OnFunc("slow", func(context.Context, db.QueryRequest) ([]db.Row, error) {
		<-release
		return []db.Row{{"n": 1}}, nil
	})
	exec := newExecutor(driver, false, db.WithDefaultTimeout(time.Hour))

	start := time.Now()
	res := exec.Run(context.Background(), db.NewQuery("slow", "SELECT pg_sleep(60)").WithTimeout(50*time.Millisecond))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, db.StatusErr, res.Status)
	assert.Equal(t, db.KindTimeout, res.Kind())
	assert.ErrorIs(t, res.Err, db.ErrDatabaseTimeout)
	assert.True(t, db.IsRetryable(res.Err))
	assert.False(t, exec.State().Snapshot().Connected)
}

func TestExecutor_DefaultTimeoutApplies(t *testing.T) {
	driver := testutil.NewFakeDriver().WithDelay(time.Second)
	exec := newExecutor(driver, false, db.WithDefaultTimeout(20*time.Millisecond))

	_, err := exec.Fetch(context.Background(), db.NewQuery("slow", "SELECT 1"), db.Strict)
	assert.ErrorIs(t, err, db.ErrDatabaseTimeout)
}

func TestExecutor_CallerCancellationLeavesStateAlone(t *testing.T) {
	driver := testutil.NewFakeDriver().WithDelay(time.Second)
	exec := newExecutor(driver, false)
	exec.State().RecordSuccess()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := exec.Run(ctx, db.NewQuery("slow", "SELECT 1"))
	assert.Equal(t, db.StatusErr, res.Status)
	assert.Equal(t, db.KindCanceled, res.Kind())

	state := exec.State().Snapshot()
	assert.True(t, state.Connected)
	assert.Equal(t, uint(0), state.ConsecutiveFailures)
}

func TestExecutor_MockModeNeverReachesDriver(t *testing.T) {
	driver := testutil.NewFakeDriver().On("sales", db.Row{"id": 1})
	exec := newExecutor(driver, true)

	rows, err := exec.Fetch(context.Background(), db.NewQuery("sales", "SELECT id FROM sales"), db.Strict)
	assert.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, driver.TotalCalls())

	err = exec.Exec(context.Background(), db.NewQuery("insert", "INSERT INTO sales DEFAULT VALUES"))
	assert.ErrorIs(t, err, db.ErrMockMode)
	assert.True(t, exec.State().MockMode())
}

func TestExecutor_Exec(t *testing.T) {
	driver := testutil.NewFakeDriver().OnError("bad", errors.New("syntax error at or near \"CREAT\""))
	exec := newExecutor(driver, false)

	assert.NoError(t, exec.Exec(context.Background(), db.NewQuery("good", "CREATE TABLE IF NOT EXISTS t (id int)")))
	assert.True(t, exec.State().Snapshot().Connected)

	err := exec.Exec(context.Background(), db.NewQuery("bad", "CREAT TABLE t"))
	assert.Error(t, err)
	assert.Equal(t, db.KindPermanent, db.Classify(err))
	assert.False(t, exec.State().Snapshot().Connected)
}
