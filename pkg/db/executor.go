package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Mode selects how failures reach the caller
type Mode int

const (
	// Lenient turns failures into empty results so that reads always render something
	Lenient Mode = iota
	// Strict returns failures so that the caller can decide to retry
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// Executor issues single statements with a bounded wait and reports every outcome to
// its StateManager.
type Executor struct {
	driver  Driver
	state   *StateManager
	log     logrus.FieldLogger
	timeout time.Duration
}

type ExecutorOption func(*Executor)

func WithLogger(log logrus.FieldLogger) ExecutorOption {
	return func(e *Executor) {
		e.log = log
	}
}

// WithDefaultTimeout sets the timeout used by requests that do not carry their own
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewExecutor(driver Driver, state *StateManager, opts ...ExecutorOption) *Executor {
	e := &Executor{
		driver:  driver,
		state:   state,
		log:     logrus.StandardLogger(),
		timeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) State() *StateManager {
	return e.state
}

// Run issues req and returns its tagged outcome. It never panics on driver failure.
func (e *Executor) Run(ctx context.Context, req QueryRequest) Result {
	e.state.RecordAttempt()
	if e.state.MockMode() {
		recordQueryMetrics(req.Name, StatusEmpty, KindNone, 0)
		return Result{Status: StatusEmpty, Rows: []Row{}}
	}

	start := time.Now()
	rows, err := e.race(ctx, req, func(ctx context.Context) ([]Row, error) {
		return e.driver.Query(ctx, req)
	})
	duration := time.Since(start)
	if err != nil {
		return e.fail(req, err, duration)
	}

	e.succeed()
	res := okResult(rows)
	recordQueryMetrics(req.Name, res.Status, KindNone, duration)
	return res
}

// Fetch is Run collapsed according to mode
func (e *Executor) Fetch(ctx context.Context, req QueryRequest, mode Mode) ([]Row, error) {
	res := e.Run(ctx, req)
	if mode == Strict {
		return res.Strict()
	}
	return res.Lenient(), nil
}

// Query is the lenient read path
func (e *Executor) Query(ctx context.Context, req QueryRequest) []Row {
	return e.Run(ctx, req).Lenient()
}

// Exec runs a statement that returns no rows. Writes are always strict.
func (e *Executor) Exec(ctx context.Context, req QueryRequest) error {
	e.state.RecordAttempt()
	if e.state.MockMode() {
		return &QueryError{Query: req.Name, Kind: KindPermanent, Err: ErrMockMode}
	}

	start := time.Now()
	_, err := e.race(ctx, req, func(ctx context.Context) ([]Row, error) {
		return nil, e.driver.Exec(ctx, req)
	})
	duration := time.Since(start)
	if err != nil {
		return e.fail(req, err, duration).Err
	}

	e.succeed()
	recordQueryMetrics(req.Name, StatusOK, KindNone, duration)
	return nil
}

// race waits for call or for the request timeout, whichever comes first. A fired timer
// stops the wait only; the driver call may still complete in the background.
func (e *Executor) race(ctx context.Context, req QueryRequest, call func(context.Context) ([]Row, error)) ([]Row, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rows []Row
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		rows, err := call(ctx)
		done <- outcome{rows: rows, err: err}
	}()

	select {
	case out := <-done:
		return out.rows, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrDatabaseTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

func (e *Executor) succeed() {
	e.state.RecordSuccess()
	recordStateMetrics(e.state.Snapshot())
}

func (e *Executor) fail(req QueryRequest, err error, duration time.Duration) Result {
	qe := newQueryError(req.Name, err)
	recordQueryMetrics(req.Name, StatusErr, qe.Kind, duration)

	// A caller giving up says nothing about the database.
	if qe.Kind == KindCanceled {
		return Result{Status: StatusErr, Err: qe}
	}

	e.state.RecordFailure(qe)
	snapshot := e.state.Snapshot()
	recordStateMetrics(snapshot)

	e.log.WithFields(logrus.Fields{
		"query":                req.Name,
		"sql":                  req.SQL,
		"args":                 req.Args,
		"kind":                 qe.Kind.String(),
		"duration":             duration,
		"consecutive_failures": snapshot.ConsecutiveFailures,
	}).WithError(err).Warn("database query failed")

	return Result{Status: StatusErr, Err: qe}
}
