package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/AliciaSchep/posdash/pkg/db"
)

// Handler answers one named statement
type Handler func(ctx context.Context, req db.QueryRequest) ([]db.Row, error)

// FakeDriver is a scripted db.Driver. Statements are matched on QueryRequest.Name;
// unscripted statements return no rows.
type FakeDriver struct {
	mu          sync.Mutex
	handlers    map[string]Handler
	delay       time.Duration
	calls       map[string]int
	order       []string
	inFlight    int
	maxInFlight int
	closed      bool

	PingErr error
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
}

// On scripts name to return rows
func (f *FakeDriver) On(name string, rows ...db.Row) *FakeDriver {
	return f.OnFunc(name, func(context.Context, db.QueryRequest) ([]db.Row, error) {
		return rows, nil
	})
}

// OnError scripts name to fail with err
func (f *FakeDriver) OnError(name string, err error) *FakeDriver {
	return f.OnFunc(name, func(context.Context, db.QueryRequest) ([]db.Row, error) {
		return nil, err
	})
}

func (f *FakeDriver) OnFunc(name string, h Handler) *FakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
	return f
}

// WithDelay makes every statement wait d, or until its context ends
func (f *FakeDriver) WithDelay(d time.Duration) *FakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

func (f *FakeDriver) Query(ctx context.Context, req db.QueryRequest) ([]db.Row, error) {
	f.mu.Lock()
	f.calls[req.Name]++
	f.order = append(f.order, req.Name)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	handler := f.handlers[req.Name]
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if handler == nil {
		return []db.Row{}, nil
	}
	return handler(ctx, req)
}

func (f *FakeDriver) Exec(ctx context.Context, req db.QueryRequest) error {
	_, err := f.Query(ctx, req)
	return err
}

func (f *FakeDriver) Ping(context.Context) error {
	return f.PingErr
}

func (f *FakeDriver) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Calls returns how many times name was issued
func (f *FakeDriver) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls returns the number of statements issued
func (f *FakeDriver) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// Order returns statement names in the order they reached the driver
func (f *FakeDriver) Order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// MaxInFlight is the highest number of statements observed running at once
func (f *FakeDriver) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *FakeDriver) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// NewConnectedDatabase wraps driver in a Database whose state already saw a success,
// with millisecond backoff so retry tests stay fast.
func NewConnectedDatabase(driver db.Driver) *db.Database {
	opts := db.DefaultOptions()
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = 5 * time.Millisecond
	opts.Logger = DiscardLogger()

	d := db.New(driver, db.NewStateManager(false), "fake", opts)
	d.State.RecordSuccess()
	return d
}
