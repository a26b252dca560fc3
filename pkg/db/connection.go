package db

import (
	"context"
	"fmt"
	"time"

	"github.com/AliciaSchep/posdash/pkg/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// PoolDriver runs statements on a pgx connection pool. pgxpool replaces dropped
// connections on its own, so no reconnect loop lives here.
type PoolDriver struct {
	pool *pgxpool.Pool
}

// NewPoolDriver creates the pool without contacting the server; the first statement or
// Ping establishes a connection.
func NewPoolDriver(ctx context.Context, cfg *config.DBConfig, maxConns int32) (*PoolDriver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &PoolDriver{pool: pool}, nil
}

// Query executes a query and collects every row into a column-name map
func (d *PoolDriver) Query(ctx context.Context, req QueryRequest) ([]Row, error) {
	rows, err := d.pool.Query(ctx, req.SQL, req.Args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = Row(m)
	}
	return out, nil
}

// Exec executes a statement without returning any rows
func (d *PoolDriver) Exec(ctx context.Context, req QueryRequest) error {
	_, err := d.pool.Exec(ctx, req.SQL, req.Args...)
	return err
}

func (d *PoolDriver) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *PoolDriver) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// EmptyDriver backs mock mode: every statement succeeds with no rows
type EmptyDriver struct{}

func (EmptyDriver) Query(context.Context, QueryRequest) ([]Row, error) { return []Row{}, nil }
func (EmptyDriver) Exec(context.Context, QueryRequest) error           { return nil }
func (EmptyDriver) Ping(context.Context) error                         { return nil }
func (EmptyDriver) Close()                                             {}

// Options tunes a Database
type Options struct {
	QueryTimeout      time.Duration
	HealthTimeout     time.Duration
	BootstrapAttempts int
	MaxConns          int32
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Logger            logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		QueryTimeout:      DefaultQueryTimeout,
		HealthTimeout:     DefaultHealthTimeout,
		BootstrapAttempts: 3,
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		Logger:            logrus.StandardLogger(),
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		QueryTimeout:      cfg.Database.QueryTimeout,
		HealthTimeout:     cfg.Database.HealthTimeout,
		BootstrapAttempts: cfg.Database.BootstrapAttempts,
		MaxConns:          cfg.Database.MaxConns,
		MaxRetries:        cfg.Retry.MaxRetries,
		BaseDelay:         cfg.Retry.BaseDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		Logger:            logrus.StandardLogger(),
	}
}

// Database bundles the driver with the state, executor and retrier built on top of it
type Database struct {
	Driver   Driver
	State    *StateManager
	Executor *Executor
	Retrier  *Retrier

	target        string
	healthTimeout time.Duration
	log           logrus.FieldLogger
}

// New assembles a Database around an existing driver and state
func New(driver Driver, state *StateManager, target string, opts Options) *Database {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = DefaultHealthTimeout
	}
	return &Database{
		Driver: driver,
		State:  state,
		Executor: NewExecutor(driver, state,
			WithLogger(opts.Logger),
			WithDefaultTimeout(opts.QueryTimeout)),
		Retrier: NewRetrier(state,
			WithMaxRetries(opts.MaxRetries),
			WithBackoff(opts.BaseDelay, opts.MaxDelay),
			WithRetryLogger(opts.Logger)),
		target:        target,
		healthTimeout: opts.HealthTimeout,
		log:           opts.Logger,
	}
}

// Open selects the driver for url. An empty url selects mock mode for the life of the
// process; otherwise the endpoint is probed and mock mode is entered only if every
// bootstrap probe fails.
func Open(ctx context.Context, url string, opts Options) (*Database, error) {
	if url == "" {
		if opts.Logger != nil {
			opts.Logger.Warn("no database connection string configured, every query will return no rows")
		}
		return New(EmptyDriver{}, NewStateManager(true), "mock", opts), nil
	}

	dbCfg, err := config.NewDBConfigFromURI(url)
	if err != nil {
		return nil, err
	}
	driver, err := NewPoolDriver(ctx, dbCfg, opts.MaxConns)
	if err != nil {
		return nil, err
	}

	d := New(driver, NewStateManager(false), dbCfg.MaskedURI(), opts)
	d.Establish(ctx, opts.BootstrapAttempts)
	return d, nil
}

// Establish probes the endpoint up to attempts times. It reports whether a probe
// succeeded; when none did and nothing ever has, the database switches to mock mode.
func (d *Database) Establish(ctx context.Context, attempts int) bool {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		status := d.probe(ctx)
		if status.IsHealthy {
			d.log.WithField("target", d.target).Info("connected to database")
			return true
		}
		if status.MockMode {
			return false
		}
		d.log.WithFields(logrus.Fields{
			"target":  d.target,
			"attempt": i + 1,
		}).Warnf("database probe failed: %s", status.Message)

		if i+1 < attempts {
			select {
			case <-time.After(d.Retrier.Backoff(uint(i))):
			case <-ctx.Done():
				return false
			}
		}
	}

	if d.State.enterMockMode() {
		d.log.WithField("target", d.target).Error("database unreachable at startup, serving empty results")
	}
	return false
}

// probe pings the driver before running the health query, so an endpoint that cannot
// even hand out a connection fails without a statement being issued.
func (d *Database) probe(ctx context.Context) HealthStatus {
	if d.State.MockMode() {
		return d.Health(ctx)
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.healthTimeout)
	defer cancel()
	d.State.RecordAttempt()
	if err := d.Driver.Ping(pingCtx); err != nil {
		qe := newQueryError("ping", err)
		if qe.Kind != KindCanceled {
			d.State.RecordFailure(qe)
			recordStateMetrics(d.State.Snapshot())
		}
		return HealthStatus{
			IsHealthy: false,
			Message:   fmt.Sprintf("database unreachable: %v", err),
		}
	}
	return d.Health(ctx)
}

// Target is the masked connection target, or "mock"
func (d *Database) Target() string {
	return d.target
}

// Close closes the underlying driver
func (d *Database) Close() {
	d.Driver.Close()
}

// DatabaseInfo holds information about the connected database
type DatabaseInfo struct {
	Target   string
	Version  string
	MockMode bool
}

// Info returns basic information about the connected database
func (d *Database) Info(ctx context.Context) (*DatabaseInfo, error) {
	info := &DatabaseInfo{
		Target:   d.target,
		MockMode: d.State.MockMode(),
	}
	if info.MockMode {
		return info, nil
	}

	rows, err := d.Executor.Fetch(ctx, NewQuery("server_version", "SELECT version() AS version"), Strict)
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL version: %w", err)
	}
	if len(rows) > 0 {
		if v, ok := rows[0]["version"].(string); ok {
			info.Version = v
		}
	}
	return info, nil
}
