package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/AliciaSchep/posdash/pkg/db"
)

var (
	// ErrMissingParameter is returned before any statement is issued
	ErrMissingParameter = errors.New("missing parameter")
	// ErrNotConnected is reported when the last statement against the database failed
	ErrNotConnected = errors.New("database not connected")
)

// MockModeMessage accompanies every summary built without a configured database
const MockModeMessage = "no database configured, showing empty dashboard"

// Aggregator assembles dashboard snapshots from independent reads
type Aggregator struct {
	database *db.Database
	log      logrus.FieldLogger
}

type Option func(*Aggregator)

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		a.log = log
	}
}

func NewAggregator(database *db.Database, opts ...Option) *Aggregator {
	a := &Aggregator{
		database: database,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func validateIDs(userID, deviceID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: userId must be a positive integer", ErrMissingParameter)
	}
	if deviceID <= 0 {
		return fmt.Errorf("%w: deviceId must be a positive integer", ErrMissingParameter)
	}
	return nil
}

// Summarize builds the dashboard for userID. Individual read failures degrade to zero or
// empty values. Success is false when the database is known to be disconnected, in
// which case no statement is issued, or when a result cannot be decoded.
// deviceID is required and logged but does not scope the data.
func (a *Aggregator) Summarize(ctx context.Context, userID, deviceID int64) (*Summary, error) {
	if err := validateIDs(userID, deviceID); err != nil {
		return nil, err
	}

	start := time.Now()
	state := a.database.State.Snapshot()
	summary := &Summary{
		RequestID: uuid.NewString(),
		MockMode:  state.MockMode,
		Data:      EmptySnapshot(),
	}
	log := a.log.WithFields(logrus.Fields{
		"request_id": summary.RequestID,
		"user_id":    userID,
		"device_id":  deviceID,
	})

	if !state.Connected && !state.MockMode {
		summary.Message = ErrNotConnected.Error()
		log.WithError(state.LastError).Debug("skipping dashboard reads, database not connected")
		recordSummary(db.Lenient.String(), false, time.Since(start))
		return summary, nil
	}

	snap, err := a.collect(ctx, userID, db.Lenient)
	if err != nil {
		summary.Message = "failed to load dashboard data"
		log.WithError(err).Error("dashboard aggregation failed")
		recordSummary(db.Lenient.String(), false, time.Since(start))
		return summary, nil
	}

	summary.Success = true
	summary.Data = snap
	if state.MockMode {
		summary.Message = MockModeMessage
	}
	log.WithFields(logrus.Fields{
		"low_stock_tier": snap.LowStockTier,
		"duration":       time.Since(start),
	}).Debug("dashboard summary built")
	recordSummary(db.Lenient.String(), true, time.Since(start))
	return summary, nil
}

// SummarizeStrict runs the same reads in strict mode with the whole aggregation wrapped
// by the database's Retrier. It skips the connectivity pre-check and returns the last
// error once retries are exhausted.
func (a *Aggregator) SummarizeStrict(ctx context.Context, userID, deviceID int64) (*Summary, error) {
	if err := validateIDs(userID, deviceID); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()
	log := a.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"user_id":    userID,
		"device_id":  deviceID,
	})

	snap, err := db.WithRetry(ctx, a.database.Retrier, func(ctx context.Context) (Snapshot, error) {
		return a.collect(ctx, userID, db.Strict)
	})
	if err != nil {
		log.WithError(err).Warn("strict dashboard aggregation failed")
		recordSummary(db.Strict.String(), false, time.Since(start))
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"low_stock_tier": snap.LowStockTier,
		"duration":       time.Since(start),
	}).Debug("strict dashboard summary built")
	recordSummary(db.Strict.String(), true, time.Since(start))
	summary := &Summary{
		Success:   true,
		RequestID: requestID,
		MockMode:  a.database.State.MockMode(),
		Data:      snap,
	}
	if summary.MockMode {
		summary.Message = MockModeMessage
	}
	return summary, nil
}

// collect issues the eight independent reads concurrently alongside the low-stock
// cascade, which is sequential within itself. Each goroutine writes disjoint fields.
func (a *Aggregator) collect(ctx context.Context, userID int64, mode db.Mode) (Snapshot, error) {
	snap := EmptySnapshot()
	g, ctx := errgroup.WithContext(ctx)

	scalar := func(dst *decimal.Decimal, build func(int64) (db.QueryRequest, error)) {
		g.Go(func() error {
			req, err := build(userID)
			if err != nil {
				return err
			}
			rows, err := a.database.Executor.Fetch(ctx, req, mode)
			if err != nil {
				return err
			}
			v, err := scalarDecimal(rows, "total")
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", req.Name, err)
			}
			*dst = v
			return nil
		})
	}
	scalar(&snap.TotalSales, totalSalesQuery)
	scalar(&snap.TotalPurchases, totalPurchasesQuery)
	scalar(&snap.ManualIncome, manualIncomeQuery)
	scalar(&snap.ManualExpenses, manualExpensesQuery)
	scalar(&snap.TotalCOGS, totalCOGSQuery)

	g.Go(func() error {
		rows, err := a.fetch(ctx, recentSalesQuery, userID, mode)
		if err != nil {
			return err
		}
		snap.RecentSales, err = decodeSales(rows)
		return wrapDecode(QueryRecentSales, err)
	})
	g.Go(func() error {
		rows, err := a.fetch(ctx, recentPurchasesQuery, userID, mode)
		if err != nil {
			return err
		}
		snap.RecentPurchases, err = decodePurchases(rows)
		return wrapDecode(QueryRecentPurchases, err)
	})
	g.Go(func() error {
		rows, err := a.fetch(ctx, topCustomersQuery, userID, mode)
		if err != nil {
			return err
		}
		snap.TopCustomers, err = decodeCustomers(rows)
		return wrapDecode(QueryTopCustomers, err)
	})
	g.Go(func() error {
		products, tier, err := a.lowStock(ctx, userID, mode)
		if err != nil {
			return err
		}
		snap.LowStockProducts = products
		snap.LowStockTier = tier
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.derive()
	return snap, nil
}

func (a *Aggregator) fetch(ctx context.Context, build func(int64) (db.QueryRequest, error), userID int64, mode db.Mode) ([]db.Row, error) {
	req, err := build(userID)
	if err != nil {
		return nil, err
	}
	return a.database.Executor.Fetch(ctx, req, mode)
}

// lowStock walks the tiers in order and stops at the first one with rows
func (a *Aggregator) lowStock(ctx context.Context, userID int64, mode db.Mode) ([]ProductRecord, LowStockTier, error) {
	for _, step := range lowStockTiers {
		req, err := lowStockQuery(step.tier, step.where(), userID)
		if err != nil {
			return nil, TierNone, err
		}
		rows, err := a.database.Executor.Fetch(ctx, req, mode)
		if err != nil {
			return nil, TierNone, err
		}
		if len(rows) == 0 {
			continue
		}
		products, err := decodeProducts(rows)
		if err != nil {
			return nil, TierNone, wrapDecode(req.Name, err)
		}
		return products, step.tier, nil
	}
	return []ProductRecord{}, TierNone, nil
}

func wrapDecode(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to decode %s: %w", name, err)
}
