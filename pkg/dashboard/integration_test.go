package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliciaSchep/posdash/internal/testutil"
	"github.com/AliciaSchep/posdash/pkg/dashboard"
	"github.com/AliciaSchep/posdash/pkg/db"
)

// seededDatabase opens the real test database, creates the tables and loads the POS seed
// rows for testutil.SeedUserID. The rows are removed when t finishes.
func seededDatabase(t *testing.T) *db.Database {
	t.Helper()
	cfg := testutil.RequireRealDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := db.DefaultOptions()
	opts.Logger = testutil.DiscardLogger()
	d, err := db.Open(ctx, cfg.URL, opts)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	require.False(t, d.State.MockMode(), "test database unreachable")

	exec := func(ctx context.Context, sql string) error {
		return d.Executor.Exec(ctx, db.NewQuery("seed", sql))
	}
	require.NoError(t, db.Bootstrap(ctx, d.Executor))
	require.NoError(t, testutil.SetupPOSSchema(ctx, exec))
	t.Cleanup(func() {
		_ = testutil.CleanupPOSSchema(context.Background(), exec)
	})
	return d
}

func TestSummarize_Integration(t *testing.T) {
	d := seededDatabase(t)
	agg := dashboard.NewAggregator(d, dashboard.WithLogger(testutil.DiscardLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := agg.Summarize(ctx, testutil.SeedUserID, 1)
	require.NoError(t, err)
	require.True(t, summary.Success, summary.Message)
	assert.False(t, summary.MockMode)

	snap := summary.Data
	assertDecimal(t, "20.50", snap.TotalSales, "total sales excludes the cancelled sale")
	assertDecimal(t, "40.00", snap.TotalPurchases, "total purchases excludes the cancelled purchase")
	assertDecimal(t, "13.00", snap.TotalCOGS, "cogs over non-cancelled line items")
	assertDecimal(t, "20.00", snap.ManualIncome, "manual income")
	assertDecimal(t, "5.25", snap.ManualExpenses, "manual expenses")
	assertDecimal(t, "7.50", snap.GrossProfit, "gross profit")
	assertDecimal(t, "14.75", snap.NetManualProfit, "net manual profit")
	assertDecimal(t, "22.25", snap.TotalProfit, "total profit")

	require.Len(t, snap.RecentSales, 3)
	assert.Equal(t, int64(900003), snap.RecentSales[0].ID, "newest first")
	assert.Equal(t, "cancelled", snap.RecentSales[0].Status)
	assert.Equal(t, "Amina", snap.RecentSales[0].CustomerName)
	assertDecimal(t, "100.00", snap.RecentSales[0].TotalAmount, "recent sale amount")

	require.Len(t, snap.RecentPurchases, 2)

	require.Len(t, snap.TopCustomers, 2)
	assert.Equal(t, "Amina", snap.TopCustomers[0].Name)
	assertDecimal(t, "13.00", snap.TopCustomers[0].TotalSpent, "top customer spend")
	assert.Equal(t, int64(1), snap.TopCustomers[0].SaleCount)
	assert.Equal(t, "Bruno", snap.TopCustomers[1].Name)

	assert.Equal(t, dashboard.TierOutOfStock, snap.LowStockTier)
	require.Len(t, snap.LowStockProducts, 2)
	assert.Equal(t, "Beans 1kg", snap.LowStockProducts[0].Name)
	assert.Equal(t, "Rice 5kg", snap.LowStockProducts[1].Name)
	assert.Equal(t, int64(0), snap.LowStockProducts[0].Stock)
	assertDecimal(t, "2.00", snap.LowStockProducts[0].RetailPrice, "retail price")
}

func TestSummarizeStrict_Integration(t *testing.T) {
	d := seededDatabase(t)
	agg := dashboard.NewAggregator(d, dashboard.WithLogger(testutil.DiscardLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lenient, err := agg.Summarize(ctx, testutil.SeedUserID, 1)
	require.NoError(t, err)
	strict, err := agg.SummarizeStrict(ctx, testutil.SeedUserID, 1)
	require.NoError(t, err)

	assert.Equal(t, lenient.Data, strict.Data)
}
