package testutil

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AliciaSchep/posdash/pkg/config"
)

// TestDatabaseURLEnv names the variable that points tests at a real Postgres
const TestDatabaseURLEnv = "POSDASH_TEST_DATABASE_URL"

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// GetRealDatabaseConfig returns the test database target, or nil when none is configured
func GetRealDatabaseConfig() *config.DBConfig {
	uri := os.Getenv(TestDatabaseURLEnv)
	if uri == "" {
		return nil
	}
	cfg, err := config.NewDBConfigFromURI(uri)
	if err != nil {
		return nil
	}
	return cfg
}

// RequireRealDatabase skips t unless a real database is configured
func RequireRealDatabase(t *testing.T) *config.DBConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := GetRealDatabaseConfig()
	if cfg == nil {
		t.Skipf("skipping integration test - %s not set", TestDatabaseURLEnv)
	}
	return cfg
}

// SeedUserID owns every seeded row
const SeedUserID = 4242

// SetupPOSSchema seeds the point-of-sale tables for SeedUserID. The tables must exist.
// Stocks are [0, 0, 3, 7, 12]; one sale is cancelled and must not count.
func SetupPOSSchema(ctx context.Context, execFunc func(context.Context, string) error) error {
	if err := CleanupPOSSchema(ctx, execFunc); err != nil {
		return err
	}

	seed := `
	INSERT INTO customers (id, user_id, name) VALUES
		(900001, 4242, 'Amina'),
		(900002, 4242, 'Bruno'),
		(900003, 4242, 'Chen');

	INSERT INTO products (id, user_id, name, stock, wholesale_price, retail_price) VALUES
		(900001, 4242, 'Rice 5kg', 0, 4.00, 6.50),
		(900002, 4242, 'Beans 1kg', 0, 1.20, 2.00),
		(900003, 4242, 'Cooking Oil', 3, 2.50, 3.75),
		(900004, 4242, 'Sugar 2kg', 7, 1.80, 2.60),
		(900005, 4242, 'Salt', 12, 0.30, 0.55);

	INSERT INTO sales (id, user_id, device_id, customer_id, total_amount, status, created_at) VALUES
		(900001, 4242, 1, 900001, 13.00, 'completed', now() - interval '3 hours'),
		(900002, 4242, 1, 900002, 7.50, 'completed', now() - interval '2 hours'),
		(900003, 4242, 1, 900001, 100.00, 'cancelled', now() - interval '1 hour');

	INSERT INTO sale_items (sale_id, product_id, quantity, price) VALUES
		(900001, 900001, 2, 6.50),
		(900002, 900003, 2, 3.75),
		(900003, 900004, 10, 10.00);

	INSERT INTO purchases (id, user_id, device_id, supplier_name, total_amount, status) VALUES
		(900001, 4242, 1, 'Wholesale Co', 40.00, 'completed'),
		(900002, 4242, 1, 'Wholesale Co', 15.00, 'cancelled');

	INSERT INTO financial_transactions (user_id, type, amount, description) VALUES
		(4242, 'income', 20.00, 'delivery fees'),
		(4242, 'expense', 5.25, 'electricity');
	`
	return execFunc(ctx, seed)
}

// CleanupPOSSchema removes the rows seeded for SeedUserID
func CleanupPOSSchema(ctx context.Context, execFunc func(context.Context, string) error) error {
	cleanup := `
	DELETE FROM sale_items WHERE sale_id IN (SELECT id FROM sales WHERE user_id = 4242);
	DELETE FROM customer_ledger WHERE user_id = 4242;
	DELETE FROM receivables WHERE user_id = 4242;
	DELETE FROM sales WHERE user_id = 4242;
	DELETE FROM purchases WHERE user_id = 4242;
	DELETE FROM financial_transactions WHERE user_id = 4242;
	DELETE FROM products WHERE user_id = 4242;
	DELETE FROM customers WHERE user_id = 4242;
	`
	return execFunc(ctx, cleanup)
}
