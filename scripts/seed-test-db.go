package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AliciaSchep/posdash/internal/testutil"
	"github.com/AliciaSchep/posdash/pkg/db"
	usererrors "github.com/AliciaSchep/posdash/pkg/errors"
)

func main() {
	fmt.Println("🌱 Seeding test database...")

	cfg := testutil.GetRealDatabaseConfig()
	if cfg == nil {
		fail("No test database configuration found. Please set %s.", testutil.TestDatabaseURLEnv)
	}

	fmt.Printf("📡 Connecting to test database: %s\n", cfg.MaskedURI())

	ctx := context.Background()
	opts := db.DefaultOptions()
	opts.Logger = testutil.DiscardLogger()
	database, err := db.Open(ctx, cfg.URL, opts)
	if err != nil {
		fail("Failed to connect to test database: %v", err)
	}
	defer database.Close()

	if status := database.Health(ctx); !status.IsHealthy {
		fail("Test database is unreachable: %s", status.Message)
	}

	fmt.Println("🔧 Creating point-of-sale tables...")
	if err := db.Bootstrap(ctx, database.Executor); err != nil {
		fail("Failed to create tables: %v", err)
	}

	usererrors.UserInfo(os.Stdout, "Seeding rows for user %d", testutil.SeedUserID)
	if err := testutil.SetupPOSSchema(ctx, func(ctx context.Context, sql string) error {
		return database.Executor.Exec(ctx, db.NewQuery("seed", sql))
	}); err != nil {
		fail("Failed to seed test data: %v", err)
	}

	fmt.Println("✅ Test database seeded successfully!")
	fmt.Println("🧪 Ready for test execution")
}

func fail(format string, args ...interface{}) {
	usererrors.UserError(os.Stderr, format, args...)
	os.Exit(1)
}
