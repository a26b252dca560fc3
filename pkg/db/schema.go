package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// TableDefinition is one idempotent CREATE statement
type TableDefinition struct {
	Name   string
	Create string
}

// Tables lists every table the point-of-sale schema needs, in dependency order
var Tables = []TableDefinition{
	{
		Name: "customers",
		Create: `CREATE TABLE IF NOT EXISTS customers (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name VARCHAR(200) NOT NULL,
			phone VARCHAR(50),
			email VARCHAR(200),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "products",
		Create: `CREATE TABLE IF NOT EXISTS products (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name VARCHAR(200) NOT NULL,
			barcode VARCHAR(100),
			stock INTEGER NOT NULL DEFAULT 0,
			wholesale_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			retail_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "sales",
		Create: `CREATE TABLE IF NOT EXISTS sales (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			device_id INTEGER,
			customer_id INTEGER REFERENCES customers(id),
			total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'completed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "sale_items",
		Create: `CREATE TABLE IF NOT EXISTS sale_items (
			id SERIAL PRIMARY KEY,
			sale_id INTEGER NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			price NUMERIC(12,2) NOT NULL
		)`,
	},
	{
		Name: "purchases",
		Create: `CREATE TABLE IF NOT EXISTS purchases (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			device_id INTEGER,
			supplier_name VARCHAR(200),
			total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'completed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "financial_transactions",
		Create: `CREATE TABLE IF NOT EXISTS financial_transactions (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			type VARCHAR(20) NOT NULL CHECK (type IN ('income', 'expense')),
			amount NUMERIC(12,2) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "customer_ledger",
		Create: `CREATE TABLE IF NOT EXISTS customer_ledger (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			sale_id INTEGER REFERENCES sales(id),
			entry_type VARCHAR(20) NOT NULL CHECK (entry_type IN ('debit', 'credit')),
			amount NUMERIC(12,2) NOT NULL,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "receivables",
		Create: `CREATE TABLE IF NOT EXISTS receivables (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			sale_id INTEGER REFERENCES sales(id),
			amount_due NUMERIC(12,2) NOT NULL,
			amount_paid NUMERIC(12,2) NOT NULL DEFAULT 0,
			due_date DATE,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
}

// Bootstrap creates any missing table. It runs once at startup, strictly and without
// retry; every statement is idempotent.
func Bootstrap(ctx context.Context, exec *Executor) error {
	for _, table := range Tables {
		req := NewQuery("bootstrap."+table.Name, table.Create)
		if err := exec.Exec(ctx, req); err != nil {
			return errors.Wrapf(err, "failed to create table %s", table.Name)
		}
	}
	return nil
}

// MissingTables returns the required tables absent from the public schema
func MissingTables(ctx context.Context, exec *Executor) ([]string, error) {
	names := make([]string, len(Tables))
	for i, table := range Tables {
		names[i] = table.Name
	}

	query := `
		SELECT table_name::text AS table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name::text = ANY($1)
	`
	rows, err := exec.Fetch(ctx, NewQuery("schema.list_tables", query, names), Strict)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		if name, ok := row["table_name"].(string); ok {
			present[name] = true
		}
	}

	var missing []string
	for _, name := range names {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
