package sqlite

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		shelf TEXT NOT NULL DEFAULT '',
		low_stock_threshold INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_medicines_store_name ON medicines (store_id, name);`,
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		medicine_id TEXT NOT NULL REFERENCES medicines (id) ON DELETE CASCADE,
		batch_number TEXT NOT NULL DEFAULT '',
		expiry_date TEXT,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		purchase_price TEXT NOT NULL DEFAULT '0',
		selling_price TEXT NOT NULL DEFAULT '0',
		received_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_batches_medicine ON batches (store_id, medicine_id);`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		customer_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		subtotal TEXT NOT NULL,
		discount_type TEXT NOT NULL DEFAULT '',
		discount_value TEXT NOT NULL DEFAULT '0',
		discount_amount TEXT NOT NULL DEFAULT '0',
		tax TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		balance_due TEXT NOT NULL DEFAULT '0',
		payment_method TEXT NOT NULL,
		cashier TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sales_store_created ON sales (store_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		sale_id TEXT NOT NULL REFERENCES sales (id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		medicine_id TEXT NOT NULL,
		medicine_name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price TEXT NOT NULL,
		line_total TEXT NOT NULL,
		deductions TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (sale_id, line_no)
	);`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);`,
}

// Migrate creates the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
