package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS order_sequence_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS customer_code_seq START 1`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		company_name VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(64) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL,
		customer_code INTEGER UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token VARCHAR(64) PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category VARCHAR(32) NOT NULL,
		unit VARCHAR(32) NOT NULL,
		price NUMERIC(10,2) NOT NULL,
		production_weight_per_unit DOUBLE PRECISION,
		production_unit VARCHAR(32),
		is_global BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customer_product_assignments (
		customer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		custom_price NUMERIC(10,2),
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (customer_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		sequence_number BIGINT NOT NULL UNIQUE DEFAULT nextval('order_sequence_seq'),
		customer_id UUID NOT NULL REFERENCES users(id),
		status VARCHAR(20) NOT NULL,
		is_archived BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		total_amount NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id),
		position INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		company_name VARCHAR(255) NOT NULL DEFAULT '',
		logo_url TEXT NOT NULL DEFAULT '',
		primary_color VARCHAR(16) NOT NULL DEFAULT '',
		accent_color VARCHAR(16) NOT NULL DEFAULT '',
		support_email VARCHAR(255) NOT NULL DEFAULT '',
		notification_email VARCHAR(255) NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id UUID PRIMARY KEY,
		customer_id UUID REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		weekday SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
		hour SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
}

// Migrate creates missing tables, sequences and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, query := range schema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Info("Database schema ready")
	return nil
}
