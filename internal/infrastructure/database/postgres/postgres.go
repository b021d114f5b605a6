// Package postgres opens the shared *sql.DB and owns the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects through the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		selling_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
		image_url TEXT,
		category TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id TEXT PRIMARY KEY,
		name TEXT,
		email TEXT UNIQUE,
		role TEXT NOT NULL CHECK (role IN ('superadmin', 'admin', 'merchant')),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT,
		mobile TEXT,
		items JSONB NOT NULL,
		total_amount NUMERIC(12, 2) NOT NULL CHECK (total_amount > 0),
		status TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		delivery_status TEXT NOT NULL,
		order_type TEXT NOT NULL,
		delivery_slot TEXT,
		delivery_address JSONB NOT NULL,
		otp_hash TEXT,
		otp_issued_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT orders_transaction_id_key UNIQUE (transaction_id)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_delivery_status_idx ON orders (delivery_status)`,
	`CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_modes (
		singleton_key TEXT PRIMARY KEY,
		is_quick_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_scheduled_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_by TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		browser TEXT NOT NULL DEFAULT '',
		device TEXT NOT NULL DEFAULT '',
		last_active TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT push_subscriptions_endpoint_key UNIQUE (endpoint)
	)`,
	`CREATE INDEX IF NOT EXISTS push_subscriptions_user_id_idx ON push_subscriptions (user_id)`,
}

// Migrate creates any missing tables and indexes. It is safe to run on
// every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
