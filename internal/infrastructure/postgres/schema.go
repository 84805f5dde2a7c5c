package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price BIGINT NOT NULL,
	on_hand INT NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS payment_sessions (
	order_id TEXT PRIMARY KEY,
	method TEXT NOT NULL,
	amount BIGINT NOT NULL,
	subtotal BIGINT NOT NULL,
	tax BIGINT NOT NULL,
	shipping BIGINT NOT NULL,
	currency TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	guest_email TEXT NOT NULL DEFAULT '',
	lines JSONB NOT NULL,
	provider_txn_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payment_sessions_expiry ON payment_sessions(expires_at) WHERE status IN ('INITIATED','AWAITING_CALLBACK','VERIFIED');

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	guest_email TEXT NOT NULL DEFAULT '',
	method TEXT NOT NULL,
	provider_txn_id TEXT NOT NULL UNIQUE,
	currency TEXT NOT NULL,
	subtotal BIGINT NOT NULL,
	tax BIGINT NOT NULL,
	shipping BIGINT NOT NULL,
	total BIGINT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id TEXT NOT NULL REFERENCES orders(id),
	product_id TEXT NOT NULL,
	quantity INT NOT NULL,
	unit_price_at_capture BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS inventory_adjustments (
	id BIGSERIAL PRIMARY KEY,
	product_id TEXT NOT NULL,
	delta INT NOT NULL,
	reason TEXT NOT NULL,
	related_order_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inventory_adjustments_order ON inventory_adjustments(related_order_id);
`

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Init creates the tables used by the checkout pipeline.
func Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
