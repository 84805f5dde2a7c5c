package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/inventory"
	domain "github.com/minimart/checkout/internal/domain/order"
)

// OrderStore persists orders in Postgres. Commit runs the whole unit of work
// in one transaction: the UNIQUE constraint on provider_txn_id enforces
// at-most-one order per real-world payment, and the conditional stock update
// is what loses gracefully when a concurrent commit takes the last unit.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Commit(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, guest_email, method, provider_txn_id, currency, subtotal, tax, shipping, total, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (provider_txn_id) DO NOTHING`,
		o.ID, o.Customer.UserID, o.Customer.GuestEmail, string(o.Method), o.ProviderTxnID,
		o.Currency, o.Subtotal, o.Tax, o.Shipping, o.Total, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert order result: %w", err)
	} else if n == 0 {
		return domain.ErrDuplicateTransaction
	}

	for _, item := range o.Items {
		// Conditional decrement: only succeeds while on-hand covers the line.
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET on_hand = on_hand - $1 WHERE id = $2 AND on_hand >= $1`,
			item.Quantity, item.ProductID,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("decrement stock result: %w", err)
		} else if n == 0 {
			return inventory.ErrInsufficientStock
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price_at_capture) VALUES ($1, $2, $3, $4)`,
			o.ID, item.ProductID, item.Quantity, item.UnitPriceAtCapture,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO inventory_adjustments (product_id, delta, reason, related_order_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
			item.ProductID, -item.Quantity, string(inventory.ReasonOrderCommit), o.ID, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("insert inventory adjustment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOne(ctx, `SELECT id, user_id, guest_email, method, provider_txn_id, currency, subtotal, tax, shipping, total, status, created_at FROM orders WHERE id = $1`, id)
}

func (s *OrderStore) FindByProviderTxn(ctx context.Context, providerTxnID string) (*domain.Order, error) {
	return s.findOne(ctx, `SELECT id, user_id, guest_email, method, provider_txn_id, currency, subtotal, tax, shipping, total, status, created_at FROM orders WHERE provider_txn_id = $1`, providerTxnID)
}

func (s *OrderStore) findOne(ctx context.Context, query, arg string) (*domain.Order, error) {
	var (
		o              domain.Order
		method, status string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.Customer.UserID, &o.Customer.GuestEmail, &method, &o.ProviderTxnID,
		&o.Currency, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total, &status, &o.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.Method = checkout.Method(method)
	o.Status = domain.Status(status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, quantity, unit_price_at_capture FROM order_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPriceAtCapture); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
