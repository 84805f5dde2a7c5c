package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/minimart/checkout/internal/domain/inventory"
)

// Ledger is the SQL inventory ledger: the products.on_hand counter plus the
// append-only inventory_adjustments log, kept consistent within one
// transaction per operation.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) TryDecrement(ctx context.Context, productID string, quantity int, relatedOrderID string) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	return l.apply(ctx, productID, -quantity, inventory.ReasonOrderCommit, relatedOrderID)
}

func (l *Ledger) Adjust(ctx context.Context, productID string, delta int, reason inventory.Reason, relatedOrderID string) error {
	if delta == 0 {
		return inventory.ErrInvalidQuantity
	}
	return l.apply(ctx, productID, delta, reason, relatedOrderID)
}

func (l *Ledger) apply(ctx context.Context, productID string, delta int, reason inventory.Reason, relatedOrderID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET on_hand = on_hand + $1 WHERE id = $2 AND on_hand + $1 >= 0`,
		delta, productID,
	)
	if err != nil {
		return fmt.Errorf("update on-hand: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update on-hand result: %w", err)
	} else if n == 0 {
		return inventory.ErrInsufficientStock
	}

	var related any
	if relatedOrderID != "" {
		related = relatedOrderID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO inventory_adjustments (product_id, delta, reason, related_order_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		productID, delta, string(reason), related, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (l *Ledger) OnHand(ctx context.Context, productID string) (int, error) {
	var onHand int
	err := l.db.QueryRowContext(ctx, `SELECT on_hand FROM products WHERE id = $1`, productID).Scan(&onHand)
	if err == sql.ErrNoRows {
		return 0, inventory.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query on-hand: %w", err)
	}
	return onHand, nil
}

func (l *Ledger) AdjustmentsForOrder(ctx context.Context, orderID string) ([]inventory.Adjustment, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT product_id, delta, reason, COALESCE(related_order_id, ''), created_at FROM inventory_adjustments WHERE related_order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	var out []inventory.Adjustment
	for rows.Next() {
		var (
			a      inventory.Adjustment
			reason string
		)
		if err := rows.Scan(&a.ProductID, &a.Delta, &reason, &a.RelatedOrderID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		a.Reason = inventory.Reason(reason)
		out = append(out, a)
	}
	return out, rows.Err()
}
