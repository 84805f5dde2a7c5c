package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minimart/checkout/internal/domain/catalog"
	"github.com/minimart/checkout/internal/domain/inventory"
)

// ProductCatalog reads products straight from the products table. The on_hand
// column is the same one the commit transaction decrements, so availability
// seen at initiation is the live figure, not a cache.
type ProductCatalog struct {
	db *sql.DB
}

func NewProductCatalog(db *sql.DB) *ProductCatalog {
	return &ProductCatalog{db: db}
}

func (c *ProductCatalog) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, price, on_hand, active FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.OnHand, &p.Active)
	if err == sql.ErrNoRows {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// Seed inserts or refreshes a product and records its opening stock in the
// adjustment ledger. Used by local bootstrap only.
func (c *ProductCatalog) Seed(ctx context.Context, p catalog.Product) error {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, on_hand, active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Price, p.OnHand, p.Active,
	)
	if err != nil {
		return fmt.Errorf("seed product: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return err
	}
	if p.OnHand > 0 {
		_, err = c.db.ExecContext(ctx,
			`INSERT INTO inventory_adjustments (product_id, delta, reason, related_order_id, created_at)
			 VALUES ($1, $2, $3, NULL, NOW())`,
			p.ID, p.OnHand, inventory.ReasonRestock,
		)
		if err != nil {
			return fmt.Errorf("record seed adjustment: %w", err)
		}
	}
	return nil
}
