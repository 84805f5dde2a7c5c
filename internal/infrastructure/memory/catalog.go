package memory

import (
	"context"
	"sync"

	"github.com/minimart/checkout/internal/domain/catalog"
	"github.com/minimart/checkout/internal/domain/inventory"
)

// ProductCatalog serves product reads, composing static product data with the
// live on-hand count from the ledger so checkout always sees ledger-backed
// stock.
type ProductCatalog struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	ledger   *Ledger
}

func NewProductCatalog(ledger *Ledger) *ProductCatalog {
	return &ProductCatalog{
		products: make(map[string]catalog.Product),
		ledger:   ledger,
	}
}

// Seed registers a product and records its initial stock as a RESTOCK
// adjustment, keeping the ledger the sole writer of on-hand quantities.
func (c *ProductCatalog) Seed(ctx context.Context, p catalog.Product, initialStock int) error {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()

	if initialStock > 0 {
		return c.ledger.Adjust(ctx, p.ID, initialStock, inventory.ReasonRestock, "")
	}
	return nil
}

func (c *ProductCatalog) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	c.mu.RLock()
	p, ok := c.products[id]
	c.mu.RUnlock()
	if !ok {
		return nil, catalog.ErrNotFound
	}

	onHand, err := c.ledger.OnHand(ctx, id)
	if err != nil {
		return nil, err
	}
	p.OnHand = onHand
	return &p, nil
}
