package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("catalog: product not found")

// Product is the slice of catalog data checkout needs. OnHand reflects the
// inventory ledger; Price is in minor currency units.
type Product struct {
	ID     string
	Name   string
	Price  int64
	OnHand int
	Active bool
}

// Repository is the read-only collaborator interface onto the catalog.
// Browsing, search and administration live elsewhere.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
}
