package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Reason classifies a ledger adjustment.
type Reason string

const (
	ReasonOrderCommit  Reason = "ORDER_COMMIT"
	ReasonManualAdjust Reason = "MANUAL_ADJUST"
	ReasonRestock      Reason = "RESTOCK"
	ReasonReversal     Reason = "REVERSAL"
)

// Adjustment is one append-only ledger row. Rows are never mutated or
// deleted; on-hand stock for a product is the sum of its deltas.
type Adjustment struct {
	ProductID      string
	Delta          int // negative for a sale
	Reason         Reason
	RelatedOrderID string // empty when not order-driven
	CreatedAt      time.Time
}

// Ledger is the sole writer of on-hand quantity changes.
//
// TryDecrement is a conditional update: it only succeeds when the current
// on-hand quantity covers the request, which is what keeps N concurrent
// commits for the last unit from driving stock negative. Every successful
// decrement appends exactly one ORDER_COMMIT row.
type Ledger interface {
	TryDecrement(ctx context.Context, productID string, quantity int, relatedOrderID string) error
	Adjust(ctx context.Context, productID string, delta int, reason Reason, relatedOrderID string) error
	OnHand(ctx context.Context, productID string) (int, error)
	AdjustmentsForOrder(ctx context.Context, orderID string) ([]Adjustment, error)
}
