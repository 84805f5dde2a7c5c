package order

import "context"

// Store persists orders.
//
// Commit is the atomic unit of work that turns a verified payment into an
// order: in one transaction it re-checks and decrements inventory for every
// item (all or nothing), appends one ledger adjustment per item, and inserts
// the order with its items. It returns ErrDuplicateTransaction when an order
// already exists for the same provider transaction id and
// inventory.ErrInsufficientStock when any item lost the stock race; in both
// cases nothing is written.
type Store interface {
	Commit(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByProviderTxn(ctx context.Context, providerTxnID string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
