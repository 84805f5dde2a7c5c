package checkout

import (
	"context"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// Committer materializes a session into an order exactly once per provider
// transaction id. The boolean reports whether this call created the order.
type Committer interface {
	Commit(ctx context.Context, s *checkout.PaymentSession) (*order.Order, bool, error)
}
