package notify

import (
	"context"

	"github.com/minimart/checkout/internal/domain/order"
	"github.com/minimart/checkout/internal/observability"
)

// Dispatcher delivers an order confirmation to the customer-facing channel.
// Implementations must be safe for concurrent use; delivery is at-least-once,
// so a confirmation may be handed to the same dispatcher more than once.
type Dispatcher interface {
	Channel() string
	SendOrderConfirmation(ctx context.Context, e order.OrderCommittedEvent) error
}

// LogDispatcher writes confirmations to the structured log. It stands in for a
// real mail or SMS channel in development and keeps the pipeline observable
// when no broker is configured.
type LogDispatcher struct {
	log observability.Logger
}

func NewLogDispatcher(log observability.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Channel() string { return "log" }

func (d *LogDispatcher) SendOrderConfirmation(_ context.Context, e order.OrderCommittedEvent) error {
	recipient := e.Customer.GuestEmail
	if e.Customer.UserID != "" {
		recipient = e.Customer.UserID
	}
	d.log.Info("order_confirmation",
		observability.F("order_id", e.OrderID),
		observability.F("method", string(e.Method)),
		observability.F("recipient", recipient),
		observability.F("total", e.Total),
		observability.F("currency", e.Currency),
		observability.F("items", len(e.Items)),
	)
	return nil
}
