package order

import (
	"time"

	"github.com/minimart/checkout/internal/domain/checkout"
)

// OrderCommittedEvent is emitted after the commit transaction succeeds. The
// notification worker consumes it to send the order confirmation; publishing
// it never blocks or rolls back the commit itself.
type OrderCommittedEvent struct {
	OrderID       string
	ProviderTxnID string
	Method        checkout.Method
	Customer      checkout.CustomerIdentity
	Total         int64
	Currency      string
	Items         []OrderItem
	OccurredAt    time.Time
}

func (OrderCommittedEvent) EventName() string { return "order.committed" }

func NewOrderCommittedEvent(o *Order) OrderCommittedEvent {
	return OrderCommittedEvent{
		OrderID:       o.ID,
		ProviderTxnID: o.ProviderTxnID,
		Method:        o.Method,
		Customer:      o.Customer,
		Total:         o.Total,
		Currency:      o.Currency,
		Items:         append([]OrderItem(nil), o.Items...),
		OccurredAt:    time.Now().UTC(),
	}
}
