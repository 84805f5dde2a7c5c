package order

import (
	"errors"
	"time"

	"github.com/minimart/checkout/internal/domain/checkout"
)

var (
	ErrNotFound             = errors.New("order: not found")
	ErrDuplicateTransaction = errors.New("order: provider transaction already committed")
	ErrInvalidTransition    = errors.New("order: invalid status transition")
)

// Status is the fulfillment state of a committed order. Checkout only ever
// creates PENDING orders; later transitions belong to fulfillment operations.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

var fulfillment = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {StatusRefunded},
}

// OrderItem freezes the unit price at the moment of commit; later catalog
// price changes never touch it.
type OrderItem struct {
	ProductID          string
	Quantity           int
	UnitPriceAtCapture int64
}

// Order is the persisted result of a committed payment session. Its ID equals
// the originating session's order identifier, and ProviderTxnID is the
// idempotency key: exactly one order may exist per provider transaction.
type Order struct {
	ID            string
	Customer      checkout.CustomerIdentity
	Method        checkout.Method
	ProviderTxnID string
	Currency      string
	Subtotal      int64
	Tax           int64
	Shipping      int64
	Total         int64
	Status        Status
	Items         []OrderItem
	CreatedAt     time.Time
}

// FromSession materializes an order from a payment session, recomputing the
// totals from the captured unit prices rather than trusting any field the
// client could have influenced.
func FromSession(s *checkout.PaymentSession) *Order {
	items := make([]OrderItem, 0, len(s.Lines))
	var subtotal int64
	for _, l := range s.Lines {
		items = append(items, OrderItem{
			ProductID:          l.ProductID,
			Quantity:           l.Quantity,
			UnitPriceAtCapture: l.UnitPrice,
		})
		subtotal += l.UnitPrice * int64(l.Quantity)
	}
	return &Order{
		ID:            s.OrderID,
		Customer:      s.Customer,
		Method:        s.Method,
		ProviderTxnID: s.ProviderTxnID,
		Currency:      s.Currency,
		Subtotal:      subtotal,
		Tax:           s.Tax,
		Shipping:      s.Shipping,
		Total:         subtotal + s.Tax + s.Shipping,
		Status:        StatusPending,
		Items:         items,
		CreatedAt:     time.Now().UTC(),
	}
}

// Advance moves the order to the next fulfillment status.
func (o *Order) Advance(to Status) error {
	for _, next := range fulfillment[o.Status] {
		if next == to {
			o.Status = to
			return nil
		}
	}
	return ErrInvalidTransition
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]OrderItem(nil), o.Items...)
	return &clone
}
