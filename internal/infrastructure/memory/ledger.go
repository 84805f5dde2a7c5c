package memory

import (
	"context"
	"sync"
	"time"

	"github.com/minimart/checkout/internal/domain/inventory"
)

// Ledger is the in-memory inventory ledger: an append-only adjustment log and
// the derived on-hand counters, updated under one lock so a decrement is a
// true conditional update.
type Ledger struct {
	mu          sync.RWMutex
	onHand      map[string]int
	adjustments []inventory.Adjustment
}

func NewLedger() *Ledger {
	return &Ledger{onHand: make(map[string]int)}
}

func (l *Ledger) TryDecrement(ctx context.Context, productID string, quantity int, relatedOrderID string) error {
	_ = ctx
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decrementLocked(productID, quantity, relatedOrderID)
}

func (l *Ledger) Adjust(ctx context.Context, productID string, delta int, reason inventory.Reason, relatedOrderID string) error {
	_ = ctx
	if delta == 0 {
		return inventory.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onHand[productID]+delta < 0 {
		return inventory.ErrInsufficientStock
	}
	l.appendLocked(productID, delta, reason, relatedOrderID)
	return nil
}

func (l *Ledger) OnHand(ctx context.Context, productID string) (int, error) {
	_ = ctx

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.onHand[productID], nil
}

func (l *Ledger) AdjustmentsForOrder(ctx context.Context, orderID string) ([]inventory.Adjustment, error) {
	_ = ctx
	if orderID == "" {
		return nil, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []inventory.Adjustment
	for _, a := range l.adjustments {
		if a.RelatedOrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

// decrementForOrder applies all decrements for an order atomically: the
// per-product totals are validated against on-hand stock before any row is
// appended, so a commit never half-applies and repeated lines for the same
// product are checked as one demand.
func (l *Ledger) decrementForOrder(lines []inventory.Adjustment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	need := make(map[string]int, len(lines))
	for _, line := range lines {
		if -line.Delta <= 0 {
			return inventory.ErrInvalidQuantity
		}
		need[line.ProductID] += -line.Delta
	}
	for productID, quantity := range need {
		if l.onHand[productID] < quantity {
			return inventory.ErrInsufficientStock
		}
	}
	for _, line := range lines {
		l.appendLocked(line.ProductID, line.Delta, line.Reason, line.RelatedOrderID)
	}
	return nil
}

func (l *Ledger) decrementLocked(productID string, quantity int, relatedOrderID string) error {
	if l.onHand[productID] < quantity {
		return inventory.ErrInsufficientStock
	}
	l.appendLocked(productID, -quantity, inventory.ReasonOrderCommit, relatedOrderID)
	return nil
}

func (l *Ledger) appendLocked(productID string, delta int, reason inventory.Reason, relatedOrderID string) {
	l.onHand[productID] += delta
	l.adjustments = append(l.adjustments, inventory.Adjustment{
		ProductID:      productID,
		Delta:          delta,
		Reason:         reason,
		RelatedOrderID: relatedOrderID,
		CreatedAt:      time.Now().UTC(),
	})
}
