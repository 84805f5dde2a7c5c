package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/minimart/checkout/internal/domain/inventory"
	domain "github.com/minimart/checkout/internal/domain/order"
)

// OrderStore keeps committed orders in memory, indexed by id and by provider
// transaction id. Commit shares the ledger so order insertion and inventory
// decrement form one unit of work.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	byTxn  map[string]string
	ledger *Ledger
}

func NewOrderStore(ledger *Ledger) *OrderStore {
	return &OrderStore{
		orders: make(map[string]*domain.Order),
		byTxn:  make(map[string]string),
		ledger: ledger,
	}
}

func (s *OrderStore) Commit(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order store: id is required")
	}
	if o.ProviderTxnID == "" {
		return fmt.Errorf("order store: provider transaction id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTxn[o.ProviderTxnID]; exists {
		return domain.ErrDuplicateTransaction
	}
	if _, exists := s.orders[o.ID]; exists {
		return domain.ErrDuplicateTransaction
	}

	lines := make([]inventory.Adjustment, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, inventory.Adjustment{
			ProductID:      item.ProductID,
			Delta:          -item.Quantity,
			Reason:         inventory.ReasonOrderCommit,
			RelatedOrderID: o.ID,
		})
	}
	if err := s.ledger.decrementForOrder(lines); err != nil {
		return err
	}

	s.orders[o.ID] = o.Clone()
	s.byTxn[o.ProviderTxnID] = o.ID
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *OrderStore) FindByProviderTxn(ctx context.Context, providerTxnID string) (*domain.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTxn[providerTxnID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	return o.Advance(status)
}
