package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/inventory"
	domain "github.com/minimart/checkout/internal/domain/order"
	domoutbox "github.com/minimart/checkout/internal/domain/outbox"
	"github.com/minimart/checkout/internal/infrastructure/memory"
	"github.com/minimart/checkout/internal/pkg/faults"
)

type capturedPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *capturedPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturedPublisher) published() []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domoutbox.Event(nil), p.events...)
}

type committerFixture struct {
	committer *Committer
	sessions  *memory.SessionStore
	orders    *memory.OrderStore
	ledger    *memory.Ledger
	publisher *capturedPublisher
}

func newCommitterFixture(t *testing.T, stock int) *committerFixture {
	t.Helper()
	ledger := memory.NewLedger()
	if stock > 0 {
		require.NoError(t, ledger.Adjust(context.Background(), "P1", stock, inventory.ReasonRestock, ""))
	}
	orders := memory.NewOrderStore(ledger)
	sessions := memory.NewSessionStore()
	publisher := &capturedPublisher{}
	return &committerFixture{
		committer: NewCommitter(orders, sessions, publisher, nil),
		sessions:  sessions,
		orders:    orders,
		ledger:    ledger,
		publisher: publisher,
	}
}

func verifiedSession(t *testing.T, f *committerFixture, orderID, txn string, qty int) *checkout.PaymentSession {
	t.Helper()
	s, err := checkout.NewSession(orderID, checkout.MethodCard,
		checkout.CustomerIdentity{UserID: "u1"},
		[]checkout.LineItem{{ProductID: "P1", Quantity: qty, UnitPrice: 5000}},
		"USD", 5000*int64(qty), 400, 500, time.Minute)
	require.NoError(t, err)
	s.ProviderTxnID = txn
	require.NoError(t, f.sessions.Create(context.Background(), s))

	require.NoError(t, s.Transition(checkout.StatusVerified))
	require.NoError(t, f.sessions.UpdateIf(context.Background(), s, checkout.StatusAwaitingCallback))
	return s
}

func TestCommitCreatesOrderOnce(t *testing.T) {
	ctx := context.Background()
	f := newCommitterFixture(t, 10)
	s := verifiedSession(t, f, "ord-1", "txn-1", 2)

	o, created, err := f.committer.Commit(ctx, s)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, int64(10000+400+500), o.Total)

	onHand, _ := f.ledger.OnHand(ctx, "P1")
	assert.Equal(t, 8, onHand)

	stored, err := f.sessions.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusCommitted, stored.Status)

	events := f.publisher.published()
	require.Len(t, events, 1)
	evt, ok := events[0].(domain.OrderCommittedEvent)
	require.True(t, ok)
	assert.Equal(t, "ord-1", evt.OrderID)
	assert.Equal(t, "txn-1", evt.ProviderTxnID)
}

func TestCommitReplaySameTransaction(t *testing.T) {
	ctx := context.Background()
	f := newCommitterFixture(t, 10)
	s := verifiedSession(t, f, "ord-1", "txn-1", 2)

	first, created, err := f.committer.Commit(ctx, s)
	require.NoError(t, err)
	require.True(t, created)

	// Duplicate provider callback: same session, same transaction.
	replayed, created, err := f.committer.Commit(ctx, s)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replayed.ID)

	// Stock decremented exactly once, one confirmation published.
	onHand, _ := f.ledger.OnHand(ctx, "P1")
	assert.Equal(t, 8, onHand)
	assert.Len(t, f.publisher.published(), 1)
}

func TestCommitInventoryConflictFailsSession(t *testing.T) {
	ctx := context.Background()
	f := newCommitterFixture(t, 1)
	s := verifiedSession(t, f, "ord-1", "txn-1", 2)

	_, _, err := f.committer.Commit(ctx, s)
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindUnavailable))
	assert.Equal(t, faults.CodeInventoryConflict, faults.CodeOf(err))

	stored, gerr := f.sessions.Get(ctx, "ord-1")
	require.NoError(t, gerr)
	assert.Equal(t, checkout.StatusFailed, stored.Status)
	assert.Equal(t, checkout.ReasonInventoryConflict, stored.FailureReason)

	// Nothing was decremented and nothing published.
	onHand, _ := f.ledger.OnHand(ctx, "P1")
	assert.Equal(t, 1, onHand)
	assert.Empty(t, f.publisher.published())
}

func TestCommitRequiresProviderTransactionID(t *testing.T) {
	f := newCommitterFixture(t, 10)
	s, err := checkout.NewSession("ord-1", checkout.MethodCard,
		checkout.CustomerIdentity{UserID: "u1"},
		[]checkout.LineItem{{ProductID: "P1", Quantity: 1, UnitPrice: 5000}},
		"USD", 5000, 0, 0, time.Minute)
	require.NoError(t, err)

	_, _, cerr := f.committer.Commit(context.Background(), s)
	assert.True(t, faults.IsKind(cerr, faults.KindValidation))
}

func TestCommitConcurrentCallersOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newCommitterFixture(t, 10)
	s := verifiedSession(t, f, "ord-1", "txn-1", 2)

	const callers = 8
	var wg sync.WaitGroup
	createdCount := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := f.committer.Commit(ctx, s.Clone())
			if err == nil {
				createdCount <- created
			}
		}()
	}
	wg.Wait()
	close(createdCount)

	wins := 0
	for created := range createdCount {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	onHand, _ := f.ledger.OnHand(ctx, "P1")
	assert.Equal(t, 8, onHand)
}
