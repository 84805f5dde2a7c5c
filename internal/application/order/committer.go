package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/inventory"
	domain "github.com/minimart/checkout/internal/domain/order"
	domoutbox "github.com/minimart/checkout/internal/domain/outbox"
	"github.com/minimart/checkout/internal/observability"
	"github.com/minimart/checkout/internal/observability/logctx"
	"github.com/minimart/checkout/internal/pkg/faults"
)

const componentCommitter = "order_committer"

// Committer turns a verified payment session into a persisted order exactly
// once per provider transaction id. Inventory is re-checked and decremented
// inside the same unit of work as the order insert; the confirmation event is
// published only after that work succeeds and its failure never unwinds the
// order.
type Committer struct {
	orders    domain.Store
	sessions  checkout.SessionStore
	publisher domoutbox.Publisher

	log       observability.Logger
	committed observability.Counter
}

func NewCommitter(orders domain.Store, sessions checkout.SessionStore, publisher domoutbox.Publisher, tel observability.Observability) *Committer {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Committer{
		orders:    orders,
		sessions:  sessions,
		publisher: publisher,
		log:       tel.Logger().With(observability.F("component", componentCommitter)),
		committed: tel.Metrics().Counter(observability.MOrdersCommitted),
	}
}

// Commit is idempotent on the session's provider transaction id. The boolean
// result reports whether this call created the order (false on replay).
func (c *Committer) Commit(ctx context.Context, s *checkout.PaymentSession) (*domain.Order, bool, error) {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("order_id", s.OrderID),
		observability.F("provider_txn_id", s.ProviderTxnID),
	)

	if s.ProviderTxnID == "" {
		return nil, false, faults.New(faults.KindValidation, "session has no provider transaction id")
	}

	// Read-before-write existence check: duplicate callbacks and webhook
	// redeliveries land here after a restart, when no in-memory state exists.
	if existing, err := c.orders.FindByProviderTxn(ctx, s.ProviderTxnID); err == nil {
		logger.Info("commit_replayed")
		c.ensureSessionCommitted(ctx, s)
		return existing, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("committer: idempotency lookup: %w", err)
	}

	o := domain.FromSession(s)

	err := c.orders.Commit(ctx, o)
	switch {
	case err == nil:
		// fallthrough to post-commit work below
	case errors.Is(err, domain.ErrDuplicateTransaction):
		// Lost a commit race for the same transaction; the winner's order is
		// the order.
		existing, lookupErr := c.orders.FindByProviderTxn(ctx, s.ProviderTxnID)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("committer: duplicate lookup: %w", lookupErr)
		}
		logger.Info("commit_replayed_after_race")
		c.ensureSessionCommitted(ctx, s)
		return existing, false, nil
	case errors.Is(err, inventory.ErrInsufficientStock):
		c.failSession(ctx, s, checkout.ReasonInventoryConflict)
		logger.Warn("commit_inventory_conflict")
		return nil, false, faults.Wrap(faults.KindUnavailable, err, "inventory changed since initiation").
			WithCode(faults.CodeInventoryConflict)
	default:
		return nil, false, fmt.Errorf("committer: commit: %w", err)
	}

	prev := s.Status
	if terr := s.Transition(checkout.StatusCommitted); terr != nil {
		logger.Error("session_commit_transition_failed", observability.F("error", terr.Error()))
	} else if uerr := c.sessions.UpdateIf(ctx, s, prev); uerr != nil {
		// The order exists regardless; a session CAS loss here only means a
		// concurrent caller already advanced it.
		logger.Warn("session_commit_update_lost", observability.F("error", uerr.Error()))
	}

	c.committed.Add(1, observability.L("method", string(o.Method)))
	logger.Info("order_committed",
		observability.F("total", o.Total),
		observability.F("items", len(o.Items)),
	)

	if c.publisher != nil {
		if perr := c.publisher.Publish(ctx, domain.NewOrderCommittedEvent(o)); perr != nil {
			logger.Warn("order_committed_publish_failed", observability.F("error", perr.Error()))
		}
	}

	return o, true, nil
}

// ensureSessionCommitted advances a session replaying an already-committed
// transaction into COMMITTED, tolerating CAS losses.
func (c *Committer) ensureSessionCommitted(ctx context.Context, s *checkout.PaymentSession) {
	if s.Status == checkout.StatusCommitted {
		return
	}
	prev := s.Status
	if err := s.Transition(checkout.StatusCommitted); err != nil {
		return
	}
	_ = c.sessions.UpdateIf(ctx, s, prev)
}

func (c *Committer) failSession(ctx context.Context, s *checkout.PaymentSession, reason string) {
	prev := s.Status
	if err := s.Fail(reason); err != nil {
		return
	}
	_ = c.sessions.UpdateIf(ctx, s, prev)
}
