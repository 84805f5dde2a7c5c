// Package notify runs the post-commit notification pipeline. The worker
// consumes order.committed events off the in-process bus and hands them to
// the configured dispatchers. Delivery is at-least-once and strictly
// best-effort with respect to the commit: a failed confirmation is retried
// and logged, never propagated back into the checkout path.
package notify

import (
	"context"
	"time"

	"github.com/minimart/checkout/internal/domain/order"
	"github.com/minimart/checkout/internal/domain/outbox"
	"github.com/minimart/checkout/internal/infrastructure/notify"
	"github.com/minimart/checkout/internal/observability"
	"github.com/minimart/checkout/internal/pkg/retry"
)

const componentNotifyWorker = "notification_worker"

type Worker struct {
	subscriber  outbox.Subscriber
	dispatchers []notify.Dispatcher
	maxAttempts uint

	log  observability.Logger
	sent observability.Counter
}

func NewWorker(subscriber outbox.Subscriber, tel observability.Observability, dispatchers ...notify.Dispatcher) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber:  subscriber,
		dispatchers: dispatchers,
		maxAttempts: 3,
		log:         tel.Logger().With(observability.F("component", componentNotifyWorker)),
		sent:        tel.Metrics().Counter(observability.MNotificationsSent),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || len(w.dispatchers) == 0 {
		return
	}
	w.subscriber.Subscribe(order.OrderCommittedEvent{}.EventName(), w.handleOrderCommitted)
}

func (w *Worker) handleOrderCommitted(ctx context.Context, e outbox.Event) error {
	evt, ok := e.(order.OrderCommittedEvent)
	if !ok {
		return nil
	}

	log := w.log.With(
		observability.F("event", e.EventName()),
		observability.F("order_id", evt.OrderID),
	)

	for _, d := range w.dispatchers {
		start := time.Now()
		err := retry.Do(ctx, w.maxAttempts, func() error {
			return d.SendOrderConfirmation(ctx, evt)
		})
		outcome := "success"
		if err != nil {
			outcome = "error"
			log.Error("order_confirmation_failed",
				observability.F("channel", d.Channel()),
				observability.F("error", err.Error()),
			)
		} else {
			log.Info("order_confirmation_sent",
				observability.F("channel", d.Channel()),
				observability.F("latency_seconds", time.Since(start).Seconds()),
			)
		}
		w.sent.Add(1,
			observability.L("channel", d.Channel()),
			observability.L("outcome", outcome),
		)
	}
	return nil
}
