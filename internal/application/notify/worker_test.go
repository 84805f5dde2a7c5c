package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimart/checkout/internal/domain/checkout"
	"github.com/minimart/checkout/internal/domain/order"
	"github.com/minimart/checkout/internal/domain/outbox"
)

type recordingSubscriber struct {
	handlers map[string]outbox.Handler
}

func (s *recordingSubscriber) Subscribe(eventName string, h outbox.Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string]outbox.Handler)
	}
	s.handlers[eventName] = h
}

type flakyDispatcher struct {
	mu       sync.Mutex
	channel  string
	failures int
	sent     []order.OrderCommittedEvent
}

func (d *flakyDispatcher) Channel() string { return d.channel }

func (d *flakyDispatcher) SendOrderConfirmation(_ context.Context, e order.OrderCommittedEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("smtp connection reset")
	}
	d.sent = append(d.sent, e)
	return nil
}

func committedEvent() order.OrderCommittedEvent {
	return order.OrderCommittedEvent{
		OrderID:       "ord-1",
		ProviderTxnID: "txn-1",
		Method:        checkout.MethodCard,
		Customer:      checkout.CustomerIdentity{UserID: "u1"},
		Total:         5900,
		Currency:      "USD",
	}
}

func TestWorkerSubscribesToOrderCommitted(t *testing.T) {
	sub := &recordingSubscriber{}
	NewWorker(sub, nil, &flakyDispatcher{channel: "email"}).Start()

	require.Contains(t, sub.handlers, "order.committed")
}

func TestWorkerWithoutDispatchersDoesNotSubscribe(t *testing.T) {
	sub := &recordingSubscriber{}
	NewWorker(sub, nil).Start()

	assert.Empty(t, sub.handlers)
}

func TestWorkerDeliversToAllDispatchers(t *testing.T) {
	sub := &recordingSubscriber{}
	email := &flakyDispatcher{channel: "email"}
	sms := &flakyDispatcher{channel: "sms"}
	NewWorker(sub, nil, email, sms).Start()

	h := sub.handlers["order.committed"]
	require.NoError(t, h(context.Background(), committedEvent()))

	require.Len(t, email.sent, 1)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "ord-1", email.sent[0].OrderID)
}

func TestWorkerRetriesTransientSendFailures(t *testing.T) {
	sub := &recordingSubscriber{}
	email := &flakyDispatcher{channel: "email", failures: 1}
	NewWorker(sub, nil, email).Start()

	h := sub.handlers["order.committed"]
	require.NoError(t, h(context.Background(), committedEvent()))

	require.Len(t, email.sent, 1)
}

func TestWorkerSwallowsExhaustedFailures(t *testing.T) {
	sub := &recordingSubscriber{}
	email := &flakyDispatcher{channel: "email", failures: 10}
	sms := &flakyDispatcher{channel: "sms"}
	NewWorker(sub, nil, email, sms).Start()

	h := sub.handlers["order.committed"]

	// A dead channel never fails the event, and never blocks the next channel.
	require.NoError(t, h(context.Background(), committedEvent()))
	assert.Empty(t, email.sent)
	require.Len(t, sms.sent, 1)
}

func TestWorkerIgnoresForeignEvents(t *testing.T) {
	sub := &recordingSubscriber{}
	email := &flakyDispatcher{channel: "email"}
	NewWorker(sub, nil, email).Start()

	h := sub.handlers["order.committed"]
	require.NoError(t, h(context.Background(), otherEvent{}))
	assert.Empty(t, email.sent)
}

type otherEvent struct{}

func (otherEvent) EventName() string { return "order.committed" }
