package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimart/checkout/internal/domain/checkout"
)

func sessionFixture(t *testing.T) *checkout.PaymentSession {
	t.Helper()
	s, err := checkout.NewSession("ord-1", checkout.MethodCard,
		checkout.CustomerIdentity{UserID: "u1"},
		[]checkout.LineItem{
			{ProductID: "P1", Quantity: 2, UnitPrice: 5000},
			{ProductID: "P2", Quantity: 1, UnitPrice: 1800},
		},
		"USD", 11800, 944, 500, time.Minute)
	require.NoError(t, err)
	s.ProviderTxnID = "txn-1"
	return s
}

func TestFromSessionRecomputesTotals(t *testing.T) {
	s := sessionFixture(t)
	// A tampered subtotal must not survive into the order.
	s.Subtotal = 1

	o := FromSession(s)

	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, "txn-1", o.ProviderTxnID)
	assert.Equal(t, int64(11800), o.Subtotal)
	assert.Equal(t, int64(11800+944+500), o.Total)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(5000), o.Items[0].UnitPriceAtCapture)
}

func TestAdvanceFollowsFulfillmentOrder(t *testing.T) {
	o := FromSession(sessionFixture(t))

	require.NoError(t, o.Advance(StatusProcessing))
	require.NoError(t, o.Advance(StatusShipped))
	require.NoError(t, o.Advance(StatusDelivered))
	require.NoError(t, o.Advance(StatusRefunded))

	assert.ErrorIs(t, o.Advance(StatusPending), ErrInvalidTransition)
}

func TestAdvanceRejectsSkips(t *testing.T) {
	o := FromSession(sessionFixture(t))
	assert.ErrorIs(t, o.Advance(StatusDelivered), ErrInvalidTransition)
	assert.ErrorIs(t, o.Advance(StatusRefunded), ErrInvalidTransition)

	require.NoError(t, o.Advance(StatusCancelled))
	require.NoError(t, o.Advance(StatusRefunded))
}
