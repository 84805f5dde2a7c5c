package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guest() CustomerIdentity {
	return CustomerIdentity{GuestEmail: "shopper@example.com"}
}

func sampleLines() []LineItem {
	return []LineItem{{ProductID: "P1", Quantity: 2, UnitPrice: 5000}}
}

func TestNewSessionComputesAmount(t *testing.T) {
	s, err := NewSession("ord-1", MethodCard, guest(), sampleLines(), "USD", 10000, 800, 500, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int64(11300), s.Amount)
	assert.Equal(t, StatusAwaitingCallback, s.Status)
	assert.True(t, s.ExpiresAt.After(s.CreatedAt))
}

func TestNewSessionCODStartsInitiated(t *testing.T) {
	s, err := NewSession("ord-1", MethodCOD, guest(), sampleLines(), "USD", 10000, 0, 0, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusInitiated, s.Status)
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession("ord-1", MethodCard, CustomerIdentity{}, sampleLines(), "USD", 0, 0, 0, time.Minute)
	assert.Error(t, err)

	_, err = NewSession("ord-1", MethodCard, guest(), nil, "USD", 0, 0, 0, time.Minute)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = NewSession("ord-1", MethodCard, guest(), []LineItem{{ProductID: "P1", Quantity: 0}}, "USD", 0, 0, 0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCustomerIdentityValidate(t *testing.T) {
	assert.NoError(t, CustomerIdentity{UserID: "u1"}.Validate())
	assert.NoError(t, CustomerIdentity{GuestEmail: "g@example.com"}.Validate())
	assert.Error(t, CustomerIdentity{}.Validate())
	assert.Error(t, CustomerIdentity{UserID: "u1", GuestEmail: "g@example.com"}.Validate())
}

func TestTransitionsAreMonotonic(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusInitiated, StatusAwaitingCallback, true},
		{StatusInitiated, StatusCommitted, true}, // cash on delivery
		{StatusAwaitingCallback, StatusVerified, true},
		{StatusAwaitingCallback, StatusFailed, true},
		{StatusAwaitingCallback, StatusExpired, true},
		{StatusVerified, StatusCommitted, true},
		{StatusVerified, StatusFailed, true},
		{StatusVerified, StatusExpired, false}, // provider already confirmed

		{StatusCommitted, StatusFailed, false},
		{StatusCommitted, StatusVerified, false},
		{StatusFailed, StatusVerified, false},
		{StatusExpired, StatusVerified, false},
		{StatusExpired, StatusCommitted, false},
		{StatusVerified, StatusAwaitingCallback, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesStaySticky(t *testing.T) {
	for _, terminal := range []Status{StatusCommitted, StatusFailed, StatusExpired} {
		require.True(t, terminal.Terminal())
		s := &PaymentSession{Status: terminal}
		for _, to := range []Status{StatusInitiated, StatusAwaitingCallback, StatusVerified, StatusCommitted, StatusFailed, StatusExpired} {
			assert.ErrorIsf(t, s.Transition(to), ErrInvalidTransition, "%s -> %s", terminal, to)
		}
	}
}

func TestFailRecordsReason(t *testing.T) {
	s, err := NewSession("ord-1", MethodWalletA, guest(), sampleLines(), "USD", 10000, 0, 0, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Fail(ReasonPaymentFailed))
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, ReasonPaymentFailed, s.FailureReason)
}

func TestExpiredAt(t *testing.T) {
	s, err := NewSession("ord-1", MethodCard, guest(), sampleLines(), "USD", 10000, 0, 0, time.Minute)
	require.NoError(t, err)

	assert.False(t, s.ExpiredAt(s.ExpiresAt.Add(-time.Second)))
	assert.True(t, s.ExpiredAt(s.ExpiresAt.Add(time.Second)))
}

func TestCloneIsIndependent(t *testing.T) {
	s, err := NewSession("ord-1", MethodCard, guest(), sampleLines(), "USD", 10000, 0, 0, time.Minute)
	require.NoError(t, err)

	clone := s.Clone()
	clone.Lines[0].Quantity = 99
	clone.Status = StatusFailed

	assert.Equal(t, 2, s.Lines[0].Quantity)
	assert.Equal(t, StatusAwaitingCallback, s.Status)
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"card", "walletA", "walletB", "cod"} {
		m, err := ParseMethod(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(m))
	}
	_, err := ParseMethod("carrier_pigeon")
	assert.Error(t, err)

	assert.True(t, MethodWalletA.Redirect())
	assert.True(t, MethodWalletB.Redirect())
	assert.False(t, MethodCard.Redirect())
	assert.False(t, MethodCOD.Redirect())
}
