package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/minimart/checkout/internal/domain/checkout"
)

func sessionFixture(t *testing.T) *domain.PaymentSession {
	t.Helper()
	s, err := domain.NewSession("ord-1", domain.MethodCard,
		domain.CustomerIdentity{UserID: "u1"},
		[]domain.LineItem{{ProductID: "P1", Quantity: 2, UnitPrice: 5000}},
		"USD", 10000, 800, 500, 15*time.Minute)
	require.NoError(t, err)
	s.ProviderTxnID = "txn-1"
	return s
}

func TestSessionStoreUpdateIfWinsCAS(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSessionStore(db)
	s := sessionFixture(t)
	require.NoError(t, s.Transition(domain.StatusVerified))

	mock.ExpectExec("UPDATE payment_sessions SET status").
		WithArgs("VERIFIED", "txn-1", "", "ord-1", "AWAITING_CALLBACK").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateIf(context.Background(), s, domain.StatusAwaitingCallback))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStoreUpdateIfLosesCAS(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSessionStore(db)
	s := sessionFixture(t)
	require.NoError(t, s.Transition(domain.StatusVerified))

	mock.ExpectExec("UPDATE payment_sessions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assert.ErrorIs(t, store.UpdateIf(context.Background(), s, domain.StatusAwaitingCallback), domain.ErrConflict)
}

func TestSessionStoreUpdateIfMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSessionStore(db)
	s := sessionFixture(t)
	require.NoError(t, s.Transition(domain.StatusVerified))

	mock.ExpectExec("UPDATE payment_sessions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, store.UpdateIf(context.Background(), s, domain.StatusAwaitingCallback), domain.ErrNotFound)
}

func TestSessionStoreCreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSessionStore(db)
	s := sessionFixture(t)

	mock.ExpectExec("INSERT INTO payment_sessions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Create(context.Background(), s), domain.ErrDuplicateSession)
}

func TestSessionStoreSweepOnlySelectsAwaitingStates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSessionStore(db)
	now := time.Now().UTC()

	// Only sessions still waiting on the provider can lapse; a VERIFIED
	// session is never in the candidate set.
	mock.ExpectQuery("UPDATE payment_sessions SET status").
		WithArgs("EXPIRED", now, "INITIATED", "AWAITING_CALLBACK").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	swept, err := store.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, swept)
	assert.NoError(t, mock.ExpectationsWereMet())
}
