package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/minimart/checkout/internal/domain/checkout"
)

// SessionStore persists payment sessions in Postgres. The status column is
// advanced with a conditional UPDATE, which gives UpdateIf its row-level
// compare-and-swap semantics across processes.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.PaymentSession) error {
	lines, err := json.Marshal(session.Lines)
	if err != nil {
		return fmt.Errorf("encode session lines: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_sessions (order_id, method, amount, subtotal, tax, shipping, currency, user_id, guest_email, lines, provider_txn_id, status, failure_reason, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (order_id) DO NOTHING`,
		session.OrderID, string(session.Method), session.Amount, session.Subtotal, session.Tax, session.Shipping,
		session.Currency, session.Customer.UserID, session.Customer.GuestEmail, lines,
		session.ProviderTxnID, string(session.Status), session.FailureReason, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrDuplicateSession
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, orderID string) (*domain.PaymentSession, error) {
	var (
		session        domain.PaymentSession
		method, status string
		lines          []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT order_id, method, amount, subtotal, tax, shipping, currency, user_id, guest_email, lines, provider_txn_id, status, failure_reason, created_at, expires_at
		 FROM payment_sessions WHERE order_id = $1`, orderID,
	).Scan(
		&session.OrderID, &method, &session.Amount, &session.Subtotal, &session.Tax, &session.Shipping,
		&session.Currency, &session.Customer.UserID, &session.Customer.GuestEmail, &lines,
		&session.ProviderTxnID, &status, &session.FailureReason, &session.CreatedAt, &session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if err := json.Unmarshal(lines, &session.Lines); err != nil {
		return nil, fmt.Errorf("decode session lines: %w", err)
	}
	session.Method = domain.Method(method)
	session.Status = domain.Status(status)
	return &session, nil
}

func (s *SessionStore) UpdateIf(ctx context.Context, session *domain.PaymentSession, expected domain.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_sessions SET status = $1, provider_txn_id = $2, failure_reason = $3 WHERE order_id = $4 AND status = $5`,
		string(session.Status), session.ProviderTxnID, session.FailureReason, session.OrderID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session result: %w", err)
	}
	if n == 0 {
		// Distinguish a missing row from a lost CAS.
		var exists bool
		if qerr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM payment_sessions WHERE order_id = $1)`, session.OrderID,
		).Scan(&exists); qerr == nil && !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *SessionStore) Sweep(ctx context.Context, now time.Time) ([]*domain.PaymentSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE payment_sessions SET status = $1
		 WHERE expires_at < $2 AND status IN ($3, $4)
		 RETURNING order_id`,
		string(domain.StatusExpired), now,
		string(domain.StatusInitiated), string(domain.StatusAwaitingCallback),
	)
	if err != nil {
		return nil, fmt.Errorf("sweep sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan swept session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swept sessions: %w", err)
	}

	swept := make([]*domain.PaymentSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		swept = append(swept, session)
	}
	return swept, nil
}
