package checkout

import (
	"context"
	"time"
)

// SessionStore persists payment sessions. Redirect-based methods resume in a
// different request, possibly on a different process instance, so sessions are
// never in-process state.
//
// UpdateIf is the per-session serialization point: it writes the session only
// when the stored status still equals expected, returning ErrConflict
// otherwise. Two concurrent verifies for the same session therefore cannot
// both advance it.
type SessionStore interface {
	Create(ctx context.Context, s *PaymentSession) error
	Get(ctx context.Context, orderID string) (*PaymentSession, error)
	UpdateIf(ctx context.Context, s *PaymentSession, expected Status) error

	// Sweep marks every non-terminal session whose TTL elapsed before now as
	// EXPIRED and returns the sessions it expired.
	Sweep(ctx context.Context, now time.Time) ([]*PaymentSession, error)
}
