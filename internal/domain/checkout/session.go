package checkout

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("checkout: session not found")
	ErrConflict          = errors.New("checkout: session status changed concurrently")
	ErrDuplicateSession  = errors.New("checkout: session already exists")
	ErrInvalidTransition = errors.New("checkout: invalid session transition")
	ErrInvalidQuantity   = errors.New("checkout: quantity must be greater than zero")
	ErrEmptyCart         = errors.New("checkout: cart must contain at least one item")
)

// Status is the payment session lifecycle state. Transitions are monotonic:
// a session only ever moves forward, and COMMITTED, FAILED and EXPIRED are
// terminal.
type Status string

const (
	StatusInitiated        Status = "INITIATED"
	StatusAwaitingCallback Status = "AWAITING_CALLBACK"
	StatusVerified         Status = "VERIFIED"
	StatusCommitted        Status = "COMMITTED"
	StatusFailed           Status = "FAILED"
	StatusExpired          Status = "EXPIRED"
)

func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusFailed || s == StatusExpired
}

// A VERIFIED session can no longer expire: the provider has confirmed the
// payment, so the only ways out are the commit or an explicit failure.
var transitions = map[Status][]Status{
	StatusInitiated:        {StatusAwaitingCallback, StatusVerified, StatusCommitted, StatusFailed, StatusExpired},
	StatusAwaitingCallback: {StatusVerified, StatusFailed, StatusExpired},
	StatusVerified:         {StatusCommitted, StatusFailed},
}

// CanTransition reports whether from → to is a legal forward move.
// INITIATED → COMMITTED exists only for cash on delivery, where initiation and
// commit happen back to back in the same request.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Failure reasons recorded on a session when it reaches FAILED.
const (
	ReasonPaymentFailed     = "payment_failed"
	ReasonInventoryConflict = "inventory_conflict"
	ReasonAmountMismatch    = "amount_mismatch"
)

// CustomerIdentity is either an authenticated user or a guest e-mail address,
// never both.
type CustomerIdentity struct {
	UserID     string
	GuestEmail string
}

func (c CustomerIdentity) Validate() error {
	if c.UserID == "" && c.GuestEmail == "" {
		return errors.New("checkout: customer identity is required")
	}
	if c.UserID != "" && c.GuestEmail != "" {
		return errors.New("checkout: user id and guest email are mutually exclusive")
	}
	return nil
}

// LineItem is a cart line with the unit price captured server-side at
// initiation. Quantities come from the client; prices never do.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// PaymentSession is the durable record of one in-flight checkout attempt,
// keyed by the order identifier it will become if committed.
type PaymentSession struct {
	OrderID       string
	Method        Method
	Amount        int64 // server-computed total, minor currency units
	Subtotal      int64
	Tax           int64
	Shipping      int64
	Currency      string
	Customer      CustomerIdentity
	Lines         []LineItem
	ProviderTxnID string
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// NewSession builds a session in the given initial status.
func NewSession(orderID string, method Method, customer CustomerIdentity, lines []LineItem, currency string, subtotal, tax, shipping int64, ttl time.Duration) (*PaymentSession, error) {
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	now := time.Now().UTC()
	initial := StatusAwaitingCallback
	if method == MethodCOD {
		initial = StatusInitiated
	}
	return &PaymentSession{
		OrderID:   orderID,
		Method:    method,
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Amount:    subtotal + tax + shipping,
		Currency:  currency,
		Customer:  customer,
		Lines:     append([]LineItem(nil), lines...),
		Status:    initial,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Transition advances the session status, enforcing monotonicity.
func (s *PaymentSession) Transition(to Status) error {
	if !CanTransition(s.Status, to) {
		return ErrInvalidTransition
	}
	s.Status = to
	return nil
}

// Fail moves the session to FAILED and records why.
func (s *PaymentSession) Fail(reason string) error {
	if err := s.Transition(StatusFailed); err != nil {
		return err
	}
	s.FailureReason = reason
	return nil
}

// ExpiredAt reports whether the session TTL has elapsed at the given instant.
func (s *PaymentSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *PaymentSession) Clone() *PaymentSession {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Lines = append([]LineItem(nil), s.Lines...)
	return &clone
}
