package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/minimart/checkout/internal/domain/checkout"
)

// SessionStore keeps payment sessions in memory. UpdateIf implements the
// status compare-and-swap that serializes concurrent transitions per session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.PaymentSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.PaymentSession)}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.PaymentSession) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.OrderID]; exists {
		return domain.ErrDuplicateSession
	}
	s.sessions[session.OrderID] = session.Clone()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, orderID string) (*domain.PaymentSession, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) UpdateIf(ctx context.Context, session *domain.PaymentSession, expected domain.Status) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.OrderID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != expected {
		return domain.ErrConflict
	}
	s.sessions[session.OrderID] = session.Clone()
	return nil
}

func (s *SessionStore) Sweep(ctx context.Context, now time.Time) ([]*domain.PaymentSession, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.PaymentSession
	for _, session := range s.sessions {
		if session.Status.Terminal() || !session.ExpiredAt(now) {
			continue
		}
		if err := session.Transition(domain.StatusExpired); err != nil {
			continue
		}
		expired = append(expired, session.Clone())
	}
	return expired, nil
}
