package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/minimart/checkout/internal/domain/checkout"
)

const (
	sessionKeyPrefix = "checkout:session:"
	expiryIndexKey   = "checkout:sessions:expiry"

	// Sessions live past their own TTL so expiry and late provider callbacks
	// resolve against a readable EXPIRED record instead of a missing key.
	retention = 24 * time.Hour
)

// sessionCASScript swaps the stored session only while its status field still
// matches the expected value. Keeping status in its own hash field lets the
// compare run inside Redis without decoding the JSON payload.
// KEYS[1] = session hash key
// ARGV[1] = expected status
// ARGV[2] = new status
// ARGV[3] = new JSON payload
var sessionCASScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "status")
if current == false then
    return -1
end
if current ~= ARGV[1] then
    return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[2], "data", ARGV[3])
return 1
`)

// SessionStore keeps payment sessions in Redis. Each session is a hash with a
// JSON payload plus a standalone status field for the CAS script, and an
// expiry sorted set indexes sessions by deadline for the sweeper.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(orderID string) string {
	return sessionKeyPrefix + orderID
}

func (s *SessionStore) Create(ctx context.Context, session *domain.PaymentSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	key := sessionKey(session.OrderID)

	ok, err := s.client.HSetNX(ctx, key, "status", string(session.Status)).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateSession
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "data", payload)
	pipe.Expire(ctx, key, time.Until(session.ExpiresAt)+retention)
	pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
		Score:  float64(session.ExpiresAt.Unix()),
		Member: session.OrderID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, orderID string) (*domain.PaymentSession, error) {
	payload, err := s.client.HGet(ctx, sessionKey(orderID), "data").Result()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	var session domain.PaymentSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) UpdateIf(ctx context.Context, session *domain.PaymentSession, expected domain.Status) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	res, err := sessionCASScript.Run(ctx, s.client,
		[]string{sessionKey(session.OrderID)},
		string(expected), string(session.Status), payload,
	).Int()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrNotFound
	case 0:
		return domain.ErrConflict
	}
	if session.Status.Terminal() {
		if err := s.client.ZRem(ctx, expiryIndexKey, session.OrderID).Err(); err != nil {
			return fmt.Errorf("drop expiry index entry: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) Sweep(ctx context.Context, now time.Time) ([]*domain.PaymentSession, error) {
	due, err := s.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan due sessions: %w", err)
	}

	var swept []*domain.PaymentSession
	for _, orderID := range due {
		session, err := s.Get(ctx, orderID)
		if err != nil {
			// The key already fell out of retention; drop the index entry.
			s.client.ZRem(ctx, expiryIndexKey, orderID)
			continue
		}
		if session.Status.Terminal() {
			s.client.ZRem(ctx, expiryIndexKey, orderID)
			continue
		}
		from := session.Status
		if err := session.Transition(domain.StatusExpired); err != nil {
			continue
		}
		if err := s.UpdateIf(ctx, session, from); err != nil {
			// Lost the race to a concurrent verify or commit; leave it be.
			continue
		}
		s.client.ZRem(ctx, expiryIndexKey, orderID)
		swept = append(swept, session)
	}
	return swept, nil
}
