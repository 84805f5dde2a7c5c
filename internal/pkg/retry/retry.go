// Package retry wraps the backoff policy applied to payment provider calls:
// exponential, starting at one second, doubling up to a sixteen second cap,
// with a caller-supplied attempt limit. Validation and signature failures must
// be marked Permanent so they are surfaced immediately instead of retried.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls the backoff schedule. The zero value is not usable; start
// from Default.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// Default mirrors the gateway retry contract.
var Default = Policy{
	InitialInterval: 1 * time.Second,
	MaxInterval:     16 * time.Second,
	Multiplier:      2,
}

// Do runs op under the policy until it succeeds, returns a permanent error,
// the attempt budget is spent, or ctx is done. maxAttempts counts the first
// call, so maxAttempts == 1 means no retry.
func (p Policy) Do(ctx context.Context, maxAttempts uint, op func() error) error {
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(maxAttempts-1))
	b = backoff.WithContext(b, ctx)
	return backoff.Retry(op, b)
}

// Do applies the default policy.
func Do(ctx context.Context, maxAttempts uint, op func() error) error {
	return Default.Do(ctx, maxAttempts, op)
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
