package collector

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retries around a single network call. Transient
// failures are retried with exponential backoff; permanent failures
// (wrapped with backoff.Permanent) abort immediately.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
}

// DefaultRetryPolicy returns the policy used for GitHub fetches
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Do runs op under the policy, honoring context cancellation
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
}
