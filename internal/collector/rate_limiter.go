package collector

import (
	"context"
	"sync"
	"time"
)

// RateLimiter manages GitHub API rate limiting
type RateLimiter interface {
	Wait(ctx context.Context) error
	UpdateLimit(remaining int, resetTime time.Time)
}

// githubRateLimiter paces API calls and blocks until the quota window
// resets once the remaining budget drops to the reserve
type githubRateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
	lastCall  time.Time

	budget   int           // quota assumed available after a window reset
	reserve  int           // calls left unspent before waiting for the reset
	minDelay time.Duration // pacing between consecutive calls
}

// NewRateLimiter creates a limiter tuned for the GitHub API defaults
func NewRateLimiter() RateLimiter {
	return newRateLimiter(5000, 10, 100*time.Millisecond)
}

func newRateLimiter(budget, reserve int, minDelay time.Duration) *githubRateLimiter {
	return &githubRateLimiter{
		remaining: budget,
		resetTime: time.Now().Add(time.Hour),
		budget:    budget,
		reserve:   reserve,
		minDelay:  minDelay,
	}
}

// Wait blocks until the next API call is safe to make
func (r *githubRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	nearQuota := r.remaining <= r.reserve
	untilReset := time.Until(r.resetTime)
	pacing := r.minDelay - time.Since(r.lastCall)
	r.mu.Unlock()

	if nearQuota {
		if untilReset > 0 {
			if err := sleepFor(ctx, untilReset); err != nil {
				return err
			}
		}
		r.mu.Lock()
		r.remaining = r.budget
		r.resetTime = time.Now().Add(time.Hour)
		r.mu.Unlock()
	}

	if pacing > 0 {
		if err := sleepFor(ctx, pacing); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.lastCall = time.Now()
	r.mu.Unlock()
	return nil
}

// UpdateLimit records the quota reported by API response headers
func (r *githubRateLimiter) UpdateLimit(remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.resetTime = resetTime
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
