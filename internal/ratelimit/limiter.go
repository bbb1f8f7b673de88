// Package ratelimit implements the token-bucket governor that throttles
// every outbound broker API call. Order placement is weighted heavier
// than data reads because the broker prices those calls differently.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// Operation costs in bucket tokens. The limiter itself is cost-agnostic;
// callers pick the class matching the broker call they are about to make.
const (
	CostDataRead = 1
	CostOrder    = 2
)

// Limiter is a token bucket refilled continuously at a fixed rate.
// Refill is computed lazily from elapsed wall-clock time on each
// acquisition; there is no background timer. All state is guarded by a
// single mutex so concurrent debits are linearizable.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	rate       float64 // tokens per second
	lastRefill time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter with the given burst capacity and refill rate in
// tokens per second. The bucket starts full.
func New(capacity int, perSecond float64) *Limiter {
	l := &Limiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     perSecond,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	l.lastRefill = l.now()
	return l
}

// Acquire blocks until cost tokens are available, debits them, and
// returns the wait incurred. It never rejects: trading operations are
// not discardable once a signal has committed to execution. The only
// error paths are context cancellation and a non-positive cost.
func (l *Limiter) Acquire(ctx context.Context, cost int) (time.Duration, error) {
	if cost <= 0 {
		return 0, fmt.Errorf("ratelimit: cost must be positive, got %d", cost)
	}
	if float64(cost) > l.capacity {
		return 0, fmt.Errorf("ratelimit: cost %d exceeds bucket capacity %.0f", cost, l.capacity)
	}

	var waited time.Duration
	for {
		l.mu.Lock()
		l.refill()
		if float64(cost) <= l.tokens {
			l.tokens -= float64(cost)
			l.mu.Unlock()
			return waited, nil
		}
		wait := time.Duration((float64(cost) - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// AcquireTimeout is Acquire with an upper bound on the wait. Exceeding
// the bound returns domain.ErrRateLimitTimeout so the caller can mark
// the specific attempt rejected instead of blocking the batch forever.
func (l *Limiter) AcquireTimeout(ctx context.Context, cost int, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	waited, err := l.Acquire(ctx, cost)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return waited, fmt.Errorf("%w: waited %s of %s budget", domain.ErrRateLimitTimeout, waited, timeout)
	}
	return waited, err
}

// Available returns the current token count after a lazy refill. Only
// used for status reporting; callers must not make decisions on it.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

// refill tops up the bucket from elapsed time. Callers hold l.mu.
func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}
	l.lastRefill = now
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
