package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunr-dev/scantrader/internal/domain"
)

// fakeClock advances only when sleep is called, so tests never wait on
// real time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func newTestLimiter(capacity int, perSecond float64) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(capacity, perSecond)
	l.now = clock.Now
	l.sleep = clock.Sleep
	l.lastRefill = clock.Now()
	return l, clock
}

func TestAcquireBurstThenWait(t *testing.T) {
	l, _ := newTestLimiter(10, 3)
	ctx := context.Background()

	// Drain the full burst without waiting.
	waited, err := l.Acquire(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), waited)

	// The next single token must wait at least 1/rate seconds.
	waited, err = l.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, waited, time.Second/3)
}

func TestAcquireCostWeighting(t *testing.T) {
	l, _ := newTestLimiter(4, 2)
	ctx := context.Background()

	// Two order-class debits empty a 4-token bucket.
	_, err := l.Acquire(ctx, CostOrder)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, CostOrder)
	require.NoError(t, err)

	// An order now needs a full second of refill at 2 tokens/s.
	waited, err := l.Acquire(ctx, CostOrder)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, waited, time.Second)
}

func TestAcquireInvalidCost(t *testing.T) {
	l, _ := newTestLimiter(5, 1)

	_, err := l.Acquire(context.Background(), 0)
	assert.Error(t, err)

	_, err = l.Acquire(context.Background(), 6)
	assert.Error(t, err)
}

func TestAcquireTimeout(t *testing.T) {
	l := New(1, 1)
	_, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)

	// Bucket is empty and refills at 1/s; a 10ms budget cannot cover it.
	_, err = l.AcquireTimeout(context.Background(), 1, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimitTimeout))
}

func TestAcquireContextCancelled(t *testing.T) {
	l := New(1, 0.5)
	_, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentDebitsNeverExceedCapacity(t *testing.T) {
	const capacity = 20
	l, clock := newTestLimiter(capacity, 5)
	start := clock.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	debited := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := l.Acquire(context.Background(), CostDataRead)
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				mu.Lock()
				debited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Cumulative debits must be covered by the initial burst plus the
	// tokens refilled over simulated elapsed time.
	elapsed := clock.Now().Sub(start).Seconds()
	budget := float64(capacity) + elapsed*5
	assert.LessOrEqual(t, float64(debited), budget+1e-6)
	assert.Equal(t, 40, debited)
	assert.GreaterOrEqual(t, l.Available(), 0.0)
}
