package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 10, Burst: 5})

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed, "burst should cap immediate allowances")
}

func TestLimiter_Refill(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 100, Burst: 2})

	for lim.Allow() {
	}
	time.Sleep(50 * time.Millisecond)

	assert.True(t, lim.Allow(), "expected token to be available after refill period")
}

func TestLimiter_Cooldown(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1000, Burst: 1, Cooldown: 200 * time.Millisecond})

	require.True(t, lim.Allow())
	require.False(t, lim.Allow(), "bucket drained")

	// the bucket refills in ~1ms but the cooldown keeps the key blocked
	time.Sleep(20 * time.Millisecond)
	assert.False(t, lim.Allow())
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	lim := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, lim.Allow())
	}
}

func TestLimiter_Wait_Success(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 100, Burst: 1})
	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, lim.Wait(ctx))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestLimiter_Wait_ContextCanceled(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1, Burst: 1})
	lim.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, lim.Wait(ctx))
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1000, Burst: 100})

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Allow() {
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, total)
	assert.LessOrEqual(t, total, 100)
}

func TestManager_GetLimiter(t *testing.T) {
	mgr := NewManager(Config{RequestsPerSecond: 10, Burst: 5})

	l1 := mgr.GetLimiter("client-a")
	l2 := mgr.GetLimiter("client-a")
	l3 := mgr.GetLimiter("client-b")

	assert.Same(t, l1, l2, "same key should return the same limiter instance")
	assert.NotSame(t, l1, l3, "different keys should return different limiter instances")
}

func TestManager_ConcurrentGetLimiter(t *testing.T) {
	mgr := NewManager(Config{RequestsPerSecond: 10, Burst: 5})

	var wg sync.WaitGroup
	limiters := make([]*Limiter, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			limiters[idx] = mgr.GetLimiter("shared-key")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 20; i++ {
		assert.Same(t, limiters[0], limiters[i])
	}
}

func TestManager_Wait(t *testing.T) {
	mgr := NewManager(Config{RequestsPerSecond: 100, Burst: 5})
	require.NoError(t, mgr.Wait(context.Background(), "client-x"))
}
