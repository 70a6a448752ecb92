package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrencyPerTenant(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	var current, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(ctx, "tenant-a", func(context.Context) error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(2))
}

func TestLimiterTenantsAreIndependent(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "tenant-a")
	require.NoError(t, err)
	defer releaseA()

	// Tenant B still has its own budget.
	ctxB, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(ctxB, "tenant-b")
	require.NoError(t, err)
	releaseB()
}

func TestLimiterRespectsContext(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "tenant-a")
	require.NoError(t, err)
	defer release()

	blocked, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(blocked, "tenant-a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
