// Package limiter bounds concurrent external I/O per tenant so one large
// multi-hop query cannot starve concurrent requests from other groups.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// TenantLimiter holds one weighted semaphore per group ID.
type TenantLimiter struct {
	mu      sync.Mutex
	limit   int64
	tenants map[string]*semaphore.Weighted
}

// New creates a limiter allowing at most limit concurrent external calls
// per tenant. A non-positive limit defaults to 8.
func New(limit int) *TenantLimiter {
	if limit <= 0 {
		limit = 8
	}
	return &TenantLimiter{
		limit:   int64(limit),
		tenants: make(map[string]*semaphore.Weighted),
	}
}

func (l *TenantLimiter) tenant(groupID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.tenants[groupID]
	if !ok {
		sem = semaphore.NewWeighted(l.limit)
		l.tenants[groupID] = sem
	}
	return sem
}

// Acquire blocks until the tenant has a free slot or the context ends.
// The returned release function must be called exactly once.
func (l *TenantLimiter) Acquire(ctx context.Context, groupID string) (func(), error) {
	sem := l.tenant(groupID)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// Do runs fn under the tenant's limit.
func (l *TenantLimiter) Do(ctx context.Context, groupID string, fn func(context.Context) error) error {
	release, err := l.Acquire(ctx, groupID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
