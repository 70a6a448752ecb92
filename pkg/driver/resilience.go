package driver

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/graphrank/pkg/types"
)

// RetryConfig bounds retries against the store. All retrieval calls are
// read-only, so retrying is always safe.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is provided.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  time.Second,
	}
}

// BreakerConfig configures the circuit breaker guarding the store.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns the breaker settings used when none are
// provided.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      2,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// Resilient wraps a GraphDriver with bounded backoff retries behind a
// circuit breaker. Context cancellation and deadline errors are never
// retried; they propagate immediately so sibling fan-out branches keep
// their own budgets.
type Resilient struct {
	inner GraphDriver
	cb    *gobreaker.CircuitBreaker
	retry RetryConfig
}

// NewResilient wraps the given driver.
func NewResilient(inner GraphDriver, retry RetryConfig, breaker BreakerConfig) *Resilient {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	st := gobreaker.Settings{
		Name:        "graph-store",
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= breaker.ReadyToTripRatio
		},
	}
	return &Resilient{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(st),
		retry: retry,
	}
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrMissingGroupID)
}

func execute[T any](ctx context.Context, r *Resilient, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	backoff := r.retry.BaseBackoff

	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if r.retry.MaxBackoff > 0 && backoff > r.retry.MaxBackoff {
				backoff = r.retry.MaxBackoff
			}
		}

		result, err := r.cb.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		if err == nil {
			return result.(T), nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return zero, lastErr
}

func (r *Resilient) GetNodesByNameExact(ctx context.Context, name, groupID string, limit int) ([]*types.Node, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.Node, error) {
		return r.inner.GetNodesByNameExact(ctx, name, groupID, limit)
	})
}

func (r *Resilient) GetNodesByAttributeKey(ctx context.Context, key, groupID string, limit int) ([]*types.Node, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.Node, error) {
		return r.inner.GetNodesByAttributeKey(ctx, key, groupID, limit)
	})
}

func (r *Resilient) GetNodesByNameSubstring(ctx context.Context, fragment, groupID string, limit int) ([]*types.Node, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.Node, error) {
		return r.inner.GetNodesByNameSubstring(ctx, fragment, groupID, limit)
	})
}

func (r *Resilient) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.Node, error) {
		return r.inner.SearchNodesFulltext(ctx, query, groupID, limit)
	})
}

func (r *Resilient) SearchNodesByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.Node, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.Node, error) {
		return r.inner.SearchNodesByVector(ctx, vector, groupID, options)
	})
}

func (r *Resilient) GetHighestDegreeNodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.Node, error) {
		return r.inner.GetHighestDegreeNodes(ctx, groupID, limit)
	})
}

func (r *Resilient) GetNeighborsByDegree(ctx context.Context, nodeIDs []string, groupID string, topN int) ([]types.NeighborRecord, error) {
	return execute(ctx, r, func(ctx context.Context) ([]types.NeighborRecord, error) {
		return r.inner.GetNeighborsByDegree(ctx, nodeIDs, groupID, topN)
	})
}

func (r *Resilient) GetSubgraphEdges(ctx context.Context, nodeIDs []string, groupID string, hops int) ([]types.SubgraphEdge, error) {
	return execute(ctx, r, func(ctx context.Context) ([]types.SubgraphEdge, error) {
		return r.inner.GetSubgraphEdges(ctx, nodeIDs, groupID, hops)
	})
}

func (r *Resilient) GetEvidenceForNodes(ctx context.Context, nodeIDs []string, groupID string, limit int) ([]*types.EvidenceItem, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.EvidenceItem, error) {
		return r.inner.GetEvidenceForNodes(ctx, nodeIDs, groupID, limit)
	})
}

func (r *Resilient) SearchEvidenceFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EvidenceItem, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.EvidenceItem, error) {
		return r.inner.SearchEvidenceFulltext(ctx, query, groupID, limit)
	})
}

func (r *Resilient) SearchEvidenceByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.EvidenceItem, error) {
	return execute(ctx, r, func(ctx context.Context) ([]*types.EvidenceItem, error) {
		return r.inner.SearchEvidenceByVector(ctx, vector, groupID, options)
	})
}

func (r *Resilient) GetStats(ctx context.Context, groupID string) (*GraphStats, error) {
	return execute(ctx, r, func(ctx context.Context) (*GraphStats, error) {
		return r.inner.GetStats(ctx, groupID)
	})
}

func (r *Resilient) Provider() GraphProvider {
	return r.inner.Provider()
}

func (r *Resilient) Close(ctx context.Context) error {
	return r.inner.Close(ctx)
}

var _ GraphDriver = (*Resilient)(nil)
