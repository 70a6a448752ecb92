package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrank/pkg/types"
)

// flakyDriver fails a configurable number of times before succeeding.
type flakyDriver struct {
	failures int
	calls    int
	err      error
}

func (f *flakyDriver) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return f.err
		}
		return errors.New("store unavailable")
	}
	return nil
}

func (f *flakyDriver) GetNodesByNameExact(ctx context.Context, name, groupID string, limit int) ([]*types.Node, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []*types.Node{{Uuid: "n1", GroupID: groupID, Name: name}}, nil
}

func (f *flakyDriver) GetNodesByAttributeKey(ctx context.Context, key, groupID string, limit int) ([]*types.Node, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) GetNodesByNameSubstring(ctx context.Context, fragment, groupID string, limit int) ([]*types.Node, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) SearchNodesByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.Node, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) GetHighestDegreeNodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) GetNeighborsByDegree(ctx context.Context, nodeIDs []string, groupID string, topN int) ([]types.NeighborRecord, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) GetSubgraphEdges(ctx context.Context, nodeIDs []string, groupID string, hops int) ([]types.SubgraphEdge, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) GetEvidenceForNodes(ctx context.Context, nodeIDs []string, groupID string, limit int) ([]*types.EvidenceItem, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) SearchEvidenceFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EvidenceItem, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) SearchEvidenceByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.EvidenceItem, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) GetStats(ctx context.Context, groupID string) (*GraphStats, error) {
	return nil, f.attempt()
}

func (f *flakyDriver) Provider() GraphProvider { return GraphProviderNeo4j }

func (f *flakyDriver) Close(ctx context.Context) error { return nil }

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestResilientRetriesTransientFailures(t *testing.T) {
	inner := &flakyDriver{failures: 2}
	r := NewResilient(inner, fastRetry(), DefaultBreakerConfig())

	nodes, err := r.GetNodesByNameExact(context.Background(), "Acme Corp", "tenant-a", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientGivesUpAfterBudget(t *testing.T) {
	inner := &flakyDriver{failures: 10}
	r := NewResilient(inner, fastRetry(), DefaultBreakerConfig())

	_, err := r.GetNodesByNameExact(context.Background(), "Acme Corp", "tenant-a", 5)
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientDoesNotRetryCancellation(t *testing.T) {
	inner := &flakyDriver{failures: 10, err: context.Canceled}
	r := NewResilient(inner, fastRetry(), DefaultBreakerConfig())

	_, err := r.GetNodesByNameExact(context.Background(), "Acme Corp", "tenant-a", 5)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls, "cancellation must not be retried")
}

func TestResilientDoesNotRetryMissingGroupID(t *testing.T) {
	inner := &flakyDriver{failures: 10, err: ErrMissingGroupID}
	r := NewResilient(inner, fastRetry(), DefaultBreakerConfig())

	_, err := r.GetNodesByNameExact(context.Background(), "Acme Corp", "", 5)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestVectorSearchOptionsEffectiveLimit(t *testing.T) {
	opts := &VectorSearchOptions{Limit: 10, Oversample: 3}
	assert.Equal(t, 30, opts.EffectiveLimit())

	opts = &VectorSearchOptions{Limit: 10}
	assert.Equal(t, 10, opts.EffectiveLimit())
}
