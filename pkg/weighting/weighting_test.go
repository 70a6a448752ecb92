package weighting

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrank/pkg/cache"
	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/types"
)

// degreeStore serves only the high-degree fallback; everything else is
// unused by the weighter.
type degreeStore struct {
	nodes []*types.Node
	calls int
}

func (d *degreeStore) GetHighestDegreeNodes(_ context.Context, groupID string, limit int) ([]*types.Node, error) {
	d.calls++
	var out []*types.Node
	for _, n := range d.nodes {
		if n.GroupID == groupID {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *degreeStore) GetNodesByNameExact(context.Context, string, string, int) ([]*types.Node, error) {
	panic("not used")
}
func (d *degreeStore) GetNodesByAttributeKey(context.Context, string, string, int) ([]*types.Node, error) {
	panic("not used")
}
func (d *degreeStore) GetNodesByNameSubstring(context.Context, string, string, int) ([]*types.Node, error) {
	panic("not used")
}
func (d *degreeStore) SearchNodesFulltext(context.Context, string, string, int) ([]*types.Node, error) {
	panic("not used")
}
func (d *degreeStore) SearchNodesByVector(context.Context, []float32, string, *driver.VectorSearchOptions) ([]*types.Node, error) {
	panic("not used")
}

func newTestWeighter(store driver.NodeLookup) *Weighter {
	return New(store, nil, DefaultConfig(), slog.New(slog.DiscardHandler))
}

func vectorSum(v types.PersonalizationVector) float64 {
	var sum float64
	for _, w := range v {
		sum += w
	}
	return sum
}

func TestWeightSumsToOne(t *testing.T) {
	w := newTestWeighter(&degreeStore{})

	seeds := []types.ResolvedSeed{
		{NodeID: "e1", Tier: types.TierEntity, Score: 1.0},
		{NodeID: "e2", Tier: types.TierEntity, Score: 0.5},
		{NodeID: "s1", Tier: types.TierStructural, Score: 0.9},
		{NodeID: "t1", Tier: types.TierThematic, Score: 0.75},
	}

	for _, profile := range []Profile{ProfileFactLookup, ProfileThematicSurvey, ProfileMultiHop} {
		vector, err := w.Weight(context.Background(), seeds, profile, "tenant-a")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, vectorSum(vector), 1e-9, "profile %s", profile)
	}
}

func TestWeightWithinTierProportionalToScore(t *testing.T) {
	w := newTestWeighter(&degreeStore{})

	vector, err := w.Weight(context.Background(), []types.ResolvedSeed{
		{NodeID: "e1", Tier: types.TierEntity, Score: 1.0},
		{NodeID: "e2", Tier: types.TierEntity, Score: 0.5},
	}, ProfileFactLookup, "tenant-a")
	require.NoError(t, err)

	// Only one tier present, so it takes the full unit mass.
	assert.InDelta(t, 2.0/3.0, vector["e1"], 1e-9)
	assert.InDelta(t, 1.0/3.0, vector["e2"], 1e-9)
}

func TestWeightRedistributesEmptyTiers(t *testing.T) {
	w := newTestWeighter(&degreeStore{})

	// Entity and thematic present; the structural mass is shared between
	// them proportionally.
	vector, err := w.Weight(context.Background(), []types.ResolvedSeed{
		{NodeID: "e1", Tier: types.TierEntity, Score: 1.0},
		{NodeID: "t1", Tier: types.TierThematic, Score: 1.0},
	}, ProfileFactLookup, "tenant-a")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, vectorSum(vector), 1e-9)
	// fact_lookup weights entity 0.60, thematic 0.10; renormalized over
	// the present mass 0.70.
	assert.InDelta(t, 0.60/0.70, vector["e1"], 1e-9)
	assert.InDelta(t, 0.10/0.70, vector["t1"], 1e-9)
}

func TestWeightProfilesShiftTierEmphasis(t *testing.T) {
	w := newTestWeighter(&degreeStore{})
	seeds := []types.ResolvedSeed{
		{NodeID: "e1", Tier: types.TierEntity, Score: 1.0},
		{NodeID: "t1", Tier: types.TierThematic, Score: 1.0},
	}

	fact, err := w.Weight(context.Background(), seeds, ProfileFactLookup, "tenant-a")
	require.NoError(t, err)
	thematic, err := w.Weight(context.Background(), seeds, ProfileThematicSurvey, "tenant-a")
	require.NoError(t, err)

	assert.Greater(t, fact["e1"], fact["t1"])
	assert.Greater(t, thematic["t1"], thematic["e1"])
}

func TestWeightHighDegreeFallback(t *testing.T) {
	store := &degreeStore{nodes: []*types.Node{
		{Uuid: "hub1", GroupID: "tenant-a", Degree: 40},
		{Uuid: "hub2", GroupID: "tenant-a", Degree: 25},
	}}
	w := newTestWeighter(store)

	vector, err := w.Weight(context.Background(), nil, ProfileMultiHop, "tenant-a")
	require.NoError(t, err)
	require.Len(t, vector, 2)
	assert.InDelta(t, 0.5, vector["hub1"], 1e-9)
	assert.InDelta(t, 0.5, vector["hub2"], 1e-9)
}

func TestWeightFallbackUsesCache(t *testing.T) {
	store := &degreeStore{nodes: []*types.Node{
		{Uuid: "hub1", GroupID: "tenant-a", Degree: 40},
	}}
	c, err := cache.Open("", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	w := New(store, c, DefaultConfig(), slog.New(slog.DiscardHandler))

	_, err = w.Weight(context.Background(), nil, ProfileMultiHop, "tenant-a")
	require.NoError(t, err)
	_, err = w.Weight(context.Background(), nil, ProfileMultiHop, "tenant-a")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
}

func TestWeightRequiresGroupID(t *testing.T) {
	w := newTestWeighter(&degreeStore{})

	_, err := w.Weight(context.Background(), nil, ProfileMultiHop, "")
	assert.ErrorIs(t, err, driver.ErrMissingGroupID)
}

func TestProfileDamping(t *testing.T) {
	assert.Equal(t, 0.70, ProfileFactLookup.Damping())
	assert.Equal(t, 0.90, ProfileThematicSurvey.Damping())
	assert.Equal(t, 0.85, ProfileMultiHop.Damping())
	assert.Equal(t, 0.85, ProfileAuto.Damping())
}

func TestInferProfile(t *testing.T) {
	assert.Equal(t, ProfileMultiHop, InferProfile("anything", []string{"sub"}))
	assert.Equal(t, ProfileThematicSurvey, InferProfile("Give me an overview of supplier risk", nil))
	assert.Equal(t, ProfileFactLookup, InferProfile("What is the total of Invoice #100?", nil))
}
