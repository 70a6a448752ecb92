package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrank/pkg/types"
)

func items(ids ...string) []*types.EvidenceItem {
	out := make([]*types.EvidenceItem, len(ids))
	for i, id := range ids {
		out[i] = &types.EvidenceItem{ID: id, TextRef: "text-" + id}
	}
	return out
}

func TestRRFExactScores(t *testing.T) {
	f := New(DefaultConfig())

	fused, err := f.Fuse([][]*types.EvidenceItem{
		items("e1", "e2", "e3"),
		items("e3", "e1", "e4"),
	})
	require.NoError(t, err)
	require.Len(t, fused, 4)

	scores := make(map[string]float64)
	order := make([]string, 0, len(fused))
	for _, item := range fused {
		scores[item.ID] = item.Score
		order = append(order, item.ID)
	}

	// Zero-based ranks: a source's top item contributes exactly 1/k.
	assert.InDelta(t, 1.0/60+1.0/61, scores["e1"], 1e-12)
	assert.InDelta(t, 1.0/62+1.0/60, scores["e3"], 1e-12)
	assert.InDelta(t, 1.0/61, scores["e2"], 1e-12)
	assert.InDelta(t, 1.0/62, scores["e4"], 1e-12)

	// e1 and e3 each lead one source; e1's second placement (rank 1) beats
	// e3's (rank 2), so e1 comes out ahead.
	assert.Equal(t, []string{"e1", "e3", "e2", "e4"}, order)
}

func TestRRFSymmetricRanksTieBreakByID(t *testing.T) {
	f := New(DefaultConfig())

	// Mirrored ranks give both items the identical score 1/60 + 1/61; the
	// id-ascending tiebreak keeps the output deterministic.
	fused, err := f.Fuse([][]*types.EvidenceItem{
		items("b", "a"),
		items("a", "b"),
	})
	require.NoError(t, err)
	require.Len(t, fused, 2)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, "b", fused[1].ID)
}

func TestRRFMultiSourcePresenceWins(t *testing.T) {
	f := New(DefaultConfig())

	// "both" sits at rank 2 in each source; "single" at rank 2 in one.
	fused, err := f.Fuse([][]*types.EvidenceItem{
		items("a", "both"),
		items("b", "both"),
		items("c", "single"),
	})
	require.NoError(t, err)

	scores := make(map[string]float64)
	for _, item := range fused {
		scores[item.ID] = item.Score
	}
	assert.Greater(t, scores["both"], scores["single"])
}

func TestRRFDeduplicatesByID(t *testing.T) {
	f := New(DefaultConfig())

	fused, err := f.Fuse([][]*types.EvidenceItem{
		items("e1"),
		items("e1"),
		items("e1"),
	})
	require.NoError(t, err)
	require.Len(t, fused, 1)
	assert.InDelta(t, 3.0/60, fused[0].Score, 1e-12)
}

func TestRRFDoesNotMutateSources(t *testing.T) {
	f := New(DefaultConfig())

	source := []*types.EvidenceItem{{ID: "e1", Score: 0.93}}
	_, err := f.Fuse([][]*types.EvidenceItem{source})
	require.NoError(t, err)
	assert.Equal(t, 0.93, source[0].Score)
}

func TestWeightedSum(t *testing.T) {
	f := New(Config{Method: MethodWeightedSum, K: 60, Weights: []float64{2.0, 1.0}})

	graph := []*types.EvidenceItem{
		{ID: "e1", Score: 1.0},
		{ID: "e2", Score: 0.5},
		{ID: "e3", Score: 0.0},
	}
	vector := []*types.EvidenceItem{
		{ID: "e2", Score: 0.9},
		{ID: "e3", Score: 0.1},
	}

	fused, err := f.Fuse([][]*types.EvidenceItem{graph, vector})
	require.NoError(t, err)

	scores := make(map[string]float64)
	for _, item := range fused {
		scores[item.ID] = item.Score
	}
	// graph normalizes to e1=1.0 e2=0.5 e3=0.0; vector to e2=1.0 e3=0.0.
	assert.InDelta(t, 2.0, scores["e1"], 1e-12)
	assert.InDelta(t, 2.0*0.5+1.0, scores["e2"], 1e-12)
	assert.InDelta(t, 0.0, scores["e3"], 1e-12)
}

func TestWeightedSumConstantSource(t *testing.T) {
	f := New(Config{Method: MethodWeightedSum})

	fused, err := f.Fuse([][]*types.EvidenceItem{{
		{ID: "e1", Score: 0.4},
		{ID: "e2", Score: 0.4},
	}})
	require.NoError(t, err)
	require.Len(t, fused, 2)
	assert.Equal(t, 1.0, fused[0].Score)
	assert.Equal(t, 1.0, fused[1].Score)
}

func TestFuseEmptySources(t *testing.T) {
	f := New(DefaultConfig())

	fused, err := f.Fuse([][]*types.EvidenceItem{nil, {}, nil})
	require.NoError(t, err)
	assert.Empty(t, fused)
}

func TestFuseUnknownMethod(t *testing.T) {
	f := New(Config{Method: "borda", K: 60})

	_, err := f.Fuse(nil)
	assert.Error(t, err)
}
