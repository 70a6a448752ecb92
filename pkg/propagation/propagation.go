// Package propagation spreads relevance from a personalization vector
// across graph edges. Two interchangeable variants are provided: a
// bounded-hop expansion for narrow lookups where the answer sits near the
// seeds, and an iterative power propagation for broad queries where
// relevance has to travel. Both are deterministic for identical inputs
// against an unchanged graph and bounded in running time by the hop or
// iteration cap.
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/types"
)

// Variant names a propagation algorithm.
type Variant string

const (
	// VariantBoundedHop expands breadth-first to a fixed hop limit with a
	// per-node fan-out cut.
	VariantBoundedHop Variant = "bounded_hop"
	// VariantPowerIteration runs personalized power iteration over the
	// seeds' reachable subgraph.
	VariantPowerIteration Variant = "power_iteration"
)

// Config holds the propagator's tunables. Damping is set per request from
// the tier profile; the rest are deployment-level.
type Config struct {
	Variant Variant
	// Damping is the probability of continuing to a neighbor rather than
	// restarting at a seed. Must be in (0, 1).
	Damping float64
	// MaxHops bounds the bounded-hop expansion depth.
	MaxHops int
	// NeighborTopN keeps only the N highest-degree neighbors per node at
	// each hop, bounding fan-out.
	NeighborTopN int
	// MaxIterations bounds power iteration.
	MaxIterations int
	// Epsilon stops power iteration early when no rank moved more than it.
	Epsilon float64
	// TopK caps the returned ranking.
	TopK int
}

// DefaultConfig returns the propagation defaults.
func DefaultConfig() Config {
	return Config{
		Variant:       VariantBoundedHop,
		Damping:       0.85,
		MaxHops:       2,
		NeighborTopN:  10,
		MaxIterations: 20,
		Epsilon:       1e-6,
		TopK:          50,
	}
}

// Propagator ranks graph nodes by propagated relevance.
type Propagator struct {
	store  driver.GraphTraversal
	config Config
	logger *slog.Logger
}

// New creates a propagator.
func New(store driver.GraphTraversal, config Config, logger *slog.Logger) *Propagator {
	if config.MaxHops <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{store: store, config: config, logger: logger}
}

// Propagate runs the configured variant over the personalization vector
// and returns the ranking, sorted by score descending with node id as the
// tiebreak, capped at TopK. An empty vector yields an empty ranking.
func (p *Propagator) Propagate(ctx context.Context, vector types.PersonalizationVector, damping float64, groupID string) ([]types.ScoredNode, error) {
	if groupID == "" {
		return nil, driver.ErrMissingGroupID
	}
	if len(vector) == 0 {
		return []types.ScoredNode{}, nil
	}
	if damping <= 0 || damping >= 1 {
		damping = p.config.Damping
	}

	var (
		scores map[string]float64
		err    error
	)
	switch p.config.Variant {
	case VariantPowerIteration:
		scores, err = p.powerIteration(ctx, vector, damping, groupID)
	case VariantBoundedHop:
		scores, err = p.boundedHop(ctx, vector, damping, groupID)
	default:
		return nil, fmt.Errorf("unknown propagation variant %q", p.config.Variant)
	}
	if err != nil {
		return nil, err
	}

	return p.rank(scores), nil
}

// rank orders the score map deterministically and applies the TopK cap.
func (p *Propagator) rank(scores map[string]float64) []types.ScoredNode {
	ranked := make([]types.ScoredNode, 0, len(scores))
	for node, score := range scores {
		ranked = append(ranked, types.ScoredNode{NodeID: node, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].NodeID < ranked[j].NodeID
	})
	if p.config.TopK > 0 && len(ranked) > p.config.TopK {
		ranked = ranked[:p.config.TopK]
	}
	return ranked
}

// seedIDs returns the vector's node ids in deterministic order.
func seedIDs(vector types.PersonalizationVector) []string {
	ids := make([]string, 0, len(vector))
	for id := range vector {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
