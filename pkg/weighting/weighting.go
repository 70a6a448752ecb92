// Package weighting turns resolved seeds into the personalization vector
// that drives graph propagation. Seeds are bucketed by tier, each non-empty
// tier is normalized to sum to 1.0, and tiers are combined by a selectable
// weight profile. When nothing resolved at all, a small set of the group's
// highest-degree nodes is used instead so propagation never starts empty.
package weighting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundprediction/graphrank/pkg/cache"
	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/types"
)

// Profile selects how the three seed tiers are weighted against each other.
type Profile string

const (
	// ProfileFactLookup favors entity-name seeds; the answer is expected
	// near the seeds themselves.
	ProfileFactLookup Profile = "fact_lookup"
	// ProfileThematicSurvey favors thematic seeds and broad propagation.
	ProfileThematicSurvey Profile = "thematic_survey"
	// ProfileMultiHop balances all three tiers.
	ProfileMultiHop Profile = "multi_hop"
	// ProfileAuto defers to InferProfile at request time.
	ProfileAuto Profile = "auto"
)

// tierWeights returns the profile's relative weight per tier. Weights of
// empty tiers are redistributed proportionally across the non-empty ones.
func (p Profile) tierWeights() map[types.SeedTier]float64 {
	switch p {
	case ProfileFactLookup:
		return map[types.SeedTier]float64{
			types.TierEntity:     0.60,
			types.TierStructural: 0.30,
			types.TierThematic:   0.10,
		}
	case ProfileThematicSurvey:
		return map[types.SeedTier]float64{
			types.TierEntity:     0.20,
			types.TierStructural: 0.20,
			types.TierThematic:   0.60,
		}
	default:
		return map[types.SeedTier]float64{
			types.TierEntity:     1.0 / 3.0,
			types.TierStructural: 1.0 / 3.0,
			types.TierThematic:   1.0 / 3.0,
		}
	}
}

// Damping returns the propagation damping factor the profile calls for.
// Narrow lookups keep relevance near the seeds; thematic surveys let it
// travel further.
func (p Profile) Damping() float64 {
	switch p {
	case ProfileFactLookup:
		return 0.70
	case ProfileThematicSurvey:
		return 0.90
	default:
		return 0.85
	}
}

// InferProfile picks a profile from the shape of the request when the
// caller asked for ProfileAuto. Sub-questions mean multi-hop; survey-style
// phrasing means thematic; everything else is a fact lookup.
func InferProfile(query string, subQuestions []string) Profile {
	if len(subQuestions) > 0 {
		return ProfileMultiHop
	}
	lower := strings.ToLower(query)
	for _, marker := range []string{"overview", "summar", "themes", "trends", "landscape", "compare", "across"} {
		if strings.Contains(lower, marker) {
			return ProfileThematicSurvey
		}
	}
	return ProfileFactLookup
}

// Config holds the weighter's tunables.
type Config struct {
	// FallbackCount is how many highest-degree nodes seed the empty-tier
	// fallback vector.
	FallbackCount int
	// FallbackCacheKey names the cached high-degree node set per group.
	FallbackCacheKey string
}

// DefaultConfig returns the weighter defaults.
func DefaultConfig() Config {
	return Config{
		FallbackCount:    5,
		FallbackCacheKey: "high-degree-nodes",
	}
}

// Weighter builds personalization vectors from resolved seeds.
type Weighter struct {
	store  driver.NodeLookup
	cache  *cache.TenantCache
	config Config
	logger *slog.Logger
}

// New creates a weighter. The cache may be nil; the high-degree fallback
// then always queries the store.
func New(store driver.NodeLookup, tenantCache *cache.TenantCache, config Config, logger *slog.Logger) *Weighter {
	if config.FallbackCount <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Weighter{store: store, cache: tenantCache, config: config, logger: logger}
}

// Weight combines the resolved seeds into a personalization vector whose
// weights sum to 1.0. With no seeds at all it falls back to the group's
// highest-degree nodes, weighted uniformly.
func (w *Weighter) Weight(ctx context.Context, resolved []types.ResolvedSeed, profile Profile, groupID string) (types.PersonalizationVector, error) {
	if groupID == "" {
		return nil, driver.ErrMissingGroupID
	}
	if len(resolved) == 0 {
		return w.fallbackVector(ctx, groupID)
	}

	byTier := make(map[types.SeedTier][]types.ResolvedSeed)
	for _, seed := range resolved {
		byTier[seed.Tier] = append(byTier[seed.Tier], seed)
	}

	// Redistribute the profile's weight mass over the tiers that actually
	// have seeds, so the final vector still sums to 1.0.
	profileWeights := profile.tierWeights()
	var presentMass float64
	for tier := range byTier {
		presentMass += profileWeights[tier]
	}
	if presentMass == 0 {
		return w.fallbackVector(ctx, groupID)
	}

	vector := make(types.PersonalizationVector, len(resolved))
	for tier, seeds := range byTier {
		tierWeight := profileWeights[tier] / presentMass
		for node, weight := range normalizeTier(seeds) {
			vector[node] += tierWeight * weight
		}
	}
	return vector, nil
}

// normalizeTier distributes a tier's unit mass across its seeds in
// proportion to match score. Zero-score tiers fall back to uniform.
func normalizeTier(seeds []types.ResolvedSeed) types.PersonalizationVector {
	weights := make(types.PersonalizationVector, len(seeds))
	var total float64
	for _, seed := range seeds {
		weights[seed.NodeID] += seed.Score
		total += seed.Score
	}
	if total == 0 {
		uniform := 1.0 / float64(len(weights))
		for node := range weights {
			weights[node] = uniform
		}
		return weights
	}
	for node := range weights {
		weights[node] /= total
	}
	return weights
}

// fallbackVector weights the group's most connected nodes uniformly. The
// node set is cached per group so repeated empty resolutions stay cheap.
func (w *Weighter) fallbackVector(ctx context.Context, groupID string) (types.PersonalizationVector, error) {
	nodes, err := w.fallbackNodes(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("high-degree fallback failed: %w", err)
	}
	if len(nodes) == 0 {
		return types.PersonalizationVector{}, nil
	}

	w.logger.Info("no seeds resolved, using high-degree fallback",
		"group_id", groupID,
		"fallback_nodes", len(nodes))

	vector := make(types.PersonalizationVector, len(nodes))
	uniform := 1.0 / float64(len(nodes))
	for _, node := range nodes {
		vector[node.Uuid] = uniform
	}
	return vector, nil
}

func (w *Weighter) fallbackNodes(ctx context.Context, groupID string) ([]*types.Node, error) {
	if w.cache != nil {
		nodes, err := w.cache.GetNodes(groupID, w.config.FallbackCacheKey)
		if err == nil {
			return nodes, nil
		}
	}

	nodes, err := w.store.GetHighestDegreeNodes(ctx, groupID, w.config.FallbackCount)
	if err != nil {
		return nil, err
	}
	if w.cache != nil && len(nodes) > 0 {
		if err := w.cache.SetNodes(groupID, w.config.FallbackCacheKey, nodes); err != nil {
			w.logger.Warn("failed to cache fallback nodes", "group_id", groupID, "error", err)
		}
	}
	return nodes, nil
}
