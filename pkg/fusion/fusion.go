// Package fusion merges independently produced evidence rankings. Each
// signal source (graph propagation, vector similarity, full-text) captures
// a different notion of relevance; fusion combines them by rank position
// (Reciprocal Rank Fusion) or by weighted normalized score. An item found
// by several sources accumulates contributions under its stable id, never
// duplicates.
package fusion

import (
	"fmt"
	"sort"

	"github.com/soundprediction/graphrank/pkg/types"
)

// Method selects the fusion algorithm.
type Method string

const (
	// MethodRRF scores each item 1/(k+rank) per source it appears in.
	MethodRRF Method = "rrf"
	// MethodWeightedSum min-max normalizes each source to [0,1] and
	// combines by per-source weights.
	MethodWeightedSum Method = "weighted_sum"
)

// Config holds the fuser's tunables.
type Config struct {
	// Method is the default fusion algorithm.
	Method Method
	// K is the RRF rank constant.
	K int
	// Weights are the per-source weights for MethodWeightedSum, positional
	// against the source list. Missing entries default to 1.0.
	Weights []float64
}

// DefaultConfig returns the fusion defaults.
func DefaultConfig() Config {
	return Config{Method: MethodRRF, K: 60}
}

// Fuser combines ranked evidence lists.
type Fuser struct {
	config Config
}

// New creates a fuser.
func New(config Config) *Fuser {
	if config.K <= 0 {
		config.K = 60
	}
	if config.Method == "" {
		config.Method = MethodRRF
	}
	return &Fuser{config: config}
}

// Fuse merges the sources with the configured method. The result is sorted
// by fused score descending, id ascending on ties, and carries the fused
// score on each item. Empty sources contribute nothing.
func (f *Fuser) Fuse(sources [][]*types.EvidenceItem) ([]*types.EvidenceItem, error) {
	switch f.config.Method {
	case MethodRRF:
		return f.fuseRRF(sources), nil
	case MethodWeightedSum:
		return f.fuseWeightedSum(sources), nil
	default:
		return nil, fmt.Errorf("unknown fusion method %q", f.config.Method)
	}
}

// fuseRRF scores every item by the sum of 1/(k+rank) over the sources that
// contain it, rank being the zero-based position, so a source's top item
// contributes exactly 1/k. Absence contributes zero.
func (f *Fuser) fuseRRF(sources [][]*types.EvidenceItem) []*types.EvidenceItem {
	fused := make(map[string]float64)
	items := make(map[string]*types.EvidenceItem)

	for _, source := range sources {
		for rank, item := range source {
			fused[item.ID] += 1.0 / float64(f.config.K+rank)
			if _, ok := items[item.ID]; !ok {
				items[item.ID] = item
			}
		}
	}
	return rankFused(fused, items)
}

// fuseWeightedSum min-max normalizes each source's scores to [0,1] and
// accumulates them under the per-source weights.
func (f *Fuser) fuseWeightedSum(sources [][]*types.EvidenceItem) []*types.EvidenceItem {
	fused := make(map[string]float64)
	items := make(map[string]*types.EvidenceItem)

	for i, source := range sources {
		weight := 1.0
		if i < len(f.config.Weights) {
			weight = f.config.Weights[i]
		}
		for id, normalized := range normalize(source) {
			fused[id] += weight * normalized
		}
		for _, item := range source {
			if _, ok := items[item.ID]; !ok {
				items[item.ID] = item
			}
		}
	}
	return rankFused(fused, items)
}

// normalize maps a source's raw scores onto [0,1]. A constant-score source
// normalizes to 1.0 for every item so it still counts as presence.
func normalize(source []*types.EvidenceItem) map[string]float64 {
	if len(source) == 0 {
		return nil
	}
	min, max := source[0].Score, source[0].Score
	for _, item := range source[1:] {
		if item.Score < min {
			min = item.Score
		}
		if item.Score > max {
			max = item.Score
		}
	}

	out := make(map[string]float64, len(source))
	for _, item := range source {
		if max == min {
			out[item.ID] = 1.0
			continue
		}
		out[item.ID] = (item.Score - min) / (max - min)
	}
	return out
}

// rankFused materializes the fused map deterministically. Items are copied
// so the caller's source lists keep their per-source scores.
func rankFused(fused map[string]float64, items map[string]*types.EvidenceItem) []*types.EvidenceItem {
	out := make([]*types.EvidenceItem, 0, len(fused))
	for id, score := range fused {
		item := *items[id]
		item.Score = score
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
