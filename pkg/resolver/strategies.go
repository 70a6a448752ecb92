package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/embedder"
	"github.com/soundprediction/graphrank/pkg/types"
)

// errNoMatch is the typed miss every strategy returns when it finds
// nothing acceptable. It moves the cascade along; it is never surfaced.
var errNoMatch = errors.New("no matching node")

type strategy struct {
	kind    types.MatchStrategy
	resolve func(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error)
}

// strategies returns the cascade in precision order.
func (r *Resolver) strategies() []strategy {
	return []strategy{
		{kind: types.MatchExact, resolve: r.resolveExact},
		{kind: types.MatchAlias, resolve: r.resolveAlias},
		{kind: types.MatchAttributeKey, resolve: r.resolveAttributeKey},
		{kind: types.MatchSubstring, resolve: r.resolveSubstring},
		{kind: types.MatchTokenOverlap, resolve: r.resolveTokenOverlap},
		{kind: types.MatchEmbedding, resolve: r.resolveEmbedding},
	}
}

// withLimit runs a store call under the tenant's concurrency budget.
func (r *Resolver) withLimit(ctx context.Context, groupID string, fn func(context.Context) error) error {
	if r.limiter == nil {
		return fn(ctx)
	}
	return r.limiter.Do(ctx, groupID, fn)
}

// ownNodes drops any node the store returned for another group. The store
// already filters by group; this guards the tenant invariant end to end.
func ownNodes(nodes []*types.Node, groupID string) []*types.Node {
	own := nodes[:0]
	for _, node := range nodes {
		if node.GroupID == groupID {
			own = append(own, node)
		}
	}
	return own
}

func (r *Resolver) resolveExact(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	var nodes []*types.Node
	err := r.withLimit(ctx, groupID, func(ctx context.Context) error {
		var err error
		nodes, err = r.store.GetNodesByNameExact(ctx, name, groupID, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	nodes = ownNodes(nodes, groupID)
	if len(nodes) == 0 {
		return nil, errNoMatch
	}
	return &types.ResolvedSeed{
		NodeID:      nodes[0].Uuid,
		MatchedName: nodes[0].Name,
		Strategy:    types.MatchExact,
		Score:       1.0,
	}, nil
}

func (r *Resolver) resolveAlias(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	canonical, ok := r.config.Aliases[strings.ToLower(name)]
	if !ok {
		return nil, errNoMatch
	}
	seed, err := r.resolveExact(ctx, canonical, groupID)
	if err != nil {
		return nil, err
	}
	seed.Strategy = types.MatchAlias
	seed.Score = 0.95
	return seed, nil
}

func (r *Resolver) resolveAttributeKey(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	var nodes []*types.Node
	err := r.withLimit(ctx, groupID, func(ctx context.Context) error {
		var err error
		nodes, err = r.store.GetNodesByAttributeKey(ctx, name, groupID, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	nodes = ownNodes(nodes, groupID)
	if len(nodes) == 0 {
		return nil, errNoMatch
	}
	return &types.ResolvedSeed{
		NodeID:      nodes[0].Uuid,
		MatchedName: nodes[0].Name,
		Strategy:    types.MatchAttributeKey,
		Score:       0.9,
	}, nil
}

// resolveSubstring matches bidirectional containment, tie-broken toward
// the shortest (most specific) matching name. The store orders by name
// length ascending, so the first own-group hit is the winner.
func (r *Resolver) resolveSubstring(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	var nodes []*types.Node
	err := r.withLimit(ctx, groupID, func(ctx context.Context) error {
		var err error
		nodes, err = r.store.GetNodesByNameSubstring(ctx, name, groupID, r.config.CandidateLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	nodes = ownNodes(nodes, groupID)
	if len(nodes) == 0 {
		return nil, errNoMatch
	}
	winner := nodes[0]
	return &types.ResolvedSeed{
		NodeID:      winner.Uuid,
		MatchedName: winner.Name,
		Strategy:    types.MatchSubstring,
		Score:       containmentScore(name, winner.Name),
	}, nil
}

func (r *Resolver) resolveTokenOverlap(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	var nodes []*types.Node
	err := r.withLimit(ctx, groupID, func(ctx context.Context) error {
		var err error
		nodes, err = r.store.SearchNodesFulltext(ctx, name, groupID, r.config.CandidateLimit)
		return err
	})
	if err != nil {
		return nil, err
	}
	nodes = ownNodes(nodes, groupID)

	candidateTokens := tokenSet(name)
	var best *types.Node
	var bestJaccard float64
	for _, node := range nodes {
		j := jaccard(candidateTokens, tokenSet(node.Name))
		if j > bestJaccard {
			bestJaccard = j
			best = node
		}
	}
	if best == nil || bestJaccard < r.config.MinJaccard {
		return nil, errNoMatch
	}
	return &types.ResolvedSeed{
		NodeID:      best.Uuid,
		MatchedName: best.Name,
		Strategy:    types.MatchTokenOverlap,
		Score:       bestJaccard,
	}, nil
}

// resolveEmbedding is the nearest-neighbor last resort. It accepts only
// matches above the similarity threshold; when the similarity search
// returns zero candidates at all (not just low scores), a weaker
// substring-on-fragments lookup is attempted. It runs under its own child
// deadline so cancelling it never cancels sibling strategies.
func (r *Resolver) resolveEmbedding(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	if r.embedder == nil {
		return nil, errNoMatch
	}

	embedCtx := ctx
	var cancel context.CancelFunc
	if r.config.EmbeddingTimeout > 0 {
		embedCtx, cancel = context.WithTimeout(ctx, r.config.EmbeddingTimeout)
		defer cancel()
	}

	var vector []float32
	err := r.withLimit(embedCtx, groupID, func(ctx context.Context) error {
		var err error
		vector, err = embedder.EmbedSingle(ctx, r.embedder, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	var nodes []*types.Node
	err = r.withLimit(embedCtx, groupID, func(ctx context.Context) error {
		var err error
		nodes, err = r.store.SearchNodesByVector(ctx, vector, groupID, &driver.VectorSearchOptions{
			Limit: r.config.CandidateLimit,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	nodes = ownNodes(nodes, groupID)

	if len(nodes) == 0 {
		// Nothing in the index is close at any score; fall back to the
		// weaker fragment lookup instead of fabricating a neighbor.
		return r.resolveFragments(ctx, name, groupID)
	}

	best := nodes[0]
	similarity := nodeSimilarity(best)
	if similarity < r.config.EmbeddingThreshold {
		return nil, errNoMatch
	}
	return &types.ResolvedSeed{
		NodeID:      best.Uuid,
		MatchedName: best.Name,
		Strategy:    types.MatchEmbedding,
		Score:       similarity,
	}, nil
}

// resolveFragments retries substring containment on the candidate's
// individual tokens, longest first.
func (r *Resolver) resolveFragments(ctx context.Context, name, groupID string) (*types.ResolvedSeed, error) {
	fragments := fragmentTokens(name)
	for _, fragment := range fragments {
		seed, err := r.resolveSubstring(ctx, fragment, groupID)
		if err != nil {
			if err == errNoMatch {
				continue
			}
			return nil, err
		}
		seed.Score *= 0.5
		return seed, nil
	}
	return nil, errNoMatch
}

func containmentScore(candidate, matched string) float64 {
	a := len([]rune(candidate))
	b := len([]rune(matched))
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

func nodeSimilarity(node *types.Node) float64 {
	if node.Metadata == nil {
		return 0
	}
	if s, ok := node.Metadata["similarity"].(float64); ok {
		return s
	}
	return 0
}

func tokenSet(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(s)) {
		token := strings.Trim(field, ".,;:!?\"'()[]{}#")
		if token != "" {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// fragmentTokens returns the candidate's tokens of three or more runes,
// longest first, for the last-resort fragment lookup.
func fragmentTokens(name string) []string {
	var fragments []string
	for token := range tokenSet(name) {
		if len([]rune(token)) >= 3 {
			fragments = append(fragments, token)
		}
	}
	// Longest first by rune count; ties alphabetical for determinism.
	sort.Slice(fragments, func(i, j int) bool {
		li, lj := len([]rune(fragments[i])), len([]rune(fragments[j]))
		if li != lj {
			return li > lj
		}
		return fragments[i] < fragments[j]
	})
	return fragments
}
