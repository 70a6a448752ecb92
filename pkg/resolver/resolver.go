package resolver

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/embedder"
	"github.com/soundprediction/graphrank/pkg/limiter"
	"github.com/soundprediction/graphrank/pkg/types"
)

// Config holds the resolver's tunables.
type Config struct {
	// CandidateLimit bounds how many nodes each strategy pulls from the store.
	CandidateLimit int
	// MinJaccard is the minimum token-set overlap the token strategy accepts.
	MinJaccard float64
	// EmbeddingThreshold is the minimum cosine similarity the embedding
	// fallback accepts. Matches below it are dropped, not fabricated.
	EmbeddingThreshold float64
	// EmbeddingTimeout is the child deadline for the embedding fallback so
	// cancelling it never cancels sibling strategies.
	EmbeddingTimeout time.Duration
	// Aliases maps known generic synonyms (lowercased) to canonical names.
	Aliases map[string]string
	// MaxConcurrency bounds the per-request candidate fan-out.
	MaxConcurrency int
}

// DefaultConfig returns the resolver defaults.
func DefaultConfig() Config {
	return Config{
		CandidateLimit:     20,
		MinJaccard:         0.5,
		EmbeddingThreshold: 0.68,
		EmbeddingTimeout:   2 * time.Second,
		MaxConcurrency:     4,
	}
}

// Report records how a resolution round went, for the request trace.
type Report struct {
	Resolved   int                            `json:"resolved"`
	Misses     int                            `json:"misses"`
	Strategies map[string]types.MatchStrategy `json:"strategies"`
}

// Resolver runs the strategy cascade against the graph store.
type Resolver struct {
	store    driver.NodeLookup
	embedder embedder.Client
	limiter  *limiter.TenantLimiter
	config   Config
	logger   *slog.Logger
}

// New creates a resolver. The embedder may be nil, in which case the
// embedding fallback is skipped.
func New(store driver.NodeLookup, embedderClient embedder.Client, tenantLimiter *limiter.TenantLimiter, config Config, logger *slog.Logger) *Resolver {
	if config.CandidateLimit <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		embedder: embedderClient,
		limiter:  tenantLimiter,
		config:   config,
		logger:   logger,
	}
}

// Resolve maps candidates to graph nodes for one group. Candidates fan out
// concurrently; each runs the full cascade. The result is deduplicated by
// node ID, keeping the highest-precision match, and is empty (not nil, not
// an error) when nothing resolves.
func (r *Resolver) Resolve(ctx context.Context, candidates []types.SeedCandidate, groupID string) ([]types.ResolvedSeed, *Report, error) {
	if groupID == "" {
		return nil, nil, driver.ErrMissingGroupID
	}

	report := &Report{Strategies: make(map[string]types.MatchStrategy)}
	if len(candidates) == 0 {
		return []types.ResolvedSeed{}, report, nil
	}

	results := make([]*types.ResolvedSeed, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxConcurrency)

	for i, candidate := range candidates {
		g.Go(func() error {
			seed := r.resolveOne(gctx, candidate, groupID)
			results[i] = seed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	resolved := make([]types.ResolvedSeed, 0, len(candidates))
	for i, seed := range results {
		if seed == nil {
			report.Misses++
			continue
		}
		report.Strategies[candidates[i].Name] = seed.Strategy
		resolved = append(resolved, *seed)
	}
	resolved = dedupeByNode(resolved)
	report.Resolved = len(resolved)

	return resolved, report, nil
}

// resolveOne runs the cascade for a single candidate. A strategy error is
// logged and skipped; the cascade keeps going so a flaky store degrades
// resolution instead of failing the request.
func (r *Resolver) resolveOne(ctx context.Context, candidate types.SeedCandidate, groupID string) *types.ResolvedSeed {
	name := strings.TrimSpace(candidate.Name)
	if name == "" {
		return nil
	}

	for _, strategy := range r.strategies() {
		if ctx.Err() != nil {
			return nil
		}
		seed, err := strategy.resolve(ctx, name, groupID)
		if err != nil {
			if err == errNoMatch {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("resolution strategy failed",
				"strategy", strategy.kind,
				"candidate", name,
				"group_id", groupID,
				"error", err)
			continue
		}
		if seed.NodeID == "" {
			continue
		}
		seed.Tier = candidate.Tier
		return seed
	}
	return nil
}

// dedupeByNode keeps one seed per node, preferring the most precise
// strategy and, on ties, the higher score. Output order is deterministic.
func dedupeByNode(seeds []types.ResolvedSeed) []types.ResolvedSeed {
	best := make(map[string]types.ResolvedSeed, len(seeds))
	for _, seed := range seeds {
		existing, ok := best[seed.NodeID]
		if !ok {
			best[seed.NodeID] = seed
			continue
		}
		if seed.Strategy.Precedence() < existing.Strategy.Precedence() ||
			(seed.Strategy.Precedence() == existing.Strategy.Precedence() && seed.Score > existing.Score) {
			best[seed.NodeID] = seed
		}
	}

	out := make([]types.ResolvedSeed, 0, len(best))
	for _, seed := range best {
		out = append(out, seed)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strategy.Precedence() != out[j].Strategy.Precedence() {
			return out[i].Strategy.Precedence() < out[j].Strategy.Precedence()
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}
