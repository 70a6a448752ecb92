package graphrank

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/embedder"
	"github.com/soundprediction/graphrank/pkg/multihop"
	"github.com/soundprediction/graphrank/pkg/propagation"
	"github.com/soundprediction/graphrank/pkg/telemetry"
	"github.com/soundprediction/graphrank/pkg/types"
	"github.com/soundprediction/graphrank/pkg/weighting"
)

// RetrieveRequest is one single-cycle retrieval.
type RetrieveRequest struct {
	Query   string `json:"query"`
	GroupID string `json:"group_id"`
	// Candidates are the seed names produced by the upstream NLU step.
	Candidates []types.SeedCandidate `json:"candidates,omitempty"`
	// Profile overrides the engine's default tier weight profile.
	Profile weighting.Profile `json:"profile,omitempty"`
}

// RetrieveResult is the ranked, diversified evidence set for one cycle.
type RetrieveResult struct {
	Evidence []*types.EvidenceItem     `json:"evidence"`
	Degraded bool                      `json:"degraded,omitempty"`
	Trace    *telemetry.RetrievalTrace `json:"trace,omitempty"`
}

// MultiHopRequest is an iterated retrieval across sub-questions.
type MultiHopRequest struct {
	Query        string                `json:"query"`
	GroupID      string                `json:"group_id"`
	Candidates   []types.SeedCandidate `json:"candidates,omitempty"`
	SubQuestions []string              `json:"sub_questions,omitempty"`
}

// MultiHopResult carries the accumulated evidence with its confidence and
// termination reason. Reason EXHAUSTED is a success with lower confidence.
type MultiHopResult struct {
	Evidence   []*types.EvidenceItem     `json:"evidence"`
	Confidence float64                   `json:"confidence"`
	Iterations int                       `json:"iterations"`
	Reason     types.TerminationReason   `json:"reason"`
	Degraded   bool                      `json:"degraded,omitempty"`
	Trace      *telemetry.RetrievalTrace `json:"trace,omitempty"`
}

// Retrieve runs one resolve->propagate->fuse->diversify cycle.
func (e *Engine) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	if req.GroupID == "" {
		return nil, ErrMissingGroupID
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	profile := e.resolveProfile(req.Profile, req.Query, nil)
	trace := telemetry.NewTrace(req.Query, req.GroupID)
	trace.Profile = string(profile)

	fused, degraded, err := e.cycle(ctx, req.Query, req.Candidates, req.GroupID, profile, trace)
	if err != nil {
		return nil, err
	}

	selection := e.diversifier.Diversify(fused)
	trace.SkippedBySection = selection.SkippedBySection
	trace.SkippedByDocument = selection.SkippedByDocument
	trace.Degraded = degraded
	trace.Finish()

	return &RetrieveResult{
		Evidence: selection.Selected,
		Degraded: degraded,
		Trace:    trace,
	}, nil
}

// MultiHopRetrieve iterates cycles across the request's sub-questions
// until the confidence threshold or the iteration budget is reached.
func (e *Engine) MultiHopRetrieve(ctx context.Context, req MultiHopRequest) (*MultiHopResult, error) {
	if req.GroupID == "" {
		return nil, ErrMissingGroupID
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	profile := e.resolveProfile("", req.Query, req.SubQuestions)
	trace := telemetry.NewTrace(req.Query, req.GroupID)
	trace.Profile = string(profile)

	cycle := func(ctx context.Context, query, subQuestion, groupID string) (*multihop.CycleResult, error) {
		candidates := req.Candidates
		focus := query
		if subQuestion != "" {
			focus = subQuestion
			// The sub-question itself seeds the thematic tier so each
			// iteration pulls the graph toward its own focus.
			candidates = append(append([]types.SeedCandidate(nil), candidates...),
				types.SeedCandidate{Name: subQuestion, Tier: types.TierThematic, Confidence: 1.0})
		}
		fused, degraded, err := e.cycle(ctx, focus, candidates, groupID, profile, trace)
		if err != nil {
			return nil, err
		}
		selection := e.diversifier.Diversify(fused)
		trace.SkippedBySection += selection.SkippedBySection
		trace.SkippedByDocument += selection.SkippedByDocument
		return &multihop.CycleResult{Evidence: selection.Selected, Degraded: degraded}, nil
	}

	orchestrator := multihop.New(cycle, e.options.MultiHop, e.logger)
	run, err := orchestrator.Run(ctx, req.Query, req.SubQuestions, req.GroupID)
	if err != nil {
		return nil, err
	}

	trace.Iterations = run.Iterations
	trace.Reason = run.Reason
	trace.Degraded = run.Degraded
	trace.Finish()

	return &MultiHopResult{
		Evidence:   run.Evidence,
		Confidence: run.Confidence,
		Iterations: run.Iterations,
		Reason:     run.Reason,
		Degraded:   run.Degraded,
		Trace:      trace,
	}, nil
}

// resolveProfile applies the auto-inference policy.
func (e *Engine) resolveProfile(requested weighting.Profile, query string, subQuestions []string) weighting.Profile {
	profile := requested
	if profile == "" {
		profile = e.options.Profile
	}
	if profile == weighting.ProfileAuto || profile == "" {
		profile = weighting.InferProfile(query, subQuestions)
	}
	return profile
}

// cycle runs resolution, weighting, and the three-source fan-out, and
// fuses the results. Source failures degrade the cycle; only all three
// failing is an error.
func (e *Engine) cycle(ctx context.Context, query string, candidates []types.SeedCandidate, groupID string, profile weighting.Profile, trace *telemetry.RetrievalTrace) ([]*types.EvidenceItem, bool, error) {
	if e.options.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.CycleTimeout)
		defer cancel()
	}

	resolved, report, err := e.resolver.Resolve(ctx, candidates, groupID)
	if err != nil {
		return nil, false, fmt.Errorf("seed resolution failed: %w", err)
	}
	trace.ResolvedSeeds = report.Resolved
	trace.ResolutionMiss += report.Misses
	for name, strategy := range report.Strategies {
		trace.SeedStrategies[name] = strategy
	}
	for _, seed := range resolved {
		trace.TierSizes[seed.Tier]++
	}
	trace.UsedFallback = trace.UsedFallback || len(resolved) == 0

	vector, err := e.weighter.Weight(ctx, resolved, profile, groupID)
	if err != nil {
		return nil, false, fmt.Errorf("seed weighting failed: %w", err)
	}

	variant := e.variantFor(profile)
	damping := e.dampingFor(profile)
	trace.Variant = string(variant)
	trace.Damping = damping

	// The three signal sources fan out together; each writes only its own
	// slot and reports failure by leaving it nil.
	sources := make([][]*types.EvidenceItem, 3)
	failures := make([]error, 3)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sources[0], failures[0] = e.graphSource(gctx, vector, variant, damping, groupID)
		return nil
	})
	g.Go(func() error {
		sources[1], failures[1] = e.vectorSource(gctx, query, groupID)
		return nil
	})
	g.Go(func() error {
		sources[2], failures[2] = e.fulltextSource(gctx, query, groupID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	degraded := false
	failed := 0
	for i, err := range failures {
		if err == nil {
			continue
		}
		failed++
		degraded = true
		e.logger.Warn("signal source failed",
			"source", []string{"graph", "vector", "fulltext"}[i],
			"group_id", groupID,
			"request_id", trace.RequestID,
			"error", err)
	}
	if failed == len(failures) {
		return nil, false, fmt.Errorf("%w: %v", ErrAllSourcesFailed, failures)
	}

	trace.SourceSizes[types.OriginGraph] += len(sources[0])
	trace.SourceSizes[types.OriginVector] += len(sources[1])
	trace.SourceSizes[types.OriginFulltext] += len(sources[2])

	fused, err := e.fuser.Fuse(sources)
	if err != nil {
		return nil, false, fmt.Errorf("fusion failed: %w", err)
	}
	trace.FusedSize = len(fused)

	return fused, degraded, nil
}

// graphSource propagates relevance from the seeds and collects the
// evidence attached to the top-ranked nodes.
func (e *Engine) graphSource(ctx context.Context, vector types.PersonalizationVector, variant propagation.Variant, damping float64, groupID string) ([]*types.EvidenceItem, error) {
	config := e.options.Propagation
	config.Variant = variant
	propagator := propagation.New(e.driver, config, e.logger)

	var ranked []types.ScoredNode
	err := e.limiter.Do(ctx, groupID, func(ctx context.Context) error {
		var err error
		ranked, err = propagator.Propagate(ctx, vector, damping, groupID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("propagation failed: %w", err)
	}
	if len(ranked) == 0 {
		return []*types.EvidenceItem{}, nil
	}

	nodeIDs := make([]string, len(ranked))
	for i, node := range ranked {
		nodeIDs[i] = node.NodeID
	}

	var items []*types.EvidenceItem
	err = e.limiter.Do(ctx, groupID, func(ctx context.Context) error {
		var err error
		items, err = e.driver.GetEvidenceForNodes(ctx, nodeIDs, groupID, e.options.EvidenceLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("evidence lookup failed: %w", err)
	}
	return items, nil
}

// vectorSource searches evidence by embedding similarity to the query.
// Without an embedder the source contributes nothing, silently.
func (e *Engine) vectorSource(ctx context.Context, query, groupID string) ([]*types.EvidenceItem, error) {
	if e.embedder == nil {
		return []*types.EvidenceItem{}, nil
	}

	var queryVector []float32
	err := e.limiter.Do(ctx, groupID, func(ctx context.Context) error {
		var err error
		queryVector, err = embedder.EmbedSingle(ctx, e.embedder, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	var items []*types.EvidenceItem
	err = e.limiter.Do(ctx, groupID, func(ctx context.Context) error {
		var err error
		items, err = e.driver.SearchEvidenceByVector(ctx, queryVector, groupID, &driver.VectorSearchOptions{
			Limit:      e.options.EvidenceLimit,
			Oversample: e.options.Oversample,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return items, nil
}

// fulltextSource searches evidence by lexical relevance to the query.
func (e *Engine) fulltextSource(ctx context.Context, query, groupID string) ([]*types.EvidenceItem, error) {
	var items []*types.EvidenceItem
	err := e.limiter.Do(ctx, groupID, func(ctx context.Context) error {
		var err error
		items, err = e.driver.SearchEvidenceFulltext(ctx, query, groupID, e.options.EvidenceLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search failed: %w", err)
	}
	return items, nil
}

// Stats returns graph statistics for one group.
func (e *Engine) Stats(ctx context.Context, groupID string) (*driver.GraphStats, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	return e.driver.GetStats(ctx, groupID)
}
