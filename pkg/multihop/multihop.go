// Package multihop drives repeated retrieval cycles across a query's
// sub-questions until the accumulated evidence covers enough of them or
// the iteration budget runs out. Iterations are sequential; the session
// accumulator is owned by the orchestrator and mutated only between
// cycles. Exhausting the budget is a successful outcome with lower
// confidence, never an error.
package multihop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/graphrank/pkg/types"
)

// CycleResult is the outcome of one resolve->propagate->fuse cycle.
type CycleResult struct {
	Evidence []*types.EvidenceItem
	// Degraded is set when a signal source failed or timed out and the
	// cycle returned partial fusion.
	Degraded bool
}

// CycleFunc runs one retrieval cycle for the query focused on one
// sub-question. The orchestrator stays agnostic of how a cycle is built;
// the engine supplies it.
type CycleFunc func(ctx context.Context, query, subQuestion, groupID string) (*CycleResult, error)

// Config holds the orchestrator's tunables.
type Config struct {
	// ConvergenceThreshold is the confidence at which iteration stops.
	ConvergenceThreshold float64
	// MaxIterations bounds the total number of cycles.
	MaxIterations int
	// MinEvidenceScore is the per-item score above which evidence counts
	// toward a sub-question's coverage.
	MinEvidenceScore float64
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		ConvergenceThreshold: 0.8,
		MaxIterations:        5,
		MinEvidenceScore:     0.0,
	}
}

// Result is the terminal outcome of a multi-hop run.
type Result struct {
	Evidence   []*types.EvidenceItem
	Confidence float64
	Iterations int
	Reason     types.TerminationReason
	// Degraded is set when any cycle ran on partial sources.
	Degraded bool
}

// Orchestrator owns the multi-hop session state machine.
type Orchestrator struct {
	cycle  CycleFunc
	config Config
	logger *slog.Logger
}

// New creates an orchestrator around the given cycle function.
func New(cycle CycleFunc, config Config, logger *slog.Logger) *Orchestrator {
	if config.MaxIterations <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cycle: cycle, config: config, logger: logger}
}

// Run iterates resolve->propagate->fuse cycles round-robin over the
// sub-questions, accumulating evidence and recomputing confidence after
// every cycle, until confidence reaches the threshold (CONVERGED) or the
// iteration budget runs out (EXHAUSTED). A query without sub-questions
// runs a single cycle on the query itself and converges.
func (o *Orchestrator) Run(ctx context.Context, query string, subQuestions []string, groupID string) (*Result, error) {
	if groupID == "" {
		return nil, types.ErrEmptyGroupID
	}

	session := types.NewRetrievalSession(query, groupID, subQuestions, o.config.ConvergenceThreshold, o.config.MaxIterations)
	if err := session.Begin(); err != nil {
		return nil, err
	}

	degraded := false
	for session.Iteration < session.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		focus := ""
		focusIdx := -1
		if len(session.SubQuestions) > 0 {
			focusIdx = session.Iteration % len(session.SubQuestions)
			focus = session.SubQuestions[focusIdx]
		}

		cycle, err := o.cycle(ctx, query, focus, groupID)
		if err != nil {
			return nil, fmt.Errorf("iteration %d failed: %w", session.Iteration, err)
		}
		session.Iteration++
		degraded = degraded || cycle.Degraded

		session.Accumulate(cycle.Evidence)
		if focusIdx >= 0 && o.covers(cycle.Evidence) {
			session.MarkCovered(focusIdx)
		}
		confidence := session.RecomputeConfidence()

		o.logger.Debug("multi-hop iteration finished",
			"group_id", groupID,
			"iteration", session.Iteration,
			"sub_question", focus,
			"evidence_total", len(session.Evidence()),
			"confidence", confidence)

		if confidence >= session.ConvergenceThreshold {
			session.Converge()
			break
		}
	}
	if !session.State.Terminal() {
		session.Exhaust()
	}

	return &Result{
		Evidence:   session.Evidence(),
		Confidence: session.Confidence,
		Iterations: session.Iteration,
		Reason:     session.Reason,
		Degraded:   degraded,
	}, nil
}

// covers reports whether the cycle produced at least one evidence item
// above the coverage score floor.
func (o *Orchestrator) covers(items []*types.EvidenceItem) bool {
	for _, item := range items {
		if item.Score > o.config.MinEvidenceScore {
			return true
		}
	}
	return false
}
