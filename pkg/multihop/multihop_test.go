package multihop

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrank/pkg/types"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func evidence(id string, score float64) *types.EvidenceItem {
	return &types.EvidenceItem{ID: id, Score: score}
}

func TestRunConvergesWhenAllSubQuestionsCovered(t *testing.T) {
	// Every cycle produces one scoring item, so two sub-questions are
	// covered after two iterations.
	calls := 0
	cycle := func(_ context.Context, _, subQuestion, _ string) (*CycleResult, error) {
		calls++
		return &CycleResult{Evidence: []*types.EvidenceItem{evidence("e-"+subQuestion, 0.9)}}, nil
	}

	o := New(cycle, Config{ConvergenceThreshold: 1.0, MaxIterations: 10}, discardLogger())
	result, err := o.Run(context.Background(), "q", []string{"sq1", "sq2"}, "tenant-a")
	require.NoError(t, err)

	assert.Equal(t, types.ReasonConverged, result.Reason)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Len(t, result.Evidence, 2)
}

func TestRunExhaustsOnIterationBudget(t *testing.T) {
	// Cycles never produce scoring evidence, so confidence stays at zero
	// and the budget runs out. Exhaustion still returns the accumulated
	// partial evidence.
	cycle := func(context.Context, string, string, string) (*CycleResult, error) {
		return &CycleResult{Evidence: []*types.EvidenceItem{evidence("low", 0.0)}}, nil
	}

	o := New(cycle, Config{ConvergenceThreshold: 0.5, MaxIterations: 3}, discardLogger())
	result, err := o.Run(context.Background(), "q", []string{"sq1", "sq2"}, "tenant-a")
	require.NoError(t, err)

	assert.Equal(t, types.ReasonExhausted, result.Reason)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Len(t, result.Evidence, 1)
}

func TestRunConfidenceMonotonic(t *testing.T) {
	// The first sub-question is covered on its first visit, the second
	// never; confidence must never decrease across iterations.
	cycle := func(_ context.Context, _, subQuestion, _ string) (*CycleResult, error) {
		if subQuestion == "sq1" {
			return &CycleResult{Evidence: []*types.EvidenceItem{evidence("e1", 0.9)}}, nil
		}
		return &CycleResult{}, nil
	}

	var confidences []float64
	o := New(cycle, Config{ConvergenceThreshold: 0.9, MaxIterations: 6}, discardLogger())

	// Re-run with growing budgets to observe the confidence after each
	// iteration count.
	for budget := 1; budget <= 6; budget++ {
		o.config.MaxIterations = budget
		result, err := o.Run(context.Background(), "q", []string{"sq1", "sq2"}, "tenant-a")
		require.NoError(t, err)
		confidences = append(confidences, result.Confidence)
	}
	for i := 1; i < len(confidences); i++ {
		assert.GreaterOrEqual(t, confidences[i], confidences[i-1])
	}
}

func TestRunNoSubQuestionsSingleCycle(t *testing.T) {
	calls := 0
	cycle := func(_ context.Context, _, subQuestion, _ string) (*CycleResult, error) {
		calls++
		assert.Empty(t, subQuestion)
		return &CycleResult{Evidence: []*types.EvidenceItem{evidence("e1", 0.5)}}, nil
	}

	o := New(cycle, DefaultConfig(), discardLogger())
	result, err := o.Run(context.Background(), "q", nil, "tenant-a")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, types.ReasonConverged, result.Reason)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestRunDeduplicatesAccumulatedEvidence(t *testing.T) {
	cycle := func(context.Context, string, string, string) (*CycleResult, error) {
		return &CycleResult{Evidence: []*types.EvidenceItem{evidence("same", 0.1)}}, nil
	}

	o := New(cycle, Config{ConvergenceThreshold: 1.1, MaxIterations: 4, MinEvidenceScore: 0.5}, discardLogger())
	result, err := o.Run(context.Background(), "q", []string{"sq1"}, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, result.Evidence, 1)
}

func TestRunPropagatesCycleError(t *testing.T) {
	boom := errors.New("store down")
	cycle := func(context.Context, string, string, string) (*CycleResult, error) {
		return nil, boom
	}

	o := New(cycle, DefaultConfig(), discardLogger())
	_, err := o.Run(context.Background(), "q", []string{"sq1"}, "tenant-a")
	assert.ErrorIs(t, err, boom)
}

func TestRunFlagsDegradedCycles(t *testing.T) {
	cycle := func(context.Context, string, string, string) (*CycleResult, error) {
		return &CycleResult{Evidence: []*types.EvidenceItem{evidence("e1", 0.9)}, Degraded: true}, nil
	}

	o := New(cycle, DefaultConfig(), discardLogger())
	result, err := o.Run(context.Background(), "q", []string{"sq1"}, "tenant-a")
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}

func TestRunRequiresGroupID(t *testing.T) {
	o := New(func(context.Context, string, string, string) (*CycleResult, error) {
		return &CycleResult{}, nil
	}, DefaultConfig(), discardLogger())

	_, err := o.Run(context.Background(), "q", nil, "")
	assert.ErrorIs(t, err, types.ErrEmptyGroupID)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(func(context.Context, string, string, string) (*CycleResult, error) {
		t.Fatal("cycle must not run after cancellation")
		return nil, nil
	}, DefaultConfig(), discardLogger())

	_, err := o.Run(ctx, "q", []string{"sq1"}, "tenant-a")
	assert.ErrorIs(t, err, context.Canceled)
}
