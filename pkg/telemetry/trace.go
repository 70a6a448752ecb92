// Package telemetry carries the per-request retrieval trace and a
// slog.Handler that batches error records to Parquet files.
package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/graphrank/pkg/types"
)

// RetrievalTrace records what one retrieval request actually did: which
// strategy resolved each seed, how the tiers filled, which propagation
// variant ran, how each fusion source contributed, what the diversifier
// dropped, and how a multi-hop run terminated. It is attached to the
// response and logged.
type RetrievalTrace struct {
	RequestID string    `json:"request_id"`
	GroupID   string    `json:"group_id"`
	Query     string    `json:"query"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration,omitempty"`

	// Resolution.
	SeedStrategies map[string]types.MatchStrategy `json:"seed_strategies,omitempty"`
	ResolvedSeeds  int                            `json:"resolved_seeds"`
	ResolutionMiss int                            `json:"resolution_misses"`
	TierSizes      map[types.SeedTier]int         `json:"tier_sizes,omitempty"`
	UsedFallback   bool                           `json:"used_fallback,omitempty"`

	// Propagation.
	Profile string  `json:"profile"`
	Variant string  `json:"variant"`
	Damping float64 `json:"damping"`

	// Fusion and diversification.
	SourceSizes       map[types.EvidenceOrigin]int `json:"source_sizes,omitempty"`
	FusedSize         int                          `json:"fused_size"`
	SkippedBySection  int                          `json:"skipped_by_section"`
	SkippedByDocument int                          `json:"skipped_by_document"`

	// Multi-hop.
	Iterations int                     `json:"iterations,omitempty"`
	Reason     types.TerminationReason `json:"reason,omitempty"`

	// Degraded is set when a signal source failed or timed out and the
	// request returned partial fusion.
	Degraded bool `json:"degraded,omitempty"`
}

// NewTrace starts a trace for one request.
func NewTrace(query, groupID string) *RetrievalTrace {
	return &RetrievalTrace{
		RequestID:      uuid.New().String(),
		GroupID:        groupID,
		Query:          query,
		StartedAt:      time.Now().UTC(),
		SeedStrategies: make(map[string]types.MatchStrategy),
		TierSizes:      make(map[types.SeedTier]int),
		SourceSizes:    make(map[types.EvidenceOrigin]int),
	}
}

// Finish stamps the trace duration.
func (t *RetrievalTrace) Finish() {
	t.Duration = time.Since(t.StartedAt).String()
}
