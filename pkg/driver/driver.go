package driver

import (
	"context"
	"errors"

	"github.com/soundprediction/graphrank/pkg/types"
)

// GraphProvider identifies the backing graph database.
type GraphProvider string

const (
	GraphProviderNeo4j GraphProvider = "neo4j"
)

// ErrMissingGroupID is returned when a lookup is attempted without a tenant.
var ErrMissingGroupID = errors.New("group id is required on every lookup")

// VectorSearchOptions controls vector similarity queries.
type VectorSearchOptions struct {
	Limit    int
	MinScore float64
	// Oversample multiplies Limit for the raw store query so post-filtering
	// still fills the requested page. Zero means no oversampling.
	Oversample int
}

// EffectiveLimit returns Limit scaled by the oversampling factor.
func (o *VectorSearchOptions) EffectiveLimit() int {
	if o.Oversample > 1 {
		return o.Limit * o.Oversample
	}
	return o.Limit
}

// NodeLookup provides the name-based node lookups the seed resolver
// cascade is built on.
type NodeLookup interface {
	// GetNodesByNameExact returns nodes whose name equals the candidate,
	// case-insensitively.
	GetNodesByNameExact(ctx context.Context, name, groupID string, limit int) ([]*types.Node, error)

	// GetNodesByAttributeKey returns nodes whose declared attribute key
	// equals the candidate.
	GetNodesByAttributeKey(ctx context.Context, key, groupID string, limit int) ([]*types.Node, error)

	// GetNodesByNameSubstring returns nodes related to the candidate by
	// bidirectional substring containment on the name.
	GetNodesByNameSubstring(ctx context.Context, fragment, groupID string, limit int) ([]*types.Node, error)

	// SearchNodesFulltext returns nodes by full-text relevance on name and
	// summary, best first.
	SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error)

	// SearchNodesByVector returns nodes by embedding similarity, best first,
	// filtered to options.MinScore.
	SearchNodesByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.Node, error)

	// GetHighestDegreeNodes returns the group's most connected nodes. Used
	// as the documented fallback when no seeds resolve.
	GetHighestDegreeNodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error)
}

// GraphTraversal provides the structure queries propagation is built on.
type GraphTraversal interface {
	// GetNeighborsByDegree returns, for each origin node, its neighbors
	// ordered by structural degree descending, at most topN per origin.
	GetNeighborsByDegree(ctx context.Context, nodeIDs []string, groupID string, topN int) ([]types.NeighborRecord, error)

	// GetSubgraphEdges returns the directed edges reachable from the given
	// nodes within the hop bound, with source out-degrees.
	GetSubgraphEdges(ctx context.Context, nodeIDs []string, groupID string, hops int) ([]types.SubgraphEdge, error)
}

// EvidenceSearcher provides the evidence (source text) queries that feed
// rank fusion.
type EvidenceSearcher interface {
	// GetEvidenceForNodes returns evidence chunks attached to the given
	// nodes, at most limit per node.
	GetEvidenceForNodes(ctx context.Context, nodeIDs []string, groupID string, limit int) ([]*types.EvidenceItem, error)

	// SearchEvidenceFulltext returns evidence chunks by full-text relevance.
	SearchEvidenceFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EvidenceItem, error)

	// SearchEvidenceByVector returns evidence chunks by embedding similarity.
	SearchEvidenceByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.EvidenceItem, error)
}

// GraphStats summarizes a group's graph, for health and admin surfaces.
type GraphStats struct {
	GroupID       string `json:"group_id"`
	NodeCount     int64  `json:"node_count"`
	EdgeCount     int64  `json:"edge_count"`
	EvidenceCount int64  `json:"evidence_count"`
}

// GraphDriver composes the focused interfaces into the full store surface
// the engine wires against.
type GraphDriver interface {
	NodeLookup
	GraphTraversal
	EvidenceSearcher

	// GetStats returns graph statistics for one group.
	GetStats(ctx context.Context, groupID string) (*GraphStats, error)

	// Provider returns the backing database type.
	Provider() GraphProvider

	// Close releases all resources held by the driver.
	Close(ctx context.Context) error
}
