package types

import (
	"errors"
	"time"
)

// SeedTier categorizes where a seed candidate came from. Each tier is
// weighted independently before tiers are combined.
type SeedTier string

const (
	// TierEntity holds candidates derived from entity names (NER output).
	TierEntity SeedTier = "entity"
	// TierStructural holds candidates derived from sentence structure.
	TierStructural SeedTier = "structural"
	// TierThematic holds candidates derived from topic/community analysis.
	TierThematic SeedTier = "thematic"
)

// AllTiers lists the tiers in their canonical order.
var AllTiers = []SeedTier{TierEntity, TierStructural, TierThematic}

// SeedCandidate is a free-text candidate entity name produced by the
// upstream NLU step. It is ephemeral input, never persisted.
type SeedCandidate struct {
	Name       string   `json:"name"`
	Tier       SeedTier `json:"tier"`
	Confidence float64  `json:"confidence"`
}

// MatchStrategy identifies which resolution strategy matched a candidate
// to a graph node. Strategies are ordered by precision; a lower Precedence
// value means a more precise match.
type MatchStrategy string

const (
	MatchExact        MatchStrategy = "exact"
	MatchAlias        MatchStrategy = "alias"
	MatchAttributeKey MatchStrategy = "kvp_key"
	MatchSubstring    MatchStrategy = "substring"
	MatchTokenOverlap MatchStrategy = "token_overlap"
	MatchEmbedding    MatchStrategy = "embedding"
)

// Precedence returns the cascade position of the strategy. Earlier
// strategies win when the same node is matched more than once.
func (m MatchStrategy) Precedence() int {
	switch m {
	case MatchExact:
		return 0
	case MatchAlias:
		return 1
	case MatchAttributeKey:
		return 2
	case MatchSubstring:
		return 3
	case MatchTokenOverlap:
		return 4
	case MatchEmbedding:
		return 5
	default:
		return 6
	}
}

// ResolvedSeed is a seed candidate bound to a concrete graph node.
// NodeID always belongs to the group that requested the resolution.
type ResolvedSeed struct {
	NodeID      string        `json:"node_id"`
	MatchedName string        `json:"matched_name"`
	Strategy    MatchStrategy `json:"strategy"`
	Score       float64       `json:"score"`
	Tier        SeedTier      `json:"tier"`
}

// PersonalizationVector maps node IDs to restart weights for propagation.
// Within each non-empty tier the weights sum to 1.0 before tiers are
// combined by the profile weights.
type PersonalizationVector map[string]float64

// ScoredNode is one entry of a propagated ranking.
type ScoredNode struct {
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
}

// Node is a property-graph node as the retrieval engine sees it.
type Node struct {
	Uuid       string    `json:"uuid"`
	Name       string    `json:"name"`
	GroupID    string    `json:"group_id"`
	EntityType string    `json:"entity_type,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	// AttrKey is the node's declared structured-attribute key, when the
	// node represents a key/value pair extracted from a document.
	AttrKey   string                 `json:"attr_key,omitempty"`
	Degree    int64                  `json:"degree,omitempty"`
	Embedding []float32              `json:"embedding,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at,omitempty"`
}

// Validate checks the fields every stored node must carry.
func (n *Node) Validate() error {
	if n.Uuid == "" {
		return ErrEmptyUuid
	}
	if n.GroupID == "" {
		return ErrEmptyGroupID
	}
	return nil
}

// NeighborRecord is one edge endpoint returned by degree-ordered neighbor
// expansion. TargetDegree is the structural degree of the target node and
// drives the per-hop fan-out cut.
type NeighborRecord struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	TargetDegree int64  `json:"target_degree"`
}

// SubgraphEdge is a directed edge of the propagation subgraph together
// with the out-degree of its source node, as needed by power iteration.
type SubgraphEdge struct {
	SourceID        string `json:"source_id"`
	TargetID        string `json:"target_id"`
	SourceOutDegree int64  `json:"source_out_degree"`
}

// EvidenceOrigin identifies which signal source produced an evidence item.
type EvidenceOrigin string

const (
	OriginGraph    EvidenceOrigin = "graph"
	OriginVector   EvidenceOrigin = "vector"
	OriginFulltext EvidenceOrigin = "fulltext"
)

// EvidenceItem is one ranked piece of source text backing an answer.
// ID is the stable identity used for fusion deduplication.
type EvidenceItem struct {
	ID           string         `json:"id"`
	TextRef      string         `json:"text_ref"`
	SourceNodeID string         `json:"source_node_id"`
	SectionID    string         `json:"section_id"`
	DocumentID   string         `json:"document_id"`
	Score        float64        `json:"score"`
	Origin       EvidenceOrigin `json:"origin"`
}

var (
	// ErrEmptyUuid is returned when a node is missing its UUID.
	ErrEmptyUuid = errors.New("node uuid must not be empty")
	// ErrEmptyGroupID is returned when an entity is missing its group ID.
	ErrEmptyGroupID = errors.New("group id must not be empty")
)
