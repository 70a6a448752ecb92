package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/graphrank/pkg/types"
)

// Neo4jDriver implements GraphDriver against a Neo4j database.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   client,
		database: database,
	}, nil
}

// Provider returns the backing database type.
func (d *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// Close releases the underlying connection pool.
func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.client.Close(ctx)
}

// executeRead runs a read query in a managed transaction and returns the
// records as maps keyed by the RETURN aliases.
func (d *Neo4jDriver) executeRead(ctx context.Context, query string, params map[string]any) ([]map[string]interface{}, error) {
	session := d.client.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		maps := make([]map[string]interface{}, len(records))
		for i, record := range records {
			maps[i] = record.AsMap()
		}
		return maps, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]map[string]interface{}), nil
}

func (d *Neo4jDriver) readNodes(ctx context.Context, query string, params map[string]any) ([]*types.Node, error) {
	records, err := d.executeRead(ctx, query, params)
	if err != nil {
		return nil, err
	}
	nodes := make([]*types.Node, 0, len(records))
	for _, record := range records {
		nodes = append(nodes, nodeFromRecord(record))
	}
	return nodes, nil
}

// GetNodesByNameExact returns nodes whose name equals the candidate,
// case-insensitively.
func (d *Neo4jDriver) GetNodesByNameExact(ctx context.Context, name, groupID string, limit int) ([]*types.Node, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	return d.readNodes(ctx, exactNameQuery(), map[string]any{
		"name":     name,
		"group_id": groupID,
		"limit":    limit,
	})
}

// GetNodesByAttributeKey returns nodes whose declared attribute key equals
// the candidate.
func (d *Neo4jDriver) GetNodesByAttributeKey(ctx context.Context, key, groupID string, limit int) ([]*types.Node, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	return d.readNodes(ctx, attributeKeyQuery(), map[string]any{
		"key":      key,
		"group_id": groupID,
		"limit":    limit,
	})
}

// GetNodesByNameSubstring returns nodes related to the candidate by
// bidirectional substring containment, shortest names first.
func (d *Neo4jDriver) GetNodesByNameSubstring(ctx context.Context, fragment, groupID string, limit int) ([]*types.Node, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	return d.readNodes(ctx, substringQuery(), map[string]any{
		"fragment": fragment,
		"group_id": groupID,
		"limit":    limit,
	})
}

// SearchNodesFulltext returns nodes by full-text relevance on name and summary.
func (d *Neo4jDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	sanitized := sanitizeFulltext(query)
	if sanitized == "" {
		return []*types.Node{}, nil
	}
	return d.readNodes(ctx, fulltextNodeQuery(), map[string]any{
		"query":    sanitized,
		"group_id": groupID,
		"limit":    limit,
	})
}

// SearchNodesByVector returns nodes by embedding similarity above MinScore.
func (d *Neo4jDriver) SearchNodesByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.Node, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	records, err := d.executeRead(ctx, vectorNodeQuery(), map[string]any{
		"vector":    vector,
		"group_id":  groupID,
		"limit":     options.EffectiveLimit(),
		"min_score": options.MinScore,
	})
	if err != nil {
		return nil, err
	}
	nodes := make([]*types.Node, 0, len(records))
	for _, record := range records {
		node := nodeFromRecord(record)
		if node.Metadata == nil {
			node.Metadata = make(map[string]interface{})
		}
		node.Metadata["similarity"] = toFloat64Value(record["similarity"])
		nodes = append(nodes, node)
		if len(nodes) >= options.Limit && options.Limit > 0 {
			break
		}
	}
	return nodes, nil
}

// GetHighestDegreeNodes returns the group's most connected nodes.
func (d *Neo4jDriver) GetHighestDegreeNodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	return d.readNodes(ctx, highestDegreeQuery(), map[string]any{
		"group_id": groupID,
		"limit":    limit,
	})
}

// GetNeighborsByDegree returns each origin's neighbors ordered by degree,
// at most topN per origin.
func (d *Neo4jDriver) GetNeighborsByDegree(ctx context.Context, nodeIDs []string, groupID string, topN int) ([]types.NeighborRecord, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	if len(nodeIDs) == 0 {
		return []types.NeighborRecord{}, nil
	}
	records, err := d.executeRead(ctx, neighborsByDegreeQuery(), map[string]any{
		"node_ids": nodeIDs,
		"group_id": groupID,
		"top_n":    topN,
	})
	if err != nil {
		return nil, err
	}
	neighbors := make([]types.NeighborRecord, 0, len(records))
	for _, record := range records {
		neighbors = append(neighbors, types.NeighborRecord{
			SourceID:     toStringValue(record["source_uuid"]),
			TargetID:     toStringValue(record["target_uuid"]),
			TargetDegree: toInt64Value(record["target_degree"]),
		})
	}
	return neighbors, nil
}

// GetSubgraphEdges returns the directed edges reachable from the given nodes
// within the hop bound, with source out-degrees.
func (d *Neo4jDriver) GetSubgraphEdges(ctx context.Context, nodeIDs []string, groupID string, hops int) ([]types.SubgraphEdge, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	if len(nodeIDs) == 0 {
		return []types.SubgraphEdge{}, nil
	}
	records, err := d.executeRead(ctx, subgraphEdgesQuery(hops), map[string]any{
		"node_ids": nodeIDs,
		"group_id": groupID,
	})
	if err != nil {
		return nil, err
	}
	edges := make([]types.SubgraphEdge, 0, len(records))
	for _, record := range records {
		edges = append(edges, types.SubgraphEdge{
			SourceID:        toStringValue(record["source_uuid"]),
			TargetID:        toStringValue(record["target_uuid"]),
			SourceOutDegree: toInt64Value(record["out_degree"]),
		})
	}
	return edges, nil
}

// GetEvidenceForNodes returns evidence chunks attached to the given nodes.
func (d *Neo4jDriver) GetEvidenceForNodes(ctx context.Context, nodeIDs []string, groupID string, limit int) ([]*types.EvidenceItem, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	if len(nodeIDs) == 0 {
		return []*types.EvidenceItem{}, nil
	}
	records, err := d.executeRead(ctx, evidenceForNodesQuery(), map[string]any{
		"node_ids": nodeIDs,
		"group_id": groupID,
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}
	items := make([]*types.EvidenceItem, 0, len(records))
	for _, record := range records {
		items = append(items, evidenceFromRecord(record, types.OriginGraph, 0))
	}
	return items, nil
}

// SearchEvidenceFulltext returns evidence chunks by full-text relevance.
func (d *Neo4jDriver) SearchEvidenceFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EvidenceItem, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	sanitized := sanitizeFulltext(query)
	if sanitized == "" {
		return []*types.EvidenceItem{}, nil
	}
	records, err := d.executeRead(ctx, fulltextEvidenceQuery(), map[string]any{
		"query":    sanitized,
		"group_id": groupID,
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}
	items := make([]*types.EvidenceItem, 0, len(records))
	for _, record := range records {
		items = append(items, evidenceFromRecord(record, types.OriginFulltext, toFloat64Value(record["relevance"])))
	}
	return items, nil
}

// SearchEvidenceByVector returns evidence chunks by embedding similarity.
func (d *Neo4jDriver) SearchEvidenceByVector(ctx context.Context, vector []float32, groupID string, options *VectorSearchOptions) ([]*types.EvidenceItem, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	records, err := d.executeRead(ctx, vectorEvidenceQuery(), map[string]any{
		"vector":    vector,
		"group_id":  groupID,
		"limit":     options.EffectiveLimit(),
		"min_score": options.MinScore,
	})
	if err != nil {
		return nil, err
	}
	items := make([]*types.EvidenceItem, 0, len(records))
	for _, record := range records {
		items = append(items, evidenceFromRecord(record, types.OriginVector, toFloat64Value(record["similarity"])))
		if len(items) >= options.Limit && options.Limit > 0 {
			break
		}
	}
	return items, nil
}

// GetStats returns graph statistics for one group.
func (d *Neo4jDriver) GetStats(ctx context.Context, groupID string) (*GraphStats, error) {
	if groupID == "" {
		return nil, ErrMissingGroupID
	}
	records, err := d.executeRead(ctx, statsQuery(), map[string]any{
		"group_id": groupID,
	})
	if err != nil {
		return nil, err
	}
	stats := &GraphStats{GroupID: groupID}
	if len(records) > 0 {
		stats.NodeCount = toInt64Value(records[0]["node_count"])
		stats.EdgeCount = toInt64Value(records[0]["edge_count"])
		stats.EvidenceCount = toInt64Value(records[0]["evidence_count"])
	}
	return stats, nil
}

var _ GraphDriver = (*Neo4jDriver)(nil)
