package propagation

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// powerIteration runs personalized power iteration over the subgraph
// reachable from the seeds within MaxHops:
//
//	new_rank(v) = (1-d)*p(v) + d * sum over edges u->v of rank(u)/outdeg(u)
//
// initialized at the personalization vector and stopped after
// MaxIterations or when no rank moved more than Epsilon.
func (p *Propagator) powerIteration(ctx context.Context, vector map[string]float64, damping float64, groupID string) (map[string]float64, error) {
	edges, err := p.store.GetSubgraphEdges(ctx, seedIDs(vector), groupID, p.config.MaxHops)
	if err != nil {
		return nil, fmt.Errorf("subgraph export failed: %w", err)
	}

	// Incoming adjacency plus out-degrees over the exported subgraph.
	type inEdge struct {
		source string
		outDeg float64
	}
	incoming := make(map[string][]inEdge)
	nodes := make(map[string]struct{}, len(vector))
	for node := range vector {
		nodes[node] = struct{}{}
	}
	for _, edge := range edges {
		nodes[edge.SourceID] = struct{}{}
		nodes[edge.TargetID] = struct{}{}
		outDeg := float64(edge.SourceOutDegree)
		if outDeg <= 0 {
			outDeg = 1
		}
		incoming[edge.TargetID] = append(incoming[edge.TargetID], inEdge{source: edge.SourceID, outDeg: outDeg})
	}
	// Fixed summation order keeps the scores bit-identical across runs.
	for _, edges := range incoming {
		sort.Slice(edges, func(i, j int) bool { return edges[i].source < edges[j].source })
	}

	rank := make(map[string]float64, len(nodes))
	for node := range nodes {
		rank[node] = vector[node]
	}

	iterations := 0
	for ; iterations < p.config.MaxIterations; iterations++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := make(map[string]float64, len(nodes))
		var maxDelta float64
		for node := range nodes {
			score := (1 - damping) * vector[node]
			for _, edge := range incoming[node] {
				score += damping * rank[edge.source] / edge.outDeg
			}
			next[node] = score
			if delta := math.Abs(score - rank[node]); delta > maxDelta {
				maxDelta = delta
			}
		}
		rank = next
		if maxDelta < p.config.Epsilon {
			iterations++
			break
		}
	}

	p.logger.Debug("power iteration finished",
		"group_id", groupID,
		"nodes", len(nodes),
		"edges", len(edges),
		"iterations", iterations)

	return rank, nil
}
