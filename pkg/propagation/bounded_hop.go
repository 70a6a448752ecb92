package propagation

import (
	"context"
	"fmt"
	"sort"

	"github.com/soundprediction/graphrank/pkg/types"
)

// boundedHop expands breadth-first from the seeds to MaxHops. A seed keeps
// its personalization weight; a node first reached at hop h scores its
// parent's score times damping. A node reachable over several paths keeps
// the maximum score, never the sum, so dense regions cannot inflate
// themselves. Fan-out is bounded by keeping only the NeighborTopN
// highest-degree neighbors of each frontier node.
func (p *Propagator) boundedHop(ctx context.Context, vector types.PersonalizationVector, damping float64, groupID string) (map[string]float64, error) {
	scores := make(map[string]float64, len(vector))
	for node, weight := range vector {
		scores[node] = weight
	}

	frontier := seedIDs(vector)
	for hop := 1; hop <= p.config.MaxHops && len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		neighbors, err := p.store.GetNeighborsByDegree(ctx, frontier, groupID, p.config.NeighborTopN)
		if err != nil {
			return nil, fmt.Errorf("neighbor expansion at hop %d failed: %w", hop, err)
		}

		// Parent scores are read from a snapshot so updates within this
		// hop cannot feed back into it.
		parents := make(map[string]float64, len(frontier))
		for _, node := range frontier {
			parents[node] = scores[node]
		}

		next := make(map[string]struct{})
		for _, record := range neighbors {
			parent, ok := parents[record.SourceID]
			if !ok {
				continue
			}
			candidate := parent * damping
			existing, seen := scores[record.TargetID]
			if !seen {
				next[record.TargetID] = struct{}{}
			}
			if !seen || candidate > existing {
				scores[record.TargetID] = candidate
			}
		}

		frontier = frontier[:0]
		for node := range next {
			frontier = append(frontier, node)
		}
		sort.Strings(frontier)
	}

	return scores, nil
}
