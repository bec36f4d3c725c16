package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

// ComputeReachability implements §4.7: for each frontier target, BFS over
// G_B and record every visited new block.
func ComputeReachability(cov *store.Store, binaryID ids.BinaryID) (int, error) {
	edges, err := cov.GraphEdgesByBinary(binaryID)
	if err != nil {
		return 0, fmt.Errorf("reachability: load graph edges: %w", err)
	}
	adjacency := make(map[int64][]int64)
	for _, e := range edges {
		adjacency[e.SrcBBRVA] = append(adjacency[e.SrcBBRVA], e.DstBBRVA)
	}

	labels, err := cov.LabelsByBinary(binaryID)
	if err != nil {
		return 0, fmt.Errorf("reachability: load labels: %w", err)
	}
	newBlocks := make(map[int64]bool)
	for rva, l := range labels {
		if l.IsNew {
			newBlocks[rva] = true
		}
	}

	targets, err := cov.FrontierTargetsByBinary(binaryID)
	if err != nil {
		return 0, fmt.Errorf("reachability: load frontier targets: %w", err)
	}

	var rows []store.FrontierReachability
	for frontierBB := range targets {
		visited := map[int64]bool{frontierBB: true}
		queue := []int64{frontierBB}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			if newBlocks[current] {
				rows = append(rows, store.FrontierReachability{
					BinaryID:      binaryID,
					FrontierBBRVA: frontierBB,
					NewBBRVA:      current,
				})
			}

			for _, neighbor := range adjacency[current] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
	}

	if err := cov.WriteReachability(rows); err != nil {
		return 0, fmt.Errorf("reachability: write frontier_reachability: %w", err)
	}
	return len(rows), nil
}
