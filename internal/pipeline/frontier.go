package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

// FrontierStats summarizes stage 6 for one binary.
type FrontierStats struct {
	Strong int
	Weak   int
}

// IdentifyFrontier implements §4.6: find every frontier edge (A-covered ->
// new, or super_root_orphan), then classify each distinct target as strong
// or weak.
func IdentifyFrontier(cov *store.Store, binaryID ids.BinaryID) (FrontierStats, error) {
	var stats FrontierStats

	labels, err := cov.LabelsByBinary(binaryID)
	if err != nil {
		return stats, fmt.Errorf("frontier: load labels: %w", err)
	}
	edges, err := cov.GraphEdgesByBinary(binaryID)
	if err != nil {
		return stats, fmt.Errorf("frontier: load graph edges: %w", err)
	}

	var frontierEdges []store.FrontierEdge
	incomingByDst := make(map[int64][]store.GraphEdge)
	for _, e := range edges {
		incomingByDst[e.DstBBRVA] = append(incomingByDst[e.DstBBRVA], e)

		if e.EdgeType == store.EdgeSuperRootOrphan {
			frontierEdges = append(frontierEdges, store.FrontierEdge(e))
			continue
		}
		if e.EdgeType == store.EdgeSuperRoot {
			continue
		}
		srcLabel, ok := labels[e.SrcBBRVA]
		if !ok || !srcLabel.InA {
			continue
		}
		dstLabel, ok := labels[e.DstBBRVA]
		if !ok || !dstLabel.IsNew {
			continue
		}
		frontierEdges = append(frontierEdges, store.FrontierEdge(e))
	}
	if err := cov.WriteFrontierEdges(frontierEdges); err != nil {
		return stats, fmt.Errorf("frontier: write frontier_edges: %w", err)
	}

	candidates := make(map[int64]bool)
	for _, fe := range frontierEdges {
		candidates[fe.DstBBRVA] = true
	}

	var targets []store.FrontierTarget
	for bbRVA := range candidates {
		label, ok := labels[bbRVA]
		if !ok {
			continue
		}

		isOrphanEntered := false
		hasAEdge := false
		hasNewEdge := false
		for _, in := range incomingByDst[bbRVA] {
			if in.EdgeType == store.EdgeSuperRootOrphan {
				isOrphanEntered = true
				continue
			}
			if in.EdgeType == store.EdgeSuperRoot {
				continue
			}
			srcLabel, ok := labels[in.SrcBBRVA]
			if !ok {
				continue
			}
			if srcLabel.InA {
				hasAEdge = true
			}
			if srcLabel.IsNew {
				hasNewEdge = true
			}
		}

		class := store.FrontierWeak
		if !isOrphanEntered && hasAEdge && !hasNewEdge {
			class = store.FrontierStrong
		}
		if class == store.FrontierStrong {
			stats.Strong++
		} else {
			stats.Weak++
		}

		targets = append(targets, store.FrontierTarget{
			BinaryID: binaryID,
			BBRVA:    bbRVA,
			FuncID:   label.FuncID,
			Class:    class,
		})
	}

	if err := cov.WriteFrontierTargets(targets); err != nil {
		return stats, fmt.Errorf("frontier: write frontier_targets: %w", err)
	}
	return stats, nil
}
