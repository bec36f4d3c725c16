package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/resolve"
	"github.com/0xnobody/covdiff/internal/store"
)

// GraphStats summarizes stage 5 for one binary.
type GraphStats struct {
	Nodes               int
	CFGEdges            int
	CallEdges           int
	ObservedEdges       int
	SkippedEdges        int
	OrphanEdges         int
	TotalCallEdges      int
	UnresolvedCallEdges int
}

// BuildExecutedGraph implements §4.5: construct G_B for one binary from its
// labeled blocks, the master store's static CFG and call edges, and the
// sample B observed-edge stream. resolver resolves raw observed-edge RVAs to
// their containing block, reusing the same memo/cache built during stage 2.
func BuildExecutedGraph(cov *store.Store, m *master.Store, resolver *resolve.Resolver, binaryID ids.BinaryID, moduleIDs []ids.ModuleID) (GraphStats, error) {
	var stats GraphStats

	labels, err := cov.LabelsByBinary(binaryID)
	if err != nil {
		return stats, fmt.Errorf("graph: load labels: %w", err)
	}

	bNodes := make(map[int64]bool, len(labels))
	var nodeRows []store.GraphNode
	var superRootEdges []store.GraphEdge

	for rva, l := range labels {
		if !l.InB {
			continue
		}
		bNodes[rva] = true
		nodeRows = append(nodeRows, store.GraphNode{
			BinaryID: binaryID,
			BBRVA:    rva,
			FuncID:   l.FuncID,
			InA:      l.InA,
			IsNew:    l.IsNew,
		})
		if l.InA {
			superRootEdges = append(superRootEdges, store.GraphEdge{
				BinaryID: binaryID,
				SrcBBRVA: ids.SuperRootRVA,
				DstBBRVA: rva,
				EdgeType: store.EdgeSuperRoot,
			})
		}
	}
	nodeRows = append(nodeRows, store.GraphNode{
		BinaryID: binaryID,
		BBRVA:    ids.SuperRootRVA,
		FuncID:   ids.FuncID(ids.SuperRootFuncID),
		InA:      true,
		IsNew:    false,
	})
	stats.Nodes = len(nodeRows)

	if err := cov.WriteGraphNodes(nodeRows); err != nil {
		return stats, fmt.Errorf("graph: write nodes: %w", err)
	}
	if err := cov.WriteGraphEdges(superRootEdges); err != nil {
		return stats, fmt.Errorf("graph: write super-root edges: %w", err)
	}

	var structuralEdges []store.GraphEdge

	cfgEdges, err := m.CFGEdges(binaryID)
	if err != nil {
		return stats, fmt.Errorf("graph: load cfg edges: %w", err)
	}
	for _, e := range cfgEdges {
		if !master.IsDeterministic(e.EdgeKind) {
			continue
		}
		if !bNodes[e.SrcBBRVA] || !bNodes[e.DstBBRVA] {
			continue
		}
		edgeType := store.EdgeCFGFallthrough
		if e.EdgeKind == master.EdgeBranchUnconditional {
			edgeType = store.EdgeCFGBranchUnconditional
		}
		structuralEdges = append(structuralEdges, store.GraphEdge{
			BinaryID: binaryID, SrcBBRVA: e.SrcBBRVA, DstBBRVA: e.DstBBRVA, EdgeType: edgeType,
		})
		stats.CFGEdges++
	}

	callEdges, err := m.CallEdgesStatic(binaryID)
	if err != nil {
		return stats, fmt.Errorf("graph: load call edges: %w", err)
	}
	stats.TotalCallEdges = len(callEdges)
	for _, c := range callEdges {
		entryRVA, ok, err := m.FunctionEntryRVA(binaryID, c.DstFuncID)
		if err != nil {
			return stats, fmt.Errorf("graph: load function entry: %w", err)
		}
		if !ok {
			// call_edges_static names a func_id the functions table has no
			// row for: a referential integrity violation in the master
			// store, not a normal "not executed" skip.
			stats.UnresolvedCallEdges++
			continue
		}
		if !bNodes[c.SrcBBRVA] || !bNodes[entryRVA] {
			continue
		}
		structuralEdges = append(structuralEdges, store.GraphEdge{
			BinaryID: binaryID, SrcBBRVA: c.SrcBBRVA, DstBBRVA: entryRVA, EdgeType: store.EdgeCallDirect,
		})
		stats.CallEdges++
	}

	for _, moduleID := range moduleIDs {
		edges, err := cov.RawEdgesByModule(store.SampleB, moduleID)
		if err != nil {
			return stats, fmt.Errorf("graph: load observed edges: %w", err)
		}
		for _, e := range edges {
			srcRes, ok, err := resolver.Resolve(binaryID, e.SrcRVA)
			if err != nil {
				return stats, fmt.Errorf("graph: resolve src 0x%x: %w", e.SrcRVA, err)
			}
			if !ok {
				stats.SkippedEdges++
				continue
			}
			dstRes, ok, err := resolver.Resolve(binaryID, e.DstRVA)
			if err != nil {
				return stats, fmt.Errorf("graph: resolve dst 0x%x: %w", e.DstRVA, err)
			}
			if !ok {
				stats.SkippedEdges++
				continue
			}
			if !bNodes[srcRes.BBRVA] || !bNodes[dstRes.BBRVA] {
				stats.SkippedEdges++
				continue
			}
			edgeType := store.EdgeObservedConditional
			if e.SrcRVA != srcRes.BBRVA {
				edgeType = store.EdgeObservedReturnContinue
			}
			structuralEdges = append(structuralEdges, store.GraphEdge{
				BinaryID: binaryID, SrcBBRVA: srcRes.BBRVA, DstBBRVA: dstRes.BBRVA, EdgeType: edgeType,
			})
			stats.ObservedEdges++
		}
	}

	if err := cov.WriteGraphEdges(structuralEdges); err != nil {
		return stats, fmt.Errorf("graph: write structural edges: %w", err)
	}

	hasIncoming := make(map[int64]bool, len(structuralEdges))
	for _, e := range structuralEdges {
		hasIncoming[e.DstBBRVA] = true
	}

	var orphanEdges []store.GraphEdge
	for rva, l := range labels {
		if !l.IsNew || hasIncoming[rva] {
			continue
		}
		orphanEdges = append(orphanEdges, store.GraphEdge{
			BinaryID: binaryID,
			SrcBBRVA: ids.SuperRootRVA,
			DstBBRVA: rva,
			EdgeType: store.EdgeSuperRootOrphan,
		})
	}
	stats.OrphanEdges = len(orphanEdges)
	if err := cov.WriteGraphEdges(orphanEdges); err != nil {
		return stats, fmt.Errorf("graph: write orphan edges: %w", err)
	}

	return stats, nil
}
