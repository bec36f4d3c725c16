package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

// AttributionStats summarizes stage 8a for one binary.
type AttributionStats struct {
	UniqueBlocks int
	SharedBlocks int
}

// AttributeBlocks implements §4.8's block-level attribution: for each new
// block, look up the frontier targets it is reachable from and mark it
// uniquely or shared attributed. Also computes the per-frontier aggregate
// stored in frontier_attribution.
func AttributeBlocks(cov *store.Store, binaryID ids.BinaryID) (AttributionStats, error) {
	var stats AttributionStats

	reach, err := cov.ReachabilityByBinary(binaryID)
	if err != nil {
		return stats, fmt.Errorf("attribution: load reachability: %w", err)
	}
	labels, err := cov.LabelsByBinary(binaryID)
	if err != nil {
		return stats, fmt.Errorf("attribution: load labels: %w", err)
	}

	frontiersByBlock := make(map[int64][]int64)
	for _, r := range reach {
		frontiersByBlock[r.NewBBRVA] = append(frontiersByBlock[r.NewBBRVA], r.FrontierBBRVA)
	}

	type aggKey struct {
		unique map[int64]bool
		shared map[int64]bool
		funcs  map[ids.FuncID]bool
	}
	agg := make(map[int64]*aggKey)
	getAgg := func(frontier int64) *aggKey {
		a, ok := agg[frontier]
		if !ok {
			a = &aggKey{unique: map[int64]bool{}, shared: map[int64]bool{}, funcs: map[ids.FuncID]bool{}}
			agg[frontier] = a
		}
		return a
	}

	var blockRows []store.BlockAttribution
	for newBB, frontiers := range frontiersByBlock {
		funcID := labels[newBB].FuncID
		if len(frontiers) == 1 {
			frontier := frontiers[0]
			a := getAgg(frontier)
			a.unique[newBB] = true
			a.funcs[funcID] = true
			blockRows = append(blockRows, store.BlockAttribution{
				BinaryID: binaryID, NewBBRVA: newBB, FrontierBBRVA: frontier, IsShared: false,
			})
			stats.UniqueBlocks++
		} else {
			for _, frontier := range frontiers {
				a := getAgg(frontier)
				a.shared[newBB] = true
				a.funcs[funcID] = true
			}
			blockRows = append(blockRows, store.BlockAttribution{
				BinaryID: binaryID, NewBBRVA: newBB, IsShared: true,
			})
			stats.SharedBlocks++
		}
	}

	if err := cov.WriteAttribution(blockRows); err != nil {
		return stats, fmt.Errorf("attribution: write bb_attributed_to: %w", err)
	}

	var frontierRows []store.FrontierAttribution
	for frontier, a := range agg {
		frontierRows = append(frontierRows, store.FrontierAttribution{
			BinaryID:            binaryID,
			FrontierBBRVA:       frontier,
			UniqueNewBlockCount: len(a.unique),
			SharedNewBlockCount: len(a.shared),
			TotalNewBlockCount:  len(a.unique) + len(a.shared),
			AttributedFuncCount: len(a.funcs),
		})
	}
	if err := cov.WriteFrontierAttribution(frontierRows); err != nil {
		return stats, fmt.Errorf("attribution: write frontier_attribution: %w", err)
	}

	return stats, nil
}

// AggregateScores implements §4.8's function- and callsite-level rollups.
func AggregateScores(cov *store.Store, binaryID ids.BinaryID) error {
	targets, err := cov.FrontierTargetsByBinary(binaryID)
	if err != nil {
		return fmt.Errorf("scores: load frontier targets: %w", err)
	}
	frontierAgg, err := cov.FrontierAttributionByBinary(binaryID)
	if err != nil {
		return fmt.Errorf("scores: load frontier_attribution: %w", err)
	}
	reach, err := cov.ReachabilityByBinary(binaryID)
	if err != nil {
		return fmt.Errorf("scores: load reachability: %w", err)
	}
	newBlockFrontiers := make(map[int64][]int64)
	for _, r := range reach {
		newBlockFrontiers[r.NewBBRVA] = append(newBlockFrontiers[r.NewBBRVA], r.FrontierBBRVA)
	}

	// funcAcc dedups new blocks reachable from more than one frontier of the
	// same function, matching the COUNT(DISTINCT ...) rollup in the original.
	type funcAcc struct {
		uniqueBlocks map[int64]bool
		sharedBlocks map[int64]bool
		strong       map[int64]bool
		weak         map[int64]bool
	}
	funcAccs := make(map[ids.FuncID]*funcAcc)
	getFuncAcc := func(funcID ids.FuncID) *funcAcc {
		acc, ok := funcAccs[funcID]
		if !ok {
			acc = &funcAcc{uniqueBlocks: map[int64]bool{}, sharedBlocks: map[int64]bool{}, strong: map[int64]bool{}, weak: map[int64]bool{}}
			funcAccs[funcID] = acc
		}
		return acc
	}
	for frontierRVA, target := range targets {
		acc := getFuncAcc(target.FuncID)
		if target.Class == store.FrontierStrong {
			acc.strong[frontierRVA] = true
		} else {
			acc.weak[frontierRVA] = true
		}
	}
	for newBB, frontiers := range newBlockFrontiers {
		for _, frontierRVA := range frontiers {
			target, ok := targets[frontierRVA]
			if !ok {
				return newInvariantError("scores: reachability row for new block 0x%x names frontier 0x%x, which stage 6 never identified as a frontier target", newBB, frontierRVA)
			}
			acc := getFuncAcc(target.FuncID)
			if len(frontiers) == 1 {
				acc.uniqueBlocks[newBB] = true
			} else {
				acc.sharedBlocks[newBB] = true
			}
		}
	}

	var funcRows []store.FunctionUnlockScore
	for funcID, acc := range funcAccs {
		funcRows = append(funcRows, store.FunctionUnlockScore{
			BinaryID:            binaryID,
			FuncID:              funcID,
			UniqueNewBlockCount: len(acc.uniqueBlocks),
			SharedNewBlockCount: len(acc.sharedBlocks),
			TotalNewBlockCount:  len(acc.uniqueBlocks) + len(acc.sharedBlocks),
			StrongFrontierCount: len(acc.strong),
			WeakFrontierCount:   len(acc.weak),
		})
	}
	if err := cov.WriteFunctionUnlockScores(funcRows); err != nil {
		return fmt.Errorf("scores: write function_unlock_scores: %w", err)
	}

	frontierEdges, err := cov.FrontierEdgesByBinary(binaryID)
	if err != nil {
		return fmt.Errorf("scores: load frontier_edges: %w", err)
	}
	labels, err := cov.LabelsByBinary(binaryID)
	if err != nil {
		return fmt.Errorf("scores: load labels: %w", err)
	}

	type callsiteKey struct {
		srcBBRVA  int64
		dstFuncID ids.FuncID
	}
	callsiteAcc := make(map[callsiteKey]*store.CallsiteUnlockScore)
	for _, fe := range frontierEdges {
		if fe.EdgeType == store.EdgeSuperRoot || fe.EdgeType == store.EdgeSuperRootOrphan {
			continue
		}
		dstLabel, ok := labels[fe.DstBBRVA]
		if !ok {
			return newInvariantError("scores: frontier edge 0x%x -> 0x%x targets a block with no bb_labels row", fe.SrcBBRVA, fe.DstBBRVA)
		}
		fa, ok := frontierAgg[fe.DstBBRVA]
		if !ok {
			return newInvariantError("scores: frontier edge 0x%x -> 0x%x targets frontier 0x%x, which has no frontier_attribution row", fe.SrcBBRVA, fe.DstBBRVA, fe.DstBBRVA)
		}
		key := callsiteKey{srcBBRVA: fe.SrcBBRVA, dstFuncID: dstLabel.FuncID}
		cur, ok := callsiteAcc[key]
		if !ok {
			cur = &store.CallsiteUnlockScore{BinaryID: binaryID, SrcBBRVA: fe.SrcBBRVA, DstFuncID: dstLabel.FuncID}
			callsiteAcc[key] = cur
		}
		cur.UniqueNewBlockCount += fa.UniqueNewBlockCount
		cur.SharedNewBlockCount += fa.SharedNewBlockCount
		cur.TotalNewBlockCount += fa.TotalNewBlockCount
	}

	var callsiteRows []store.CallsiteUnlockScore
	for _, c := range callsiteAcc {
		callsiteRows = append(callsiteRows, *c)
	}
	if err := cov.WriteCallsiteUnlockScores(callsiteRows); err != nil {
		return fmt.Errorf("scores: write callsite_unlock_scores: %w", err)
	}

	return nil
}
