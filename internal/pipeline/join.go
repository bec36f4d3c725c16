package pipeline

import (
	"fmt"
	"sort"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/report"
	"github.com/0xnobody/covdiff/internal/resolve"
	"github.com/0xnobody/covdiff/internal/store"
)

// JoinStats summarizes stage 2 for one binary and sample.
type JoinStats struct {
	TotalInput       int
	ResolvedDirect   int
	ResolvedMidBlock int
	Unresolved       int
}

// JoinCoverage implements §4.3: collect every RVA recorded for binaryID in
// sample (block hits plus both endpoints of observed edges), deduplicate,
// resolve each via resolver, and write the resolved block identities into
// cov_{sample}_blocks_joined.
func JoinCoverage(cov *store.Store, resolver *resolve.Resolver, sample store.Sample, binaryID ids.BinaryID, moduleIDs []ids.ModuleID) (JoinStats, []report.MissingEntry, error) {
	var stats JoinStats
	seen := make(map[int64]bool)
	var rvas []int64

	addRVA := func(rva int64) {
		stats.TotalInput++
		if !seen[rva] {
			seen[rva] = true
			rvas = append(rvas, rva)
		}
	}

	for _, moduleID := range moduleIDs {
		blocks, err := cov.RawBlocksByModule(sample, moduleID)
		if err != nil {
			return stats, nil, fmt.Errorf("join: load raw blocks for module %d: %w", moduleID, err)
		}
		for _, rva := range blocks {
			addRVA(rva)
		}

		edges, err := cov.RawEdgesByModule(sample, moduleID)
		if err != nil {
			return stats, nil, fmt.Errorf("join: load raw edges for module %d: %w", moduleID, err)
		}
		for _, e := range edges {
			addRVA(e.SrcRVA)
			addRVA(e.DstRVA)
		}
	}

	sort.Slice(rvas, func(i, j int) bool { return rvas[i] < rvas[j] })

	var rows []store.JoinedBlock
	var missing []report.MissingEntry
	for _, rva := range rvas {
		res, ok, err := resolver.Resolve(binaryID, rva)
		if err != nil {
			return stats, nil, fmt.Errorf("join: resolve binary %d rva 0x%x: %w", binaryID, rva, err)
		}
		if !ok {
			stats.Unresolved++
			bin := binaryID
			var moduleID ids.ModuleID
			if len(moduleIDs) > 0 {
				moduleID = moduleIDs[0]
			}
			missing = append(missing, report.MissingEntry{
				ModuleID:       moduleID,
				BinaryID:       &bin,
				InstructionRVA: rva,
				Reason:         report.ReasonNotFoundInStaticAnalysis,
			})
			continue
		}
		if res.BBRVA == rva {
			stats.ResolvedDirect++
		} else {
			stats.ResolvedMidBlock++
		}
		rows = append(rows, store.JoinedBlock{
			BinaryID: binaryID,
			FuncID:   res.FuncID,
			BBRVA:    res.BBRVA,
		})
	}

	if err := cov.InsertJoinedBlocks(sample, rows); err != nil {
		return stats, nil, fmt.Errorf("join: write joined blocks: %w", err)
	}

	return stats, missing, nil
}
