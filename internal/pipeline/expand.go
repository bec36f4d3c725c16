package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/store"
)

// successor is one outgoing CFG edge used during expansion.
type successor struct {
	dst  int64
	kind string
}

// ExpandDeterministic implements §4.4: forward-walk the static CFG from each
// covered block along single-successor fallthrough/branch_unconditional
// edges, reconstructing the intermediate blocks coverage instrumentation
// never recorded. Returns the number of newly discovered blocks.
func ExpandDeterministic(cov *store.Store, m *master.Store, sample store.Sample, binaryID ids.BinaryID) (int, error) {
	covered, err := cov.JoinedBlocksByBinary(sample, binaryID)
	if err != nil {
		return 0, fmt.Errorf("expand: load joined blocks: %w", err)
	}

	cfgEdges, err := m.CFGEdges(binaryID)
	if err != nil {
		return 0, fmt.Errorf("expand: load cfg edges: %w", err)
	}
	cfg := make(map[int64][]successor)
	for _, e := range cfgEdges {
		cfg[e.SrcBBRVA] = append(cfg[e.SrcBBRVA], successor{dst: e.DstBBRVA, kind: e.EdgeKind})
	}

	newlyDiscovered := make(map[int64]bool)

	for startBB := range covered {
		visitedFromStart := map[int64]bool{startBB: true}
		queue := []int64{startBB}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			succs, ok := cfg[current]
			if !ok || len(succs) != 1 {
				continue
			}
			succ := succs[0]
			if !master.IsDeterministic(succ.kind) {
				continue
			}
			if visitedFromStart[succ.dst] {
				continue
			}
			visitedFromStart[succ.dst] = true

			if _, alreadyCovered := covered[succ.dst]; alreadyCovered {
				continue
			}
			newlyDiscovered[succ.dst] = true
			queue = append(queue, succ.dst)
		}
	}

	if len(newlyDiscovered) == 0 {
		return 0, nil
	}

	rvas := make([]int64, 0, len(newlyDiscovered))
	for rva := range newlyDiscovered {
		rvas = append(rvas, rva)
	}
	blocks, err := m.BasicBlocksByRVAs(binaryID, rvas)
	if err != nil {
		return 0, fmt.Errorf("expand: load discovered blocks: %w", err)
	}

	var rows []store.JoinedBlock
	for _, rva := range rvas {
		bb, ok := blocks[rva]
		if !ok {
			continue
		}
		rows = append(rows, store.JoinedBlock{
			BinaryID: binaryID,
			FuncID:   bb.FuncID,
			BBRVA:    rva,
		})
	}

	if err := cov.InsertJoinedBlocks(sample, rows); err != nil {
		return 0, fmt.Errorf("expand: write discovered blocks: %w", err)
	}

	return len(rows), nil
}
