package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

// ComputeLabels implements §4.4 (diff labeling): for every block appearing
// in either sample's joined set, compute in_A, in_B and
// is_new = in_B && !in_A.
func ComputeLabels(cov *store.Store, binaryID ids.BinaryID) (newCount int, err error) {
	aBlocks, err := cov.JoinedBlocksByBinary(store.SampleA, binaryID)
	if err != nil {
		return 0, fmt.Errorf("labels: load sample A: %w", err)
	}
	bBlocks, err := cov.JoinedBlocksByBinary(store.SampleB, binaryID)
	if err != nil {
		return 0, fmt.Errorf("labels: load sample B: %w", err)
	}

	type flags struct {
		funcID ids.FuncID
		inA    bool
		inB    bool
	}
	merged := make(map[int64]flags)
	for rva, b := range aBlocks {
		merged[rva] = flags{funcID: b.FuncID, inA: true}
	}
	for rva, b := range bBlocks {
		f := merged[rva]
		f.funcID = b.FuncID
		f.inB = true
		merged[rva] = f
	}

	rows := make([]store.BlockLabel, 0, len(merged))
	for rva, f := range merged {
		isNew := f.inB && !f.inA
		if isNew {
			newCount++
		}
		rows = append(rows, store.BlockLabel{
			BinaryID: binaryID,
			BBRVA:    rva,
			FuncID:   f.funcID,
			InA:      f.inA,
			InB:      f.inB,
			IsNew:    isNew,
		})
	}

	if err := cov.WriteLabels(rows); err != nil {
		return 0, fmt.Errorf("labels: write bb_labels: %w", err)
	}
	return newCount, nil
}
