package pipeline

import (
	"testing"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/resolve"
	"github.com/0xnobody/covdiff/internal/store"
)

// TestJoinAndExpand_Idempotent verifies that re-running stages 2 and 3 for a
// sample that was already joined does not change the joined set or error:
// InsertJoinedBlocks relies on (binary_id, bb_rva) being a primary key, so a
// second pass over the same raw coverage must be a no-op.
func TestJoinAndExpand_Idempotent(t *testing.T) {
	cov := newTestStore(t)
	m := newScenarioMaster(t)
	seedScenarioCoverage(t, cov)
	resolver := resolve.New(m, cov)

	run := func() int {
		if _, _, err := JoinCoverage(cov, resolver, store.SampleB, scenarioBinary, []ids.ModuleID{scenarioModule}); err != nil {
			t.Fatalf("join B: %v", err)
		}
		if _, err := ExpandDeterministic(cov, m, store.SampleB, scenarioBinary); err != nil {
			t.Fatalf("expand B: %v", err)
		}
		joined, err := cov.JoinedBlocksByBinary(store.SampleB, scenarioBinary)
		if err != nil {
			t.Fatalf("load joined: %v", err)
		}
		return len(joined)
	}

	first := run()
	second := run()
	if first != second {
		t.Fatalf("joined block count changed across repeated runs: %d then %d", first, second)
	}
	if first != 6 {
		t.Fatalf("joined block count = %d, want 6", first)
	}
}

// TestComputeLabels_Idempotent verifies re-running stage 4 against the same
// joined state produces identical label rows, since WriteLabels uses INSERT
// OR REPLACE keyed by (binary_id, bb_rva).
func TestComputeLabels_Idempotent(t *testing.T) {
	cov := newTestStore(t)
	m := newScenarioMaster(t)
	seedScenarioCoverage(t, cov)
	runThroughLabels(t, cov, m)

	before, err := cov.LabelsByBinary(scenarioBinary)
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}
	if _, err := ComputeLabels(cov, scenarioBinary); err != nil {
		t.Fatalf("recompute labels: %v", err)
	}
	after, err := cov.LabelsByBinary(scenarioBinary)
	if err != nil {
		t.Fatalf("load labels: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("label count changed: %d then %d", len(before), len(after))
	}
	for rva, b := range before {
		a, ok := after[rva]
		if !ok || a != b {
			t.Errorf("label for 0x%x changed: %+v -> %+v (ok=%v)", rva, b, a, ok)
		}
	}
}
