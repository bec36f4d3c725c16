package pipeline

import (
	"testing"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

func TestIdentifyFrontier_StrongAndWeakClassification(t *testing.T) {
	cov := newTestStore(t)
	m := newScenarioMaster(t)
	seedScenarioCoverage(t, cov)
	resolver := runThroughLabels(t, cov, m)

	if _, err := BuildExecutedGraph(cov, m, resolver, scenarioBinary, []ids.ModuleID{scenarioModule}); err != nil {
		t.Fatalf("build graph: %v", err)
	}
	stats, err := IdentifyFrontier(cov, scenarioBinary)
	if err != nil {
		t.Fatalf("identify frontier: %v", err)
	}

	targets, err := cov.FrontierTargetsByBinary(scenarioBinary)
	if err != nil {
		t.Fatalf("load frontier targets: %v", err)
	}

	// b3 (0x1020) and b10 (0x2000) are entered only from A-covered blocks:
	// strong. b20 (0x3000) is entered from both an A-covered block (b2, the
	// direct call) and a newly-covered block (b11's call), so its
	// provenance is ambiguous: weak.
	wantStrong := map[int64]bool{4128: true, 8192: true}
	wantWeak := map[int64]bool{12288: true}

	for rva := range wantStrong {
		target, ok := targets[rva]
		if !ok || target.Class != store.FrontierStrong {
			t.Errorf("target 0x%x: got %+v ok=%v, want strong", rva, target, ok)
		}
	}
	for rva := range wantWeak {
		target, ok := targets[rva]
		if !ok || target.Class != store.FrontierWeak {
			t.Errorf("target 0x%x: got %+v ok=%v, want weak", rva, target, ok)
		}
	}
	if stats.Strong != len(wantStrong) {
		t.Errorf("stats.Strong = %d, want %d", stats.Strong, len(wantStrong))
	}
	if stats.Weak != len(wantWeak) {
		t.Errorf("stats.Weak = %d, want %d", stats.Weak, len(wantWeak))
	}

	// 0x2010 (b11) is never entered from an A-covered block, so it must not
	// appear as a frontier target at all even though it is itself new.
	if _, ok := targets[8208]; ok {
		t.Errorf("0x2010 should not be a frontier target, only reachable through one")
	}
}
