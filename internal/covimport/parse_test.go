package covimport

import (
	"strings"
	"testing"

	"github.com/0xnobody/covdiff/internal/store"
)

func TestParseCoverageFile_DirectBlockHit(t *testing.T) {
	res, err := ParseCoverageFile(strings.NewReader("libfoo.so+1a2b\n"), map[string]bool{"libfoo.so": true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.TotalLines != 1 {
		t.Fatalf("total lines = %d, want 1", res.TotalLines)
	}
	hits := res.BlocksByModule["libfoo.so"]
	if len(hits) != 1 || hits[0] != 0x1a2b {
		t.Fatalf("blocks = %v, want [0x1a2b]", hits)
	}
	if len(res.EdgesByModule) != 0 {
		t.Fatalf("unexpected edges: %v", res.EdgesByModule)
	}
}

func TestParseCoverageFile_ObservedEdge(t *testing.T) {
	// high 32 bits = src rva, low 32 bits = dst rva.
	line := "libfoo.so+0000000a00000014\n"
	res, err := ParseCoverageFile(strings.NewReader(line), map[string]bool{"libfoo.so": true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	edges := res.EdgesByModule["libfoo.so"]
	if len(edges) != 1 {
		t.Fatalf("edges = %v, want 1 entry", edges)
	}
	if edges[0] != (store.RawEdge{SrcRVA: 0xa, DstRVA: 0x14}) {
		t.Fatalf("edge = %+v, want {SrcRVA:0xa DstRVA:0x14}", edges[0])
	}
}

func TestParseCoverageFile_UnknownModuleDropped(t *testing.T) {
	res, err := ParseCoverageFile(strings.NewReader("unknown.so+10\n"), map[string]bool{"libfoo.so": true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.UnknownModules["unknown.so"] != 1 {
		t.Fatalf("unknown modules = %v, want unknown.so:1", res.UnknownModules)
	}
	if len(res.BlocksByModule) != 0 {
		t.Fatalf("unexpected blocks recorded for unknown module: %v", res.BlocksByModule)
	}
}

func TestParseCoverageFile_MalformedLineCounted(t *testing.T) {
	res, err := ParseCoverageFile(strings.NewReader("not-a-valid-line\nlibfoo.so+zz\n"), map[string]bool{"libfoo.so": true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.MalformedLines != 2 {
		t.Fatalf("malformed lines = %d, want 2", res.MalformedLines)
	}
	if res.TotalLines != 2 {
		t.Fatalf("total lines = %d, want 2", res.TotalLines)
	}
}

func TestParseCoverageFile_BlankLinesSkipped(t *testing.T) {
	res, err := ParseCoverageFile(strings.NewReader("\n\nlibfoo.so+1\n\n"), map[string]bool{"libfoo.so": true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.TotalLines != 1 {
		t.Fatalf("total lines = %d, want 1 (blank lines must not count)", res.TotalLines)
	}
}

func TestAssignModuleIDs_Deterministic(t *testing.T) {
	m := ModuleMap{"b.so": "hashB", "a.so": "hashA"}
	first := AssignModuleIDs(m)
	second := AssignModuleIDs(m)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 modules, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic assignment: %+v vs %+v", first[i], second[i])
		}
	}
	if first[0].Name != "a.so" || first[1].Name != "b.so" {
		t.Fatalf("expected sorted order, got %+v", first)
	}
}
