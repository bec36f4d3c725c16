package export

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/pipeline"
	"github.com/0xnobody/covdiff/internal/progress"
	"github.com/0xnobody/covdiff/internal/store"
)

// buildFixture wires one binary with a single function: b1 (old, in both
// samples) followed by b2, discovered only in sample B via an observed
// conditional branch, so it becomes a strong frontier target.
func buildFixture(t *testing.T) (*store.Store, *master.Store) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "master.db")
	setup, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open setup db: %v", err)
	}
	_, err = setup.Exec(`
		CREATE TABLE analyzed_binaries (binary_id INTEGER PRIMARY KEY, binary_name TEXT, sha256_hash TEXT);
		CREATE TABLE functions (binary_id INTEGER, func_id INTEGER, func_name TEXT, entry_rva INTEGER, start_va INTEGER, end_va INTEGER, func_size INTEGER);
		CREATE TABLE basic_blocks (binary_id INTEGER, func_id INTEGER, bb_rva INTEGER, bb_start_va INTEGER, bb_end_va INTEGER);
		CREATE TABLE cfg_edges (binary_id INTEGER, src_bb_rva INTEGER, dst_bb_rva INTEGER, edge_kind TEXT);
		CREATE TABLE call_edges_static (binary_id INTEGER, src_bb_rva INTEGER, dst_func_id INTEGER);

		INSERT INTO analyzed_binaries VALUES (1, 'target', 'hash1');
		INSERT INTO functions VALUES (1, 10, 'entrypoint', 4096, 4096, 4144, 48);
		INSERT INTO basic_blocks VALUES (1, 10, 4096, 4096, 4112);
		INSERT INTO basic_blocks VALUES (1, 10, 4112, 4112, 4128);
		INSERT INTO cfg_edges VALUES (1, 4096, 4112, 'branch_conditional');
	`)
	if err != nil {
		t.Fatalf("seed master db: %v", err)
	}
	if err := setup.Close(); err != nil {
		t.Fatalf("close setup db: %v", err)
	}

	m, err := master.Open(path)
	if err != nil {
		t.Fatalf("open master: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	cov, err := store.OpenFresh(":memory:")
	if err != nil {
		t.Fatalf("open cov store: %v", err)
	}
	t.Cleanup(func() { _ = cov.Close() })
	if err := store.CreateSchema(cov); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	if err := cov.WriteModules([]store.Module{{ModuleID: 1, Name: "target", SHA256Hash: "hash1"}}); err != nil {
		t.Fatalf("write modules: %v", err)
	}
	if err := cov.InsertRawBlocks(store.SampleA, []store.RawBlockHit{{ModuleID: 1, BBRVA: 4096}}); err != nil {
		t.Fatalf("seed sample A: %v", err)
	}
	if err := cov.InsertRawBlocks(store.SampleB, []store.RawBlockHit{{ModuleID: 1, BBRVA: 4096}, {ModuleID: 1, BBRVA: 4112}}); err != nil {
		t.Fatalf("seed sample B: %v", err)
	}
	if err := cov.InsertRawEdges(store.SampleB, []store.RawEdge{{ModuleID: 1, SrcRVA: 4096, DstRVA: 4112}}); err != nil {
		t.Fatalf("seed sample B edge: %v", err)
	}

	prog := progress.New(false)
	if _, err := pipeline.Run(cov, m, prog, pipeline.Options{}, nil); err != nil {
		t.Fatalf("run pipeline: %v", err)
	}

	return cov, m
}

func TestBuildDocument_FieldsAndHexFormatting(t *testing.T) {
	cov, m := buildFixture(t)

	doc, err := BuildDocument(cov, m)
	if err != nil {
		t.Fatalf("build document: %v", err)
	}
	if len(doc.Modules) != 1 {
		t.Fatalf("got %d modules, want 1", len(doc.Modules))
	}
	mod := doc.Modules[0]
	if mod.BinaryName != "target" || mod.SHA256Hash != "hash1" {
		t.Errorf("module metadata = %+v", mod)
	}
	if mod.Status != "changed" {
		t.Errorf("module status = %q, want changed (one old block, one new)", mod.Status)
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(mod.Functions))
	}
	fn := mod.Functions[0]
	if fn.EntryRVA != "0x1000" || fn.StartVA != "0x1000" || fn.EndVA != "0x1030" {
		t.Errorf("function hex fields = %+v", fn)
	}
	if len(fn.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(fn.Blocks))
	}

	byRVA := make(map[string]BlockDoc)
	for _, b := range fn.Blocks {
		byRVA[b.BBRVA] = b
	}
	old, ok := byRVA["0x1000"]
	if !ok || old.Status != "in_both" {
		t.Errorf("block 0x1000 = %+v ok=%v, want status in_both", old, ok)
	}
	neu, ok := byRVA["0x1010"]
	if !ok || neu.Status != "new" {
		t.Errorf("block 0x1010 = %+v ok=%v, want status new", neu, ok)
	}
	if !neu.IsFrontier || neu.FrontierType == nil || *neu.FrontierType != string(store.FrontierStrong) {
		t.Errorf("block 0x1010 should be a strong frontier target, got %+v", neu)
	}
	if !neu.Attribution.IsAttributed || neu.Attribution.IsShared {
		t.Errorf("block 0x1010 attribution = %+v, want attributed and not shared", neu.Attribution)
	}
	if neu.Attribution.FrontierBBRVA == nil || *neu.Attribution.FrontierBBRVA != "0x1010" {
		t.Errorf("block 0x1010 should be attributed to itself as frontier, got %+v", neu.Attribution)
	}

	foundEdge := false
	for _, e := range mod.Edges {
		if e.SrcBBRVA == "0xffffffffffffffff" || e.DstBBRVA == "0xffffffffffffffff" {
			t.Errorf("super-root edge %+v should be excluded from the export", e)
		}
		if e.SrcBBRVA == "0x1000" && e.DstBBRVA == "0x1010" {
			foundEdge = true
			if !e.IsFrontierEdge {
				t.Errorf("edge 0x1000->0x1010 should be marked as a frontier edge")
			}
		}
	}
	if !foundEdge {
		t.Errorf("missing structural edge 0x1000->0x1010 in export, got %+v", mod.Edges)
	}
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	cov, m := buildFixture(t)
	doc, err := BuildDocument(cov, m)
	if err != nil {
		t.Fatalf("build document: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSON(doc, path, true); err != nil {
		t.Fatalf("write json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Version != doc.Version || len(decoded.Modules) != len(doc.Modules) {
		t.Errorf("round trip mismatch: got %+v", decoded)
	}
}
