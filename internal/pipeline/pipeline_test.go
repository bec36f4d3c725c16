package pipeline

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/resolve"
	"github.com/0xnobody/covdiff/internal/store"
)

// newTestStore opens a fresh in-memory coverage store with schema applied.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenFresh(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := store.CreateSchema(s); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return s
}

// scenario wires one binary across three functions:
//
//	funcA (10): b1 0x1000 -> b2 0x1010 -> [observed] b3 0x1020
//	funcB (20): entry b10 0x2000 -> [fallthrough] b11 0x2010 -> [call] b20 0x3000
//	funcC (30): b20 0x3000 (entry), also called directly from b2
//
// Sample A covers b1, b2. Sample B directly covers b1, b2, b10 and b20, plus
// an observed conditional edge b2->b3; deterministic expansion then adds b11
// (the fallthrough successor of b10), so the full new set is b3, b10, b11, b20:
//
//	b3  (funcA)  reached only via frontier b2->b3                    -> unique
//	b10 (funcB)  frontier target (b2 calls it directly)               -> strong, unique
//	b11 (funcB)  reachable only through b10                           -> unique (same frontier as b10)
//	b20 (funcC)  reachable through b10 AND is itself a frontier target
//	             entered both from b2 (inA) and from b11 (new)        -> weak frontier, shared block
func newScenarioMaster(t *testing.T) *master.Store {
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

		INSERT INTO functions VALUES (1, 10, 'funcA', 4096, 4096, 4144, 48);
		INSERT INTO functions VALUES (1, 20, 'funcB', 8192, 8192, 8224, 32);
		INSERT INTO functions VALUES (1, 30, 'funcC', 12288, 12288, 12304, 16);

		INSERT INTO basic_blocks VALUES (1, 10, 4096,  4096,  4112);   -- b1 0x1000
		INSERT INTO basic_blocks VALUES (1, 10, 4112,  4112,  4128);   -- b2 0x1010
		INSERT INTO basic_blocks VALUES (1, 10, 4128,  4128,  4144);   -- b3 0x1020
		INSERT INTO basic_blocks VALUES (1, 20, 8192,  8192,  8208);   -- b10 0x2000
		INSERT INTO basic_blocks VALUES (1, 20, 8208,  8208,  8224);   -- b11 0x2010
		INSERT INTO basic_blocks VALUES (1, 30, 12288, 12288, 12304);  -- b20 0x3000

		INSERT INTO cfg_edges VALUES (1, 4096, 4112,  'fallthrough');
		INSERT INTO cfg_edges VALUES (1, 4112, 4128,  'branch_conditional');
		INSERT INTO cfg_edges VALUES (1, 8192, 8208,  'fallthrough');

		INSERT INTO call_edges_static VALUES (1, 4112, 20);
		INSERT INTO call_edges_static VALUES (1, 4112, 30);
		INSERT INTO call_edges_static VALUES (1, 8208, 30);
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
	return m
}

const scenarioBinary ids.BinaryID = 1
const scenarioModule ids.ModuleID = 1

// seedScenarioCoverage writes raw coverage directly into the store,
// bypassing covimport, and wires the module-to-binary mapping a real run of
// stage 1 would have produced.
func seedScenarioCoverage(t *testing.T, cov *store.Store) {
	t.Helper()
	if err := cov.WriteModules([]store.Module{{ModuleID: scenarioModule, Name: "target", SHA256Hash: "hash1"}}); err != nil {
		t.Fatalf("write modules: %v", err)
	}
	if err := cov.WriteModuleBinaryMap([]store.ModuleBinaryMap{{ModuleID: scenarioModule, BinaryID: scenarioBinary}}); err != nil {
		t.Fatalf("write module_binary_map: %v", err)
	}

	if err := cov.InsertRawBlocks(store.SampleA, []store.RawBlockHit{
		{ModuleID: scenarioModule, BBRVA: 4096},
		{ModuleID: scenarioModule, BBRVA: 4112},
	}); err != nil {
		t.Fatalf("seed sample A blocks: %v", err)
	}

	if err := cov.InsertRawBlocks(store.SampleB, []store.RawBlockHit{
		{ModuleID: scenarioModule, BBRVA: 4096},
		{ModuleID: scenarioModule, BBRVA: 4112},
		{ModuleID: scenarioModule, BBRVA: 8192},
		{ModuleID: scenarioModule, BBRVA: 12288},
	}); err != nil {
		t.Fatalf("seed sample B blocks: %v", err)
	}
	if err := cov.InsertRawEdges(store.SampleB, []store.RawEdge{
		{ModuleID: scenarioModule, SrcRVA: 4112, DstRVA: 4128},
	}); err != nil {
		t.Fatalf("seed sample B edges: %v", err)
	}
}

// runThroughLabels drives stages 2-4 (join, expand, labels) for the seeded
// scenario and returns the resolver used, so later tests can feed it into
// stage 5 without re-resolving everything.
func runThroughLabels(t *testing.T, cov *store.Store, m *master.Store) *resolve.Resolver {
	t.Helper()
	resolver := resolve.New(m, cov)
	for _, sample := range []store.Sample{store.SampleA, store.SampleB} {
		if _, _, err := JoinCoverage(cov, resolver, sample, scenarioBinary, []ids.ModuleID{scenarioModule}); err != nil {
			t.Fatalf("join %s: %v", sample, err)
		}
	}
	for _, sample := range []store.Sample{store.SampleA, store.SampleB} {
		if _, err := ExpandDeterministic(cov, m, sample, scenarioBinary); err != nil {
			t.Fatalf("expand %s: %v", sample, err)
		}
	}
	if _, err := ComputeLabels(cov, scenarioBinary); err != nil {
		t.Fatalf("compute labels: %v", err)
	}
	return resolver
}

// runThroughReachability drives stages 5-7 on top of runThroughLabels.
func runThroughReachability(t *testing.T, cov *store.Store, m *master.Store, resolver *resolve.Resolver) {
	t.Helper()
	if _, err := BuildExecutedGraph(cov, m, resolver, scenarioBinary, []ids.ModuleID{scenarioModule}); err != nil {
		t.Fatalf("build graph: %v", err)
	}
	if _, err := IdentifyFrontier(cov, scenarioBinary); err != nil {
		t.Fatalf("identify frontier: %v", err)
	}
	if _, err := ComputeReachability(cov, scenarioBinary); err != nil {
		t.Fatalf("compute reachability: %v", err)
	}
}
