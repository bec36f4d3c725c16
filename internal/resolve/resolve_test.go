package resolve

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
)

// newTestMaster builds a minimal master store on disk with one binary, one
// function and three basic blocks: [0x1000,0x1010), [0x1010,0x1020), and an
// isolated block at 0x2000 with no following block (exercises the
// no-next-block containing-block path).
func newTestMaster(t *testing.T) *master.Store {
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

		INSERT INTO analyzed_binaries VALUES (1, 'target', 'deadbeef');
		INSERT INTO functions VALUES (1, 100, 'main', 0x1000, 0x1000, 0x1020, 0x20);
		INSERT INTO basic_blocks VALUES (1, 100, 0x1000, 0x1000, 0x1010);
		INSERT INTO basic_blocks VALUES (1, 100, 0x1010, 0x1010, 0x1020);
		INSERT INTO basic_blocks VALUES (1, 100, 0x2000, 0x2000, 0x2008);
	`)
	if err != nil {
		t.Fatalf("create master schema: %v", err)
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

type memCache struct {
	entries map[int64]Result
	puts    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[int64]Result)} }

func (c *memCache) GetResolved(binaryID ids.BinaryID, rva int64) (Result, bool, error) {
	res, ok := c.entries[rva]
	return res, ok, nil
}

func (c *memCache) PutResolved(binaryID ids.BinaryID, rva int64, res Result) error {
	c.entries[rva] = res
	c.puts++
	return nil
}

func TestResolve_ExactMatch(t *testing.T) {
	r := New(newTestMaster(t), nil)
	res, ok, err := r.Resolve(1, 0x1010)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || res.BBRVA != 0x1010 || res.FuncID != 100 {
		t.Fatalf("resolve(0x1010) = %+v, ok=%v; want BBRVA=0x1010 FuncID=100", res, ok)
	}
}

func TestResolve_MidBlockMatch(t *testing.T) {
	r := New(newTestMaster(t), nil)
	res, ok, err := r.Resolve(1, 0x1005)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || res.BBRVA != 0x1000 {
		t.Fatalf("resolve(0x1005) = %+v, ok=%v; want BBRVA=0x1000", res, ok)
	}
}

func TestResolve_OutsideAnyBlockRejected(t *testing.T) {
	r := New(newTestMaster(t), nil)
	// 0x2008 (one past the end of [0x2000,0x2008)) is still accepted as a
	// return address; 0x2009 lies beyond that bound and must not resolve.
	_, ok, err := r.Resolve(1, 0x2009)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Fatalf("resolve(0x2009) should miss, it lies past 0x2000 + size 0x8")
	}
}

func TestResolve_BeforeAnyBlockMisses(t *testing.T) {
	r := New(newTestMaster(t), nil)
	_, ok, err := r.Resolve(1, 0x500)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Fatalf("resolve(0x500) should miss, no block starts at or before it")
	}
}

func TestResolve_CachePopulatedAndReused(t *testing.T) {
	cache := newMemCache()
	r := New(newTestMaster(t), cache)

	if _, ok, err := r.Resolve(1, 0x1005); err != nil || !ok {
		t.Fatalf("first resolve: ok=%v err=%v", ok, err)
	}
	if cache.puts != 1 {
		t.Fatalf("cache.puts = %d, want 1", cache.puts)
	}

	// A fresh resolver sharing the same cache must hit the cache without
	// touching the master store's basic_blocks table again.
	r2 := New(nil, cache)
	res, ok, err := r2.Resolve(1, 0x1005)
	if err != nil {
		t.Fatalf("second resolve via cache: %v", err)
	}
	if !ok || res.BBRVA != 0x1000 {
		t.Fatalf("second resolve = %+v, ok=%v; want cached BBRVA=0x1000", res, ok)
	}
}
