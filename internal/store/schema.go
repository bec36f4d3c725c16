// Package store implements the read-write coverage/analysis store: raw
// coverage tables plus every table derived by the pipeline stages. It is
// opened and bulk-written with zombiezen.com/go/sqlite and sqlitex, using the
// same pragma set and "tables first, indexes after" sequencing as the CPG
// generator's own database writer.
package store

import (
	"fmt"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Store is a single-writer handle to the coverage/analysis database. The
// pipeline is single-threaded per store (§5): callers that want per-binary
// parallelism open one Store per goroutine against the same file and rely on
// SQLite's own locking, never sharing a *Store across goroutines.
type Store struct {
	conn *sqlite.Conn
}

// Open creates (if necessary) and opens the coverage store at path, applying
// the performance pragmas recommended for a single-writer batch workload.
func Open(path string) (*Store, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open coverage store: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA cache_size = -64000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = OFF",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return &Store{conn: conn}, nil
}

// OpenFresh removes any existing file at path before opening, for test
// fixtures that want a clean store each run.
func OpenFresh(path string) (*Store, error) {
	if path != ":memory:" {
		_ = os.Remove(path)
	}
	return Open(path)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn exposes the underlying connection for callers that need sqlitex
// helpers directly.
func (s *Store) Conn() *sqlite.Conn {
	return s.conn
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
    module_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    sha256_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cov_A_blocks (
    module_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cov_A_edges (
    module_id INTEGER NOT NULL,
    src_bb_rva INTEGER NOT NULL,
    dst_bb_rva INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cov_B_blocks (
    module_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cov_B_edges (
    module_id INTEGER NOT NULL,
    src_bb_rva INTEGER NOT NULL,
    dst_bb_rva INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS module_binary_map (
    module_id INTEGER PRIMARY KEY,
    binary_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS unmapped_modules (
    module_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    sha256_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rva_to_bb_cache (
    binary_id INTEGER NOT NULL,
    rva INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    PRIMARY KEY (binary_id, rva)
);

CREATE TABLE IF NOT EXISTS cov_A_blocks_joined (
    binary_id INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL,
    PRIMARY KEY (binary_id, bb_rva)
);

CREATE TABLE IF NOT EXISTS cov_B_blocks_joined (
    binary_id INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL,
    PRIMARY KEY (binary_id, bb_rva)
);

CREATE TABLE IF NOT EXISTS bb_labels (
    binary_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    in_a INTEGER NOT NULL,
    in_b INTEGER NOT NULL,
    is_new INTEGER NOT NULL,
    PRIMARY KEY (binary_id, bb_rva)
);

CREATE TABLE IF NOT EXISTS graph_B_nodes (
    binary_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    in_a INTEGER NOT NULL,
    is_new INTEGER NOT NULL,
    PRIMARY KEY (binary_id, bb_rva)
);

CREATE TABLE IF NOT EXISTS graph_B_edges (
    binary_id INTEGER NOT NULL,
    src_bb_rva INTEGER NOT NULL,
    dst_bb_rva INTEGER NOT NULL,
    edge_type TEXT NOT NULL,
    PRIMARY KEY (binary_id, src_bb_rva, dst_bb_rva, edge_type)
);

CREATE TABLE IF NOT EXISTS frontier_edges (
    binary_id INTEGER NOT NULL,
    src_bb_rva INTEGER NOT NULL,
    dst_bb_rva INTEGER NOT NULL,
    edge_type TEXT NOT NULL,
    PRIMARY KEY (binary_id, src_bb_rva, dst_bb_rva, edge_type)
);

CREATE TABLE IF NOT EXISTS frontier_targets (
    binary_id INTEGER NOT NULL,
    bb_rva INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    class TEXT NOT NULL,
    PRIMARY KEY (binary_id, bb_rva)
);

CREATE TABLE IF NOT EXISTS frontier_reachability (
    binary_id INTEGER NOT NULL,
    frontier_bb_rva INTEGER NOT NULL,
    new_bb_rva INTEGER NOT NULL,
    PRIMARY KEY (binary_id, frontier_bb_rva, new_bb_rva)
);

CREATE TABLE IF NOT EXISTS bb_attributed_to (
    binary_id INTEGER NOT NULL,
    new_bb_rva INTEGER NOT NULL,
    frontier_bb_rva INTEGER,
    is_shared INTEGER NOT NULL,
    PRIMARY KEY (binary_id, new_bb_rva)
);

CREATE TABLE IF NOT EXISTS frontier_attribution (
    binary_id INTEGER NOT NULL,
    frontier_bb_rva INTEGER NOT NULL,
    unique_new_block_count INTEGER NOT NULL,
    shared_new_block_count INTEGER NOT NULL,
    total_new_block_count INTEGER NOT NULL,
    attributed_func_count INTEGER NOT NULL,
    PRIMARY KEY (binary_id, frontier_bb_rva)
);

CREATE TABLE IF NOT EXISTS function_unlock_scores (
    binary_id INTEGER NOT NULL,
    func_id INTEGER NOT NULL,
    unique_new_block_count INTEGER NOT NULL,
    shared_new_block_count INTEGER NOT NULL,
    total_new_block_count INTEGER NOT NULL,
    strong_frontier_count INTEGER NOT NULL,
    weak_frontier_count INTEGER NOT NULL,
    PRIMARY KEY (binary_id, func_id)
);

CREATE TABLE IF NOT EXISTS callsite_unlock_scores (
    binary_id INTEGER NOT NULL,
    src_bb_rva INTEGER NOT NULL,
    dst_func_id INTEGER NOT NULL,
    unique_new_block_count INTEGER NOT NULL,
    shared_new_block_count INTEGER NOT NULL,
    total_new_block_count INTEGER NOT NULL,
    PRIMARY KEY (binary_id, src_bb_rva, dst_func_id)
);
`

// CreateSchema creates every coverage-store table if it does not already
// exist. Tables are created without secondary indexes; call CreateIndexes
// after the pipeline has populated them.
func CreateSchema(s *Store) error {
	return sqlitex.ExecuteScript(s.conn, schemaDDL, nil)
}

const indexDDL = `
CREATE INDEX IF NOT EXISTS idx_cov_a_blocks_module ON cov_A_blocks(module_id);
CREATE INDEX IF NOT EXISTS idx_cov_b_blocks_module ON cov_B_blocks(module_id);
CREATE INDEX IF NOT EXISTS idx_cov_a_edges_module ON cov_A_edges(module_id);
CREATE INDEX IF NOT EXISTS idx_cov_b_edges_module ON cov_B_edges(module_id);
CREATE INDEX IF NOT EXISTS idx_bb_labels_binary ON bb_labels(binary_id);
CREATE INDEX IF NOT EXISTS idx_graph_b_edges_src ON graph_B_edges(binary_id, src_bb_rva);
CREATE INDEX IF NOT EXISTS idx_graph_b_edges_dst ON graph_B_edges(binary_id, dst_bb_rva);
CREATE INDEX IF NOT EXISTS idx_frontier_reach_frontier ON frontier_reachability(binary_id, frontier_bb_rva);
CREATE INDEX IF NOT EXISTS idx_frontier_reach_new ON frontier_reachability(binary_id, new_bb_rva);
`

// CreateIndexes creates secondary indexes over the raw coverage, label,
// graph and reachability tables for readers that run after the pipeline
// (export, repeated runs). covanalyze calls it once the pipeline has finished
// populating the tables above, following the "bulk insert, then index"
// sequencing; the pipeline stages themselves run without these indexes.
func CreateIndexes(s *Store) error {
	return sqlitex.ExecuteScript(s.conn, indexDDL, nil)
}

// WithTransaction runs fn inside an immediate transaction, committing on
// success and rolling back if fn (or the commit itself) returns an error.
func (s *Store) WithTransaction(fn func() error) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(s.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)
	err = fn()
	return err
}
