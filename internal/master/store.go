// Package master provides a read-only query surface over the static-analysis
// store: analyzed_binaries, functions, basic_blocks, cfg_edges and
// call_edges_static. The core pipeline never writes to this database — it is
// populated by an external static-analysis producer.
package master

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/0xnobody/covdiff/internal/ids"
)

// Store wraps a read-only handle to the master store.
type Store struct {
	db *sql.DB
}

// Open opens the master store at path. The database is never written to by
// this package, but sqlite itself is opened read-write so that ATTACH-based
// test fixtures and WAL recovery on crash-closed files work normally.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open master store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping master store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BinaryByHash looks up an analyzed binary by its content hash.
func (s *Store) BinaryByHash(sha256Hash string) (AnalyzedBinary, bool, error) {
	row := s.db.QueryRow(
		`SELECT binary_id, binary_name, sha256_hash FROM analyzed_binaries WHERE sha256_hash = ?`,
		sha256Hash,
	)
	var b AnalyzedBinary
	if err := row.Scan(&b.BinaryID, &b.BinaryName, &b.SHA256Hash); err != nil {
		if err == sql.ErrNoRows {
			return AnalyzedBinary{}, false, nil
		}
		return AnalyzedBinary{}, false, fmt.Errorf("lookup binary by hash: %w", err)
	}
	return b, true, nil
}

// Binary looks up an analyzed binary by its ID, for export metadata.
func (s *Store) Binary(binaryID ids.BinaryID) (AnalyzedBinary, bool, error) {
	row := s.db.QueryRow(
		`SELECT binary_id, binary_name, sha256_hash FROM analyzed_binaries WHERE binary_id = ?`,
		int64(binaryID),
	)
	var b AnalyzedBinary
	if err := row.Scan(&b.BinaryID, &b.BinaryName, &b.SHA256Hash); err != nil {
		if err == sql.ErrNoRows {
			return AnalyzedBinary{}, false, nil
		}
		return AnalyzedBinary{}, false, fmt.Errorf("lookup binary: %w", err)
	}
	return b, true, nil
}

// ExactBlock returns the block whose bb_rva exactly equals rva, if any.
func (s *Store) ExactBlock(binaryID ids.BinaryID, rva int64) (bbRVA int64, funcID ids.FuncID, ok bool, err error) {
	row := s.db.QueryRow(
		`SELECT bb_rva, func_id FROM basic_blocks WHERE binary_id = ? AND bb_rva = ?`,
		int64(binaryID), rva,
	)
	if err := row.Scan(&bbRVA, &funcID); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("exact block lookup: %w", err)
	}
	return bbRVA, funcID, true, nil
}

// ContainingBlock finds the block with the greatest bb_rva <= rva in the
// given binary, along with its size. The caller is responsible for applying
// the §4.2 acceptance test (rva <= bb_rva + size).
func (s *Store) ContainingBlock(binaryID ids.BinaryID, rva int64) (bbRVA int64, funcID ids.FuncID, size int64, ok bool, err error) {
	row := s.db.QueryRow(`
		SELECT bb_rva, func_id, bb_end_va - bb_start_va
		FROM basic_blocks
		WHERE binary_id = ? AND bb_rva <= ?
		ORDER BY bb_rva DESC
		LIMIT 1`,
		int64(binaryID), rva,
	)
	if err := row.Scan(&bbRVA, &funcID, &size); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, 0, false, nil
		}
		return 0, 0, 0, false, fmt.Errorf("containing block lookup: %w", err)
	}
	return bbRVA, funcID, size, true, nil
}

// CFGEdges returns all CFG edges for a binary.
func (s *Store) CFGEdges(binaryID ids.BinaryID) ([]CFGEdge, error) {
	rows, err := s.db.Query(
		`SELECT src_bb_rva, dst_bb_rva, COALESCE(edge_kind, '') FROM cfg_edges WHERE binary_id = ?`,
		int64(binaryID),
	)
	if err != nil {
		return nil, fmt.Errorf("query cfg_edges: %w", err)
	}
	defer rows.Close()

	var edges []CFGEdge
	for rows.Next() {
		e := CFGEdge{BinaryID: binaryID}
		if err := rows.Scan(&e.SrcBBRVA, &e.DstBBRVA, &e.EdgeKind); err != nil {
			return nil, fmt.Errorf("scan cfg_edges: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CallEdgesStatic returns all resolved direct call sites for a binary.
func (s *Store) CallEdgesStatic(binaryID ids.BinaryID) ([]CallEdgeStatic, error) {
	rows, err := s.db.Query(
		`SELECT src_bb_rva, dst_func_id FROM call_edges_static WHERE binary_id = ? AND dst_func_id IS NOT NULL`,
		int64(binaryID),
	)
	if err != nil {
		return nil, fmt.Errorf("query call_edges_static: %w", err)
	}
	defer rows.Close()

	var edges []CallEdgeStatic
	for rows.Next() {
		e := CallEdgeStatic{BinaryID: binaryID}
		if err := rows.Scan(&e.SrcBBRVA, &e.DstFuncID); err != nil {
			return nil, fmt.Errorf("scan call_edges_static: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// FunctionEntryRVA returns the entry RVA of a function, if known.
func (s *Store) FunctionEntryRVA(binaryID ids.BinaryID, funcID ids.FuncID) (int64, bool, error) {
	row := s.db.QueryRow(
		`SELECT entry_rva FROM functions WHERE binary_id = ? AND func_id = ?`,
		int64(binaryID), int64(funcID),
	)
	var rva int64
	if err := row.Scan(&rva); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("function entry rva: %w", err)
	}
	return rva, true, nil
}

// Function returns full metadata for one function.
func (s *Store) Function(binaryID ids.BinaryID, funcID ids.FuncID) (Function, bool, error) {
	row := s.db.QueryRow(`
		SELECT func_id, func_name, entry_rva, start_va, end_va, func_size
		FROM functions
		WHERE binary_id = ? AND func_id = ?`,
		int64(binaryID), int64(funcID),
	)
	f := Function{BinaryID: binaryID}
	if err := row.Scan(&f.FuncID, &f.FuncName, &f.EntryRVA, &f.StartVA, &f.EndVA, &f.FuncSize); err != nil {
		if err == sql.ErrNoRows {
			return Function{}, false, nil
		}
		return Function{}, false, fmt.Errorf("function lookup: %w", err)
	}
	return f, true, nil
}

// FunctionsByIDs batches Function lookups for export.
func (s *Store) FunctionsByIDs(binaryID ids.BinaryID, funcIDs []ids.FuncID) (map[ids.FuncID]Function, error) {
	out := make(map[ids.FuncID]Function, len(funcIDs))
	if len(funcIDs) == 0 {
		return out, nil
	}
	placeholders, args := inClause(int64(binaryID), funcIDsToInt64(funcIDs))
	rows, err := s.db.Query(
		`SELECT func_id, func_name, entry_rva, start_va, end_va, func_size
		 FROM functions WHERE binary_id = ? AND func_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query functions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		f := Function{BinaryID: binaryID}
		if err := rows.Scan(&f.FuncID, &f.FuncName, &f.EntryRVA, &f.StartVA, &f.EndVA, &f.FuncSize); err != nil {
			return nil, fmt.Errorf("scan functions: %w", err)
		}
		out[f.FuncID] = f
	}
	return out, rows.Err()
}

// BasicBlocksByRVAs batches BasicBlock lookups for export.
func (s *Store) BasicBlocksByRVAs(binaryID ids.BinaryID, rvas []int64) (map[int64]BasicBlock, error) {
	out := make(map[int64]BasicBlock, len(rvas))
	if len(rvas) == 0 {
		return out, nil
	}
	placeholders, args := inClause(int64(binaryID), rvas)
	rows, err := s.db.Query(
		`SELECT bb_rva, func_id, bb_start_va, bb_end_va
		 FROM basic_blocks WHERE binary_id = ? AND bb_rva IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query basic_blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		b := BasicBlock{BinaryID: binaryID}
		if err := rows.Scan(&b.BBRVA, &b.FuncID, &b.BBStartVA, &b.BBEndVA); err != nil {
			return nil, fmt.Errorf("scan basic_blocks: %w", err)
		}
		out[b.BBRVA] = b
	}
	return out, rows.Err()
}

// HasDirectCallTo reports whether any static call edge targets funcID within
// binaryID, used for the is_indirectly_called export heuristic (§4.9).
func (s *Store) HasDirectCallTo(binaryID ids.BinaryID, funcID ids.FuncID) (bool, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*) FROM call_edges_static WHERE binary_id = ? AND dst_func_id = ?`,
		int64(binaryID), int64(funcID),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count direct calls: %w", err)
	}
	return count > 0, nil
}

func inClause(first int64, rest []int64) (string, []any) {
	placeholders := make([]byte, 0, len(rest)*2)
	args := make([]any, 0, len(rest)+1)
	args = append(args, first)
	for i, v := range rest {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, v)
	}
	return string(placeholders), args
}

func funcIDsToInt64(funcIDs []ids.FuncID) []int64 {
	out := make([]int64, len(funcIDs))
	for i, f := range funcIDs {
		out[i] = int64(f)
	}
	return out
}
