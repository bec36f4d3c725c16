package store

import (
	"fmt"
	"sort"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

func joinedTable(sample Sample) string {
	if sample == SampleA {
		return "cov_A_blocks_joined"
	}
	return "cov_B_blocks_joined"
}

// InsertJoinedBlocks bulk-inserts resolved block identities for a sample.
// Uniqueness by (binary_id, bb_rva) is enforced by the table's primary key;
// a second insert for the same key is ignored, which is what lets both §4.3
// (coverage join) and §4.4 (deterministic expansion) write into the same
// table idempotently.
func (s *Store) InsertJoinedBlocks(sample Sample, rows []JoinedBlock) error {
	sql := fmt.Sprintf(`INSERT OR IGNORE INTO %s (binary_id, func_id, bb_rva) VALUES (?, ?, ?)`, joinedTable(sample))
	return execBatch(s.conn, sql, len(rows), func(stmt *sqlite.Stmt, i int) {
		stmt.BindInt64(1, int64(rows[i].BinaryID))
		stmt.BindInt64(2, int64(rows[i].FuncID))
		stmt.BindInt64(3, rows[i].BBRVA)
	})
}

// JoinedBlocksByBinary returns the joined block set for one binary in one
// sample, keyed by bb_rva.
func (s *Store) JoinedBlocksByBinary(sample Sample, binaryID ids.BinaryID) (map[int64]JoinedBlock, error) {
	out := make(map[int64]JoinedBlock)
	sql := fmt.Sprintf(`SELECT binary_id, func_id, bb_rva FROM %s WHERE binary_id = ?`, joinedTable(sample))
	err := sqlitex.Execute(s.conn, sql, &sqlitex.ExecOptions{
		Args: []any{int64(binaryID)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			jb := JoinedBlock{
				BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
				FuncID:   ids.FuncID(stmt.ColumnInt64(1)),
				BBRVA:    stmt.ColumnInt64(2),
			}
			out[jb.BBRVA] = jb
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", joinedTable(sample), err)
	}
	return out, nil
}

// JoinedBinaryIDs returns every binary with at least one joined block in
// either sample.
func (s *Store) JoinedBinaryIDs() ([]ids.BinaryID, error) {
	seen := make(map[ids.BinaryID]bool)
	for _, sample := range []Sample{SampleA, SampleB} {
		sql := fmt.Sprintf(`SELECT DISTINCT binary_id FROM %s`, joinedTable(sample))
		err := sqlitex.Execute(s.conn, sql, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				seen[ids.BinaryID(stmt.ColumnInt64(0))] = true
				return nil
			},
		})
		if err != nil {
			return nil, fmt.Errorf("query distinct binaries from %s: %w", joinedTable(sample), err)
		}
	}
	out := make([]ids.BinaryID, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
