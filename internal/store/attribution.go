package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

// WriteAttribution bulk-inserts the new-block-to-frontier attribution
// relation. frontier_bb_rva is stored NULL for shared attributions.
func (s *Store) WriteAttribution(rows []BlockAttribution) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO bb_attributed_to (binary_id, new_bb_rva, frontier_bb_rva, is_shared) VALUES (?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.NewBBRVA)
			if r.IsShared {
				stmt.BindNull(3)
			} else {
				stmt.BindInt64(3, r.FrontierBBRVA)
			}
			stmt.BindInt64(4, boolToInt(r.IsShared))
		},
	)
}

// AttributionByBinary returns every attribution row for a binary.
func (s *Store) AttributionByBinary(binaryID ids.BinaryID) ([]BlockAttribution, error) {
	var out []BlockAttribution
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, new_bb_rva, frontier_bb_rva, is_shared FROM bb_attributed_to WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				a := BlockAttribution{
					BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
					NewBBRVA: stmt.ColumnInt64(1),
					IsShared: intToBool(stmt.ColumnInt64(3)),
				}
				if stmt.ColumnType(2) != sqlite.TypeNull {
					a.FrontierBBRVA = stmt.ColumnInt64(2)
				}
				out = append(out, a)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query bb_attributed_to: %w", err)
	}
	return out, nil
}

// WriteFrontierAttribution bulk-inserts per-frontier aggregate counts.
func (s *Store) WriteFrontierAttribution(rows []FrontierAttribution) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO frontier_attribution
		 (binary_id, frontier_bb_rva, unique_new_block_count, shared_new_block_count, total_new_block_count, attributed_func_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.FrontierBBRVA)
			stmt.BindInt64(3, int64(r.UniqueNewBlockCount))
			stmt.BindInt64(4, int64(r.SharedNewBlockCount))
			stmt.BindInt64(5, int64(r.TotalNewBlockCount))
			stmt.BindInt64(6, int64(r.AttributedFuncCount))
		},
	)
}

// FrontierAttributionByBinary returns every per-frontier aggregate for a
// binary, keyed by frontier bb_rva.
func (s *Store) FrontierAttributionByBinary(binaryID ids.BinaryID) (map[int64]FrontierAttribution, error) {
	out := make(map[int64]FrontierAttribution)
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, frontier_bb_rva, unique_new_block_count, shared_new_block_count, total_new_block_count, attributed_func_count
		 FROM frontier_attribution WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				fa := FrontierAttribution{
					BinaryID:            ids.BinaryID(stmt.ColumnInt64(0)),
					FrontierBBRVA:       stmt.ColumnInt64(1),
					UniqueNewBlockCount: int(stmt.ColumnInt64(2)),
					SharedNewBlockCount: int(stmt.ColumnInt64(3)),
					TotalNewBlockCount:  int(stmt.ColumnInt64(4)),
					AttributedFuncCount: int(stmt.ColumnInt64(5)),
				}
				out[fa.FrontierBBRVA] = fa
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query frontier_attribution: %w", err)
	}
	return out, nil
}

// WriteFunctionUnlockScores bulk-inserts function-level rollups.
func (s *Store) WriteFunctionUnlockScores(rows []FunctionUnlockScore) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO function_unlock_scores
		 (binary_id, func_id, unique_new_block_count, shared_new_block_count, total_new_block_count, strong_frontier_count, weak_frontier_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, int64(r.FuncID))
			stmt.BindInt64(3, int64(r.UniqueNewBlockCount))
			stmt.BindInt64(4, int64(r.SharedNewBlockCount))
			stmt.BindInt64(5, int64(r.TotalNewBlockCount))
			stmt.BindInt64(6, int64(r.StrongFrontierCount))
			stmt.BindInt64(7, int64(r.WeakFrontierCount))
		},
	)
}

// WriteCallsiteUnlockScores bulk-inserts callsite-level rollups.
func (s *Store) WriteCallsiteUnlockScores(rows []CallsiteUnlockScore) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO callsite_unlock_scores
		 (binary_id, src_bb_rva, dst_func_id, unique_new_block_count, shared_new_block_count, total_new_block_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.SrcBBRVA)
			stmt.BindInt64(3, int64(r.DstFuncID))
			stmt.BindInt64(4, int64(r.UniqueNewBlockCount))
			stmt.BindInt64(5, int64(r.SharedNewBlockCount))
			stmt.BindInt64(6, int64(r.TotalNewBlockCount))
		},
	)
}

// FunctionUnlockScoresByBinary returns every function rollup for a binary.
func (s *Store) FunctionUnlockScoresByBinary(binaryID ids.BinaryID) ([]FunctionUnlockScore, error) {
	var out []FunctionUnlockScore
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, func_id, unique_new_block_count, shared_new_block_count, total_new_block_count, strong_frontier_count, weak_frontier_count
		 FROM function_unlock_scores WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, FunctionUnlockScore{
					BinaryID:            ids.BinaryID(stmt.ColumnInt64(0)),
					FuncID:              ids.FuncID(stmt.ColumnInt64(1)),
					UniqueNewBlockCount: int(stmt.ColumnInt64(2)),
					SharedNewBlockCount: int(stmt.ColumnInt64(3)),
					TotalNewBlockCount:  int(stmt.ColumnInt64(4)),
					StrongFrontierCount: int(stmt.ColumnInt64(5)),
					WeakFrontierCount:   int(stmt.ColumnInt64(6)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query function_unlock_scores: %w", err)
	}
	return out, nil
}

// CallsiteUnlockScoresByBinary returns every callsite rollup for a binary.
func (s *Store) CallsiteUnlockScoresByBinary(binaryID ids.BinaryID) ([]CallsiteUnlockScore, error) {
	var out []CallsiteUnlockScore
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, src_bb_rva, dst_func_id, unique_new_block_count, shared_new_block_count, total_new_block_count
		 FROM callsite_unlock_scores WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, CallsiteUnlockScore{
					BinaryID:            ids.BinaryID(stmt.ColumnInt64(0)),
					SrcBBRVA:            stmt.ColumnInt64(1),
					DstFuncID:           ids.FuncID(stmt.ColumnInt64(2)),
					UniqueNewBlockCount: int(stmt.ColumnInt64(3)),
					SharedNewBlockCount: int(stmt.ColumnInt64(4)),
					TotalNewBlockCount:  int(stmt.ColumnInt64(5)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query callsite_unlock_scores: %w", err)
	}
	return out, nil
}
