package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

// WriteReachability bulk-inserts frontier-to-new-block reachability pairs.
func (s *Store) WriteReachability(rows []FrontierReachability) error {
	return execBatch(s.conn,
		`INSERT OR IGNORE INTO frontier_reachability (binary_id, frontier_bb_rva, new_bb_rva) VALUES (?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.FrontierBBRVA)
			stmt.BindInt64(3, r.NewBBRVA)
		},
	)
}

// ReachabilityByBinary returns every reachability row for a binary.
func (s *Store) ReachabilityByBinary(binaryID ids.BinaryID) ([]FrontierReachability, error) {
	var out []FrontierReachability
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, frontier_bb_rva, new_bb_rva FROM frontier_reachability WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, FrontierReachability{
					BinaryID:      ids.BinaryID(stmt.ColumnInt64(0)),
					FrontierBBRVA: stmt.ColumnInt64(1),
					NewBBRVA:      stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query frontier_reachability: %w", err)
	}
	return out, nil
}
