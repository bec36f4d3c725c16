package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

// WriteFrontierEdges bulk-inserts frontier edges for a binary.
func (s *Store) WriteFrontierEdges(rows []FrontierEdge) error {
	return execBatch(s.conn,
		`INSERT OR IGNORE INTO frontier_edges (binary_id, src_bb_rva, dst_bb_rva, edge_type) VALUES (?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.SrcBBRVA)
			stmt.BindInt64(3, r.DstBBRVA)
			stmt.BindText(4, string(r.EdgeType))
		},
	)
}

// WriteFrontierTargets bulk-inserts classified frontier targets.
func (s *Store) WriteFrontierTargets(rows []FrontierTarget) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO frontier_targets (binary_id, bb_rva, func_id, class) VALUES (?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.BBRVA)
			stmt.BindInt64(3, int64(r.FuncID))
			stmt.BindText(4, string(r.Class))
		},
	)
}

// FrontierEdgesByBinary returns every frontier edge for a binary.
func (s *Store) FrontierEdgesByBinary(binaryID ids.BinaryID) ([]FrontierEdge, error) {
	var out []FrontierEdge
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, src_bb_rva, dst_bb_rva, edge_type FROM frontier_edges WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, FrontierEdge{
					BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
					SrcBBRVA: stmt.ColumnInt64(1),
					DstBBRVA: stmt.ColumnInt64(2),
					EdgeType: GraphEdgeType(stmt.ColumnText(3)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query frontier_edges: %w", err)
	}
	return out, nil
}

// FrontierTargetsByBinary returns every classified frontier target for a
// binary, keyed by bb_rva.
func (s *Store) FrontierTargetsByBinary(binaryID ids.BinaryID) (map[int64]FrontierTarget, error) {
	out := make(map[int64]FrontierTarget)
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, bb_rva, func_id, class FROM frontier_targets WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t := FrontierTarget{
					BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
					BBRVA:    stmt.ColumnInt64(1),
					FuncID:   ids.FuncID(stmt.ColumnInt64(2)),
					Class:    FrontierClass(stmt.ColumnText(3)),
				}
				out[t.BBRVA] = t
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query frontier_targets: %w", err)
	}
	return out, nil
}
