package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

// WriteGraphNodes bulk-inserts G_B nodes for a binary (B-covered blocks plus
// the super-root sentinel).
func (s *Store) WriteGraphNodes(rows []GraphNode) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO graph_B_nodes (binary_id, bb_rva, func_id, in_a, is_new) VALUES (?, ?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.BBRVA)
			stmt.BindInt64(3, int64(r.FuncID))
			stmt.BindInt64(4, boolToInt(r.InA))
			stmt.BindInt64(5, boolToInt(r.IsNew))
		},
	)
}

// WriteGraphEdges bulk-inserts G_B edges, deduplicated by
// (binary_id, src, dst, edge_type) via the table's primary key.
func (s *Store) WriteGraphEdges(rows []GraphEdge) error {
	return execBatch(s.conn,
		`INSERT OR IGNORE INTO graph_B_edges (binary_id, src_bb_rva, dst_bb_rva, edge_type) VALUES (?, ?, ?, ?)`,
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

// GraphNodesByBinary returns every G_B node for a binary, keyed by bb_rva.
func (s *Store) GraphNodesByBinary(binaryID ids.BinaryID) (map[int64]GraphNode, error) {
	out := make(map[int64]GraphNode)
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, bb_rva, func_id, in_a, is_new FROM graph_B_nodes WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n := GraphNode{
					BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
					BBRVA:    stmt.ColumnInt64(1),
					FuncID:   ids.FuncID(stmt.ColumnInt64(2)),
					InA:      intToBool(stmt.ColumnInt64(3)),
					IsNew:    intToBool(stmt.ColumnInt64(4)),
				}
				out[n.BBRVA] = n
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query graph_B_nodes: %w", err)
	}
	return out, nil
}

// GraphEdgesByBinary returns every G_B edge for a binary.
func (s *Store) GraphEdgesByBinary(binaryID ids.BinaryID) ([]GraphEdge, error) {
	var out []GraphEdge
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, src_bb_rva, dst_bb_rva, edge_type FROM graph_B_edges WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, GraphEdge{
					BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
					SrcBBRVA: stmt.ColumnInt64(1),
					DstBBRVA: stmt.ColumnInt64(2),
					EdgeType: GraphEdgeType(stmt.ColumnText(3)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query graph_B_edges: %w", err)
	}
	return out, nil
}
