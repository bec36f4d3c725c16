package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

func rawBlocksTable(sample Sample) string {
	if sample == SampleA {
		return "cov_A_blocks"
	}
	return "cov_B_blocks"
}

func rawEdgesTable(sample Sample) string {
	if sample == SampleA {
		return "cov_A_edges"
	}
	return "cov_B_edges"
}

// InsertRawBlocks bulk-inserts parsed block-hit rows for one sample.
func (s *Store) InsertRawBlocks(sample Sample, hits []RawBlockHit) error {
	sql := fmt.Sprintf(`INSERT INTO %s (module_id, bb_rva) VALUES (?, ?)`, rawBlocksTable(sample))
	return execBatch(s.conn, sql, len(hits), func(stmt *sqlite.Stmt, i int) {
		stmt.BindInt64(1, int64(hits[i].ModuleID))
		stmt.BindInt64(2, hits[i].BBRVA)
	})
}

// InsertRawEdges bulk-inserts parsed indirect-edge rows for one sample.
func (s *Store) InsertRawEdges(sample Sample, edges []RawEdge) error {
	sql := fmt.Sprintf(`INSERT INTO %s (module_id, src_bb_rva, dst_bb_rva) VALUES (?, ?, ?)`, rawEdgesTable(sample))
	return execBatch(s.conn, sql, len(edges), func(stmt *sqlite.Stmt, i int) {
		stmt.BindInt64(1, int64(edges[i].ModuleID))
		stmt.BindInt64(2, edges[i].SrcRVA)
		stmt.BindInt64(3, edges[i].DstRVA)
	})
}

// RawBlocksByModule returns every recorded block hit for a module within a
// sample.
func (s *Store) RawBlocksByModule(sample Sample, moduleID ids.ModuleID) ([]int64, error) {
	var out []int64
	sql := fmt.Sprintf(`SELECT bb_rva FROM %s WHERE module_id = ?`, rawBlocksTable(sample))
	err := sqlitex.Execute(s.conn, sql, &sqlitex.ExecOptions{
		Args: []any{int64(moduleID)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, stmt.ColumnInt64(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rawBlocksTable(sample), err)
	}
	return out, nil
}

// RawEdgesByModule returns every recorded indirect edge for a module within a
// sample.
func (s *Store) RawEdgesByModule(sample Sample, moduleID ids.ModuleID) ([]RawEdge, error) {
	var out []RawEdge
	sql := fmt.Sprintf(`SELECT module_id, src_bb_rva, dst_bb_rva FROM %s WHERE module_id = ?`, rawEdgesTable(sample))
	err := sqlitex.Execute(s.conn, sql, &sqlitex.ExecOptions{
		Args: []any{int64(moduleID)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, RawEdge{
				ModuleID: ids.ModuleID(stmt.ColumnInt64(0)),
				SrcRVA:   stmt.ColumnInt64(1),
				DstRVA:   stmt.ColumnInt64(2),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rawEdgesTable(sample), err)
	}
	return out, nil
}
