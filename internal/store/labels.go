package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

// WriteLabels bulk-inserts per-block membership flags.
func (s *Store) WriteLabels(rows []BlockLabel) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO bb_labels (binary_id, bb_rva, func_id, in_a, in_b, is_new) VALUES (?, ?, ?, ?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			r := rows[i]
			stmt.BindInt64(1, int64(r.BinaryID))
			stmt.BindInt64(2, r.BBRVA)
			stmt.BindInt64(3, int64(r.FuncID))
			stmt.BindInt64(4, boolToInt(r.InA))
			stmt.BindInt64(5, boolToInt(r.InB))
			stmt.BindInt64(6, boolToInt(r.IsNew))
		},
	)
}

// LabelsByBinary returns all block labels for a binary, keyed by bb_rva.
func (s *Store) LabelsByBinary(binaryID ids.BinaryID) (map[int64]BlockLabel, error) {
	out := make(map[int64]BlockLabel)
	err := sqlitex.Execute(s.conn,
		`SELECT binary_id, bb_rva, func_id, in_a, in_b, is_new FROM bb_labels WHERE binary_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				l := BlockLabel{
					BinaryID: ids.BinaryID(stmt.ColumnInt64(0)),
					BBRVA:    stmt.ColumnInt64(1),
					FuncID:   ids.FuncID(stmt.ColumnInt64(2)),
					InA:      intToBool(stmt.ColumnInt64(3)),
					InB:      intToBool(stmt.ColumnInt64(4)),
					IsNew:    intToBool(stmt.ColumnInt64(5)),
				}
				out[l.BBRVA] = l
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query bb_labels: %w", err)
	}
	return out, nil
}

// DistinctBinariesWithLabels returns every binary with at least one label
// row, used by the exporter to iterate per-binary work.
func (s *Store) DistinctBinariesWithLabels() ([]ids.BinaryID, error) {
	var out []ids.BinaryID
	err := sqlitex.Execute(s.conn, `SELECT DISTINCT binary_id FROM bb_labels ORDER BY binary_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, ids.BinaryID(stmt.ColumnInt64(0)))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query distinct binaries from bb_labels: %w", err)
	}
	return out, nil
}
