package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/resolve"
)

// GetResolved implements resolve.Cache, reading a previously persisted RVA
// resolution from rva_to_bb_cache.
func (s *Store) GetResolved(binaryID ids.BinaryID, rva int64) (resolve.Result, bool, error) {
	var res resolve.Result
	found := false
	err := sqlitex.Execute(s.conn,
		`SELECT bb_rva, func_id FROM rva_to_bb_cache WHERE binary_id = ? AND rva = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID), rva},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				res = resolve.Result{
					BBRVA:  stmt.ColumnInt64(0),
					FuncID: ids.FuncID(stmt.ColumnInt64(1)),
				}
				found = true
				return nil
			},
		})
	if err != nil {
		return resolve.Result{}, false, fmt.Errorf("read rva_to_bb_cache: %w", err)
	}
	return res, found, nil
}

// PutResolved implements resolve.Cache, persisting a resolved RVA so future
// runs skip the basic_blocks scan entirely.
func (s *Store) PutResolved(binaryID ids.BinaryID, rva int64, res resolve.Result) error {
	err := sqlitex.Execute(s.conn,
		`INSERT OR REPLACE INTO rva_to_bb_cache (binary_id, rva, bb_rva, func_id) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID), rva, res.BBRVA, int64(res.FuncID)},
		})
	if err != nil {
		return fmt.Errorf("write rva_to_bb_cache: %w", err)
	}
	return nil
}
