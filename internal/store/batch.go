package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
)

// execBatch prepares sql once and steps it n times, calling bind to populate
// parameters for each row. Mirrors the CPG generator's insertNodes/insertEdges
// loop shape: prepare, bind, step, reset.
func execBatch(conn *sqlite.Conn, sql string, n int, bind func(stmt *sqlite.Stmt, i int)) error {
	stmt, err := conn.Prepare(sql)
	if err != nil {
		return fmt.Errorf("prepare %q: %w", sql, err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i := 0; i < n; i++ {
		bind(stmt, i)
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("step %q row %d: %w", sql, i, err)
		}
		if err := stmt.Reset(); err != nil {
			return fmt.Errorf("reset %q row %d: %w", sql, i, err)
		}
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intToBool(v int64) bool {
	return v != 0
}
