package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/0xnobody/covdiff/internal/ids"
)

// WriteModules bulk-inserts the tracer's observed module list.
func (s *Store) WriteModules(mods []Module) error {
	return execBatch(s.conn,
		`INSERT OR IGNORE INTO modules (module_id, name, sha256_hash) VALUES (?, ?, ?)`,
		len(mods),
		func(stmt *sqlite.Stmt, i int) {
			m := mods[i]
			stmt.BindInt64(1, int64(m.ModuleID))
			stmt.BindText(2, m.Name)
			stmt.BindText(3, m.SHA256Hash)
		},
	)
}

// Modules returns every tracer-observed module.
func (s *Store) Modules() ([]Module, error) {
	var out []Module
	err := sqlitex.ExecuteTransient(s.conn, `SELECT module_id, name, sha256_hash FROM modules`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, Module{
				ModuleID:   ids.ModuleID(stmt.ColumnInt64(0)),
				Name:       stmt.ColumnText(1),
				SHA256Hash: stmt.ColumnText(2),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	return out, nil
}

// WriteModuleBinaryMap bulk-inserts resolved module-to-binary pairings.
func (s *Store) WriteModuleBinaryMap(rows []ModuleBinaryMap) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO module_binary_map (module_id, binary_id) VALUES (?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			stmt.BindInt64(1, int64(rows[i].ModuleID))
			stmt.BindInt64(2, int64(rows[i].BinaryID))
		},
	)
}

// WriteUnmappedModules records coverage modules with no matching analyzed
// binary, for the missing-blocks report.
func (s *Store) WriteUnmappedModules(rows []UnmappedModule) error {
	return execBatch(s.conn,
		`INSERT OR REPLACE INTO unmapped_modules (module_id, name, sha256_hash) VALUES (?, ?, ?)`,
		len(rows),
		func(stmt *sqlite.Stmt, i int) {
			stmt.BindInt64(1, int64(rows[i].ModuleID))
			stmt.BindText(2, rows[i].Name)
			stmt.BindText(3, rows[i].SHA256Hash)
		},
	)
}

// ModuleBinaryMap returns the full module_id -> binary_id mapping.
func (s *Store) ModuleBinaryMap() (map[ids.ModuleID]ids.BinaryID, error) {
	out := make(map[ids.ModuleID]ids.BinaryID)
	err := sqlitex.ExecuteTransient(s.conn, `SELECT module_id, binary_id FROM module_binary_map`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out[ids.ModuleID(stmt.ColumnInt64(0))] = ids.BinaryID(stmt.ColumnInt64(1))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query module_binary_map: %w", err)
	}
	return out, nil
}

// UnmappedModules returns every module recorded as unmapped.
func (s *Store) UnmappedModules() ([]UnmappedModule, error) {
	var out []UnmappedModule
	err := sqlitex.ExecuteTransient(s.conn, `SELECT module_id, name, sha256_hash FROM unmapped_modules`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, UnmappedModule{
				ModuleID:   ids.ModuleID(stmt.ColumnInt64(0)),
				Name:       stmt.ColumnText(1),
				SHA256Hash: stmt.ColumnText(2),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query unmapped_modules: %w", err)
	}
	return out, nil
}

// ModuleForBinary returns one module mapped to binaryID, for export metadata.
// A binary may have more than one module mapped to it; callers that need a
// representative name take the first one returned.
func (s *Store) ModuleForBinary(binaryID ids.BinaryID) (Module, bool, error) {
	var mod Module
	found := false
	err := sqlitex.Execute(s.conn,
		`SELECT m.module_id, m.name, m.sha256_hash
		 FROM module_binary_map b JOIN modules m ON m.module_id = b.module_id
		 WHERE b.binary_id = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{int64(binaryID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				mod = Module{
					ModuleID:   ids.ModuleID(stmt.ColumnInt64(0)),
					Name:       stmt.ColumnText(1),
					SHA256Hash: stmt.ColumnText(2),
				}
				found = true
				return nil
			},
		})
	if err != nil {
		return Module{}, false, fmt.Errorf("lookup module for binary %d: %w", binaryID, err)
	}
	return mod, found, nil
}

// ModuleIDsByBinary returns the module IDs mapped to each binary, inverting
// module_binary_map for stages that iterate per binary.
func (s *Store) ModuleIDsByBinary() (map[ids.BinaryID][]ids.ModuleID, error) {
	out := make(map[ids.BinaryID][]ids.ModuleID)
	err := sqlitex.ExecuteTransient(s.conn, `SELECT module_id, binary_id FROM module_binary_map ORDER BY binary_id, module_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			moduleID := ids.ModuleID(stmt.ColumnInt64(0))
			binaryID := ids.BinaryID(stmt.ColumnInt64(1))
			out[binaryID] = append(out[binaryID], moduleID)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query module_binary_map by binary: %w", err)
	}
	return out, nil
}

// BinaryIDs returns the distinct set of binaries with any mapped coverage.
func (s *Store) BinaryIDs() ([]ids.BinaryID, error) {
	var out []ids.BinaryID
	err := sqlitex.ExecuteTransient(s.conn, `SELECT DISTINCT binary_id FROM module_binary_map ORDER BY binary_id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, ids.BinaryID(stmt.ColumnInt64(0)))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query distinct binaries: %w", err)
	}
	return out, nil
}
