package pipeline

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/store"
)

// ReconcileStats summarizes stage 1.
type ReconcileStats struct {
	Mapped   int
	Unmapped int
}

// Reconcile implements §4.1: for every tracer-observed module, find the
// analyzed binary with the same sha256 hash. Modules with no match are
// recorded in unmapped_modules and dropped from all downstream stages.
// Returns ErrNoModulesMapped if not a single module could be mapped.
func Reconcile(cov *store.Store, m *master.Store) (ReconcileStats, error) {
	modules, err := cov.Modules()
	if err != nil {
		return ReconcileStats{}, fmt.Errorf("reconcile: load modules: %w", err)
	}

	var mapped []store.ModuleBinaryMap
	var unmapped []store.UnmappedModule

	for _, mod := range modules {
		bin, ok, err := m.BinaryByHash(mod.SHA256Hash)
		if err != nil {
			return ReconcileStats{}, fmt.Errorf("reconcile: lookup binary for module %q: %w", mod.Name, err)
		}
		if !ok {
			unmapped = append(unmapped, store.UnmappedModule{
				ModuleID:   mod.ModuleID,
				Name:       mod.Name,
				SHA256Hash: mod.SHA256Hash,
			})
			continue
		}
		mapped = append(mapped, store.ModuleBinaryMap{
			ModuleID: mod.ModuleID,
			BinaryID: bin.BinaryID,
		})
	}

	if len(mapped) == 0 {
		return ReconcileStats{Unmapped: len(unmapped)}, ErrNoModulesMapped
	}

	if err := cov.WriteModuleBinaryMap(mapped); err != nil {
		return ReconcileStats{}, fmt.Errorf("reconcile: write module_binary_map: %w", err)
	}
	if len(unmapped) > 0 {
		if err := cov.WriteUnmappedModules(unmapped); err != nil {
			return ReconcileStats{}, fmt.Errorf("reconcile: write unmapped_modules: %w", err)
		}
	}

	return ReconcileStats{Mapped: len(mapped), Unmapped: len(unmapped)}, nil
}
