package covimport

import (
	"sort"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

// WriteSample loads a parsed coverage file into the given sample's raw
// tables, resolving module names to the IDs assigned in modules.
func WriteSample(s *store.Store, sample store.Sample, modules []store.Module, res *ParseResult) error {
	byName := make(map[string]ids.ModuleID, len(modules))
	for _, m := range modules {
		byName[m.Name] = m.ModuleID
	}

	names := make([]string, 0, len(res.BlocksByModule))
	for name := range res.BlocksByModule {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		moduleID := byName[name]
		hits := res.BlocksByModule[name]
		rows := make([]store.RawBlockHit, len(hits))
		for i, rva := range hits {
			rows[i] = store.RawBlockHit{ModuleID: moduleID, BBRVA: rva}
		}
		if err := s.InsertRawBlocks(sample, rows); err != nil {
			return err
		}
	}

	edgeNames := make([]string, 0, len(res.EdgesByModule))
	for name := range res.EdgesByModule {
		edgeNames = append(edgeNames, name)
	}
	sort.Strings(edgeNames)

	for _, name := range edgeNames {
		moduleID := byName[name]
		edges := res.EdgesByModule[name]
		rows := make([]store.RawEdge, len(edges))
		for i, e := range edges {
			rows[i] = store.RawEdge{ModuleID: moduleID, SrcRVA: e.SrcRVA, DstRVA: e.DstRVA}
		}
		if err := s.InsertRawEdges(sample, rows); err != nil {
			return err
		}
	}

	return nil
}
