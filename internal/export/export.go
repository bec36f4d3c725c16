package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/store"
)

// BuildDocument exports every binary with computed labels into the
// visualization document.
func BuildDocument(cov *store.Store, m *master.Store) (*Document, error) {
	binaryIDs, err := cov.DistinctBinariesWithLabels()
	if err != nil {
		return nil, fmt.Errorf("export: load binaries: %w", err)
	}

	doc := &Document{
		Version:     "1.0",
		Description: "Coverage diff visualization data",
	}
	for _, binaryID := range binaryIDs {
		mod, err := buildModule(cov, m, binaryID)
		if err != nil {
			return nil, fmt.Errorf("export: binary %d: %w", binaryID, err)
		}
		doc.Modules = append(doc.Modules, mod)
	}
	return doc, nil
}

// WriteJSON encodes doc to path, pretty-printing when pretty is true.
func WriteJSON(doc *Document, path string, pretty bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export output %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}
	return nil
}

func blockStatus(inA, inB bool) string {
	switch {
	case inB && !inA:
		return "new"
	case inA && !inB:
		return "in_A"
	case inA && inB:
		return "in_both"
	default:
		return "neither"
	}
}

func functionStatus(blockStatuses map[int64]string) string {
	seen := make(map[string]bool, 3)
	for _, s := range blockStatuses {
		seen[s] = true
	}
	if seen["new"] {
		if len(seen) == 1 {
			return "new"
		}
		return "changed"
	}
	return "old"
}

func hexVA(v int64) string {
	return fmt.Sprintf("0x%x", uint64(v))
}

func hexVAPtr(v int64) *string {
	s := hexVA(v)
	return &s
}

func buildModule(cov *store.Store, m *master.Store, binaryID ids.BinaryID) (ModuleDoc, error) {
	bin, ok, err := m.Binary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load binary metadata: %w", err)
	}
	if !ok {
		return ModuleDoc{}, fmt.Errorf("binary %d not found in master store", binaryID)
	}

	moduleName := bin.BinaryName
	var moduleID *int64
	if mod, found, err := cov.ModuleForBinary(binaryID); err != nil {
		return ModuleDoc{}, fmt.Errorf("load module metadata: %w", err)
	} else if found {
		moduleName = mod.Name
		id := int64(mod.ModuleID)
		moduleID = &id
	}

	labels, err := cov.LabelsByBinary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load labels: %w", err)
	}

	blockRVAs := make([]int64, 0, len(labels))
	funcBlocks := make(map[ids.FuncID]map[int64]string)
	for rva, l := range labels {
		blockRVAs = append(blockRVAs, rva)
		status := blockStatus(l.InA, l.InB)
		if funcBlocks[l.FuncID] == nil {
			funcBlocks[l.FuncID] = make(map[int64]string)
		}
		funcBlocks[l.FuncID][rva] = status
	}

	blockDetails, err := m.BasicBlocksByRVAs(binaryID, blockRVAs)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load block metadata: %w", err)
	}

	frontierTargets, err := cov.FrontierTargetsByBinary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load frontier targets: %w", err)
	}

	attribution, err := cov.AttributionByBinary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load attribution: %w", err)
	}
	attrByBlock := make(map[int64]store.BlockAttribution, len(attribution))
	for _, a := range attribution {
		attrByBlock[a.NewBBRVA] = a
	}

	funcScores, err := cov.FunctionUnlockScoresByBinary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load function unlock scores: %w", err)
	}
	scoreByFunc := make(map[ids.FuncID]store.FunctionUnlockScore, len(funcScores))
	for _, s := range funcScores {
		scoreByFunc[s.FuncID] = s
	}

	funcIDs := make([]ids.FuncID, 0, len(funcBlocks))
	for funcID := range funcBlocks {
		funcIDs = append(funcIDs, funcID)
	}
	sort.Slice(funcIDs, func(i, j int) bool { return funcIDs[i] < funcIDs[j] })

	functionMeta, err := m.FunctionsByIDs(binaryID, funcIDs)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load function metadata: %w", err)
	}

	var functions []FunctionDoc
	for _, funcID := range funcIDs {
		meta, ok := functionMeta[funcID]
		if !ok {
			continue
		}

		hasDirectCall, err := m.HasDirectCallTo(binaryID, funcID)
		if err != nil {
			return ModuleDoc{}, fmt.Errorf("check indirect call for func %d: %w", funcID, err)
		}
		indirectlyCalled := !hasDirectCall

		bbRVAs := make([]int64, 0, len(funcBlocks[funcID]))
		for rva := range funcBlocks[funcID] {
			bbRVAs = append(bbRVAs, rva)
		}
		sort.Slice(bbRVAs, func(i, j int) bool { return bbRVAs[i] < bbRVAs[j] })

		var blocks []BlockDoc
		for _, rva := range bbRVAs {
			status := funcBlocks[funcID][rva]
			details, hasDetails := blockDetails[rva]

			block := BlockDoc{
				BBRVA:  hexVA(rva),
				Status: status,
			}
			if hasDetails {
				block.BBStartVA = hexVAPtr(details.BBStartVA)
				block.BBEndVA = hexVAPtr(details.BBEndVA)
				block.BBSize = details.Size()
			}
			if target, ok := frontierTargets[rva]; ok {
				block.IsFrontier = true
				frontierType := string(target.Class)
				block.FrontierType = &frontierType
			}
			if attr, ok := attrByBlock[rva]; ok {
				block.Attribution = BlockAttributionDoc{IsAttributed: true, IsShared: attr.IsShared}
				if !attr.IsShared {
					block.Attribution.FrontierBBRVA = hexVAPtr(attr.FrontierBBRVA)
				}
			}
			blocks = append(blocks, block)
		}

		funcAttr := FunctionAttributionDoc{}
		if s, ok := scoreByFunc[funcID]; ok {
			funcAttr = FunctionAttributionDoc{
				TotalNewBlocks:  s.TotalNewBlockCount,
				UniqueNewBlocks: s.UniqueNewBlockCount,
				SharedNewBlocks: s.SharedNewBlockCount,
				FrontierCount:   s.StrongFrontierCount + s.WeakFrontierCount,
				StrongFrontiers: s.StrongFrontierCount,
				WeakFrontiers:   s.WeakFrontierCount,
			}
		}

		functions = append(functions, FunctionDoc{
			FuncID:             int64(funcID),
			FuncName:           meta.FuncName,
			EntryRVA:           hexVA(meta.EntryRVA),
			StartVA:            hexVA(meta.StartVA),
			EndVA:              hexVA(meta.EndVA),
			FuncSize:           meta.FuncSize,
			Status:             functionStatus(funcBlocks[funcID]),
			IsIndirectlyCalled: indirectlyCalled,
			Blocks:             blocks,
			Attribution:        funcAttr,
		})
	}

	frontierEdges, err := cov.FrontierEdgesByBinary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load frontier edges: %w", err)
	}
	frontierEdgeSet := make(map[[2]int64]bool, len(frontierEdges))
	for _, fe := range frontierEdges {
		frontierEdgeSet[[2]int64{fe.SrcBBRVA, fe.DstBBRVA}] = true
	}

	graphEdges, err := cov.GraphEdgesByBinary(binaryID)
	if err != nil {
		return ModuleDoc{}, fmt.Errorf("load graph edges: %w", err)
	}
	var edges []EdgeDoc
	for _, e := range graphEdges {
		if e.SrcBBRVA == ids.SuperRootRVA || e.DstBBRVA == ids.SuperRootRVA {
			continue
		}
		edges = append(edges, EdgeDoc{
			SrcBBRVA:       hexVA(e.SrcBBRVA),
			DstBBRVA:       hexVA(e.DstBBRVA),
			EdgeType:       string(e.EdgeType),
			IsFrontierEdge: frontierEdgeSet[[2]int64{e.SrcBBRVA, e.DstBBRVA}],
		})
	}

	stats := ModuleStats{}
	for _, l := range labels {
		stats.TotalBlocks++
		if l.IsNew {
			stats.NewBlocks++
		}
		if l.InA {
			stats.BlocksInA++
		}
		if l.InB {
			stats.BlocksInB++
		}
	}
	for _, f := range functions {
		stats.TotalFunctions++
		switch f.Status {
		case "new":
			stats.NewFunctions++
		case "changed":
			stats.ChangedFunctions++
		default:
			stats.OldFunctions++
		}
	}

	status := "old"
	if stats.NewFunctions > 0 || stats.ChangedFunctions > 0 {
		if stats.NewFunctions == stats.TotalFunctions {
			status = "new"
		} else {
			status = "changed"
		}
	}

	return ModuleDoc{
		ModuleID:   moduleID,
		BinaryID:   int64(binaryID),
		ModuleName: moduleName,
		BinaryName: bin.BinaryName,
		SHA256Hash: bin.SHA256Hash,
		Status:     status,
		Statistics: stats,
		Functions:  functions,
		Edges:      edges,
	}, nil
}
