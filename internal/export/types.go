// Package export builds the visualization JSON document consumed by the
// coverage diff viewer: one entry per analyzed binary, with every covered
// block and function annotated with its diff status, frontier role, and
// attribution.
package export

// Document is the root of the exported JSON document.
type Document struct {
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Modules     []ModuleDoc `json:"modules"`
}

// ModuleDoc describes one binary's exported coverage data.
type ModuleDoc struct {
	ModuleID   *int64       `json:"module_id"`
	BinaryID   int64        `json:"binary_id"`
	ModuleName string       `json:"module_name"`
	BinaryName string       `json:"binary_name"`
	SHA256Hash string       `json:"sha256_hash"`
	Status     string       `json:"status"`
	Statistics ModuleStats  `json:"statistics"`
	Functions  []FunctionDoc `json:"functions"`
	Edges      []EdgeDoc    `json:"edges"`
}

// ModuleStats holds module-level block and function counts.
type ModuleStats struct {
	TotalFunctions   int `json:"total_functions"`
	NewFunctions     int `json:"new_functions"`
	ChangedFunctions int `json:"changed_functions"`
	OldFunctions     int `json:"old_functions"`
	TotalBlocks      int `json:"total_blocks"`
	NewBlocks        int `json:"new_blocks"`
	BlocksInA        int `json:"blocks_in_A"`
	BlocksInB        int `json:"blocks_in_B"`
}

// FunctionDoc describes one function and every covered block within it.
type FunctionDoc struct {
	FuncID             int64                  `json:"func_id"`
	FuncName           string                 `json:"func_name"`
	EntryRVA           string                 `json:"entry_rva"`
	StartVA            string                 `json:"start_va"`
	EndVA              string                 `json:"end_va"`
	FuncSize           int64                  `json:"func_size"`
	Status             string                 `json:"status"`
	IsIndirectlyCalled bool                   `json:"is_indirectly_called"`
	Blocks             []BlockDoc             `json:"blocks"`
	Attribution        FunctionAttributionDoc `json:"attribution"`
}

// FunctionAttributionDoc is the per-function unlock-score rollup.
type FunctionAttributionDoc struct {
	TotalNewBlocks  int `json:"total_new_bb"`
	UniqueNewBlocks int `json:"unique_new_bb"`
	SharedNewBlocks int `json:"shared_new_bb"`
	FrontierCount   int `json:"frontier_count"`
	StrongFrontiers int `json:"strong_frontier_count"`
	WeakFrontiers   int `json:"weak_frontier_count"`
}

// BlockDoc describes one covered basic block.
type BlockDoc struct {
	BBRVA        string              `json:"bb_rva"`
	BBStartVA    *string             `json:"bb_start_va"`
	BBEndVA      *string             `json:"bb_end_va"`
	BBSize       int64               `json:"bb_size"`
	Status       string              `json:"status"`
	IsFrontier   bool                `json:"is_frontier"`
	FrontierType *string             `json:"frontier_type"`
	Attribution  BlockAttributionDoc `json:"attribution"`
}

// BlockAttributionDoc describes one new block's frontier attribution.
type BlockAttributionDoc struct {
	IsAttributed  bool    `json:"is_attributed"`
	FrontierBBRVA *string `json:"frontier_bb_rva"`
	IsShared      bool    `json:"is_shared"`
}

// EdgeDoc is one edge of the executed graph, excluding the synthetic
// super-root node.
type EdgeDoc struct {
	SrcBBRVA       string `json:"src_bb_rva"`
	DstBBRVA       string `json:"dst_bb_rva"`
	EdgeType       string `json:"edge_type"`
	IsFrontierEdge bool   `json:"is_frontier_edge"`
}
