package store

import "github.com/0xnobody/covdiff/internal/ids"

// Sample distinguishes the baseline ("A") and new ("B") coverage corpora.
// Table names are resolved from a fixed pair of constants rather than
// interpolated, so a Sample value can never be used to reach an arbitrary
// table.
type Sample int

const (
	SampleA Sample = iota
	SampleB
)

// String renders the sample for logging.
func (s Sample) String() string {
	if s == SampleA {
		return "A"
	}
	return "B"
}

// Module is one row of the coverage store's modules table, as observed by
// the tracer.
type Module struct {
	ModuleID   ids.ModuleID
	Name       string
	SHA256Hash string
}

// RawBlockHit is one row of cov_A_blocks/cov_B_blocks: the tracer observed
// execution at this RVA within this module, as either a block start or a
// mid-block (return address) instruction.
type RawBlockHit struct {
	ModuleID ids.ModuleID
	BBRVA    int64
}

// RawEdge is one row of cov_A_edges/cov_B_edges: an observed non-deterministic
// transition (conditional branch or indirect return) within a module.
type RawEdge struct {
	ModuleID ids.ModuleID
	SrcRVA   int64
	DstRVA   int64
}

// ModuleBinaryMap is a resolved module-to-binary reconciliation row.
type ModuleBinaryMap struct {
	ModuleID ids.ModuleID
	BinaryID ids.BinaryID
}

// UnmappedModule is a coverage module with no matching analyzed binary.
type UnmappedModule struct {
	ModuleID   ids.ModuleID
	Name       string
	SHA256Hash string
}

// JoinedBlock is one row of cov_A_blocks_joined/cov_B_blocks_joined: a
// coverage hit resolved to its containing basic block.
type JoinedBlock struct {
	BinaryID ids.BinaryID
	FuncID   ids.FuncID
	BBRVA    int64
}

// BlockLabel is one row of bb_labels: membership flags for a block appearing
// in either sample.
type BlockLabel struct {
	BinaryID ids.BinaryID
	BBRVA    int64
	FuncID   ids.FuncID
	InA      bool
	InB      bool
	IsNew    bool
}

// GraphEdgeType enumerates the seven edge kinds admitted into the executed
// graph G_B (§4.5).
type GraphEdgeType string

const (
	EdgeCFGFallthrough          GraphEdgeType = "cfg_fallthrough"
	EdgeCFGBranchUnconditional  GraphEdgeType = "cfg_branch_unconditional"
	EdgeCallDirect              GraphEdgeType = "call_direct"
	EdgeObservedConditional     GraphEdgeType = "observed_conditional"
	EdgeObservedReturnContinue  GraphEdgeType = "observed_return_continuation"
	EdgeSuperRoot               GraphEdgeType = "super_root"
	EdgeSuperRootOrphan         GraphEdgeType = "super_root_orphan"
)

// GraphNode is one row of graph_B_nodes.
type GraphNode struct {
	BinaryID ids.BinaryID
	BBRVA    int64
	FuncID   ids.FuncID
	InA      bool
	IsNew    bool
}

// GraphEdge is one row of graph_B_edges.
type GraphEdge struct {
	BinaryID ids.BinaryID
	SrcBBRVA int64
	DstBBRVA int64
	EdgeType GraphEdgeType
}

// FrontierClass is the strong/weak classification of a frontier target.
type FrontierClass string

const (
	FrontierStrong FrontierClass = "strong"
	FrontierWeak   FrontierClass = "weak"
)

// FrontierEdge is one row of frontier_edges: an edge from A-covered or
// super-root-orphan territory into new territory.
type FrontierEdge struct {
	BinaryID ids.BinaryID
	SrcBBRVA int64
	DstBBRVA int64
	EdgeType GraphEdgeType
}

// FrontierTarget is one row of frontier_targets.
type FrontierTarget struct {
	BinaryID ids.BinaryID
	BBRVA    int64
	FuncID   ids.FuncID
	Class    FrontierClass
}

// FrontierReachability is one row of frontier_reachability: new block n is
// reachable from frontier target f.
type FrontierReachability struct {
	BinaryID     ids.BinaryID
	FrontierBBRVA int64
	NewBBRVA     int64
}

// BlockAttribution is one row of bb_attributed_to.
type BlockAttribution struct {
	BinaryID      ids.BinaryID
	NewBBRVA      int64
	FrontierBBRVA int64 // meaningful only when !IsShared
	IsShared      bool
}

// FrontierAttribution is one row of frontier_attribution: the per-frontier
// aggregate named in §4.8 ("Per-frontier aggregate"), kept as its own table
// so the callsite-level rollup can read it directly instead of re-deriving
// it from bb_attributed_to. The function-level rollup counts from
// frontier_reachability instead.
type FrontierAttribution struct {
	BinaryID            ids.BinaryID
	FrontierBBRVA       int64
	UniqueNewBlockCount int
	SharedNewBlockCount int
	TotalNewBlockCount  int
	AttributedFuncCount int
}

// FunctionUnlockScore is one row of function_unlock_scores.
type FunctionUnlockScore struct {
	BinaryID              ids.BinaryID
	FuncID                ids.FuncID
	UniqueNewBlockCount   int
	SharedNewBlockCount   int
	TotalNewBlockCount    int
	StrongFrontierCount   int
	WeakFrontierCount     int
}

// CallsiteUnlockScore is one row of callsite_unlock_scores.
type CallsiteUnlockScore struct {
	BinaryID            ids.BinaryID
	SrcBBRVA            int64
	DstFuncID           ids.FuncID
	UniqueNewBlockCount int
	SharedNewBlockCount int
	TotalNewBlockCount  int
}
