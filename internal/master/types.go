package master

import "github.com/0xnobody/covdiff/internal/ids"

// AnalyzedBinary is one row of the master store's analyzed_binaries table.
type AnalyzedBinary struct {
	BinaryID   ids.BinaryID
	BinaryName string
	SHA256Hash string
}

// Function is one row of the master store's functions table.
type Function struct {
	BinaryID ids.BinaryID
	FuncID   ids.FuncID
	FuncName string
	EntryRVA int64
	StartVA  int64
	EndVA    int64
	FuncSize int64
}

// BasicBlock is one row of the master store's basic_blocks table. The block
// spans the half-open interval [BBStartVA, BBEndVA).
type BasicBlock struct {
	BinaryID  ids.BinaryID
	FuncID    ids.FuncID
	BBRVA     int64
	BBStartVA int64
	BBEndVA   int64
}

// Size returns the block's byte length.
func (b BasicBlock) Size() int64 {
	return b.BBEndVA - b.BBStartVA
}

// Edge kinds recognized in cfg_edges.edge_kind. Anything else is treated as
// non-deterministic for the purposes of deterministic-path expansion (§4.4)
// and executed-graph construction (§4.5).
const (
	EdgeFallthrough         = "fallthrough"
	EdgeBranchUnconditional = "branch_unconditional"
	EdgeBranchConditional   = "branch_conditional"
)

// IsDeterministic reports whether a CFG edge kind is always taken (i.e. not
// a conditional branch or other non-deterministic transfer).
func IsDeterministic(kind string) bool {
	return kind == EdgeFallthrough || kind == EdgeBranchUnconditional
}

// CFGEdge is one row of the master store's cfg_edges table.
type CFGEdge struct {
	BinaryID ids.BinaryID
	SrcBBRVA int64
	DstBBRVA int64
	EdgeKind string
}

// CallEdgeStatic is one row of the master store's call_edges_static table:
// a resolved direct call site.
type CallEdgeStatic struct {
	BinaryID  ids.BinaryID
	SrcBBRVA  int64
	DstFuncID ids.FuncID
}
