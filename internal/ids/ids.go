// Package ids defines the typed identifier spaces used across the coverage
// diff pipeline. The coverage/tracer side and the static-analysis side
// assign independent integer identifiers to the same real-world modules;
// keeping the two spaces as distinct Go types prevents a ModuleID from ever
// being passed where a BinaryID is expected.
package ids

// ModuleID identifies a module as assigned by the dynamic tracer.
type ModuleID int64

// BinaryID identifies a binary as assigned by the static analyzer.
type BinaryID int64

// FuncID identifies a function within a single binary's analysis.
type FuncID int64

// SuperRootRVA is the sentinel bb_rva used for the synthetic super-root node
// added to graph_B_nodes for each binary.
const SuperRootRVA int64 = -1

// SuperRootFuncID is the sentinel func_id paired with SuperRootRVA.
const SuperRootFuncID int64 = -1
