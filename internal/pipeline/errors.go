// Package pipeline implements the eight-stage coverage-diff attribution
// pipeline: module reconciliation, coverage join, deterministic expansion,
// diff labeling, executed-graph construction, frontier identification,
// reachability, and attribution/scoring.
package pipeline

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNoModulesMapped is returned when stage 1 cannot reconcile any coverage
// module with an analyzed binary. Per §4.1 this is always fatal: there is no
// useful partial result to continue with.
var ErrNoModulesMapped = errors.New("pipeline: no modules could be mapped to analyzed binaries")

// corruptionWarnThreshold is the fraction of call edges in a binary's stage 5
// pass that may fail to resolve against the master store's functions table
// before the run logs a warning. It is not configurable: surfacing it as a
// flag would let a silently-degrading master store look healthy forever.
const corruptionWarnThreshold = 0.10

// invariantError reports a violation of a precondition this pipeline
// guarantees to itself between stages (e.g. a reachability row pointing at a
// frontier target that stage 6 never wrote). It always carries a stack trace
// from the violation site, the same context a panic would carry, without
// requiring a recover() anywhere in cmd/ to turn the panic back into an
// error: the violation is detected and returned as a normal error, so it
// still goes through each stage's existing %w wrapping on its way out.
type invariantError struct {
	msg   string
	stack []byte
}

func (e *invariantError) Error() string {
	return fmt.Sprintf("internal invariant violation: %s\n%s", e.msg, e.stack)
}

// newInvariantError builds an invariantError with a captured stack trace.
func newInvariantError(format string, args ...any) error {
	return &invariantError{msg: fmt.Sprintf(format, args...), stack: debug.Stack()}
}
