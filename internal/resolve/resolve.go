// Package resolve implements RVA-to-basic-block resolution: given a raw
// instruction RVA observed by the tracer (either a direct block hit or the
// midpoint of an indirect-edge return address), find the basic block that
// contains it in the master store.
//
// Resolution is memoized twice: once in process memory for the lifetime of
// a run, and once in the coverage store's rva_to_bb_cache table so that a
// second run against the same (binary, rva) pair never re-scans
// basic_blocks.
package resolve

import (
	"fmt"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
)

// Result is a resolved basic block.
type Result struct {
	BBRVA  int64
	FuncID ids.FuncID
}

// Cache persists resolved (binary, rva) -> block lookups across runs.
type Cache interface {
	GetResolved(binaryID ids.BinaryID, rva int64) (Result, bool, error)
	PutResolved(binaryID ids.BinaryID, rva int64, res Result) error
}

type memoKey struct {
	binaryID ids.BinaryID
	rva      int64
}

// Resolver resolves instruction RVAs to their containing basic block.
type Resolver struct {
	master *master.Store
	cache  Cache
	memo   map[memoKey]Result
}

// New creates a Resolver backed by the given master store and persisted
// cache. cache may be nil, in which case only the in-memory memo is used.
func New(m *master.Store, cache Cache) *Resolver {
	return &Resolver{
		master: m,
		cache:  cache,
		memo:   make(map[memoKey]Result),
	}
}

// Resolve finds the basic block containing rva within binaryID.
//
// Resolution order, matching the §4.2 contract:
//  1. in-memory memo
//  2. persisted cache
//  3. exact match against basic_blocks.bb_rva
//  4. the block with the greatest bb_rva <= rva, accepted only if
//     rva <= bb_rva + bb_size (inside the block, or exactly one past its
//     end, as a return address after a trailing call is)
//
// A miss at every stage returns ok == false with a nil error.
func (r *Resolver) Resolve(binaryID ids.BinaryID, rva int64) (Result, bool, error) {
	key := memoKey{binaryID, rva}
	if res, ok := r.memo[key]; ok {
		return res, true, nil
	}

	if r.cache != nil {
		res, ok, err := r.cache.GetResolved(binaryID, rva)
		if err != nil {
			return Result{}, false, fmt.Errorf("resolve binary#%d rva 0x%x: cache lookup: %w", int64(binaryID), rva, err)
		}
		if ok {
			r.memo[key] = res
			return res, true, nil
		}
	}

	if bbRVA, funcID, ok, err := r.master.ExactBlock(binaryID, rva); err != nil {
		return Result{}, false, fmt.Errorf("resolve binary#%d rva 0x%x: exact lookup: %w", int64(binaryID), rva, err)
	} else if ok {
		res := Result{BBRVA: bbRVA, FuncID: funcID}
		return res, true, r.remember(binaryID, rva, res)
	}

	bbRVA, funcID, size, ok, err := r.master.ContainingBlock(binaryID, rva)
	if err != nil {
		return Result{}, false, fmt.Errorf("resolve binary#%d rva 0x%x: containing lookup: %w", int64(binaryID), rva, err)
	}
	if !ok || rva > bbRVA+size {
		return Result{}, false, nil
	}
	res := Result{BBRVA: bbRVA, FuncID: funcID}
	return res, true, r.remember(binaryID, rva, res)
}

func (r *Resolver) remember(binaryID ids.BinaryID, rva int64, res Result) error {
	r.memo[memoKey{binaryID, rva}] = res
	if r.cache == nil {
		return nil
	}
	if err := r.cache.PutResolved(binaryID, rva, res); err != nil {
		return fmt.Errorf("resolve binary#%d rva 0x%x: cache write: %w", int64(binaryID), rva, err)
	}
	return nil
}
