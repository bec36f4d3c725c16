package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/progress"
	"github.com/0xnobody/covdiff/internal/report"
	"github.com/0xnobody/covdiff/internal/resolve"
	"github.com/0xnobody/covdiff/internal/store"
)

// Options configures a full pipeline run.
type Options struct {
	// MaxParallelBinaries bounds how many binaries stages 2-8 process
	// concurrently. A Store has a single underlying connection, so callers
	// that want true concurrency must also pass openPerBinary so each
	// goroutine gets its own connection (see cmd/covanalyze). Values below
	// 1, or a nil openPerBinary, force sequential processing.
	MaxParallelBinaries int
	// MissingReportPath, if non-empty, writes the missing-blocks report
	// once every binary has finished stages 2-8.
	MissingReportPath string
}

// BinaryResult collects every stage's stats for one binary.
type BinaryResult struct {
	BinaryID    ids.BinaryID
	JoinA       JoinStats
	JoinB       JoinStats
	ExpandA     int
	ExpandB     int
	Labels      int
	Graph       GraphStats
	Frontier    FrontierStats
	Reachable   int
	Attribution AttributionStats
}

// Summary aggregates a full pipeline run.
type Summary struct {
	Reconcile ReconcileStats
	Binaries  []BinaryResult
}

// Run executes all eight stages against cov and m, reporting progress to
// prog. openPerBinary, if non-nil, is called once per binary to obtain a
// *store.Store used exclusively by that binary's goroutine (each
// zombiezen.com/go/sqlite connection is single-goroutine); when nil, cov
// itself is reused and MaxParallelBinaries is forced to 1.
func Run(cov *store.Store, m *master.Store, prog *progress.Progress, opts Options, openPerBinary func() (*store.Store, func() error, error)) (Summary, error) {
	var summary Summary

	prog.Log("stage 1: reconciling modules against analyzed binaries")
	reconcileStats, err := Reconcile(cov, m)
	if err != nil {
		return summary, fmt.Errorf("stage 1 (reconcile): %w", err)
	}
	summary.Reconcile = reconcileStats
	prog.Log("stage 1: mapped %d modules, %d unmapped", reconcileStats.Mapped, reconcileStats.Unmapped)

	moduleIDsByBinary, err := cov.ModuleIDsByBinary()
	if err != nil {
		return summary, fmt.Errorf("load module ids by binary: %w", err)
	}
	binaryIDs, err := cov.BinaryIDs()
	if err != nil {
		return summary, fmt.Errorf("load binary ids: %w", err)
	}
	sort.Slice(binaryIDs, func(i, j int) bool { return binaryIDs[i] < binaryIDs[j] })

	maxParallel := opts.MaxParallelBinaries
	if openPerBinary == nil || maxParallel < 1 {
		maxParallel = 1
	}

	var (
		mu           sync.Mutex
		missingA     []report.MissingEntry
		missingB     []report.MissingEntry
		resultsByBin = make(map[ids.BinaryID]BinaryResult, len(binaryIDs))
	)

	unmappedRows, err := cov.UnmappedModules()
	if err != nil {
		return summary, fmt.Errorf("load unmapped modules: %w", err)
	}

	var group errgroup.Group
	group.SetLimit(maxParallel)

	for _, binaryID := range binaryIDs {
		binaryID := binaryID
		moduleIDs := moduleIDsByBinary[binaryID]

		group.Go(func() error {
			binStore := cov
			var closeFn func() error
			if openPerBinary != nil {
				var err error
				binStore, closeFn, err = openPerBinary()
				if err != nil {
					return fmt.Errorf("binary %d: open store: %w", binaryID, err)
				}
				defer func() {
					if closeFn != nil {
						_ = closeFn()
					}
				}()
			}

			result, binMissingA, binMissingB, err := runOneBinary(binStore, m, prog, binaryID, moduleIDs)
			if err != nil {
				return fmt.Errorf("binary %d: %w", binaryID, err)
			}

			mu.Lock()
			resultsByBin[binaryID] = result
			missingA = append(missingA, binMissingA...)
			missingB = append(missingB, binMissingB...)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return summary, err
	}

	for _, binaryID := range binaryIDs {
		if r, ok := resultsByBin[binaryID]; ok {
			summary.Binaries = append(summary.Binaries, r)
		}
	}

	if opts.MissingReportPath != "" {
		var unmappedEntries []report.UnmappedModuleEntry
		for _, u := range unmappedRows {
			unmappedEntries = append(unmappedEntries, report.UnmappedModuleEntry{
				ModuleID: u.ModuleID, Name: u.Name, SHA256: u.SHA256Hash,
			})
		}
		rep := report.Report{UnmappedModules: unmappedEntries, SampleA: missingA, SampleB: missingB}
		if err := rep.WriteJSON(opts.MissingReportPath); err != nil {
			return summary, fmt.Errorf("write missing report: %w", err)
		}
	}

	prog.Log("done: %d binaries processed", len(summary.Binaries))
	return summary, nil
}

// runOneBinary runs stages 2-8 for a single binary, in order, against its
// own store connection. Each binary's resolve.Resolver and rva_to_bb_cache
// are scoped to that binary's goroutine.
func runOneBinary(cov *store.Store, m *master.Store, prog *progress.Progress, binaryID ids.BinaryID, moduleIDs []ids.ModuleID) (BinaryResult, []report.MissingEntry, []report.MissingEntry, error) {
	result := BinaryResult{BinaryID: binaryID}
	resolver := resolve.New(m, cov)

	joinA, missingA, err := JoinCoverage(cov, resolver, store.SampleA, binaryID, moduleIDs)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 2 (join A): %w", err)
	}
	joinB, missingB, err := JoinCoverage(cov, resolver, store.SampleB, binaryID, moduleIDs)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 2 (join B): %w", err)
	}
	result.JoinA, result.JoinB = joinA, joinB
	prog.Verbose("binary %d: joined A=%d B=%d", binaryID, joinA.ResolvedDirect+joinA.ResolvedMidBlock, joinB.ResolvedDirect+joinB.ResolvedMidBlock)

	expandA, err := ExpandDeterministic(cov, m, store.SampleA, binaryID)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 3 (expand A): %w", err)
	}
	expandB, err := ExpandDeterministic(cov, m, store.SampleB, binaryID)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 3 (expand B): %w", err)
	}
	result.ExpandA, result.ExpandB = expandA, expandB

	labelCount, err := ComputeLabels(cov, binaryID)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 4 (labels): %w", err)
	}
	result.Labels = labelCount

	graphStats, err := BuildExecutedGraph(cov, m, resolver, binaryID, moduleIDs)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 5 (graph): %w", err)
	}
	result.Graph = graphStats
	if graphStats.TotalCallEdges > 0 {
		rate := float64(graphStats.UnresolvedCallEdges) / float64(graphStats.TotalCallEdges)
		if rate > corruptionWarnThreshold {
			prog.Log("binary %d: WARNING: %d/%d call edges (%.1f%%) reference functions missing from the master store, above the %.0f%% threshold",
				binaryID, graphStats.UnresolvedCallEdges, graphStats.TotalCallEdges, rate*100, corruptionWarnThreshold*100)
		}
	}

	frontierStats, err := IdentifyFrontier(cov, binaryID)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 6 (frontier): %w", err)
	}
	result.Frontier = frontierStats

	reachCount, err := ComputeReachability(cov, binaryID)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 7 (reachability): %w", err)
	}
	result.Reachable = reachCount

	attrStats, err := AttributeBlocks(cov, binaryID)
	if err != nil {
		return result, nil, nil, fmt.Errorf("stage 8 (attribution): %w", err)
	}
	result.Attribution = attrStats

	if err := AggregateScores(cov, binaryID); err != nil {
		return result, nil, nil, fmt.Errorf("stage 8 (aggregate scores): %w", err)
	}

	prog.Log("binary %d: %d new blocks, %d strong frontiers, %d weak", binaryID, result.Labels, frontierStats.Strong, frontierStats.Weak)
	return result, missingA, missingB, nil
}
