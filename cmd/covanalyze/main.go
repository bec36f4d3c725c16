// Command covanalyze runs the full coverage-diff attribution pipeline
// against a coverage store and a static-analysis master store.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/pipeline"
	"github.com/0xnobody/covdiff/internal/progress"
	"github.com/0xnobody/covdiff/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	missingOutput := flag.String("missing-output", "missing_blocks.json", "Path to write the missing-blocks report")
	parallel := flag.Int("parallel", 1, "Number of binaries to process concurrently")
	verbose := flag.Bool("verbose", false, "Print per-binary progress")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: covanalyze [flags] <master.db> <cov.db>\n\n")
		fmt.Fprintf(os.Stderr, "Runs module reconciliation through attribution scoring against cov.db.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return fmt.Errorf("expected 2 arguments, got %d", flag.NArg())
	}
	masterPath := flag.Arg(0)
	covPath := flag.Arg(1)

	if _, err := os.Stat(masterPath); err != nil {
		return fmt.Errorf("master db not found: %w", err)
	}
	if _, err := os.Stat(covPath); err != nil {
		return fmt.Errorf("coverage db not found: %w", err)
	}

	m, err := master.Open(masterPath)
	if err != nil {
		return err
	}
	defer m.Close()

	cov, err := store.Open(covPath)
	if err != nil {
		return err
	}
	defer cov.Close()

	if err := store.CreateSchema(cov); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	prog := progress.New(*verbose)

	var openPerBinary func() (*store.Store, func() error, error)
	if *parallel > 1 {
		openPerBinary = func() (*store.Store, func() error, error) {
			s, err := store.Open(covPath)
			if err != nil {
				return nil, nil, err
			}
			return s, s.Close, nil
		}
	}

	summary, err := pipeline.Run(cov, m, prog, pipeline.Options{
		MaxParallelBinaries: *parallel,
		MissingReportPath:   *missingOutput,
	}, openPerBinary)
	if err != nil {
		return err
	}

	if err := store.CreateIndexes(cov); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	var totalNew, totalStrong, totalWeak int
	for _, b := range summary.Binaries {
		totalNew += b.Labels
		totalStrong += b.Frontier.Strong
		totalWeak += b.Frontier.Weak
	}
	fmt.Fprintf(os.Stderr, "binaries: %d, new blocks: %d, strong frontiers: %d, weak frontiers: %d\n",
		len(summary.Binaries), totalNew, totalStrong, totalWeak)

	return nil
}
