// Command covexport renders the coverage store's computed diff data as a
// single JSON document for the visualization frontend.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/0xnobody/covdiff/internal/export"
	"github.com/0xnobody/covdiff/internal/master"
	"github.com/0xnobody/covdiff/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	output := flag.String("o", "coverage_viz_data.json", "Output JSON file")
	pretty := flag.Bool("pretty", false, "Pretty-print JSON output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: covexport [flags] <master.db> <cov.db>\n\n")
		fmt.Fprintf(os.Stderr, "Exports computed coverage diff data for visualization.\n\n")
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

	doc, err := export.BuildDocument(cov, m)
	if err != nil {
		return err
	}
	if err := export.WriteJSON(doc, *output, *pretty); err != nil {
		return err
	}

	var totalFuncs, totalBlocks int
	for _, mod := range doc.Modules {
		totalFuncs += mod.Statistics.TotalFunctions
		totalBlocks += mod.Statistics.TotalBlocks
	}
	fmt.Fprintf(os.Stderr, "modules: %d, functions: %d, blocks: %d\n", len(doc.Modules), totalFuncs, totalBlocks)
	return nil
}
