// Command covparse loads raw tracer coverage text for two samples into a
// fresh coverage store, resolving module names against a module map.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/0xnobody/covdiff/internal/covimport"
	"github.com/0xnobody/covdiff/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	coverageA := flag.String("a", "", "Path to sample A coverage file")
	coverageB := flag.String("b", "", "Path to sample B coverage file")
	moduleMapPath := flag.String("m", "", "Path to module name -> sha256 map (JSON)")
	output := flag.String("o", "coverage.db", "Output coverage database path")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: covparse -a <sample-a> -b <sample-b> -m <modules.json> [-o output.db]\n\n")
		fmt.Fprintf(os.Stderr, "Parses raw tracer coverage for two samples into a coverage store.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *coverageA == "" || *coverageB == "" || *moduleMapPath == "" {
		flag.Usage()
		return fmt.Errorf("-a, -b and -m are required")
	}

	moduleMap, err := covimport.LoadModuleMap(*moduleMapPath)
	if err != nil {
		return err
	}
	modules := covimport.AssignModuleIDs(moduleMap)
	knownModules := make(map[string]bool, len(moduleMap))
	for name := range moduleMap {
		knownModules[name] = true
	}

	cov, err := store.OpenFresh(*output)
	if err != nil {
		return err
	}
	defer cov.Close()

	if err := store.CreateSchema(cov); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := cov.WriteModules(modules); err != nil {
		return fmt.Errorf("write modules: %w", err)
	}

	for _, sample := range []struct {
		kind store.Sample
		path string
	}{
		{store.SampleA, *coverageA},
		{store.SampleB, *coverageB},
	} {
		f, err := os.Open(sample.path)
		if err != nil {
			return fmt.Errorf("open sample %s: %w", sample.kind, err)
		}
		res, err := covimport.ParseCoverageFile(f, knownModules)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse sample %s: %w", sample.kind, err)
		}
		if err := covimport.WriteSample(cov, sample.kind, modules, res); err != nil {
			return fmt.Errorf("write sample %s: %w", sample.kind, err)
		}
		fmt.Fprintf(os.Stderr, "sample %s: %d lines, %d unknown modules, %d malformed\n",
			sample.kind, res.TotalLines, len(res.UnknownModules), res.MalformedLines)
	}

	return nil
}
