// Package covimport parses raw tracer coverage text and the module-name to
// sha256 map, and writes both into the coverage store. Each line of a
// coverage file has the form "<module_name>+<hex>"; the hex value packs
// either a direct block hit or an observed indirect edge into a single
// 64-bit field.
package covimport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/0xnobody/covdiff/internal/ids"
	"github.com/0xnobody/covdiff/internal/store"
)

var lineRE = regexp.MustCompile(`^(.+?)\+([0-9a-fA-F]+)$`)

// ParseResult holds everything recovered from one coverage file, keyed by
// module name so the caller can resolve names to module IDs before writing.
type ParseResult struct {
	BlocksByModule map[string][]int64
	EdgesByModule  map[string][]store.RawEdge
	UnknownModules map[string]int
	TotalLines     int
	MalformedLines int
}

func newParseResult() *ParseResult {
	return &ParseResult{
		BlocksByModule: make(map[string][]int64),
		EdgesByModule:  make(map[string][]store.RawEdge),
		UnknownModules: make(map[string]int),
	}
}

// ParseCoverageFile reads a raw coverage text stream. knownModules is the set
// of module names present in the module map; lines naming any other module
// are counted in UnknownModules and dropped, matching the parser's
// unknown-module warning behavior.
//
// The 64-bit value is split into its high and low 32 bits. A nonzero high
// half means the line records an observed indirect edge
// (src_rva = high, dst_rva = low); a zero high half means a direct block hit
// at bb_rva = low. The split is exact 32-bit masking, not decimal
// arithmetic, so values at or above 2^32 round-trip correctly.
func ParseCoverageFile(r io.Reader, knownModules map[string]bool) (*ParseResult, error) {
	res := newParseResult()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		res.TotalLines++

		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			res.MalformedLines++
			continue
		}
		moduleName, hexVal := m[1], m[2]

		value, err := strconv.ParseUint(hexVal, 16, 64)
		if err != nil {
			res.MalformedLines++
			continue
		}

		if !knownModules[moduleName] {
			res.UnknownModules[moduleName]++
			continue
		}

		high := uint32(value >> 32)
		low := uint32(value & 0xffffffff)

		if high != 0 {
			res.EdgesByModule[moduleName] = append(res.EdgesByModule[moduleName], store.RawEdge{
				SrcRVA: int64(high),
				DstRVA: int64(low),
			})
		} else {
			res.BlocksByModule[moduleName] = append(res.BlocksByModule[moduleName], int64(low))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan coverage file: %w", err)
	}
	return res, nil
}

// ModuleMap is the module-name -> sha256 map consumed by the parser and
// analyzer CLIs.
type ModuleMap map[string]string

// LoadModuleMap reads a JSON object mapping module name to sha256 hash.
func LoadModuleMap(path string) (ModuleMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module map %s: %w", path, err)
	}
	defer f.Close()

	var m ModuleMap
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode module map %s: %w", path, err)
	}
	return m, nil
}

// AssignModuleIDs assigns a stable module ID to each module name in
// deterministic (sorted) order, so repeated imports of the same module map
// produce identical IDs.
func AssignModuleIDs(m ModuleMap) []store.Module {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]store.Module, 0, len(names))
	for i, name := range names {
		out = append(out, store.Module{
			ModuleID:   ids.ModuleID(i + 1),
			Name:       name,
			SHA256Hash: m[name],
		})
	}
	return out
}
