// Package report builds the missing-blocks JSON report: every coverage row
// that could not be carried through the pipeline, with the reason why.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/0xnobody/covdiff/internal/ids"
)

// Reason enumerates why a coverage row was dropped.
type Reason string

const (
	ReasonModuleNotMapped          Reason = "module_not_mapped"
	ReasonNotFoundInStaticAnalysis Reason = "not_found_in_static_analysis"
)

// MissingEntry is one dropped coverage row.
type MissingEntry struct {
	ModuleID       ids.ModuleID
	BinaryID       *ids.BinaryID
	InstructionRVA int64
	Reason         Reason
}

type missingEntryJSON struct {
	ModuleID       int64  `json:"module_id"`
	BinaryID       *int64 `json:"binary_id,omitempty"`
	InstructionRVA int64  `json:"instruction_rva"`
	Reason         Reason `json:"reason"`
}

// MarshalJSON renders BinaryID as omitted rather than null when absent,
// matching the optional `binary_id?` field in the missing-report schema.
func (e MissingEntry) MarshalJSON() ([]byte, error) {
	out := missingEntryJSON{
		ModuleID:       int64(e.ModuleID),
		InstructionRVA: e.InstructionRVA,
		Reason:         e.Reason,
	}
	if e.BinaryID != nil {
		v := int64(*e.BinaryID)
		out.BinaryID = &v
	}
	return json.Marshal(out)
}

// UnmappedModuleEntry describes a coverage module with no matching binary.
type UnmappedModuleEntry struct {
	ModuleID ids.ModuleID `json:"module_id"`
	Name     string       `json:"name"`
	SHA256   string       `json:"sha256"`
}

// Report is the full missing-blocks document.
type Report struct {
	UnmappedModules []UnmappedModuleEntry `json:"unmapped_modules"`
	SampleA         []MissingEntry        `json:"sample_A"`
	SampleB         []MissingEntry        `json:"sample_B"`
}

type reportJSON struct {
	UnmappedModules []UnmappedModuleEntry `json:"unmapped_modules"`
	SampleA         []MissingEntry        `json:"sample_A"`
	SampleB         []MissingEntry        `json:"sample_B"`
	TotalMissing    int                   `json:"total_missing"`
}

// WriteJSON writes the report to path, including the derived total_missing
// field.
func (r Report) WriteJSON(path string) error {
	doc := reportJSON{
		UnmappedModules: r.UnmappedModules,
		SampleA:         r.SampleA,
		SampleB:         r.SampleB,
		TotalMissing:    len(r.SampleA) + len(r.SampleB),
	}
	if doc.UnmappedModules == nil {
		doc.UnmappedModules = []UnmappedModuleEntry{}
	}
	if doc.SampleA == nil {
		doc.SampleA = []MissingEntry{}
	}
	if doc.SampleB == nil {
		doc.SampleB = []MissingEntry{}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create missing-blocks report %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode missing-blocks report: %w", err)
	}
	return nil
}
