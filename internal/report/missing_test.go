package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xnobody/covdiff/internal/ids"
)

func TestMissingEntry_MarshalJSON_OmitsNilBinaryID(t *testing.T) {
	e := MissingEntry{ModuleID: 1, InstructionRVA: 0x1000, Reason: ReasonModuleNotMapped}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["binary_id"]; ok {
		t.Errorf("binary_id should be omitted when nil, got %s", data)
	}

	binID := ids.BinaryID(7)
	e2 := MissingEntry{ModuleID: 1, BinaryID: &binID, InstructionRVA: 0x2000, Reason: ReasonNotFoundInStaticAnalysis}
	data2, err := json.Marshal(e2)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded2 map[string]any
	if err := json.Unmarshal(data2, &decoded2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded2["binary_id"] != float64(7) {
		t.Errorf("binary_id = %v, want 7", decoded2["binary_id"])
	}
}

func TestReport_WriteJSON_TotalMissingAndEmptySlices(t *testing.T) {
	rep := Report{
		SampleA: []MissingEntry{{ModuleID: 1, InstructionRVA: 0x10, Reason: ReasonModuleNotMapped}},
		SampleB: []MissingEntry{
			{ModuleID: 1, InstructionRVA: 0x20, Reason: ReasonNotFoundInStaticAnalysis},
			{ModuleID: 1, InstructionRVA: 0x30, Reason: ReasonNotFoundInStaticAnalysis},
		},
	}
	path := filepath.Join(t.TempDir(), "missing.json")
	if err := rep.WriteJSON(path); err != nil {
		t.Fatalf("write json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["total_missing"] != float64(3) {
		t.Errorf("total_missing = %v, want 3", decoded["total_missing"])
	}
	if _, ok := decoded["unmapped_modules"].([]any); !ok {
		t.Errorf("unmapped_modules should serialize as an empty array, not null: %s", data)
	}
}
