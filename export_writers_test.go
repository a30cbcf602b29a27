// export_writers_test.go

package sniffer

import "testing"

func TestClassifyModuleAndHeap(t *testing.T) {
	regions := []MemoryRegion{
		{Kind: RegionModule, PID: 1, Name: "main", BuildID: "abc123", Base: 0x8000000, Addr: 0x8000000, Size: 0x1000},
		{Kind: RegionHeap, PID: 1, Name: "heap", Addr: 0x9000000, Size: 0x1000},
		{Kind: RegionStack, PID: 1, Name: "stack", Addr: 0xA000000, Size: 0x1000},
	}

	if mt, buildID, _ := Classify(regions, 1, 0x8000000); mt != MemTypeModule || buildID != "abc123" {
		t.Fatalf("module classify = %v %q", mt, buildID)
	}
	if mt, _, _ := Classify(regions, 1, 0x9000010); mt != MemTypeHeap {
		t.Fatalf("heap classify = %v", mt)
	}
	if mt, _, name := Classify(regions, 1, 0xA000010); mt != MemTypeOther || name != "stack" {
		t.Fatalf("stack classify = %v %q", mt, name)
	}
	if mt, _, _ := Classify(regions, 1, 0xDEAD); mt != MemTypeUnknown {
		t.Fatalf("unknown classify = %v", mt)
	}
}

func TestCheatVMAbsRoundTrip(t *testing.T) {
	entries := []MemoryModifyRecord{
		{Addr: 0x1000, PID: 1, Type: TypeU32, Value: 0xDEADBEEF},
	}
	data := SaveAbsAsCheatVM(entries)
	records, err := ParseCheatVM(data)
	if err != nil {
		t.Fatalf("ParseCheatVM: %v", err)
	}
	if len(records) != 1 || records[0].Rel || records[0].Addr != 0x1000 || records[0].Value != 0xDEADBEEF {
		t.Fatalf("round trip mismatch: %+v", records)
	}
}

func TestCheatVMRelRoundTrip(t *testing.T) {
	regions := []MemoryRegion{
		{Kind: RegionModule, PID: 1, BuildID: "build1", Base: 0x8000000, Addr: 0x8000000, Size: 0x100000},
	}
	entries := []MemoryModifyRecord{
		{Addr: 0x8000100, PID: 1, Type: TypeU16, Value: 7},
	}
	data := SaveRelAsCheatVM(entries, regions)
	records, err := ParseCheatVM(data)
	if err != nil {
		t.Fatalf("ParseCheatVM: %v", err)
	}
	if len(records) != 1 || !records[0].Rel || records[0].Offset != 0x100 || records[0].Value != 7 {
		t.Fatalf("round trip mismatch: %+v", records)
	}
	if records[0].BuildID != buildIDHash("build1") {
		t.Fatalf("build id hash mismatch")
	}
}

func TestCheatVMRelSkipsNonModuleEntries(t *testing.T) {
	entries := []MemoryModifyRecord{{Addr: 0x1234, PID: 1, Type: TypeU8, Value: 1}}
	data := SaveRelAsCheatVM(entries, nil)
	if len(data) != 0 {
		t.Fatalf("expected no output for a non-module address, got %d bytes", len(data))
	}
}

func TestDumpSnapshotFormat(t *testing.T) {
	s := newSnapshot()
	s.insert(MemoryModifyRecord{Addr: 0x10, PID: 1, Type: TypeU8, Value: 5, OldValue: 3})
	out := DumpSnapshot(s)
	if out == "" {
		t.Fatalf("expected non-empty dump")
	}
}
