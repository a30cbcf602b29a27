// breakpoint_table_test.go

package sniffer

import "testing"

func TestBreakpointAddRemoveRoundTrip(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x100)
	mem.putU32(0x1000, 0xAABBCCDD)
	table := NewBreakpointTable(mem)

	if !table.Add(1, 0x1000, false) {
		t.Fatalf("Add failed")
	}
	patched := mem.Read(1, 0x1000, 4)
	if readUint32(patched) != a64TrapWord {
		t.Fatalf("patched word = %#x, want trap word", readUint32(patched))
	}

	if !table.Remove(1, 0x1000) {
		t.Fatalf("Remove failed")
	}
	restored := mem.Read(1, 0x1000, 4)
	if readUint32(restored) != 0xAABBCCDD {
		t.Fatalf("restored word = %#x, want original", readUint32(restored))
	}
}

func TestBreakpointEnableDisable(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x10)
	mem.putU32(0x1000, 0x11111111)
	table := NewBreakpointTable(mem)
	table.Add(1, 0x1000, true)

	table.Disable(1, 0x1000)
	if readUint32(mem.Read(1, 0x1000, 4)) != 0x11111111 {
		t.Fatalf("disable did not restore original word")
	}
	table.Enable(1, 0x1000, true)
	if readUint32(mem.Read(1, 0x1000, 4)) != a32TrapWord {
		t.Fatalf("enable did not re-patch trap word")
	}
}

func TestBreakpointClear(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x100)
	mem.putU32(0x1000, 1)
	mem.putU32(0x1004, 2)
	table := NewBreakpointTable(mem)
	table.Add(1, 0x1000, false)
	table.Add(1, 0x1004, false)

	table.Clear(1)
	if len(table.List(1)) != 0 {
		t.Fatalf("Clear left breakpoints")
	}
	if readUint32(mem.Read(1, 0x1000, 4)) != 1 || readUint32(mem.Read(1, 0x1004, 4)) != 2 {
		t.Fatalf("Clear did not restore all original words")
	}
}

func TestBreakpointConditionGatesTrap(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x10)
	mem.putU32(0x1000, 1)
	table := NewBreakpointTable(mem)
	table.Add(1, 0x1000, false)
	cond, err := ParseCondition("r0==$5")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	table.SetCondition(1, 0x1000, cond)

	if table.ShouldTrap(1, 0x1000, map[string]uint64{"R0": 4}, mem) {
		t.Fatalf("condition r0==5 should not trap when r0=4")
	}
	if !table.ShouldTrap(1, 0x1000, map[string]uint64{"R0": 5}, mem) {
		t.Fatalf("condition r0==5 should trap when r0=5")
	}
}
