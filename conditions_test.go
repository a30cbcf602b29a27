// conditions_test.go

package sniffer

import "testing"

func TestParseConditionRegister(t *testing.T) {
	c, err := ParseCondition("r1==$FF")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if c.Source != CondSourceRegister || c.RegName != "R1" || c.Value != 0xFF || c.Op != CondEqual {
		t.Fatalf("parsed condition = %+v", c)
	}
}

func TestParseConditionMemory(t *testing.T) {
	c, err := ParseCondition("[$1000]==$42")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if c.Source != CondSourceMemory || c.MemAddr != 0x1000 || c.Value != 0x42 {
		t.Fatalf("parsed condition = %+v", c)
	}
}

func TestParseConditionHitCount(t *testing.T) {
	c, err := ParseCondition("hitcount>10")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if c.Source != CondSourceHitCount || c.Op != CondGreater || c.Value != 10 {
		t.Fatalf("parsed condition = %+v", c)
	}
}

func TestParseConditionInvalid(t *testing.T) {
	if _, err := ParseCondition(""); err == nil {
		t.Fatalf("expected error for empty condition")
	}
	if _, err := ParseCondition("r1 $FF"); err == nil {
		t.Fatalf("expected error for missing operator")
	}
}

func TestConditionEvaluate(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x10)
	mem.putU32(0x1000, 0x42)

	memCond, _ := ParseCondition("[$1000]==$42")
	if !memCond.Evaluate(nil, mem, 1, 0) {
		t.Fatalf("memory condition should hold")
	}

	regCond, _ := ParseCondition("r0>=$5")
	if !regCond.Evaluate(map[string]uint64{"R0": 5}, mem, 1, 0) {
		t.Fatalf("register condition should hold at the boundary")
	}
	if regCond.Evaluate(map[string]uint64{"R0": 4}, mem, 1, 0) {
		t.Fatalf("register condition should not hold below the boundary")
	}

	hitCond, _ := ParseCondition("hitcount>2")
	if hitCond.Evaluate(nil, mem, 1, 2) {
		t.Fatalf("hitcount condition should not hold at the boundary")
	}
	if !hitCond.Evaluate(nil, mem, 1, 3) {
		t.Fatalf("hitcount condition should hold above the boundary")
	}
}

func TestConditionFormatRoundTrip(t *testing.T) {
	for _, text := range []string{"r1==$FF", "[$1000]==$42", "hitcount>$A"} {
		c, err := ParseCondition(text)
		if err != nil {
			t.Fatalf("ParseCondition(%q): %v", text, err)
		}
		reparsed, err := ParseCondition(c.Format())
		if err != nil {
			t.Fatalf("ParseCondition(Format(%q)) = %v", text, err)
		}
		if reparsed.Source != c.Source || reparsed.Op != c.Op || reparsed.Value != c.Value {
			t.Fatalf("round trip mismatch for %q: %+v vs %+v", text, c, reparsed)
		}
	}
}
