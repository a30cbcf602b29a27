// conditions.go - conditional breakpoint expressions (supplemental, C6)

package sniffer

import (
	"fmt"
	"strconv"
	"strings"
)

// CondOp is the comparison operator in a breakpoint condition.
type CondOp int

const (
	CondEqual CondOp = iota
	CondNotEqual
	CondLess
	CondGreater
	CondLessEqual
	CondGreaterEqual
)

// CondSource is what a breakpoint condition compares: a register, a guest
// memory word, or the breakpoint's own hit count.
type CondSource int

const (
	CondSourceRegister CondSource = iota
	CondSourceMemory
	CondSourceHitCount
)

// Condition is a single comparison guarding whether a breakpoint actually
// traps once the host sees the patched trap word executed. The sniffer
// itself never evaluates register values (it has no CPU state beyond
// ArmCore), so Evaluate takes the register snapshot and memory reader it
// needs from the caller.
type Condition struct {
	Source  CondSource
	RegName string
	MemAddr uint64
	MemSize int
	Op      CondOp
	Value   uint64
}

// ParseCondition parses a condition string into a Condition. Supported
// forms:
//
//	r1==$FF        register R1, op ==, value 0xFF
//	[$1000]==$42   guest memory at 0x1000, op ==, value 0x42
//	hitcount>10    hit count, op >, value 10
func ParseCondition(text string) (*Condition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty condition")
	}

	op, opText, rest := splitOperator(text)
	if opText == "" {
		return nil, fmt.Errorf("no comparison operator in %q", text)
	}
	lhs := strings.TrimSpace(rest[0])
	rhsText := strings.TrimSpace(rest[1])

	value, ok := ParseAddress(rhsText)
	if !ok {
		return nil, fmt.Errorf("invalid value %q", rhsText)
	}

	if strings.EqualFold(lhs, "hitcount") {
		return &Condition{Source: CondSourceHitCount, Op: op, Value: value}, nil
	}
	if strings.HasPrefix(lhs, "[") && strings.HasSuffix(lhs, "]") {
		addrText := lhs[1 : len(lhs)-1]
		addr, ok := ParseAddress(addrText)
		if !ok {
			return nil, fmt.Errorf("invalid memory address %q", addrText)
		}
		return &Condition{Source: CondSourceMemory, MemAddr: addr, MemSize: 1, Op: op, Value: value}, nil
	}
	return &Condition{Source: CondSourceRegister, RegName: strings.ToUpper(lhs), Op: op, Value: value}, nil
}

// ParseAddress parses a numeric literal in $hex, 0x-hex, or bare-decimal
// form, used by ParseCondition for both operands.
func ParseAddress(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "$") {
		v, err := strconv.ParseUint(s[1:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	return v, err == nil
}

func splitOperator(text string) (CondOp, string, [2]string) {
	ops := []struct {
		text string
		op   CondOp
	}{
		{"==", CondEqual},
		{"!=", CondNotEqual},
		{"<=", CondLessEqual},
		{">=", CondGreaterEqual},
		{"<", CondLess},
		{">", CondGreater},
	}
	for _, o := range ops {
		if idx := strings.Index(text, o.text); idx >= 0 {
			return o.op, o.text, [2]string{text[:idx], text[idx+len(o.text):]}
		}
	}
	return 0, "", [2]string{}
}

// Evaluate reports whether the condition currently holds, given the
// register values and guest-memory reader active for the core that hit the
// breakpoint.
func (c *Condition) Evaluate(registers map[string]uint64, mem GuestMemory, pid uint64, hitCount uint64) bool {
	var lhs uint64
	switch c.Source {
	case CondSourceRegister:
		v, ok := registers[c.RegName]
		if !ok {
			return false
		}
		lhs = v
	case CondSourceMemory:
		if !mem.IsValidRange(pid, c.MemAddr, uint64(c.MemSize)) {
			return false
		}
		lhs = readUint(mem.Read(pid, c.MemAddr, uint64(c.MemSize)))
	case CondSourceHitCount:
		lhs = hitCount
	}
	return compare(lhs, c.Op, c.Value)
}

func compare(lhs uint64, op CondOp, rhs uint64) bool {
	switch op {
	case CondEqual:
		return lhs == rhs
	case CondNotEqual:
		return lhs != rhs
	case CondLess:
		return lhs < rhs
	case CondGreater:
		return lhs > rhs
	case CondLessEqual:
		return lhs <= rhs
	case CondGreaterEqual:
		return lhs >= rhs
	}
	return false
}

// Format renders a Condition back to its textual form, the inverse of
// ParseCondition.
func (c *Condition) Format() string {
	var lhs string
	switch c.Source {
	case CondSourceRegister:
		lhs = strings.ToLower(c.RegName)
	case CondSourceMemory:
		lhs = fmt.Sprintf("[$%X]", c.MemAddr)
	case CondSourceHitCount:
		lhs = "hitcount"
	}
	opText := map[CondOp]string{
		CondEqual: "==", CondNotEqual: "!=", CondLess: "<",
		CondGreater: ">", CondLessEqual: "<=", CondGreaterEqual: ">=",
	}[c.Op]
	return fmt.Sprintf("%s%s$%X", lhs, opText, c.Value)
}
