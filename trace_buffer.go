// trace_buffer.go - trace buffer and register dumper (C9)

package sniffer

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// TraceBuffer is a single growing text stream that watch/breakpoint events,
// svc logs, and register dumps are appended to. It has its own lock,
// acquired after the PC-count lock and before nothing else (§5's lock
// order ends here).
type TraceBuffer struct {
	mu    sync.Mutex
	lines []string
}

func NewTraceBuffer() *TraceBuffer {
	return &TraceBuffer{}
}

// Append adds one line to the buffer.
func (t *TraceBuffer) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
}

// Dump returns every line joined with newlines.
func (t *TraceBuffer) Dump() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// Clear empties the buffer.
func (t *TraceBuffer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
}

// Len reports how many lines are currently buffered.
func (t *TraceBuffer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// DumpRegisters renders a register dump for one core in the fixed layout:
// a session/cpu identifier line, 29 general registers at 16 per line, 32
// vector registers at 16 halves per line, up to 32 stack words, up to 16
// TLS words, the scalar registers, and an optional backtrace.
func DumpRegisters(ctx context.Context, id string, core ArmCore, withBacktrace bool, backtraceDepth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== registers: %s ==\n", id)

	gen := core.Registers()
	writeRegisterRows(&b, "r", gen[:], 16)

	vec := core.VectorRegisters()
	flat := make([]uint64, 0, len(vec)*2)
	for _, v := range vec {
		flat = append(flat, v[0], v[1])
	}
	writeRegisterRows(&b, "v", flat, 16)

	stack := core.StackWords(ctx, 32)
	if len(stack) > 32 {
		stack = stack[:32]
	}
	writeRegisterRows(&b, "sp+", stack, 8)

	tls := core.TLSWords(ctx, 16)
	if len(tls) > 16 {
		tls = tls[:16]
	}
	writeRegisterRows(&b, "tls+", tls, 8)

	fmt.Fprintf(&b, "pc=%#016x sp=%#016x pstate=%#016x tpidr_el0=%#016x\n",
		core.PC(), core.SP(), core.PState(), core.TPIDREL0())

	if withBacktrace {
		frames := core.Backtrace(ctx, backtraceDepth)
		b.WriteString("backtrace:\n")
		for i, f := range frames {
			fmt.Fprintf(&b, "  #%d %s+%#x (%#x)\n", i, f.Name, f.Offset, f.Address)
		}
	}

	return b.String()
}

func writeRegisterRows(b *strings.Builder, prefix string, values []uint64, perLine int) {
	for i := 0; i < len(values); i += perLine {
		end := i + perLine
		if end > len(values) {
			end = len(values)
		}
		for j := i; j < end; j++ {
			fmt.Fprintf(b, "%s%02d=%#016x ", prefix, j, values[j])
		}
		b.WriteString("\n")
	}
}
