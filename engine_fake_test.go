// engine_fake_test.go - fake GuestMemory/ProcessRegistry for tests

package sniffer

import "context"

// fakeMemory is an in-process guest address space backed by a flat byte
// slice, good enough to exercise every snapshot/breakpoint/export path
// without a real emulator.
type fakeMemory struct {
	base uint64
	data []byte
}

func newFakeMemory(base uint64, size int) *fakeMemory {
	return &fakeMemory{base: base, data: make([]byte, size)}
}

func (m *fakeMemory) IsValidRange(pid, addr, size uint64) bool {
	if addr < m.base {
		return false
	}
	off := addr - m.base
	return off+size <= uint64(len(m.data))
}

func (m *fakeMemory) Read(pid, addr, size uint64) []byte {
	off := addr - m.base
	out := make([]byte, size)
	copy(out, m.data[off:off+size])
	return out
}

func (m *fakeMemory) Write(pid, addr uint64, data []byte) {
	off := addr - m.base
	copy(m.data[off:], data)
}

func (m *fakeMemory) putU32(addr uint64, v uint32) {
	m.Write(0, addr, uint32Bytes(v))
}

// fakeRegistry has no processes or cores registered; tests that need a
// core construct a fakeCore directly.
type fakeRegistry struct {
	cores []ArmCore
}

func (r *fakeRegistry) Lookup(pid uint64) (Process, bool) { return Process{}, false }

func (r *fakeRegistry) Core(i int) (ArmCore, bool) {
	if i < 0 || i >= len(r.cores) {
		return nil, false
	}
	return r.cores[i], true
}

func (r *fakeRegistry) CoreCount() int { return len(r.cores) }

// fakeCore is a minimal ArmCore for register-dump and backtrace tests.
type fakeCore struct {
	pc, sp, pstate, tpidr uint64
	gen                   [29]uint64
	vec                   [32][2]uint64
	stack                 []uint64
	tls                   []uint64
	frames                []BacktraceEntry
}

func (c *fakeCore) PC() uint64                { return c.pc }
func (c *fakeCore) Registers() [29]uint64     { return c.gen }
func (c *fakeCore) VectorRegisters() [32][2]uint64 { return c.vec }
func (c *fakeCore) SP() uint64                { return c.sp }
func (c *fakeCore) PState() uint64            { return c.pstate }
func (c *fakeCore) TPIDREL0() uint64          { return c.tpidr }

func (c *fakeCore) StackWords(ctx context.Context, n int) []uint64 {
	if n > len(c.stack) {
		n = len(c.stack)
	}
	return c.stack[:n]
}

func (c *fakeCore) TLSWords(ctx context.Context, n int) []uint64 {
	if n > len(c.tls) {
		n = len(c.tls)
	}
	return c.tls[:n]
}

func (c *fakeCore) Backtrace(ctx context.Context, depth int) []BacktraceEntry {
	if depth > len(c.frames) {
		depth = len(c.frames)
	}
	return c.frames[:depth]
}
