// engine.go - engine context wiring C3-C11 (A1)

package sniffer

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Config bounds the engine's resource usage; defaults mirror the
// original's constructor defaults.
type Config struct {
	MaxStepCount    int
	MaxPCCount      int
	MaxBacktrace    int
	UsePCCountArray bool
}

// DefaultConfig returns the engine's out-of-the-box limits.
func DefaultConfig() Config {
	return Config{MaxStepCount: 20000, MaxPCCount: 10, MaxBacktrace: 16, UsePCCountArray: true}
}

// Engine is the explicit context object every sniffer operation runs
// against: no package-level state, no hidden globals, matching the
// adaptation of the original's scattered statics into one struct passed by
// reference (§9).
type Engine struct {
	cfg Config
	log *log.Logger

	registry ProcessRegistry
	mem      GuestMemory

	dispatcher *Dispatcher
	store      *SnapshotStore
	breakpoint *BreakpointTable
	watch      *WatchRegistry
	pcCounter  *PCCounter
	trace      *TraceBuffer

	sessionMu sync.RWMutex
	sessions  map[uint64]Session

	regionMu sync.RWMutex
	regions  []MemoryRegion
}

// NewEngine builds an engine against a host's guest-memory and
// process-registry implementations. mem is used directly by the snapshot
// store and breakpoint table; the registry supplies cores for register
// dumps and watch/svc trace handling.
func NewEngine(mem GuestMemory, registry ProcessRegistry, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	w := NewWatchRegistry()
	w.SetMaxStepCount(cfg.MaxStepCount)
	pc := NewPCCounter()
	pc.SetEnabled(cfg.UsePCCountArray)

	return &Engine{
		cfg:        cfg,
		log:        logger,
		mem:        mem,
		registry:   registry,
		dispatcher: NewDispatcher(),
		store:      NewSnapshotStore(mem),
		breakpoint: NewBreakpointTable(mem),
		watch:      w,
		pcCounter:  pc,
		trace:      NewTraceBuffer(),
		sessions:   make(map[uint64]Session),
	}
}

// AddModuleMemoryParameters registers a loaded module's address range so
// Classify and the cheat-VM export writers can resolve addresses within it
// back to a (build id, offset) pair.
func (e *Engine) AddModuleMemoryParameters(r MemoryRegion) {
	r.Kind = RegionModule
	e.regionMu.Lock()
	defer e.regionMu.Unlock()
	e.regions = append(e.regions, r)
}

// ClearModuleMemoryParameters forgets every registered module region for a
// process, e.g. when the guest unloads or reloads its code.
func (e *Engine) ClearModuleMemoryParameters(pid uint64) {
	e.regionMu.Lock()
	defer e.regionMu.Unlock()
	kept := e.regions[:0]
	for _, r := range e.regions {
		if r.PID != pid || r.Kind != RegionModule {
			kept = append(kept, r)
		}
	}
	e.regions = kept
}

// SetWellKnownRegion registers one of the seven fixed region kinds
// (heap, alias, stack, kernel map, code, alias code, address space) for a
// process.
func (e *Engine) SetWellKnownRegion(kind RegionKind, pid uint64, addr, size uint64) {
	e.regionMu.Lock()
	defer e.regionMu.Unlock()
	for i, r := range e.regions {
		if r.PID == pid && r.Kind == kind {
			e.regions[i].Addr, e.regions[i].Size = addr, size
			return
		}
	}
	e.regions = append(e.regions, MemoryRegion{Kind: kind, PID: pid, Addr: addr, Size: size})
}

func (e *Engine) regionsSnapshot() []MemoryRegion {
	e.regionMu.RLock()
	defer e.regionMu.RUnlock()
	out := make([]MemoryRegion, len(e.regions))
	copy(out, e.regions)
	return out
}

// RegisterSession records a service-session descriptor so later svc trace
// events can be attributed to it by name.
func (e *Engine) RegisterSession(s Session) {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	e.sessions[s.ID] = s
}

func (e *Engine) session(id uint64) (Session, bool) {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	s, ok := e.sessions[id]
	return s, ok
}

// OnBreakpointHit is called by the host when a core traps on a patched
// instruction. When the breakpoint's condition (if any) holds, it appends a
// trace line and, if call-stack logging is enabled, a backtrace. It does not
// post the event to the dispatcher.
func (e *Engine) OnBreakpointHit(coreIndex int, pid, addr uint64) {
	core, ok := e.registry.Core(coreIndex)
	if !ok {
		return
	}
	if !e.breakpoint.ShouldTrap(pid, addr, registerSnapshot(core), e.mem) {
		return
	}
	e.appendTraceForHit("breakpoint", pid, addr, core)
}

// registerSnapshot names a core's general registers R0.. for Condition
// evaluation, the only point where the engine needs them as a map instead
// of the fixed-size array ArmCore exposes.
func registerSnapshot(core ArmCore) map[string]uint64 {
	regs := core.Registers()
	out := make(map[string]uint64, len(regs)+1)
	for i, v := range regs {
		out[fmt.Sprintf("R%d", i)] = v
	}
	out["SP"] = core.SP()
	return out
}

// OnWatchMatch is called by the host when a memory access matches a
// registered watchpoint of the given kind.
func (e *Engine) OnWatchMatch(kind WatchKind, coreIndex int, pid, addr uint64) {
	if !e.watch.Check(kind, addr, 1) {
		return
	}
	core, ok := e.registry.Core(coreIndex)
	if !ok {
		return
	}
	e.appendTraceForHit("watch:"+kind.String(), pid, addr, core)
}

func (e *Engine) appendTraceForHit(label string, pid, addr uint64, core ArmCore) {
	e.trace.Append(label + " " + GuestAddress{PID: pid, Addr: addr}.String())
	if e.watch.shouldLogCallStack() {
		for i, f := range core.Backtrace(context.Background(), e.cfg.MaxBacktrace) {
			e.trace.Append(fmt.Sprintf("  #%d %s+%#x (%#x)", i, f.Name, f.Offset, f.Address))
		}
	}
}

// Dispatcher, Store, Breakpoints, Watches, PCCounter, and Trace expose the
// wired sub-components so the command surface and scripting bridge can
// operate on them without reaching into engine internals.
func (e *Engine) Dispatcher() *Dispatcher     { return e.dispatcher }
func (e *Engine) Store() *SnapshotStore       { return e.store }
func (e *Engine) Breakpoints() *BreakpointTable { return e.breakpoint }
func (e *Engine) Watches() *WatchRegistry     { return e.watch }
func (e *Engine) PCCounter() *PCCounter       { return e.pcCounter }
func (e *Engine) Trace() *TraceBuffer         { return e.trace }
func (e *Engine) Registry() ProcessRegistry   { return e.registry }
func (e *Engine) Regions() []MemoryRegion     { return e.regionsSnapshot() }
func (e *Engine) Logger() *log.Logger         { return e.log }
