// types.go - core data model for the guest memory sniffer

package sniffer

import "fmt"

// GuestAddress identifies a byte in a guest process's virtual address space.
// It carries no region information of its own; region membership is derived
// on demand from the process's registered memory parameters (see
// Classify in export_writers.go).
type GuestAddress struct {
	PID  uint64
	Addr uint64
}

func (a GuestAddress) String() string {
	return fmt.Sprintf("pid=%d addr=%#x", a.PID, a.Addr)
}

// ValueType is the width/signedness tag carried on every memory modify
// record. Only unsigned widths are modeled; the original format has no
// signed variants in the sniffer's own wire format (signedness is a
// scripting-layer concern, out of scope here).
type ValueType int

const (
	TypeU8 ValueType = iota
	TypeU16
	TypeU32
	TypeU64
)

func (t ValueType) Size() int {
	switch t {
	case TypeU8:
		return 1
	case TypeU16:
		return 2
	case TypeU32:
		return 4
	case TypeU64:
		return 8
	default:
		return 0
	}
}

func (t ValueType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	default:
		return "unknown"
	}
}

// RegionKind classifies a registered memory region. Module is used for any
// region keyed by a build ID rather than one of the seven well-known kinds.
type RegionKind int

const (
	RegionUnknown RegionKind = iota
	RegionHeap
	RegionAlias
	RegionStack
	RegionKernelMap
	RegionCode
	RegionAliasCode
	RegionAddrSpace
	RegionModule
)

func (k RegionKind) String() string {
	switch k {
	case RegionHeap:
		return "heap"
	case RegionAlias:
		return "alias"
	case RegionStack:
		return "stack"
	case RegionKernelMap:
		return "kernel_map"
	case RegionCode:
		return "code"
	case RegionAliasCode:
		return "alias_code"
	case RegionAddrSpace:
		return "addr_space"
	case RegionModule:
		return "module"
	default:
		return "unknown"
	}
}

// MemoryRegion describes one registered region of a guest process's address
// space, as handed to the engine by the host via AddModuleMemoryParameters
// or SetWellKnownRegion (one call per well-known kind).
type MemoryRegion struct {
	Kind      RegionKind
	Name      string // module name, empty for well-known regions
	BuildID   string // module build id, empty for well-known regions
	Base      uint64 // load base (module rebase origin); 0 for well-known regions
	Addr      uint64 // region start address in the guest
	Size      uint64
	ProgramID uint64
	PID       uint64
}

func (r MemoryRegion) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.Addr+r.Size
}

// MemoryModifyRecord is one entry of a memory snapshot: the address sniffed,
// its declared width, the value observed at capture time, and (after at
// least one refresh) the value it held before that refresh.
type MemoryModifyRecord struct {
	Addr     uint64
	PID      uint64
	Type     ValueType
	OldValue uint64
	Value    uint64
}

// Process is the minimal view of a guest process the engine needs from the
// host's process registry (C2). It is supplied by the caller, never
// implemented here.
type Process struct {
	ProgramID uint64
	PID       uint64
	IsAArch32 bool
}

// BacktraceEntry is one frame produced by a stack walk, used by the register
// dumper and by optional call-stack logging on a watch match.
type BacktraceEntry struct {
	Module          string
	Address         uint64
	OriginalAddress uint64
	Offset          uint64
	Name            string
}

// Session is an opaque, host-assigned service-session descriptor the engine
// tracks so svc trace events can be attributed to a session by name.
type Session struct {
	ID     uint64
	Name   string
	Handle uint32
}
