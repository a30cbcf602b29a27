// export_writers.go - memory classification and cheat-VM export formats (C11)

package sniffer

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// MemType is the classification export writers attach to an address: which
// kind of rebasing (if any) a cheat-VM consumer must apply before using the
// address on a future run of the guest.
type MemType int8

const (
	MemTypeUnknown MemType = -2
	MemTypeOther   MemType = -1 // named well-known region, no rebase
	MemTypeModule  MemType = 0  // rebase against module base + build id
	MemTypeHeap    MemType = 1  // rebase against the heap's current base
)

// Classify reports which region addr falls in, in the fixed precedence
// order: a module whose range contains addr first, then the heap, then the
// other six well-known regions by name, else unknown. Matches the original's
// CalcMemoryType precedence.
func Classify(regions []MemoryRegion, pid, addr uint64) (mt MemType, buildID, name string) {
	for _, r := range regions {
		if r.PID != pid || r.Kind != RegionModule {
			continue
		}
		if r.Contains(addr) {
			return MemTypeModule, r.BuildID, r.Name
		}
	}
	for _, r := range regions {
		if r.PID != pid || r.Kind != RegionHeap {
			continue
		}
		if r.Contains(addr) {
			return MemTypeHeap, "", r.Name
		}
	}
	for _, r := range regions {
		if r.PID != pid {
			continue
		}
		switch r.Kind {
		case RegionAlias, RegionStack, RegionKernelMap, RegionCode, RegionAliasCode, RegionAddrSpace:
			if r.Contains(addr) {
				return MemTypeOther, "", r.Name
			}
		}
	}
	return MemTypeUnknown, "", ""
}

// widthCode maps a ValueType to the 2-bit field stored in an export word.
func widthCode(t ValueType) uint32 {
	switch t {
	case TypeU8:
		return 0
	case TypeU16:
		return 1
	case TypeU32:
		return 2
	case TypeU64:
		return 3
	}
	return 2
}

func widthFromCode(c uint32) ValueType {
	switch c & 0x3 {
	case 0:
		return TypeU8
	case 1:
		return TypeU16
	case 3:
		return TypeU64
	default:
		return TypeU32
	}
}

// buildIDHash folds a build id string into a 32-bit tag for the relative
// export format, since a full build id string doesn't fit in a fixed-width
// word stream.
func buildIDHash(buildID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(buildID))
	return h.Sum32()
}

// SaveAbsAsCheatVM encodes snapshot entries as absolute-address cheat-VM
// opcodes: one 5-word record per entry, word0 carrying the opcode tag and
// value width, words 1-2 the full 64-bit address, and the remaining words
// the value zero-extended to 64 bits.
func SaveAbsAsCheatVM(entries []MemoryModifyRecord) []byte {
	var out []byte
	for _, e := range entries {
		word0 := (uint32(0) << 28) | (uint32(widthCode(e.Type)) << 24)
		out = appendU32(out, word0)
		out = appendU32(out, uint32(e.Addr>>32))
		out = appendU32(out, uint32(e.Addr))
		out = appendU32(out, uint32(e.Value>>32))
		out = appendU32(out, uint32(e.Value))
	}
	return out
}

// SaveRelAsCheatVM encodes snapshot entries relative to their owning
// module: word0 carries the opcode tag (1) and width, word1 a hash of the
// module build id, word2 the offset from the module base (low 32 bits),
// words 3-4 the value. Entries that do not resolve to a module (Classify
// returns anything but MemTypeModule) are skipped, matching the original's
// behaviour of silently dropping non-relocatable entries from a relative
// export.
func SaveRelAsCheatVM(entries []MemoryModifyRecord, regions []MemoryRegion) []byte {
	var out []byte
	for _, e := range entries {
		mt, buildID, _ := Classify(regions, e.PID, e.Addr)
		if mt != MemTypeModule {
			continue
		}
		base := moduleBase(regions, e.PID, buildID)
		word0 := (uint32(1) << 28) | (uint32(widthCode(e.Type)) << 24)
		out = appendU32(out, word0)
		out = appendU32(out, buildIDHash(buildID))
		out = appendU32(out, uint32(e.Addr-base))
		out = appendU32(out, uint32(e.Value>>32))
		out = appendU32(out, uint32(e.Value))
	}
	return out
}

func moduleBase(regions []MemoryRegion, pid uint64, buildID string) uint64 {
	for _, r := range regions {
		if r.PID == pid && r.Kind == RegionModule && r.BuildID == buildID {
			return r.Base
		}
	}
	return 0
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// CheatVMRecord is one decoded record from an Abs or Rel export, used to
// verify export/parse round-trips (§8 property 7).
type CheatVMRecord struct {
	Rel      bool
	Type     ValueType
	Addr     uint64 // absolute address for an Abs record
	BuildID  uint32 // build id hash for a Rel record
	Offset   uint64 // module offset for a Rel record
	Value    uint64
}

// ParseCheatVM decodes a byte stream produced by either writer above.
func ParseCheatVM(data []byte) ([]CheatVMRecord, error) {
	const recordWords = 5
	const wordBytes = 4
	if len(data)%(recordWords*wordBytes) != 0 {
		return nil, fmt.Errorf("cheat-vm stream length %d is not a multiple of %d", len(data), recordWords*wordBytes)
	}
	var out []CheatVMRecord
	for off := 0; off < len(data); off += recordWords * wordBytes {
		w := func(i int) uint32 { return binary.BigEndian.Uint32(data[off+i*wordBytes:]) }
		word0 := w(0)
		rel := (word0 >> 28) == 1
		t := widthFromCode(word0 >> 24)
		rec := CheatVMRecord{Rel: rel, Type: t}
		if rel {
			rec.BuildID = w(1)
			rec.Offset = uint64(w(2))
		} else {
			rec.Addr = uint64(w(1))<<32 | uint64(w(2))
		}
		rec.Value = uint64(w(3))<<32 | uint64(w(4))
		out = append(out, rec)
	}
	return out, nil
}

// DumpSnapshot renders a snapshot in the human-readable result/history/
// rollback dump format: one line per entry, address, pid, type, and value.
func DumpSnapshot(s *Snapshot) string {
	var b strings.Builder
	for _, e := range s.Entries() {
		fmt.Fprintf(&b, "pid=%d addr=%#016x type=%s value=%#x old=%#x\n", e.PID, e.Addr, e.Type, e.Value, e.OldValue)
	}
	return b.String()
}

// DumpHistory renders every entry of a history or rollback stack, oldest
// first, each prefixed with its stack depth.
func DumpHistory(stack []*Snapshot) string {
	var b strings.Builder
	for i, s := range stack {
		fmt.Fprintf(&b, "-- depth %d --\n", i)
		b.WriteString(DumpSnapshot(s))
	}
	return b.String()
}
