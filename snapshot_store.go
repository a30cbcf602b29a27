// snapshot_store.go - snapshot store and add/refresh/rollback (C4)

package sniffer

import "sort"

// Snapshot is an ordered address -> modify-record map, ordered by address
// for deterministic dumping. It is always read through SnapshotStore, never
// mutated by a filter directly (H1).
type Snapshot struct {
	order   []uint64
	records map[uint64]MemoryModifyRecord
}

func newSnapshot() *Snapshot {
	return &Snapshot{records: make(map[uint64]MemoryModifyRecord)}
}

func (s *Snapshot) insert(r MemoryModifyRecord) {
	if _, exists := s.records[r.Addr]; !exists {
		s.order = append(s.order, r.Addr)
	}
	s.records[r.Addr] = r
}

func (s *Snapshot) Len() int { return len(s.order) }

// Entries returns the snapshot's records in ascending address order.
func (s *Snapshot) Entries() []MemoryModifyRecord {
	out := make([]MemoryModifyRecord, 0, len(s.order))
	for _, addr := range s.order {
		out = append(out, s.records[addr])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func (s *Snapshot) clone() *Snapshot {
	c := newSnapshot()
	c.order = append([]uint64(nil), s.order...)
	for k, v := range s.records {
		c.records[k] = v
	}
	return c
}

// SnapshotStore holds the live result plus the history and rollback stacks
// used by RefreshSnapshot and the keep* filters. Every mutation must happen
// on the host's main thread (§5); this package does not enforce that, it
// only documents it, matching the original's g_only_on_main_thread
// convention.
type SnapshotStore struct {
	result   *Snapshot
	history  []*Snapshot // most recent last
	rollback []*Snapshot // most recent last
	mem      GuestMemory
}

func NewSnapshotStore(mem GuestMemory) *SnapshotStore {
	return &SnapshotStore{result: newSnapshot(), mem: mem}
}

// Result returns the store's current live snapshot.
func (s *SnapshotStore) Result() *Snapshot { return s.result }

// History returns the history stack, oldest first.
func (s *SnapshotStore) History() []*Snapshot { return s.history }

// RollbackStack returns the rollback stack, oldest first.
func (s *SnapshotStore) RollbackStack() []*Snapshot { return s.rollback }

// AddSniffing scans [start, start+size) in step-sized strides and inserts a
// record for every address whose guest value matches matchValue, or every
// address unconditionally when matchValue == 0 ("newval == cur_val ||
// cur_val == 0" in the original). The value's type is exactly the scan
// step (1/2/4/8 bytes -> u8/u16/u32/u64); any other positive step is not
// rejected: it keeps its own stride and reads a u32 at each address, and a
// step <= 0 is treated as 1.
// Invalid ranges are skipped silently, one address at a time, per §7.
// Inserted records always carry OldValue 0, matching the original's
// zero-initialized oldval at insertion time.
func (s *SnapshotStore) AddSniffing(pid uint64, start, size uint64, step int, matchValue uint64) int {
	if step <= 0 {
		step = 1
	}
	t := typeFromStep(step)
	n := uint64(t.Size())
	added := 0
	for addr := start; addr < start+size; addr += uint64(step) {
		if !s.mem.IsValidRange(pid, addr, n) {
			continue
		}
		val := readUint(s.mem.Read(pid, addr, n))
		if matchValue != 0 && val != matchValue {
			continue
		}
		s.result.insert(MemoryModifyRecord{Addr: addr, PID: pid, Type: t, Value: val, OldValue: 0})
		added++
	}
	return added
}

// typeFromStep maps a scan stride directly to the value type it reads,
// defaulting to u32 for any stride other than the four supported widths.
func typeFromStep(step int) ValueType {
	switch step {
	case 1:
		return TypeU8
	case 2:
		return TypeU16
	case 8:
		return TypeU64
	default:
		return TypeU32
	}
}

func readUint(b []byte) uint64 {
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * uint(i))
	}
	return v
}

// RefreshSnapshot pushes the current result onto history (if non-empty),
// then re-reads the guest at every address recorded in the snapshot that is
// now on top of history, keeping only entries whose freshly read value
// differs from the one stored there. This is the exact two-step algorithm
// the original performs: H2.
func (s *SnapshotStore) RefreshSnapshot() {
	if s.result.Len() > 0 {
		s.history = append(s.history, s.result)
	}
	if len(s.history) == 0 {
		s.result = newSnapshot()
		return
	}
	top := s.history[len(s.history)-1]
	next := newSnapshot()
	for _, rec := range top.Entries() {
		n := uint64(rec.Type.Size())
		if !s.mem.IsValidRange(rec.PID, rec.Addr, n) {
			continue
		}
		newVal := readUint(s.mem.Read(rec.PID, rec.Addr, n))
		if newVal == rec.Value {
			continue
		}
		next.insert(MemoryModifyRecord{Addr: rec.Addr, PID: rec.PID, Type: rec.Type, Value: newVal, OldValue: rec.Value})
	}
	s.result = next
}

// Rollback pushes the current result onto the rollback stack and pops the
// most recent history entry into result (H3). A no-op when history is
// empty.
func (s *SnapshotStore) Rollback() {
	if len(s.history) == 0 {
		return
	}
	last := len(s.history) - 1
	s.rollback = append(s.rollback, s.result)
	s.result = s.history[last]
	s.history = s.history[:last]
}

// Unrollback is the exact inverse of Rollback (H3): pops the rollback stack
// back into history and restores its top into result. A no-op when the
// rollback stack is empty.
func (s *SnapshotStore) Unrollback() {
	if len(s.rollback) == 0 {
		return
	}
	last := len(s.rollback) - 1
	s.history = append(s.history, s.result)
	s.result = s.rollback[last]
	s.rollback = s.rollback[:last]
}

// SetDebugSnapshot pushes the current result to history without reading the
// guest, used before a keep* filter call so the pre-filter state is
// recoverable via Rollback. Grounded on the original's debugSnapshot flag
// threaded through every Keep* member.
func (s *SnapshotStore) SetDebugSnapshot() {
	if s.result.Len() > 0 {
		s.history = append(s.history, s.result.clone())
	}
}
