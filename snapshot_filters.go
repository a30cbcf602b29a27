// snapshot_filters.go - keep* predicates over the snapshot store (C5)

package sniffer

// KeepUnchanged restricts result to the addresses that did not change.
// RefreshSnapshot (H2) already drops unchanged addresses from result as it
// rebuilds it from the top of history, so those addresses must be restored
// from history rather than found by re-filtering result; any surviving
// result entry whose value equals its own recorded OldValue is unchanged
// too and is kept alongside them. A no-op when history is empty (§7:
// filter on empty history is a no-op, H1).
func (s *SnapshotStore) KeepUnchanged(debugSnapshot bool) {
	if len(s.history) == 0 {
		return
	}
	if debugSnapshot {
		s.SetDebugSnapshot()
	}
	prevSnap := s.history[len(s.history)-1]
	next := newSnapshot()
	for _, rec := range prevSnap.Entries() {
		if _, stillPresent := s.result.records[rec.Addr]; stillPresent {
			continue
		}
		next.insert(MemoryModifyRecord{Addr: rec.Addr, PID: rec.PID, Type: rec.Type, Value: rec.Value, OldValue: rec.Value})
	}
	for _, rec := range s.result.Entries() {
		if rec.Value == rec.OldValue {
			next.insert(rec)
		}
	}
	s.result = next
}

// KeepChanged restricts result to entries whose value differs from the
// previous history entry.
func (s *SnapshotStore) KeepChanged(debugSnapshot bool) {
	s.applyKeep(debugSnapshot, func(cur, prev MemoryModifyRecord) bool {
		return cur.Value != prev.Value
	})
}

// KeepIncreased restricts result to entries whose value (interpreted as an
// unsigned integer of the entry's declared width) is strictly greater than
// the previous history entry's value.
func (s *SnapshotStore) KeepIncreased(debugSnapshot bool) {
	s.applyKeep(debugSnapshot, func(cur, prev MemoryModifyRecord) bool {
		return cur.Value > prev.Value
	})
}

// KeepDecreased restricts result to entries whose value is strictly less
// than the previous history entry's value.
func (s *SnapshotStore) KeepDecreased(debugSnapshot bool) {
	s.applyKeep(debugSnapshot, func(cur, prev MemoryModifyRecord) bool {
		return cur.Value < prev.Value
	})
}

// KeepValue restricts result to entries whose current value equals target,
// independent of history — the one filter that does not compare against a
// previous snapshot.
func (s *SnapshotStore) KeepValue(debugSnapshot bool, target uint64) {
	if debugSnapshot {
		s.SetDebugSnapshot()
	}
	next := newSnapshot()
	for _, rec := range s.result.Entries() {
		if rec.Value == target {
			next.insert(rec)
		}
	}
	s.result = next
}

// applyKeep is the shared shape of the four history-comparing filters: for
// every entry still present in result, look up the same address in the
// most recent history snapshot and keep it only if pred holds. An address
// absent from history is dropped, matching the original's behaviour of
// only ever comparing entries that exist on both sides.
func (s *SnapshotStore) applyKeep(debugSnapshot bool, pred func(cur, prev MemoryModifyRecord) bool) {
	if len(s.history) == 0 {
		return
	}
	if debugSnapshot {
		s.SetDebugSnapshot()
	}
	prevSnap := s.history[len(s.history)-1]
	next := newSnapshot()
	for _, rec := range s.result.Entries() {
		prev, ok := prevSnap.records[rec.Addr]
		if !ok {
			continue
		}
		if pred(rec, prev) {
			next.insert(rec)
		}
	}
	s.result = next
}
