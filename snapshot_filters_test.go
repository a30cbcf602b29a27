// snapshot_filters_test.go

package sniffer

import "testing"

func buildStoreWithHistory(t *testing.T) (*SnapshotStore, *fakeMemory) {
	t.Helper()
	mem := newFakeMemory(0x1000, 0x100)
	mem.putU32(0x1000, 10) // will stay the same
	mem.putU32(0x1004, 20) // will increase
	mem.putU32(0x1008, 30) // will decrease
	store := NewSnapshotStore(mem)
	store.AddSniffing(1, 0x1000, 0xC, 4, 0) // unconditional: exactly these three addresses

	mem.putU32(0x1004, 25)
	mem.putU32(0x1008, 5)
	store.RefreshSnapshot()
	return store, mem
}

func TestKeepUnchanged(t *testing.T) {
	store, _ := buildStoreWithHistory(t)
	store.KeepUnchanged(false)
	entries := store.Result().Entries()
	if len(entries) != 1 || entries[0].Addr != 0x1000 || entries[0].Value != 10 {
		t.Fatalf("keepunchanged result = %+v, want only the untouched address restored from history", entries)
	}
}

func TestKeepIncreasedAndDecreased(t *testing.T) {
	store, mem := buildStoreWithHistory(t)
	_ = mem
	incStore, _ := buildStoreWithHistory(t)
	incStore.KeepIncreased(false)
	for _, e := range incStore.Result().Entries() {
		if e.Addr != 0x1004 {
			t.Fatalf("keepincreased kept unexpected entry %+v", e)
		}
	}

	store.KeepDecreased(false)
	for _, e := range store.Result().Entries() {
		if e.Addr != 0x1008 {
			t.Fatalf("keepdecreased kept unexpected entry %+v", e)
		}
	}
}

func TestKeepValue(t *testing.T) {
	store, _ := buildStoreWithHistory(t)
	store.KeepValue(false, 25)
	entries := store.Result().Entries()
	if len(entries) != 1 || entries[0].Addr != 0x1004 {
		t.Fatalf("keepvalue result = %+v", entries)
	}
}

func TestKeepFilterNoOpOnEmptyHistory(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x10)
	mem.putU32(0x1000, 7)
	store := NewSnapshotStore(mem)
	store.AddSniffing(1, 0x1000, 0x10, 4, 0)
	before := store.Result().Len()

	store.KeepChanged(false) // history is empty: must be a no-op
	if store.Result().Len() != before {
		t.Fatalf("KeepChanged mutated result with empty history")
	}
}

func TestSetDebugSnapshotPushesHistoryForRollback(t *testing.T) {
	mem := newFakeMemory(0x1000, 0x10)
	mem.putU32(0x1000, 1)
	store := NewSnapshotStore(mem)
	store.AddSniffing(1, 0x1000, 0x10, 4, 0)
	before := store.Result().Entries()

	store.KeepValue(true, 1) // debugSnapshot=true pushes current result first
	store.Rollback()

	after := store.Result().Entries()
	if len(after) != len(before) {
		t.Fatalf("rollback after debug snapshot = %+v, want %+v", after, before)
	}
}
