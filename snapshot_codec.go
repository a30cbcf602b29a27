// snapshot_codec.go - binary export/import of a snapshot store (A4)

package sniffer

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	codecMagic   = "SNFR"
	codecVersion = 1
)

// EncodeSnapshotStore serializes a store's result, history, and rollback
// stacks into a single gzip-compressed stream, so a long filter pipeline
// built up over a sniffing session can be handed off between script runs
// within that same session (not across a host restart, which Non-goals
// excludes).
func EncodeSnapshotStore(s *SnapshotStore) ([]byte, error) {
	var raw bytes.Buffer
	raw.WriteString(codecMagic)
	_ = binary.Write(&raw, binary.LittleEndian, uint32(codecVersion))

	writeSnapshot(&raw, s.result)

	_ = binary.Write(&raw, binary.LittleEndian, uint32(len(s.history)))
	for _, snap := range s.history {
		writeSnapshot(&raw, snap)
	}
	_ = binary.Write(&raw, binary.LittleEndian, uint32(len(s.rollback)))
	for _, snap := range s.rollback {
		writeSnapshot(&raw, snap)
	}

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compressing snapshot store: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	return out.Bytes(), nil
}

func writeSnapshot(buf *bytes.Buffer, s *Snapshot) {
	entries := s.Entries()
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		_ = binary.Write(buf, binary.LittleEndian, e.Addr)
		_ = binary.Write(buf, binary.LittleEndian, e.PID)
		_ = binary.Write(buf, binary.LittleEndian, uint32(e.Type))
		_ = binary.Write(buf, binary.LittleEndian, e.Value)
		_ = binary.Write(buf, binary.LittleEndian, e.OldValue)
	}
}

// DecodeSnapshotStore rebuilds a store's result/history/rollback stacks
// from a stream produced by EncodeSnapshotStore. mem is attached to the
// returned store for any subsequent RefreshSnapshot/filter calls.
func DecodeSnapshotStore(data []byte, mem GuestMemory) (*SnapshotStore, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip reader: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot store: %w", err)
	}
	r := bytes.NewReader(raw)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != codecMagic {
		return nil, fmt.Errorf("invalid snapshot store magic: %q", string(magic))
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != codecVersion {
		return nil, fmt.Errorf("unsupported snapshot store version: %d", version)
	}

	store := NewSnapshotStore(mem)
	result, err := readSnapshot(r)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	store.result = result

	historyCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading history count: %w", err)
	}
	for i := uint32(0); i < historyCount; i++ {
		snap, err := readSnapshot(r)
		if err != nil {
			return nil, fmt.Errorf("reading history[%d]: %w", i, err)
		}
		store.history = append(store.history, snap)
	}

	rollbackCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("reading rollback count: %w", err)
	}
	for i := uint32(0); i < rollbackCount; i++ {
		snap, err := readSnapshot(r)
		if err != nil {
			return nil, fmt.Errorf("reading rollback[%d]: %w", i, err)
		}
		store.rollback = append(store.rollback, snap)
	}

	return store, nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readSnapshot(r *bytes.Reader) (*Snapshot, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	s := newSnapshot()
	for i := uint32(0); i < count; i++ {
		var rec MemoryModifyRecord
		var typ uint32
		if err := binary.Read(r, binary.LittleEndian, &rec.Addr); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &rec.PID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return nil, err
		}
		rec.Type = ValueType(typ)
		if err := binary.Read(r, binary.LittleEndian, &rec.Value); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &rec.OldValue); err != nil {
			return nil, err
		}
		s.insert(rec)
	}
	return s, nil
}
