// pc_counter.go - PC execution frequency counter (C8)

package sniffer

import "sync"

const (
	pcBuckets        = 1 << 16
	pcSlotsPerBucket = 8
	pcMaxCount       = 0x3FFFF // 18 bits
	pcCountBits      = 18
	pcCountMask      = uint64(pcMaxCount)
)

// pcSlot packs a 46-bit discriminator in the high bits and an 18-bit
// saturating count in the low bits. A zero slot means unused.
type pcSlot = uint64

func packSlot(discriminator, count uint64) pcSlot {
	return (discriminator << pcCountBits) | (count & pcCountMask)
}

func unpackSlot(s pcSlot) (discriminator, count uint64) {
	return s >> pcCountBits, s & pcCountMask
}

// bucketAndDiscriminator derives the bucket index and discriminator for a
// guest PC. Addresses are 4-byte aligned instructions, so the low 2 bits
// are dropped; the next 16 bits select one of pcBuckets buckets, and
// everything above that is the discriminator used to disambiguate the
// pcSlotsPerBucket entries that hash to the same bucket.
func bucketAndDiscriminator(pc uint64) (bucket int, discriminator uint64) {
	shifted := pc >> 2
	bucket = int(shifted & (pcBuckets - 1))
	discriminator = shifted >> 16
	return
}

// PCCounter counts how often each guest PC is executed, using a fixed
// 4MiB bucket-hash array with overflow spillover to a map for buckets that
// fill all pcSlotsPerBucket slots with distinct addresses. The array is
// allocated lazily on first use, matching the original's deferred
// allocation of its pc-count table.
type PCCounter struct {
	mu       sync.Mutex
	array    [][pcSlotsPerBucket]pcSlot // lazily allocated, len pcBuckets
	overflow map[uint64]uint64
	baseline map[uint64]uint64 // "last": snapshot taken by SaveBaseline, nil until taken
	ordered  map[uint64]uint64 // "ordered": result of the last keep* filter, nil until one runs
	enabled  bool
}

func NewPCCounter() *PCCounter {
	return &PCCounter{overflow: make(map[uint64]uint64)}
}

func (c *PCCounter) ensureArray() {
	if c.array == nil {
		c.array = make([][pcSlotsPerBucket]pcSlot, pcBuckets)
	}
}

// SetEnabled gates whether Store records anything, so a running trace
// can be paused without losing accumulated counts.
func (c *PCCounter) SetEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = on
}

func (c *PCCounter) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Store records one execution of pc, saturating at pcMaxCount. Must
// not be called while the trace-buffer lock is held (§5).
func (c *PCCounter) Store(pc uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.store(pc)
}

func (c *PCCounter) store(pc uint64) {
	c.ensureArray()
	bucket, disc := bucketAndDiscriminator(pc)
	slots := &c.array[bucket]

	freeIdx := -1
	for i, s := range slots {
		if s == 0 {
			if freeIdx < 0 {
				freeIdx = i
			}
			continue
		}
		d, cnt := unpackSlot(s)
		if d == disc {
			if cnt < pcMaxCount {
				cnt++
			}
			slots[i] = packSlot(disc, cnt)
			return
		}
	}
	if freeIdx >= 0 {
		slots[freeIdx] = packSlot(disc, 1)
		return
	}
	// All pcSlotsPerBucket entries taken by other addresses: spill to the
	// overflow map keyed by the full PC.
	v := c.overflow[pc]
	if v < pcMaxCount {
		v++
	}
	c.overflow[pc] = v
}

// Count returns the current saturating count recorded for pc, or 0.
func (c *PCCounter) Count(pc uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count(pc)
}

func (c *PCCounter) count(pc uint64) uint64 {
	if c.array != nil {
		bucket, disc := bucketAndDiscriminator(pc)
		for _, s := range c.array[bucket] {
			if s == 0 {
				continue
			}
			d, cnt := unpackSlot(s)
			if d == disc {
				return cnt
			}
		}
	}
	return c.overflow[pc]
}

// Clear discards every recorded count, the baseline snapshot, and the
// last keep* filter's result.
func (c *PCCounter) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.array = nil
	c.overflow = make(map[uint64]uint64)
	c.baseline = nil
	c.ordered = nil
}

// SaveBaseline snapshots the current counts into the baseline ("last") and
// clears the live recording array and overflow map (P1), the
// "storepccount" verb: a fresh Store after this call starts counting from
// zero, never adding onto what was just snapshotted.
func (c *PCCounter) SaveBaseline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseline = c.dumpAll()
	c.array = nil
	c.overflow = make(map[uint64]uint64)
}

func (c *PCCounter) dumpAll() map[uint64]uint64 {
	out := make(map[uint64]uint64)
	if c.array != nil {
		for bucket := range c.array {
			for _, s := range c.array[bucket] {
				if s == 0 {
					continue
				}
				d, cnt := unpackSlot(s)
				pc := (uint64(bucket) | (d << 16)) << 2
				out[pc] = cnt
			}
		}
	}
	for pc, cnt := range c.overflow {
		out[pc] = cnt
	}
	return out
}

// KeepPcCount merges the live recording (bucket array plus overflow map)
// together with the baseline into the ordered side table, then clears the
// live recording (P2). With no baseline taken yet, this is just a copy of
// the current counts into ordered.
func (c *PCCounter) KeepPcCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged := c.dumpAll()
	for pc, cnt := range c.baseline {
		if _, exists := merged[pc]; !exists {
			merged[pc] = cnt
		}
	}
	c.setOrdered(merged)
}

// KeepNewPcCount keeps only PCs that were not present (count zero) in the
// baseline taken by SaveBaseline, i.e. newly executed code, writing the
// result to the ordered side table and clearing the live recording (P2).
func (c *PCCounter) KeepNewPcCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := c.baseline
	out := make(map[uint64]uint64)
	for pc, cnt := range c.dumpAll() {
		if base == nil || base[pc] == 0 {
			out[pc] = cnt
		}
	}
	c.setOrdered(out)
}

// KeepSamePcCount keeps only PCs whose count is unchanged from the
// baseline, writing the result to the ordered side table and clearing the
// live recording (P2).
func (c *PCCounter) KeepSamePcCount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := c.baseline
	out := make(map[uint64]uint64)
	for pc, cnt := range c.dumpAll() {
		if base != nil && base[pc] == cnt {
			out[pc] = cnt
		}
	}
	c.setOrdered(out)
}

// setOrdered installs the given map as the ordered side table and clears
// the live recording array and overflow map (P2: "both operations clear
// current buckets afterward").
func (c *PCCounter) setOrdered(m map[uint64]uint64) {
	c.ordered = m
	c.array = nil
	c.overflow = make(map[uint64]uint64)
}

// PCCountEntry is one row of a PC-count dump, sorted by descending count.
type PCCountEntry struct {
	PC    uint64
	Count uint64
}

// Dump returns every qualifying pc whose count is at most limit (a count
// threshold, not an entry cap; limit <= 0 means no pc qualifies), ordered
// by descending execution count. It reads the ordered side table left by
// the most recent keep* call, or the live recording if no keep* has run
// yet. A diagnostic/export view, not used on the hot recording path.
func (c *PCCounter) Dump(limit int) []PCCountEntry {
	c.mu.Lock()
	var all map[uint64]uint64
	if c.ordered != nil {
		all = c.ordered
	} else {
		all = c.dumpAll()
	}
	c.mu.Unlock()

	entries := make([]PCCountEntry, 0, len(all))
	for pc, cnt := range all {
		if int64(cnt) <= int64(limit) {
			entries = append(entries, PCCountEntry{PC: pc, Count: cnt})
		}
	}
	sortPCCountEntries(entries)
	return entries
}

func sortPCCountEntries(e []PCCountEntry) {
	// descending count, ties broken by ascending pc
	for i := 1; i < len(e); i++ {
		j := i
		for j > 0 && less(e[j], e[j-1]) {
			e[j], e[j-1] = e[j-1], e[j]
			j--
		}
	}
}

func less(a, b PCCountEntry) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.PC < b.PC
}
