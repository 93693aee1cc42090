package engine

import (
	"tellmvcc/record"
)

// ScanEntry is one key's visible value surfaced by a table scan.
type ScanEntry struct {
	Key     uint64
	Data    []byte
	Deleted bool
}

// Iterator yields one partition of a StartScan call. Not safe for
// concurrent use by multiple goroutines; each partition is meant to be
// driven by its own scan worker (spec section 4.8/6, "partitioned table
// scan").
type Iterator struct {
	entries []ScanEntry
	pos     int
}

// Next advances the iterator, reporting whether an entry is available.
func (it *Iterator) Next() bool {
	it.pos++
	return it.pos <= len(it.entries)
}

// Entry returns the entry Next just advanced onto.
func (it *Iterator) Entry() ScanEntry { return it.entries[it.pos-1] }

// StartScan partitions the table's current key set into n roughly equal
// iterators, each resolving every key's version visible to snap at the
// moment the iterator was built -- a consistent, point-in-time read over
// the whole table, not a live view (spec section 4.8).
func (t *Table) StartScan(n int, snap *SimpleSnapshot) []*Iterator {
	if n < 1 {
		n = 1
	}
	partitions := make([][]ScanEntry, n)

	t.idx.Range(func(key uint64, ptr *record.NewestPtr) bool {
		cur := ptr.Resolve()
		if cur == nil {
			return true
		}
		v := record.Resolve(cur, snap)
		if !v.Found && !v.Deleted {
			return true
		}
		p := int(key % uint64(n))
		partitions[p] = append(partitions[p], ScanEntry{Key: key, Data: v.Data, Deleted: v.Deleted})
		return true
	})

	iters := make([]*Iterator, n)
	for i := range iters {
		iters[i] = &Iterator{entries: partitions[i]}
	}
	return iters
}
