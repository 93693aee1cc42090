package engine

import (
	"tellmvcc/glog"
	"tellmvcc/record"
)

// RunGC sweeps every key in the table, compacting any chain that
// record.NeedsCleaning flags against lowestActive into a single
// consolidated MVRecord
// (row or column layout, per the table's configured Layout) and swinging
// the key's NewestPtr to forward onto it (spec section 4.7).
//
// Freshly compacted records are built on a standalone page chain and then
// spliced into the update log in one bulk AppendPage, rather than one
// Append per record -- grounded on deltamain's GarbageCollector, which
// writes compacted records into pages separate from the live insert/
// update traffic before linking them in. When every key present at the
// start of the sweep got compacted, the whole range of pages that existed
// before the sweep began is now unreachable from the index and is
// truncated in one Erase; a partial sweep (some chains still too young)
// leaves truncation for a later pass, since pages in an UnorderedLog can
// interleave entries belonging to different keys' chains.
func (t *Table) RunGC(lowestActive uint64) int {
	t.gcMu.Lock()
	defer t.gcMu.Unlock()

	tailBefore := t.updateLog.Tail()
	headBefore := t.updateLog.WriteHead()

	var keys []uint64
	t.idx.Range(func(key uint64, _ *record.NewestPtr) bool {
		keys = append(keys, key)
		return true
	})

	batch, err := glog.NewOrderedLog(t.pages)
	if err != nil {
		t.logger.Warn("gc: failed to allocate compaction batch", "error", err)
		return 0
	}

	compacted := 0
	for _, key := range keys {
		ptr, ok := t.idx.Get(key)
		if !ok {
			continue
		}
		cur := ptr.Resolve()
		if cur == nil || !record.NeedsCleaning(cur, lowestActive) {
			continue
		}

		builder := record.Collect(cur, lowestActive)
		next, ok := t.compactInto(batch, key, builder)
		if !ok {
			t.logger.Warn("gc: compaction batch exhausted", "key", key)
			break
		}
		if ptr.Forward(cur, next) {
			compacted++
		} else {
			t.logger.Debug("gc: lost race to forward, will retry next sweep", "key", key)
		}
	}

	if compacted > 0 {
		t.updateLog.AppendPage(batch.Tail(), batch.Head())
	}

	if compacted == len(keys) && len(keys) > 0 {
		t.updateLog.Erase(tailBefore, headBefore)
	}

	t.logger.Info("gc: sweep complete", "compacted", compacted, "scanned", len(keys))
	return compacted
}

// compactInto appends builder's consolidated record onto batch, returning
// a NewestPtr already pointing at it, so GC's caller can Forward the
// key's live pointer in a single CAS.
func (t *Table) compactInto(batch *glog.OrderedLog, key uint64, b *record.Builder) (*record.NewestPtr, bool) {
	switch t.cfg.layout {
	case record.LayoutColumn:
		c := record.NewMVRecordColumn(key, t.cfg.columnCapacity, t.cfg.columnDataCap)
		// b is newest-first (Collect's own convention, matching
		// NewMVRecordRow); AppendVersion fills slots in append order, and
		// resolveColumn scans from the newest slot backward, so the oldest
		// surviving version must land in slot 0 and the newest in the last
		// slot -- append in reverse.
		for i := b.Len() - 1; i >= 0; i-- {
			payload := b.PayloadAt(i)
			if b.IsTombstoneAt(i) {
				payload = nil
			}
			if !c.AppendVersion(b.VersionAt(i), payload) {
				return nil, false
			}
		}
		return c.Newest, true
	default:
		row, ok := record.NewMVRecordRow(batch, b)
		if !ok {
			return nil, false
		}
		return row.Newest, true
	}
}
