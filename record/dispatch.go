package record

import "sync/atomic"

// Visible is the outcome of a snapshot-visibility walk (spec section 4.5).
type Visible struct {
	Data      []byte
	Version   uint64
	IsNewest  bool // no invisible-but-newer committed version was skipped
	Found     bool // a visible version exists (false for a visible delete)
	Deleted   bool // the visible version is a tombstone
}

// Resolve walks the version chain rooted at entry, newest to oldest,
// returning the first version snap can see (spec section 4.5, component
// C6's dispatch over the four record shapes).
func Resolve(entry Entry, snap Snapshot) Visible {
	if entry == nil {
		return Visible{}
	}
	switch e := entry.(type) {
	case *MVRecordRow:
		return resolveRow(e, snap)
	case *MVRecordColumn:
		return resolveColumn(e, snap)
	case *Insert, *Update, *Delete:
		return resolveChain(e, snap)
	default:
		panic(ErrCorruptRecord)
	}
}

func resolveChain(entry Entry, snap Snapshot) Visible {
	isNewest := true
	for cur := entry; cur != nil; cur = previous(cur) {
		// A fresh Update/Delete chained onto an already-compacted key
		// still points at the MVRecord left by an earlier GC pass via
		// Previous; hand the rest of the walk to that shape's own
		// resolver rather than treating it as an opaque chain link.
		switch cur.(type) {
		case *MVRecordRow, *MVRecordColumn:
			v := Resolve(cur, snap)
			if !isNewest {
				v.IsNewest = false
			}
			return v
		}

		if !snap.InReadSet(cur.Version()) {
			isNewest = false
			continue
		}
		if _, isDelete := cur.(*Delete); isDelete {
			return Visible{Version: cur.Version(), IsNewest: isNewest, Deleted: true}
		}
		return Visible{Data: data(cur), Version: cur.Version(), IsNewest: isNewest, Found: true}
	}
	return Visible{}
}

func resolveRow(r *MVRecordRow, snap Snapshot) Visible {
	isNewest := true
	for i, ver := range r.Versions {
		if r.isRevertedAt(i) {
			continue // never really committed; doesn't count as a skipped newer version
		}
		if !snap.InReadSet(ver) {
			isNewest = false
			continue
		}
		if r.isDeleteAt(i) {
			return Visible{Version: ver, IsNewest: isNewest, Deleted: true}
		}
		return Visible{Data: r.payloadAt(i), Version: ver, IsNewest: isNewest, Found: true}
	}
	return Visible{}
}

func resolveColumn(c *MVRecordColumn, snap Snapshot) Visible {
	top := int(c.cursor.Load())
	if top > len(c.Versions) {
		top = len(c.Versions)
	}
	isNewest := true
	for i := top - 1; i >= 0; i-- {
		switch loadSlotState(c, i) {
		case slotPending, slotReverted:
			continue
		}
		ver := c.Versions[i]
		if !snap.InReadSet(ver) {
			isNewest = false
			continue
		}
		if c.isDeleteAt(i) {
			return Visible{Version: ver, IsNewest: isNewest, Deleted: true}
		}
		return Visible{Data: c.payloadAt(i), Version: ver, IsNewest: isNewest, Found: true}
	}
	return Visible{}
}

// NeedsCleaning reports whether GC can make forward progress by compacting
// the chain rooted at entry: for a consolidated record, whether it holds
// more than one non-reverted version older than lowestActive; for a chain
// of log entries, whether any entry behind the newest is older than
// lowestActive or the chain ends in a consolidated record (spec section
// 4.7).
func NeedsCleaning(entry Entry, lowestActive uint64) bool {
	switch e := entry.(type) {
	case *MVRecordRow:
		// Collect retains every version at or above lowestActive plus
		// exactly one version below it -- the newest surviving version at
		// or below the cutoff, needed so a reader sitting right at the
		// watermark can still resolve. A second version below the cutoff
		// is always fully superseded by the first and is exactly what
		// Collect would drop, so only that second (or later) one below
		// the cutoff means there is anything left to reclaim.
		violations := 0
		for i, ver := range e.Versions {
			if e.isRevertedAt(i) {
				continue
			}
			if ver < lowestActive {
				violations++
				if violations > 1 {
					return true
				}
			}
		}
		return false
	case *MVRecordColumn:
		// Same single-boundary exemption as the row case above, scanning
		// newest (top-1) to oldest to match Collect's own column walk.
		top := int(e.cursor.Load())
		if top > len(e.Versions) {
			top = len(e.Versions)
		}
		violations := 0
		for i := top - 1; i >= 0; i-- {
			if loadSlotState(e, i) == slotReverted {
				continue
			}
			if e.Versions[i] < lowestActive {
				violations++
				if violations > 1 {
					return true
				}
			}
		}
		return false
	default:
		isNewest := true
		for cur := entry; cur != nil; cur = previous(cur) {
			switch cur.(type) {
			case *MVRecordRow, *MVRecordColumn:
				return !isNewest || NeedsCleaning(cur, lowestActive)
			}
			if !isNewest && cur.Version() < lowestActive {
				return true // an older, fully-superseded version exists to reclaim
			}
			isNewest = false
		}
		return false
	}
}

// Collect walks entry's chain from newest to oldest and reports every
// version still needed to answer any snapshot with a read-set lower bound
// of at least lowestActive, in the form a compaction builder can consume
// (NewMVRecordRow, or manual iteration for a column-layout cluster).
func Collect(entry Entry, lowestActive uint64) *Builder {
	return &Builder{b: collect(entry, lowestActive)}
}

func collect(entry Entry, lowestActive uint64) *rowBuilder {
	b := newRowBuilder()
	switch e := entry.(type) {
	case *MVRecordRow:
		keptBelow := false
		for i, ver := range e.Versions {
			if e.isRevertedAt(i) {
				continue
			}
			if ver < lowestActive {
				if keptBelow {
					break
				}
				keptBelow = true
			}
			if e.isDeleteAt(i) {
				b.addTombstone(ver)
			} else {
				b.addData(ver, e.payloadAt(i))
			}
		}
	case *MVRecordColumn:
		top := int(e.cursor.Load())
		keptBelow := false
		for i := top - 1; i >= 0; i-- {
			if loadSlotState(e, i) == slotReverted {
				continue
			}
			if e.Versions[i] < lowestActive {
				if keptBelow {
					break
				}
				keptBelow = true
			}
			if e.isDeleteAt(i) {
				b.addTombstone(e.Versions[i])
			} else {
				b.addData(e.Versions[i], e.payloadAt(i))
			}
		}
	default:
		var chain []Entry
		var nested Entry
		for cur := entry; cur != nil; {
			if _, isRow := cur.(*MVRecordRow); isRow {
				nested = cur
				break
			}
			if _, isCol := cur.(*MVRecordColumn); isCol {
				nested = cur
				break
			}
			chain = append(chain, cur)
			if cur.Version() < lowestActive {
				break
			}
			cur = previous(cur)
		}
		for _, cur := range chain {
			if d, ok := cur.(*Delete); ok {
				b.addTombstone(d.Version())
				continue
			}
			b.addData(cur.Version(), data(cur))
		}
		// A chain of fresh Update/Delete entries can sit in front of an
		// already-compacted MVRecord from an earlier GC pass; splice its
		// still-needed slots in behind the chain just collected, rather
		// than treating it as an opaque entry Collect doesn't know how to
		// read the payload of.
		if nested != nil {
			nb := collect(nested, lowestActive)
			for i, ver := range nb.versions {
				if nb.offsets[i] == offsetTombstone {
					b.addTombstone(ver)
					continue
				}
				end := len(nb.payload)
				for j := i + 1; j < len(nb.offsets); j++ {
					if nb.offsets[j] >= 0 {
						end = int(nb.offsets[j])
						break
					}
				}
				b.addData(ver, nb.payload[nb.offsets[i]:end])
			}
		}
	}
	return b
}

func loadSlotState(c *MVRecordColumn, i int) int32 {
	return atomic.LoadInt32(&c.varLength[i])
}

// WriteConflict reports whether v, resolved against a writer's own
// snapshot just before the writer attempts its CAS, indicates a
// write-write conflict: some other transaction committed a version newer
// than anything in the writer's read set (spec section 4.6).
func WriteConflict(v Visible) bool { return !v.IsNewest }
