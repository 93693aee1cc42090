package record

import "tellmvcc/glog"

// slot offset sentinels for MVRecordRow.Offsets.
const (
	offsetTombstone = -1 // version is a delete: terminates visibility, no payload
	offsetReverted  = -2 // version was reverted: skipped entirely during resolution
)

// MVRecordRow is a consolidated multi-version record in row layout (spec
// section 4.4): a single GC-written entry holding every still-reachable
// version of one key as a linear versions+offsets array over one shared
// payload buffer, replacing what had been a chain of Insert/Update/Delete
// entries scattered across the update log.
//
// Versions is stored newest-first, matching the order the chain was
// walked when this record was built (grounded on deltamain's row MVRecord,
// which also walks newest-to-oldest when compacting).
type MVRecordRow struct {
	Ref     glog.EntryRef
	Newest  *NewestPtr
	Versions []uint64
	Offsets  []int32
	Payload  []byte
}

func (r *MVRecordRow) Type() Type { return TypeMultiVersionRecord }

// Version reports the newest non-reverted version carried by this record.
func (r *MVRecordRow) Version() uint64 {
	for i, off := range r.Offsets {
		if off != offsetReverted {
			return r.Versions[i]
		}
	}
	return 0
}

// payloadAt returns the raw bytes for slot i, or nil for a tombstone.
func (r *MVRecordRow) payloadAt(i int) []byte {
	off := r.Offsets[i]
	if off == offsetTombstone || off == offsetReverted {
		return nil
	}
	end := len(r.Payload)
	if i+1 < len(r.Offsets) {
		for j := i + 1; j < len(r.Offsets); j++ {
			if o := r.Offsets[j]; o >= 0 {
				end = int(o)
				break
			}
		}
	}
	return r.Payload[off:end]
}

// isDeleteAt reports whether slot i is a tombstone.
func (r *MVRecordRow) isDeleteAt(i int) bool { return r.Offsets[i] == offsetTombstone }

// isRevertedAt reports whether slot i was reverted and must be skipped.
func (r *MVRecordRow) isRevertedAt(i int) bool { return r.Offsets[i] == offsetReverted }

// rowBuilder accumulates versions while walking a chain newest-to-oldest,
// for Collect to hand to NewMVRecordRow.
type rowBuilder struct {
	versions []uint64
	offsets  []int32
	payload  []byte
}

func newRowBuilder() *rowBuilder {
	return &rowBuilder{}
}

func (b *rowBuilder) addData(version uint64, data []byte) {
	b.versions = append(b.versions, version)
	b.offsets = append(b.offsets, int32(len(b.payload)))
	b.payload = append(b.payload, data...)
}

func (b *rowBuilder) addTombstone(version uint64) {
	b.versions = append(b.versions, version)
	b.offsets = append(b.offsets, offsetTombstone)
}

// payloadAt returns the raw bytes accumulated for slot i, or nil for a
// tombstone slot.
func (b *rowBuilder) payloadAt(i int) []byte {
	off := b.offsets[i]
	if off == offsetTombstone {
		return nil
	}
	end := len(b.payload)
	for j := i + 1; j < len(b.offsets); j++ {
		if o := b.offsets[j]; o >= 0 {
			end = int(o)
			break
		}
	}
	return b.payload[off:end]
}

// appender is satisfied by both glog.OrderedLog and glog.UnorderedLog,
// letting a consolidated MVRecord be written onto whichever log discipline
// the caller is working with -- a table's update log directly, or a
// standalone batch GC assembles before a bulk AppendPage.
type appender interface {
	Append(size uint32, typ uint32) (glog.EntryRef, bool)
}

// Builder is the exported view of a chain's still-needed versions
// produced by Collect, consumed either by NewMVRecordRow or manually
// (via Len/VersionAt/PayloadAt/IsTombstoneAt) to populate a column-layout
// cluster.
type Builder struct{ b *rowBuilder }

func (bb *Builder) Len() int                 { return len(bb.b.versions) }
func (bb *Builder) VersionAt(i int) uint64   { return bb.b.versions[i] }
func (bb *Builder) PayloadAt(i int) []byte   { return bb.b.payloadAt(i) }
func (bb *Builder) IsTombstoneAt(i int) bool { return bb.b.offsets[i] == offsetTombstone }

// NewMVRecordRow reserves an entry on log sized for the consolidated record
// built by b and returns the canonical object, its NewestPtr fresh and
// unforwarded. The versions, offsets and payload live in the returned
// object; they are not encoded into the reserved entry.
func NewMVRecordRow(log appender, b *Builder) (*MVRecordRow, bool) {
	rb := b.b
	size := uint32(len(rb.payload)) + uint32(len(rb.versions))*12
	ref, ok := log.Append(size, uint32(TypeMultiVersionRecord))
	if !ok {
		return nil, false
	}
	r := &MVRecordRow{
		Ref:      ref,
		Versions: rb.versions,
		Offsets:  rb.offsets,
		Payload:  rb.payload,
	}
	r.Newest = NewNewestPtr(r)
	return r, true
}
