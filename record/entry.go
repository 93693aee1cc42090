package record

import (
	"encoding/binary"

	"tellmvcc/glog"
)

// Insert is a key's first version (spec: LOG_INSERT). It is the only
// record shape besides MVRecord that owns a NewestPtr; appended once to
// the table's insert log and thereafter immutable except for that pointer.
type Insert struct {
	Ref    glog.EntryRef
	Key    uint64
	Ver    uint64
	Data   []byte
	Newest *NewestPtr
}

func (e *Insert) Type() Type      { return TypeInsert }
func (e *Insert) Version() uint64 { return e.Ver }

// Update chains a new version behind Previous (spec: LOG_UPDATE). Written
// once to the table's update log; Previous is fixed at construction and
// never mutated, so no atomics are needed to read it.
type Update struct {
	Ref      glog.EntryRef
	Ver      uint64
	Previous Entry
	Data     []byte
}

func (e *Update) Type() Type      { return TypeUpdate }
func (e *Update) Version() uint64 { return e.Ver }

// Delete is a tombstone version (spec: LOG_DELETE): same chain position as
// Update, carries no payload.
type Delete struct {
	Ref      glog.EntryRef
	Ver      uint64
	Previous Entry
}

func (e *Delete) Type() Type      { return TypeDelete }
func (e *Delete) Version() uint64 { return e.Ver }

// Previous returns the chain predecessor of e, or nil at the chain root
// (an Insert or an MVRecord). Exported for callers implementing Revert,
// which must walk back exactly one link from the current chain head.
func Previous(e Entry) Entry { return previous(e) }

// previous returns the chain predecessor of e, or nil at the chain root
// (an Insert or an MVRecord). Used by the dispatch walk and by GC chain
// collection; panics on an unrecognized shape, matching the source
// algorithm's treatment of an unknown type tag as unrecoverable corruption.
func previous(e Entry) Entry {
	switch v := e.(type) {
	case *Insert:
		return nil
	case *Update:
		return v.Previous
	case *Delete:
		return v.Previous
	case *MVRecordRow:
		return nil
	case *MVRecordColumn:
		return nil
	default:
		panic(ErrCorruptRecord)
	}
}

// data returns the raw payload of an Insert or Update; a Delete returns
// nil. Any other shape, an MVRecord included, panics with ErrCorruptRecord.
func data(e Entry) []byte {
	switch v := e.(type) {
	case *Insert:
		return v.Data
	case *Update:
		return v.Data
	case *Delete:
		return nil
	default:
		panic(ErrCorruptRecord)
	}
}

// encodeHeader writes a key+version prefix shared by Insert/Update entries
// into the payload region reserved on the backing log page, giving the
// wire-level framing (component C2) genuine bytes to carry even though the
// authoritative chain linkage lives in the Go object graph above.
func encodeHeader(buf []byte, key, version uint64) int {
	binary.LittleEndian.PutUint64(buf[0:8], key)
	binary.LittleEndian.PutUint64(buf[8:16], version)
	return 16
}

// NewInsert appends a fresh Insert entry for key/data at version to log,
// returning the canonical object other code must share to observe its
// NewestPtr consistently.
func NewInsert(log *glog.OrderedLog, key, version uint64, payload []byte) (*Insert, bool) {
	size := uint32(16 + len(payload))
	ref, ok := log.Append(size, uint32(TypeInsert))
	if !ok {
		return nil, false
	}
	buf := ref.Payload()
	n := encodeHeader(buf, key, version)
	copy(buf[n:], payload)

	e := &Insert{Ref: ref, Key: key, Ver: version, Data: append([]byte(nil), payload...)}
	e.Newest = NewNewestPtr(e)
	return e, true
}

// NewUpdate appends a fresh Update entry chained behind previous.
func NewUpdate(log *glog.UnorderedLog, previous Entry, version uint64, payload []byte) (*Update, bool) {
	size := uint32(16 + len(payload))
	ref, ok := log.Append(size, uint32(TypeUpdate))
	if !ok {
		return nil, false
	}
	buf := ref.Payload()
	n := encodeHeader(buf, 0, version)
	copy(buf[n:], payload)

	return &Update{Ref: ref, Ver: version, Previous: previous, Data: append([]byte(nil), payload...)}, true
}

// NewDelete appends a fresh Delete tombstone chained behind previous.
func NewDelete(log *glog.UnorderedLog, previous Entry, version uint64) (*Delete, bool) {
	ref, ok := log.Append(16, uint32(TypeDelete))
	if !ok {
		return nil, false
	}
	buf := ref.Payload()
	encodeHeader(buf, 0, version)

	return &Delete{Ref: ref, Ver: version, Previous: previous}, true
}
