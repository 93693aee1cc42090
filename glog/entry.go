package glog

// EntryRef is a handle to a committed (or being-committed) log entry: the
// page it lives in and its byte offset within that page's payload. It is
// the Go analogue of the raw LogEntry* pointer in the source algorithm.
type EntryRef struct {
	Page *Page
	Pos  int
}

// Header returns the entry's committed size and type tag. present is false
// if the slot has not finished being claimed (should not happen for a ref
// returned by Append, but matters when walking a page during iteration).
func (e EntryRef) Header() (size uint32, typ uint32, present bool) {
	return e.Page.EntryHeader(e.Pos)
}

// Payload returns the entry's payload bytes (after the 8-byte size+type
// header), the region record shapes encode their fields into.
func (e EntryRef) Payload() []byte {
	size, _, ok := e.Header()
	if !ok {
		return nil
	}
	return e.Page.EntryPayload(e.Pos, size)
}

// Valid reports whether this ref names a page; the zero EntryRef does not.
// It does not check whether the entry has been committed.
func (e EntryRef) Valid() bool {
	return e.Page != nil
}
