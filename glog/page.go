// Package glog implements the log subsystem (components C2 and C3): a
// 16-byte-aligned bump-append page (Page) and two chaining disciplines over
// pages of such entries -- an ordered log for inserts and an unordered log,
// supporting concurrent appenders and bulk page adoption, for updates.
package glog

import (
	"sync/atomic"
	"unsafe"

	"tellmvcc/pagemanager"
)

// entryHeaderSize is the per-entry size+type prefix (component C2).
const entryHeaderSize = 8

// alignment is the byte boundary every entry is padded up to.
const alignment = 16

// payloadPad is the reserved prefix before the first entry, so the first
// entry begins at offset 8 -- congruent to 8 (mod 16) per the layout
// invariant in the data model.
const payloadPad = 8

const openBit uint32 = 0x1

// EntrySize computes the bump-allocated size for a size-byte payload:
// align_up(size+8, 16).
func EntrySize(size uint32) int {
	return alignUp(int(size)+entryHeaderSize, alignment)
}

func alignUp(v, to int) int {
	return (v + to - 1) / to * to
}

// Page is a log page: a raw buffer from pagemanager carrying an atomic
// bump-append offset/seal word and an atomic next-page link.
type Page struct {
	buf    pagemanager.Buffer
	next   atomic.Pointer[Page]
	offset atomic.Uint32
}

func newPage(buf pagemanager.Buffer) *Page {
	p := &Page{buf: buf}
	p.offset.Store(uint32(payloadPad<<1) | openBit)
	return p
}

// MaxEntrySize is the largest entry (including its 8-byte header) that can
// fit in a page of this size.
func (p *Page) MaxEntrySize() int { return len(p.buf) - payloadPad }

// Next returns the atomic pointer to the next page in the chain.
func (p *Page) Next() *atomic.Pointer[Page] { return &p.next }

// Seal clears the open bit so no further appends succeed. Idempotent.
func (p *Page) Seal() {
	for {
		old := p.offset.Load()
		if old&openBit == 0 {
			return
		}
		if p.offset.CompareAndSwap(old, old&^openBit) {
			return
		}
	}
}

// IsSealed reports whether the page no longer accepts appends.
func (p *Page) IsSealed() bool { return p.offset.Load()&openBit == 0 }

// End returns the current bump-pointer position, i.e. the exclusive end of
// valid entries observed so far. Used by iteration and by GC to bound a
// linear scan of committed entries.
func (p *Page) End() int { return int(p.offset.Load() >> 1) }

func sizeWord(buf pagemanager.Buffer, pos int) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[pos]))
}

func typeWord(buf pagemanager.Buffer, pos int) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[pos+4]))
}

// appendEntry is the core lock-free bump-append algorithm (spec 4.1).
// It claims a slot for a size-byte, type-tagged entry, writes the type
// word, then publishes the new bump pointer with monotone-max semantics so
// concurrently racing publishers always converge on the furthest-advanced
// offset. Returns the entry's start position, or ok=false if the page is
// sealed or full.
func (p *Page) appendEntry(size uint32, typ uint32) (position int, ok bool) {
	entrySize := alignUp(int(size)+entryHeaderSize, alignment)
	if entrySize > p.MaxEntrySize() {
		return 0, false
	}

	offset := p.offset.Load()
	if offset&openBit == 0 {
		return 0, false
	}
	position = int(offset >> 1)

	for {
		endPosition := position + entrySize
		if endPosition > len(p.buf) {
			return 0, false
		}

		skip, acquired := p.tryAcquire(position, size, typ)
		if !acquired {
			position += skip
			continue
		}

		nOffset := uint32(endPosition<<1) | openBit
		for offset < nOffset {
			if p.offset.CompareAndSwap(offset, nOffset) {
				return position, true
			}
			offset = p.offset.Load()
			if offset&openBit == 0 {
				if int(offset>>1) >= endPosition {
					// Sealed after we fully claimed our range: still valid.
					return position, true
				}
				// Sealed before we fully claimed our range: abandon it.
				return 0, false
			}
		}
		return position, true
	}
}

// tryAcquire attempts to claim the size word at position via CAS from the
// zero ("free") sentinel to (size<<1)|1 ("committed-present"). On failure
// it returns how many bytes to skip forward to probe past whatever entry
// is already there.
func (p *Page) tryAcquire(position int, size, typ uint32) (skip int, ok bool) {
	word := sizeWord(p.buf, position)
	claim := (size << 1) | 1
	if !atomic.CompareAndSwapUint32(word, 0, claim) {
		existing := atomic.LoadUint32(word)
		return alignUp(int(existing>>1)+entryHeaderSize, alignment), false
	}
	atomic.StoreUint32(typeWord(p.buf, position), typ)
	return 0, true
}

// EntryHeader reports the committed size and type tag of the entry at
// position, acquiring on the size word per the release/acquire discipline
// required before reading payload bytes.
func (p *Page) EntryHeader(position int) (size uint32, typ uint32, present bool) {
	raw := atomic.LoadUint32(sizeWord(p.buf, position))
	if raw&1 == 0 {
		return 0, 0, false
	}
	t := atomic.LoadUint32(typeWord(p.buf, position))
	return raw >> 1, t, true
}

// EntryPayload returns the writable/readable payload byte range for an
// entry of the given size starting at position.
func (p *Page) EntryPayload(position int, size uint32) []byte {
	start := position + entryHeaderSize
	return p.buf[start : start+int(size)]
}
