package glog

import (
	"sync/atomic"

	"tellmvcc/pagemanager"
)

// OrderedLog is a single-writer-head chain of pages used for the insert
// journal: pages are linked in allocation order and truncation only ever
// removes from the tail (component C3).
type OrderedLog struct {
	pages *pagemanager.Manager
	head  atomic.Pointer[Page]
	tail  atomic.Pointer[Page]
}

// NewOrderedLog allocates the log's first page from pages.
func NewOrderedLog(pages *pagemanager.Manager) (*OrderedLog, error) {
	buf, err := pages.Acquire()
	if err != nil {
		return nil, err
	}
	p := newPage(buf)
	l := &OrderedLog{pages: pages}
	l.head.Store(p)
	l.tail.Store(p)
	return l, nil
}

// Append appends a size-byte, type-tagged entry, acquiring new pages as
// needed. Fails only if the page manager is exhausted.
func (l *OrderedLog) Append(size uint32, typ uint32) (EntryRef, bool) {
	head := l.head.Load()
	for head != nil {
		if pos, ok := head.appendEntry(size, typ); ok {
			return EntryRef{Page: head, Pos: pos}, true
		}
		var err error
		head, err = l.createPage(head)
		if err != nil {
			return EntryRef{}, false
		}
	}
	return EntryRef{}, false
}

// createPage advances the write head past a full page, allocating a new
// one only if no other thread already linked one in.
func (l *OrderedLog) createPage(oldHead *Page) (*Page, error) {
	if next := oldHead.Next().Load(); next != nil {
		if l.head.CompareAndSwap(oldHead, next) {
			return next, nil
		}
		return l.head.Load(), nil
	}

	oldHead.Seal()

	buf, err := l.pages.Acquire()
	if err != nil {
		return nil, err
	}
	nPage := newPage(buf)

	if !oldHead.Next().CompareAndSwap(nil, nPage) {
		// Another thread already linked a page; use it and drop ours.
		l.pages.Free(buf)
		return oldHead.Next().Load(), nil
	}

	// Best effort: if this fails another thread already advanced the head.
	l.head.CompareAndSwap(oldHead, nPage)
	return nPage, nil
}

// Tail returns the current tail page, the oldest page still linked in.
func (l *OrderedLog) Tail() *Page { return l.tail.Load() }

// Head returns the current write head.
func (l *OrderedLog) Head() *Page { return l.head.Load() }

// Truncate drops pages in [oldTail, newTail) from the log, scheduling them
// for epoch-deferred free. A no-op verifying CAS if oldTail == newTail.
func (l *OrderedLog) Truncate(oldTail, newTail *Page) bool {
	if oldTail == newTail {
		return l.tail.Load() == newTail
	}
	if !l.tail.CompareAndSwap(oldTail, newTail) {
		return false
	}
	l.freeRange(oldTail, newTail)
	return true
}

func (l *OrderedLog) freeRange(begin, end *Page) {
	page := begin
	for page != end && page != nil {
		next := page.Next().Load()
		l.pages.DeferredFree(page.buf)
		page = next
	}
}
