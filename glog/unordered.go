package glog

import (
	"sync/atomic"

	"tellmvcc/pagemanager"
)

// logHead is the immutable value swapped atomically to emulate the 128-bit
// {writeHead, appendHead} CAS of the source algorithm: Go has no native
// 128-bit atomic, so the pair is replaced as a whole via
// atomic.Pointer[logHead], matching the functional-options / immutable
// snapshot style the teacher uses for its own version pointer.
type logHead struct {
	writeHead  *Page
	appendHead *Page
}

// UnorderedLog is the update journal: a write head for the current
// appender plus an append head for a batch of already-filled pages queued
// by another thread (typically GC), not yet the append target. It supports
// bulk page adoption and mid-chain erase (component C3).
type UnorderedLog struct {
	pages *pagemanager.Manager
	head  atomic.Pointer[logHead]
	tail  atomic.Pointer[Page]
	count atomic.Int64
}

// NewUnorderedLog allocates the log's first page.
func NewUnorderedLog(pages *pagemanager.Manager) (*UnorderedLog, error) {
	buf, err := pages.Acquire()
	if err != nil {
		return nil, err
	}
	p := newPage(buf)
	l := &UnorderedLog{pages: pages}
	l.head.Store(&logHead{writeHead: p})
	l.tail.Store(p)
	l.count.Store(1)
	return l, nil
}

// Append appends a size-byte, type-tagged entry to the current write head.
func (l *UnorderedLog) Append(size uint32, typ uint32) (EntryRef, bool) {
	head := l.head.Load()
	for head.writeHead != nil {
		if pos, ok := head.writeHead.appendEntry(size, typ); ok {
			return EntryRef{Page: head.writeHead, Pos: pos}, true
		}
		var err error
		head, err = l.createPage(head)
		if err != nil {
			return EntryRef{}, false
		}
	}
	return EntryRef{}, false
}

func (l *UnorderedLog) createPage(old *logHead) (*logHead, error) {
	writeHead := old.writeHead
	writeHead.Seal()

	for {
		freeOnFail := false
		next := &logHead{}

		if old.appendHead == nil {
			buf, err := l.pages.Acquire()
			if err != nil {
				return nil, err
			}
			p := newPage(buf)
			p.Next().Store(old.writeHead)
			next.writeHead = p
			freeOnFail = true
		} else {
			next.writeHead = old.appendHead
			next.appendHead = nil
		}

		if l.head.CompareAndSwap(old, next) {
			// Adopted append-head pages were counted by AppendPage.
			if freeOnFail {
				l.count.Add(1)
			}
			return next, nil
		}
		if freeOnFail {
			l.pages.Free(next.writeHead.buf)
		}

		cur := l.head.Load()
		if cur.writeHead == writeHead {
			old = cur
			continue
		}
		return cur, nil
	}
}

// AppendPage bulk-inserts an already-filled page chain [begin, end] (end
// inclusive, typically produced by GC) onto the append-head side of the
// log, to be picked up as the write head once the current one fills.
func (l *UnorderedLog) AppendPage(begin, end *Page) {
	n := int64(1)
	for p := begin; p != end; p = p.Next().Load() {
		n++
	}
	l.count.Add(n)

	for {
		old := l.head.Load()
		next := old.appendHead
		if next == nil {
			next = old.writeHead
		}
		end.Next().Store(next)
		if old.appendHead != nil {
			old.appendHead.Seal()
		}

		nHead := &logHead{writeHead: old.writeHead, appendHead: begin}
		if l.head.CompareAndSwap(old, nHead) {
			return
		}
	}
}

// Erase splices the pages strictly between begin and end out of the log's
// tail side, relinking begin directly to end, and schedules them for
// epoch-deferred free; begin itself stays linked. end == nil makes begin
// the new tail.
func (l *UnorderedLog) Erase(begin, end *Page) {
	if begin == end {
		return
	}
	if end == nil {
		l.tail.Store(begin)
	}

	next := begin.Next().Swap(end)
	if next == end {
		return
	}

	n := int64(0)
	for p := next; p != end && p != nil; p = p.Next().Load() {
		n++
	}
	l.count.Add(-n)

	page := next
	for page != end && page != nil {
		nxt := page.Next().Load()
		l.pages.DeferredFree(page.buf)
		page = nxt
	}
}

// Tail returns the current tail page.
func (l *UnorderedLog) Tail() *Page { return l.tail.Load() }

// WriteHead returns the current write head (the currently open page).
func (l *UnorderedLog) WriteHead() *Page { return l.head.Load().writeHead }

// PageCount reports the number of pages currently linked into the log.
func (l *UnorderedLog) PageCount() int64 { return l.count.Load() }
