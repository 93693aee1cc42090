package pagemanager

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"tellmvcc/epoch"
)

// ErrExhausted is returned by Acquire when total_memory has been fully
// handed out and nothing has been freed back to the manager.
var ErrExhausted = errors.New("pagemanager: allocator exhausted")

// DefaultPageSize is the page size used when none is configured, matching
// the spec's typical size.
const DefaultPageSize = 2 << 20 // 2 MiB

// Manager hands out fixed-size Buffers up to a total memory bound and frees
// them back through an epoch.Allocator, so a buffer is only reused once no
// thread that observed a pointer into it can still be active (truncation
// safety).
type Manager struct {
	alloc    *epoch.Allocator
	pageSize int

	totalPages int64
	used       atomic.Int64

	mu   sync.Mutex
	pool []Buffer
}

// New creates a Manager bounding total memory to totalMemory bytes, carved
// into pages of pageSize bytes (rounded down). totalMemory <= 0 means
// unbounded.
func New(alloc *epoch.Allocator, pageSize int, totalMemory int) *Manager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	m := &Manager{alloc: alloc, pageSize: pageSize}
	if totalMemory > 0 {
		m.totalPages = int64(totalMemory / pageSize)
	} else {
		m.totalPages = -1 // unbounded
	}
	return m
}

// PageSize returns the configured page size.
func (m *Manager) PageSize() int { return m.pageSize }

// Acquire returns a zeroed page buffer, reusing a freed one if available,
// or allocating fresh memory while under the total_memory bound.
func (m *Manager) Acquire() (Buffer, error) {
	m.mu.Lock()
	if n := len(m.pool); n > 0 {
		buf := m.pool[n-1]
		m.pool = m.pool[:n-1]
		m.mu.Unlock()
		for i := range buf {
			buf[i] = 0
		}
		return buf, nil
	}
	m.mu.Unlock()

	if m.totalPages >= 0 && m.used.Add(1) > m.totalPages {
		m.used.Add(-1)
		return nil, ErrExhausted
	}
	return make(Buffer, m.pageSize), nil
}

// Free returns a page to the pool immediately. Callers that must respect
// the truncation-safety invariant (no live reader may hold a pointer into
// the page) should route through DeferredFree instead.
func (m *Manager) Free(buf Buffer) {
	m.mu.Lock()
	m.pool = append(m.pool, buf)
	m.mu.Unlock()
}

// DeferredFree schedules buf to be returned to the pool only once every
// thread currently pinned in the epoch allocator has exited.
func (m *Manager) DeferredFree(buf Buffer) {
	m.alloc.Invoke(func() { m.Free(buf) })
}
