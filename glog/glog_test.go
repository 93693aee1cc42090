package glog_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tellmvcc/epoch"
	"tellmvcc/glog"
	"tellmvcc/pagemanager"
)

func newManager(t *testing.T, pageSize int) *pagemanager.Manager {
	t.Helper()
	return pagemanager.New(epoch.New(), pageSize, 0)
}

func TestPageAppendDistinctAlignedSlots(t *testing.T) {
	m := newManager(t, 4096)
	log, err := glog.NewOrderedLog(m)
	require.NoError(t, err)

	const workers = 32
	const perWorker = 20

	type result struct {
		ref  glog.EntryRef
		size uint32
	}
	results := make(chan result, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				size := uint32(8 + (i%5)*8)
				ref, ok := log.Append(size, 1)
				require.True(t, ok)
				results <- result{ref, size}
			}
		}(w)
	}
	wg.Wait()
	close(results)

	type slotKey struct {
		page *glog.Page
		pos  int
	}
	seen := make(map[slotKey]bool)
	for r := range results {
		size, typ, present := r.ref.Header()
		require.True(t, present)
		require.Equal(t, r.size, size)
		require.EqualValues(t, 1, typ)
		require.Equal(t, 8, r.ref.Pos%16, "entry must start at offset 8 (mod 16) within the page")

		key := slotKey{r.ref.Page, r.ref.Pos}
		require.False(t, seen[key], "duplicate slot handed out")
		seen[key] = true
	}
}

func TestSealStopsFurtherAppends(t *testing.T) {
	m := newManager(t, 256)
	log, err := glog.NewOrderedLog(m)
	require.NoError(t, err)

	head := log.Head()
	_, ok := log.Append(16, 1)
	require.True(t, ok)

	head.Seal()
	require.True(t, head.IsSealed())

	// The log must transparently roll onto a new page once the head seals.
	ref, ok := log.Append(16, 1)
	require.True(t, ok)
	require.NotEqual(t, head, ref.Page)
}

func TestOrderedLogFillsMultiplePages(t *testing.T) {
	m := newManager(t, 128)
	log, err := glog.NewOrderedLog(m)
	require.NoError(t, err)

	var last glog.EntryRef
	for i := 0; i < 50; i++ {
		ref, ok := log.Append(8, 2)
		require.True(t, ok)
		last = ref
	}
	require.NotNil(t, last.Page)
	require.NotSame(t, log.Tail(), log.Head())
}

func TestOrderedLogTruncate(t *testing.T) {
	m := newManager(t, 64)
	log, err := glog.NewOrderedLog(m)
	require.NoError(t, err)

	oldTail := log.Tail()
	for i := 0; i < 10; i++ {
		_, ok := log.Append(8, 1)
		require.True(t, ok)
	}
	newTail := log.Head()
	require.True(t, log.Truncate(oldTail, newTail))
	require.Equal(t, newTail, log.Tail())

	// Idempotent no-op when already at newTail.
	require.True(t, log.Truncate(newTail, newTail))
}

func TestUnorderedLogAppendAndErase(t *testing.T) {
	m := newManager(t, 64)
	log, err := glog.NewUnorderedLog(m)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, ok := log.Append(8, 1)
		require.True(t, ok)
	}

	tail := log.Tail()
	log.Erase(tail, nil)
	require.Equal(t, tail, log.Tail())
}

func TestUnorderedLogAppendPageBulk(t *testing.T) {
	m := newManager(t, 4096)
	log, err := glog.NewUnorderedLog(m)
	require.NoError(t, err)

	batch, err := glog.NewOrderedLog(m)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, ok := batch.Append(8, 9)
		require.True(t, ok)
	}

	before := log.PageCount()
	log.AppendPage(batch.Tail(), batch.Head())
	require.Greater(t, log.PageCount(), before)
}
