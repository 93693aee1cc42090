package engine_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"tellmvcc/engine"
	"tellmvcc/record"
)

func TestInsertGetRoundTrip(t *testing.T) {
	s := engine.New()
	table, err := s.CreateTable("t")
	require.NoError(t, err)

	tx := s.StartTx()
	require.NoError(t, table.Insert(1, tx, []byte("hello")))

	got, err := table.Get(1, tx)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")
	tx := s.StartTx()
	require.NoError(t, table.Insert(1, tx, []byte("a")))
	require.ErrorIs(t, table.Insert(1, tx, []byte("b")), engine.ErrKeyExists)
}

func TestGetMissingKeyNotFound(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")
	tx := s.StartTx()
	_, err := table.Get(42, tx)
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSnapshotIsolationNoReadSkew(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	writer := s.StartTx()
	require.NoError(t, table.Insert(1, writer, []byte("v1")))
	writer.Commit()

	reader := s.StartTx()
	updater := s.StartTx()
	require.NoError(t, table.Update(1, updater, []byte("v2")))
	updater.Commit()

	// reader's snapshot was opened before the update committed; it must
	// keep seeing the original value even after the update lands.
	got, err := table.Get(1, reader)
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))

	fresh := s.StartTx()
	got, err = table.Get(1, fresh)
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))
}

func TestWriteWriteConflict(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v1")))
	setup.Commit()

	txA := s.StartTx()
	txB := s.StartTx()

	require.NoError(t, table.Update(1, txA, []byte("a")))
	txA.Commit()

	// txB's snapshot predates txA's commit, so its write must be rejected.
	err := table.Update(1, txB, []byte("b"))
	require.ErrorIs(t, err, engine.ErrConflict)
}

func TestDeleteThenReadSeesTombstone(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v1")))
	setup.Commit()

	del := s.StartTx()
	require.NoError(t, table.Remove(1, del))
	del.Commit()

	reader := s.StartTx()
	_, err := table.Get(1, reader)
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestRevertUndoesOwnUncommittedWrite(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v1")))
	setup.Commit()

	tx := s.StartTx()
	require.NoError(t, table.Update(1, tx, []byte("v2")))
	require.NoError(t, table.Revert(1, tx))

	got, err := table.GetNewest(1)
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
}

func TestRevertInsertRemovesKeyEntirely(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	tx := s.StartTx()
	require.NoError(t, table.Insert(1, tx, []byte("v1")))
	require.NoError(t, table.Revert(1, tx))

	_, err := table.GetNewest(1)
	require.ErrorIs(t, err, engine.ErrNotFound)

	// the key slot was fully vacated, so a fresh insert must be allowed.
	tx2 := s.StartTx()
	require.NoError(t, table.Insert(1, tx2, []byte("v1-again")))
}

func TestForceGCCompactsAgedChainRowLayout(t *testing.T) {
	s := engine.New(engine.WithLayout(record.LayoutRow))
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v1")))
	setup.Commit()

	for i := 0; i < 5; i++ {
		tx := s.StartTx()
		require.NoError(t, table.Update(1, tx, []byte("v")))
		tx.Commit()
	}

	result := s.ForceGC()
	require.Equal(t, 1, result["t"])

	reader := s.StartTx()
	got, err := table.Get(1, reader)
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}

func TestForceGCCompactsAgedChainColumnLayout(t *testing.T) {
	s := engine.New(engine.WithLayout(record.LayoutColumn), engine.WithColumnCapacity(8))
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v1")))
	setup.Commit()

	for i := 0; i < 3; i++ {
		tx := s.StartTx()
		require.NoError(t, table.Update(1, tx, []byte("v")))
		tx.Commit()
	}

	result := s.ForceGC()
	require.Equal(t, 1, result["t"])

	reader := s.StartTx()
	got, err := table.Get(1, reader)
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}

func TestGCFullSweepTruncatesAbsorbedPages(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v1")))
	setup.Commit()

	for i := 0; i < 4; i++ {
		tx := s.StartTx()
		require.NoError(t, table.Update(1, tx, []byte("v")))
		tx.Commit()
	}

	before := s.ForceGC()
	require.Equal(t, 1, before["t"])

	reader := s.StartTx()
	got, err := table.Get(1, reader)
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}

func TestConcurrentUpdatesAllLandUnderRetry(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	setup := s.StartTx()
	require.NoError(t, table.Insert(1, setup, []byte("v0")))
	setup.Commit()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tx := s.StartTx()
				err := table.Update(1, tx, []byte("v"))
				if err == nil {
					tx.Commit()
					return
				}
				tx.Abort()
			}
		}()
	}
	wg.Wait()

	reader := s.StartTx()
	got, err := table.Get(1, reader)
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}

func TestStartScanPartitionsAllVisibleKeys(t *testing.T) {
	s := engine.New()
	table, _ := s.CreateTable("t")

	tx := s.StartTx()
	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, table.Insert(i, tx, []byte("x")))
	}
	tx.Commit()

	scan := s.StartTx()
	iters := table.StartScan(4, scan)
	require.Len(t, iters, 4)

	var got []engine.ScanEntry
	for _, it := range iters {
		for it.Next() {
			got = append(got, it.Entry())
		}
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Key < got[j].Key })

	want := make([]engine.ScanEntry, 20)
	for i := range want {
		want[i] = engine.ScanEntry{Key: uint64(i + 1), Data: []byte("x")}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("scan result mismatch (-want +got):\n%s", diff)
	}
}
