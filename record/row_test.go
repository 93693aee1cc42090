package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tellmvcc/record"
)

func TestCollectAndCompactRowRoundTrip(t *testing.T) {
	insertLog, updateLog := newLogs(t)

	ins, ok := record.NewInsert(insertLog, 9, 1, []byte("v1"))
	require.True(t, ok)
	u2, ok := record.NewUpdate(updateLog, ins, 2, []byte("v2"))
	require.True(t, ok)
	del, ok := record.NewDelete(updateLog, u2, 3)
	require.True(t, ok)
	u4, ok := record.NewUpdate(updateLog, del, 4, []byte("v4"))
	require.True(t, ok)

	b := record.Collect(u4, 1)
	row, ok := record.NewMVRecordRow(updateLog, b)
	require.True(t, ok)

	v := record.Resolve(row, thresholdSnapshot{horizon: 4})
	require.True(t, v.Found)
	require.Equal(t, "v4", string(v.Data))

	v = record.Resolve(row, thresholdSnapshot{horizon: 3})
	require.True(t, v.Deleted)
	require.Equal(t, uint64(3), v.Version)

	v = record.Resolve(row, thresholdSnapshot{horizon: 2})
	require.True(t, v.Found)
	require.Equal(t, "v2", string(v.Data))
}

func TestRowNeedsCleaning(t *testing.T) {
	insertLog, updateLog := newLogs(t)
	ins, ok := record.NewInsert(insertLog, 1, 1, []byte("v1"))
	require.True(t, ok)
	u2, ok := record.NewUpdate(updateLog, ins, 2, []byte("v2"))
	require.True(t, ok)

	b := record.Collect(u2, 1)
	row, ok := record.NewMVRecordRow(updateLog, b)
	require.True(t, ok)

	require.False(t, record.NeedsCleaning(row, 1), "no version below the cutoff yet")

	u3, ok := record.NewUpdate(updateLog, row, 10, []byte("v10"))
	require.True(t, ok)

	b2 := record.Collect(u3, 9)
	row2, ok := record.NewMVRecordRow(updateLog, b2)
	require.True(t, ok)
	require.False(t, record.NeedsCleaning(row2, 9), "freshly compacted against this exact cutoff has nothing left to clean")
	require.True(t, record.NeedsCleaning(row2, 11), "every version is now below a higher cutoff")
}

// TestCollectSplicesChainInFrontOfAnEarlierCompaction covers GC running a
// second time on a key whose chain is a few fresh Update/Delete entries
// sitting in front of an MVRecord left behind by an earlier compaction.
func TestCollectSplicesChainInFrontOfAnEarlierCompaction(t *testing.T) {
	insertLog, updateLog := newLogs(t)

	ins, ok := record.NewInsert(insertLog, 1, 1, []byte("v1"))
	require.True(t, ok)
	u2, ok := record.NewUpdate(updateLog, ins, 2, []byte("v2"))
	require.True(t, ok)

	b := record.Collect(u2, 1)
	row, ok := record.NewMVRecordRow(updateLog, b)
	require.True(t, ok)

	u3, ok := record.NewUpdate(updateLog, row, 3, []byte("v3"))
	require.True(t, ok)
	del, ok := record.NewDelete(updateLog, u3, 4)
	require.True(t, ok)

	merged := record.Collect(del, 1)
	compacted, ok := record.NewMVRecordRow(updateLog, merged)
	require.True(t, ok)

	v := record.Resolve(compacted, thresholdSnapshot{horizon: 4})
	require.True(t, v.Deleted)

	v = record.Resolve(compacted, thresholdSnapshot{horizon: 3})
	require.True(t, v.Found)
	require.Equal(t, "v3", string(v.Data))

	v = record.Resolve(compacted, thresholdSnapshot{horizon: 1})
	require.True(t, v.Found)
	require.Equal(t, "v1", string(v.Data))
}
