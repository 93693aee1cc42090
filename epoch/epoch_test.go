package epoch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tellmvcc/epoch"
)

func TestInvokeRunsImmediatelyWhenNoGuardPinned(t *testing.T) {
	a := epoch.New()
	ran := false
	a.Invoke(func() { ran = true })
	require.True(t, ran, "closure should run immediately with no pinned guards")
}

func TestInvokeDefersUntilGuardUnpinned(t *testing.T) {
	a := epoch.New()
	g := a.Pin()

	ran := false
	a.Invoke(func() { ran = true })
	require.False(t, ran, "closure must not run while the pinning guard is still active")

	g.Unpin()
	require.True(t, ran, "closure must run once the pinning guard unpins")
}

func TestInvokeDoesNotWaitForLaterGuards(t *testing.T) {
	a := epoch.New()
	early := a.Pin()
	ran := false
	a.Invoke(func() { ran = true })
	require.False(t, ran)

	// A guard pinned after Invoke belongs to a later epoch and must not
	// block anything registered before it.
	g := a.Pin()
	defer g.Unpin()

	early.Unpin()
	require.True(t, ran)
}

func TestMultipleGuardsAllMustUnpin(t *testing.T) {
	a := epoch.New()
	g1 := a.Pin()
	g2 := a.Pin()

	ran := false
	a.Invoke(func() { ran = true })
	require.False(t, ran)

	g1.Unpin()
	require.False(t, ran, "one of two guards unpinning must not release the closure")

	g2.Unpin()
	require.True(t, ran)
}
