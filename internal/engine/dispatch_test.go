package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
	"github.com/Sumatoshi-tech/prunefang/internal/queue"
	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// countingEngine builds an engine over a two-leaf tree whose oracle accepts
// everything and counts its invocations.
func countingEngine() (*Engine, *syntree.Node, *atomic.Int64) {
	gone := syntree.NewLeaf(2, "comment", []byte("xx"), []byte(" "), 0, 2, true)
	keep := syntree.NewLeaf(3, "identifier", []byte("keep"), []byte(" "), 3, 7, false)
	root := syntree.NewInterior(1, "file", []*syntree.Node{gone, keep}, 0, 8, false, true)

	var calls atomic.Int64

	orc := oracle.Func(func(_ context.Context, _ []byte) (bool, error) {
		calls.Add(1)

		return true, nil
	})

	return New(syntree.New(root), orc, Options{}), gone, &calls
}

func TestDispatchUnknownKindFailsLoudly(t *testing.T) {
	t.Parallel()

	tree := syntree.New(syntree.NewLeaf(1, "file", []byte("x"), nil, 0, 1, false))
	orc := oracle.Func(func(_ context.Context, _ []byte) (bool, error) { return true, nil })
	e := New(tree, orc, Options{})

	err := e.dispatch(context.Background(), queue.Task{Kind: queue.Kind(9), Node: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestStaleTaskDispatchIsNoOp(t *testing.T) {
	t.Parallel()

	e, _, calls := countingEngine()
	ctx := context.Background()
	before := e.target.Snapshot()

	const missing syntree.NodeID = 99

	tasks := []queue.Task{
		{Kind: queue.KindExplore, Node: missing},
		{Kind: queue.KindDelete, Node: missing},
		{Kind: queue.KindDelta, Node: missing},
		{Kind: queue.KindHoist, Node: missing},
		{Kind: queue.KindHoist, Node: before.Root().ID(), Repl: missing},
	}

	for _, task := range tasks {
		require.NoError(t, e.dispatch(ctx, task))
	}

	assert.Same(t, before, e.target.Snapshot())
	assert.Zero(t, calls.Load())
	assert.Equal(t, int64(len(tasks)), e.staleDrops.Load())
}

func TestRedeliveredDeleteIsNoOp(t *testing.T) {
	t.Parallel()

	e, gone, calls := countingEngine()
	ctx := context.Background()

	snap := e.target.Snapshot()

	shrunk, ok := snap.Remove(gone.ID())
	require.True(t, ok)
	require.True(t, e.target.TryReplace(snap, shrunk))

	// A second Delete for the already-removed node is a routine stale
	// drop, not a double deletion.
	require.NoError(t, e.dispatch(ctx, queue.Task{Kind: queue.KindDelete, Node: gone.ID()}))

	assert.Same(t, shrunk, e.target.Snapshot())
	assert.Zero(t, calls.Load())
	assert.Equal(t, int64(1), e.staleDrops.Load())
}

func TestExcerptTruncatesLongCandidates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", excerptLimit*2)

	got := excerpt([]byte(long))

	assert.Len(t, got, excerptLimit+len("..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", excerpt([]byte("short")))
}
