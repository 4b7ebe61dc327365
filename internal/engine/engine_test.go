package engine_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prunefang/internal/engine"
	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
	"github.com/Sumatoshi-tech/prunefang/internal/syntree"
)

// needle is the token the test oracles require candidates to retain.
const needle = "NEEDLE"

// treeBuilder hands out sequential node ids for test fixtures.
type treeBuilder struct {
	next syntree.NodeID
}

func (b *treeBuilder) leaf(kind, text string, optional bool) *syntree.Node {
	b.next++

	return syntree.NewLeaf(b.next, kind, []byte(text), []byte(" "), 0, 0, optional)
}

func (b *treeBuilder) interior(kind string, optional, list bool, children ...*syntree.Node) *syntree.Node {
	b.next++

	return syntree.NewInterior(b.next, kind, children, 0, 0, optional, list)
}

// containsOracle accepts every candidate containing all the given tokens.
func containsOracle(tokens ...string) oracle.Oracle {
	return oracle.Func(func(_ context.Context, source []byte) (bool, error) {
		for _, tok := range tokens {
			if !bytes.Contains(source, []byte(tok)) {
				return false, nil
			}
		}

		return true, nil
	})
}

func TestReduceDeletesUnneededOptionalNodes(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	root := b.interior("file", false, true,
		b.leaf("identifier", needle, false),
		b.leaf("comment", "aa", true),
		b.leaf("comment", "bb", true),
		b.leaf("comment", "cc", true),
	)

	final, stats, err := engine.Reduce(context.Background(), syntree.New(root), containsOracle(needle), engine.Options{Jobs: 1})
	require.NoError(t, err)
	require.NotNil(t, final)

	assert.Equal(t, needle+" ", string(final.Render()))
	assert.Positive(t, stats.Commits)
	assert.Equal(t, final.Weight(), stats.FinalWeight)
	assert.Less(t, stats.FinalWeight, stats.InitialWeight)
}

func TestReduceDeltaConvergesToMinimalSubset(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	leaves := make([]*syntree.Node, 0, 8)

	for _, digit := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		leaves = append(leaves, b.leaf("identifier", digit, false))
	}

	root := b.interior("file", false, true, leaves...)

	final, _, err := engine.Reduce(context.Background(), syntree.New(root), containsOracle("2", "7"), engine.Options{Jobs: 1})
	require.NoError(t, err)

	// One-minimal under the predicate: exactly the required elements remain.
	assert.Equal(t, "2 7 ", string(final.Render()))
}

func TestReduceHoistsSameKindDescendant(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	inner := b.interior("expression", false, false,
		b.leaf("identifier", needle, false),
	)
	outer := b.interior("expression", false, false,
		b.leaf("(", "(", false),
		inner,
		b.leaf(")", ")", false),
		b.leaf("operator", "+", false),
		b.leaf("number", "1", false),
	)
	root := b.interior("file", false, false, outer)

	final, _, err := engine.Reduce(context.Background(), syntree.New(root), containsOracle(needle), engine.Options{Jobs: 1})
	require.NoError(t, err)

	assert.Equal(t, needle+" ", string(final.Render()))
}

func TestReduceNeverGrowsAndNeverTestsLargerCandidates(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	root := b.interior("file", false, true,
		b.leaf("comment", "aaaa", true),
		b.interior("block", true, true,
			b.leaf("identifier", "bb", true),
			b.leaf("identifier", "cc", true),
		),
		b.leaf("comment", "dd", true),
	)
	tree := syntree.New(root)
	initial := tree.Weight()

	var maxCandidate atomic.Int64

	accepting := oracle.Func(func(_ context.Context, source []byte) (bool, error) {
		for {
			seen := maxCandidate.Load()
			if int64(len(source)) <= seen || maxCandidate.CompareAndSwap(seen, int64(len(source))) {
				return true, nil
			}
		}
	})

	final, stats, err := engine.Reduce(context.Background(), tree, accepting, engine.Options{Jobs: 1})
	require.NoError(t, err)

	assert.LessOrEqual(t, stats.FinalWeight, stats.InitialWeight)
	assert.Less(t, maxCandidate.Load(), int64(initial))
	assert.Zero(t, final.Weight())
}

func TestReduceConcurrentRunMaintainsInvariants(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	blocks := make([]*syntree.Node, 0, 16)
	blocks = append(blocks, b.leaf("identifier", needle, false))

	for range 15 {
		blocks = append(blocks, b.interior("block", true, true,
			b.leaf("identifier", "xx", true),
			b.leaf("identifier", "yy", true),
			b.leaf("identifier", "zz", true),
		))
	}

	root := b.interior("file", false, true, blocks...)

	final, stats, err := engine.Reduce(context.Background(), syntree.New(root), containsOracle(needle), engine.Options{Jobs: 8})
	require.NoError(t, err)
	require.NotNil(t, final)

	assert.Contains(t, string(final.Render()), needle)
	assert.LessOrEqual(t, stats.FinalWeight, stats.InitialWeight)

	// Commits form a linear chain: each bumps the version by exactly one.
	assert.Equal(t, uint64(stats.Commits), final.Version())
}

func TestReduceOracleFaultAbortsRun(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("predicate crashed")

	faulty := oracle.Func(func(_ context.Context, _ []byte) (bool, error) {
		return false, errBroken
	})

	b := &treeBuilder{}
	root := b.interior("file", false, false,
		b.leaf("identifier", needle, false),
		b.leaf("comment", "aa", true),
	)

	final, _, err := engine.Reduce(context.Background(), syntree.New(root), faulty, engine.Options{Jobs: 2})

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrOracleFault)
	assert.ErrorContains(t, err, needle)
	assert.Nil(t, final)
}

func TestReduceOnCommitSeesEverySnapshot(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	root := b.interior("file", false, true,
		b.leaf("identifier", needle, false),
		b.leaf("comment", "aa", true),
		b.leaf("comment", "bb", true),
	)

	var commits atomic.Int64

	_, stats, err := engine.Reduce(context.Background(), syntree.New(root), containsOracle(needle), engine.Options{
		Jobs: 4,
		OnCommit: func(tree *syntree.Tree) {
			commits.Add(1)
			assert.Positive(t, tree.Version())
		},
	})
	require.NoError(t, err)

	assert.Equal(t, stats.Commits, commits.Load())
}

func TestTargetTryReplaceExactlyOneWinner(t *testing.T) {
	t.Parallel()

	b := &treeBuilder{}
	root := b.interior("file", false, true,
		b.leaf("comment", "aa", true),
		b.leaf("comment", "bb", true),
	)
	tree := syntree.New(root)
	target := engine.NewTarget(tree)

	snap := target.Snapshot()

	candA, ok := snap.Remove(snap.Root().Children()[0].ID())
	require.True(t, ok)

	candB, ok := snap.Remove(snap.Root().Children()[1].ID())
	require.True(t, ok)

	assert.True(t, target.TryReplace(snap, candA))
	assert.False(t, target.TryReplace(snap, candB))
	assert.Same(t, candA, target.Snapshot())
}
