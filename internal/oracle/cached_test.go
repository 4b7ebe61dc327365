package oracle_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
)

// countingOracle records how often the inner predicate actually runs.
func countingOracle(calls *atomic.Int64) oracle.Oracle {
	return oracle.Func(func(_ context.Context, source []byte) (bool, error) {
		calls.Add(1)

		return bytes.Contains(source, []byte("yes")), nil
	})
}

func TestCachedMemoizesVerdicts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	cached := oracle.NewCached(countingOracle(&calls), 0)

	for range 3 {
		interesting, err := cached.Test(context.Background(), []byte("yes please"))
		require.NoError(t, err)
		assert.True(t, interesting)
	}

	interesting, err := cached.Test(context.Background(), []byte("no"))
	require.NoError(t, err)
	assert.False(t, interesting)

	assert.Equal(t, int64(2), calls.Load())

	stats := cached.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Entries)
	assert.InDelta(t, 0.5, stats.HitRate(), 0.001)
}

func TestCachedEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	cached := oracle.NewCached(countingOracle(&calls), 2)

	inputs := [][]byte{[]byte("yes a"), []byte("yes b"), []byte("yes c")}

	for _, input := range inputs {
		_, err := cached.Test(context.Background(), input)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cached.Stats().Entries)

	// The first input was evicted and must be re-evaluated.
	_, err := cached.Test(context.Background(), inputs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())

	// The most recent entries are still cached.
	_, err = cached.Test(context.Background(), inputs[2])
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())
}

func TestCachedNeverCachesErrors(t *testing.T) {
	t.Parallel()

	errFlaky := errors.New("transient failure")

	var calls atomic.Int64

	flaky := oracle.Func(func(_ context.Context, _ []byte) (bool, error) {
		if calls.Add(1) == 1 {
			return false, errFlaky
		}

		return true, nil
	})

	cached := oracle.NewCached(flaky, 0)

	_, err := cached.Test(context.Background(), []byte("input"))
	require.ErrorIs(t, err, errFlaky)

	interesting, err := cached.Test(context.Background(), []byte("input"))
	require.NoError(t, err)
	assert.True(t, interesting)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCachedHitRateEmpty(t *testing.T) {
	t.Parallel()

	stats := oracle.CacheStats{}

	assert.Zero(t, stats.HitRate())
}
