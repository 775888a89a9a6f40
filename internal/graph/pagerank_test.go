package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rankSum(ranks []float64) float64 {
	sum := 0.0
	for _, r := range ranks {
		sum += r
	}
	return sum
}

func TestWeightedPagerank(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		ranks, err := weightedPagerank(0, nil)
		require.NoError(t, err)
		require.Nil(t, ranks)
	})

	t.Run("chain ranks accumulate downstream", func(t *testing.T) {
		// a -> b -> c
		out := []map[int]float64{
			{1: 1},
			{2: 1},
			nil,
		}
		ranks, err := weightedPagerank(3, out)
		require.NoError(t, err)
		require.InDelta(t, 1.0, rankSum(ranks), 1e-4)
		require.Greater(t, ranks[2], ranks[1])
		require.Greater(t, ranks[1], ranks[0])
	})

	t.Run("heavier edge attracts more rank", func(t *testing.T) {
		// a sends 9x more weight to b than to c
		out := []map[int]float64{
			{1: 9, 2: 1},
			nil,
			nil,
		}
		ranks, err := weightedPagerank(3, out)
		require.NoError(t, err)
		require.Greater(t, ranks[1], ranks[2])
	})

	t.Run("symmetric pair converges to equal ranks", func(t *testing.T) {
		out := []map[int]float64{
			{1: 5},
			{0: 5},
		}
		ranks, err := weightedPagerank(2, out)
		require.NoError(t, err)
		require.InDelta(t, ranks[0], ranks[1], 1e-6)
		require.InDelta(t, 1.0, rankSum(ranks), 1e-4)
	})

	t.Run("zero edge mass does not converge", func(t *testing.T) {
		out := []map[int]float64{
			{1: 0},
			nil,
		}
		_, err := weightedPagerank(2, out)
		require.ErrorIs(t, err, ErrNoConvergence)
	})
}

func TestUniformRank(t *testing.T) {
	ranks := uniformRank(4)
	require.Len(t, ranks, 4)
	for _, r := range ranks {
		require.InDelta(t, 0.25, r, 1e-12)
	}
}
