package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLouvainCommunities(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		require.Nil(t, louvainCommunities(0, nil))
	})

	t.Run("no edges leaves every node in its own community", func(t *testing.T) {
		labels := louvainCommunities(3, make([]map[int]float64, 3))
		require.Equal(t, []int{0, 1, 2}, labels)
	})

	t.Run("two dense groups with a weak link split apart", func(t *testing.T) {
		// nodes 0-2 form a triangle, nodes 3-5 form a triangle, one weak
		// edge between the groups
		out := []map[int]float64{
			{1: 10, 2: 10},
			{2: 10},
			{3: 1}, // the weak bridge
			{4: 10, 5: 10},
			{5: 10},
			nil,
		}
		labels := louvainCommunities(6, out)
		require.Len(t, labels, 6)

		require.Equal(t, labels[0], labels[1])
		require.Equal(t, labels[1], labels[2])
		require.Equal(t, labels[3], labels[4])
		require.Equal(t, labels[4], labels[5])
		require.NotEqual(t, labels[0], labels[3])
	})

	t.Run("labels are contiguous from zero", func(t *testing.T) {
		out := []map[int]float64{
			{1: 5},
			nil,
			{3: 5},
			nil,
		}
		labels := louvainCommunities(4, out)
		seen := map[int]struct{}{}
		max := 0
		for _, l := range labels {
			seen[l] = struct{}{}
			if l > max {
				max = l
			}
		}
		require.Equal(t, max+1, len(seen))
	})
}

func TestRenumber(t *testing.T) {
	labels, count := renumber([]int{7, 3, 7, 9, 3})
	require.Equal(t, []int{0, 1, 0, 2, 1}, labels)
	require.Equal(t, 3, count)
}
