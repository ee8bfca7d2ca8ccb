package morris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjacency(t *testing.T) {
	t.Run("Adjacency is symmetric", func(t *testing.T) {
		// Given: the full adjacency table
		// Then: every neighbor relation holds in both directions
		for position := 0; position < 24; position++ {
			for _, neighbor := range Adjacent(position) {
				assert.True(t, AreAdjacent(neighbor, position),
					"position %d lists %d but not vice versa", position, neighbor)
			}
		}
	})

	t.Run("Corner positions have two neighbors, cross positions up to four", func(t *testing.T) {
		assert.ElementsMatch(t, []int{1, 9}, Adjacent(0))
		assert.ElementsMatch(t, []int{1, 3, 5, 7}, Adjacent(4))
		assert.ElementsMatch(t, []int{16, 18, 20, 22}, Adjacent(19))
	})

	t.Run("Out of range positions have no neighbors", func(t *testing.T) {
		assert.Nil(t, Adjacent(-1))
		assert.Nil(t, Adjacent(24))
	})
}

func TestValidPosition(t *testing.T) {
	assert.True(t, ValidPosition(0))
	assert.True(t, ValidPosition(23))
	assert.False(t, ValidPosition(-1))
	assert.False(t, ValidPosition(24))
}

func TestMillCombos(t *testing.T) {
	t.Run("There are sixteen mill lines", func(t *testing.T) {
		require.Len(t, MillCombos, 16)
	})

	t.Run("Every position is on at least two mill lines", func(t *testing.T) {
		counts := make(map[int]int)
		for _, combo := range MillCombos {
			for _, position := range combo {
				counts[position]++
			}
		}

		for position := 0; position < 24; position++ {
			assert.GreaterOrEqual(t, counts[position], 2, "position %d", position)
		}
	})

	t.Run("Mill lines are connected paths on the board", func(t *testing.T) {
		for _, combo := range MillCombos {
			assert.True(t, AreAdjacent(combo[0], combo[1]), "combo %v", combo)
			assert.True(t, AreAdjacent(combo[1], combo[2]), "combo %v", combo)
		}
	})
}
