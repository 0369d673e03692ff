package shard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMortonOrderedCoordsCoversWholeGrid(t *testing.T) {
	coords := MortonOrderedCoords([]int{4, 4})
	require.Len(t, coords, 16)
	seen := make(map[[2]int]bool)
	for _, c := range coords {
		seen[[2]int{c[0], c[1]}] = true
	}
	require.Len(t, seen, 16)
}

func TestMortonOrderMatchesScenarioS4(t *testing.T) {
	// spec.md scenario S4: a 4x4 grid of sub-chunks (8x8 shard, 2x2 inner
	// chunks) with survivors at (0,0),(1,0),(1,1) after (0,1) is removed;
	// expect Morton order (0,0),(1,0),(1,1) among those three.
	order := MortonOrderedCoords([]int{4, 4})
	pos := map[[2]int]int{}
	for i, c := range order {
		pos[[2]int{c[0], c[1]}] = i
	}
	require.Less(t, pos[[2]int{0, 0}], pos[[2]int{1, 0}])
	require.Less(t, pos[[2]int{1, 0}], pos[[2]int{1, 1}])
}
