package shard

import "sort"

// bitsPerDim is how many low bits of each coordinate participate in the
// Morton interleaving. 20 bits per dimension (so up to ~1M sub-chunks per
// axis) comfortably fits within a uint64 code for the dimensionalities
// this codec targets (spec's examples are 2-D and 3-D).
const bitsPerDim = 20

// mortonCode interleaves the low bitsPerDim bits of each coordinate,
// round-robin across dimensions, producing the Z-order key used to lay
// out a merged shard (spec §4.3, GLOSSARY "Morton order (Z-order)").
func mortonCode(coords []int) uint64 {
	var code uint64
	bitPos := uint(0)
	for b := 0; b < bitsPerDim; b++ {
		for _, c := range coords {
			bit := uint64(c>>uint(b)) & 1
			code |= bit << bitPos
			bitPos++
		}
	}
	return code
}

// MortonOrderedCoords returns every coordinate of a grid of the given
// shape, sorted by Morton (Z-order) code rather than row-major order.
func MortonOrderedCoords(shape []int) [][]int {
	coords := EnumerateGrid(shape)
	sort.Slice(coords, func(i, j int) bool {
		return mortonCode(coords[i]) < mortonCode(coords[j])
	})
	return coords
}
