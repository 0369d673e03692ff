package shard

// SubChunkWork describes one sub-chunk's slice of a larger shard
// operation: its grid coordinate, the selection within the sub-chunk
// itself, and the corresponding selection within the caller's logical
// array (spec §4.3: "(coords, sub_chunk_selection, out_selection) tuples").
type SubChunkWork struct {
	Coord  []int
	SubSel Selection
	OutSel Selection
}

// ChunksPerShard derives spec §3 invariant 2: chunks_per_shard[i] =
// shard_shape[i] / inner_shape[i]. It also validates invariant 1 (positive
// multiple in every dimension).
func ChunksPerShard(shardShape, innerShape []int) ([]int, error) {
	if len(shardShape) != len(innerShape) {
		return nil, newConfigurationError("shard shape has %d dimensions, inner chunk shape has %d", len(shardShape), len(innerShape))
	}
	out := make([]int, len(shardShape))
	for i := range shardShape {
		if shardShape[i] <= 0 {
			return nil, newConfigurationError("shard shape[%d] = %d must be positive", i, shardShape[i])
		}
		if innerShape[i] <= 0 {
			return nil, newConfigurationError("inner chunk shape[%d] = %d must be positive", i, innerShape[i])
		}
		if shardShape[i]%innerShape[i] != 0 {
			return nil, newConfigurationError("shard shape[%d] = %d is not a multiple of inner chunk shape[%d] = %d", i, shardShape[i], i, innerShape[i])
		}
		out[i] = shardShape[i] / innerShape[i]
	}
	return out, nil
}

// EnumerateGrid returns every coordinate of a grid of the given shape, in
// row-major order.
func EnumerateGrid(shape []int) [][]int {
	var out [][]int
	eachIndex(shape, func(idx []int) {
		out = append(out, append([]int(nil), idx...))
	})
	return out
}

func dimPieces(selStart, selStop, chunkSize int) []struct{ chunkIdx, chunkStart, chunkStop, outStart, outStop int } {
	var pieces []struct{ chunkIdx, chunkStart, chunkStop, outStart, outStop int }
	if selStop <= selStart {
		return pieces
	}
	firstChunk := selStart / chunkSize
	lastChunk := (selStop - 1) / chunkSize
	for c := firstChunk; c <= lastChunk; c++ {
		base := c * chunkSize
		lo, hi := selStart, selStop
		if base > lo {
			lo = base
		}
		if base+chunkSize < hi {
			hi = base + chunkSize
		}
		pieces = append(pieces, struct{ chunkIdx, chunkStart, chunkStop, outStart, outStop int }{
			chunkIdx:   c,
			chunkStart: lo - base,
			chunkStop:  hi - base,
			outStart:   lo - selStart,
			outStop:    hi - selStart,
		})
	}
	return pieces
}

// DecomposeSelection splits sel (expressed in shard-shape coordinates) into
// per-sub-chunk work items, the basic slice-to-chunk decomposition spec §1
// treats as an assumed-available external collaborator. innerShape is the
// inner chunk shape; sel's dimensionality must match it.
func DecomposeSelection(innerShape []int, sel Selection) ([]SubChunkWork, error) {
	if len(sel) != len(innerShape) {
		return nil, newConfigurationError("selection has %d dimensions, inner chunk shape has %d", len(sel), len(innerShape))
	}
	perDim := make([][]struct{ chunkIdx, chunkStart, chunkStop, outStart, outStop int }, len(sel))
	for i, r := range sel {
		perDim[i] = dimPieces(r[0], r[1], innerShape[i])
		if len(perDim[i]) == 0 {
			return nil, nil
		}
	}

	counts := make([]int, len(perDim))
	for i, pieces := range perDim {
		counts[i] = len(pieces)
	}

	var out []SubChunkWork
	eachIndex(counts, func(combo []int) {
		coord := make([]int, len(combo))
		subSel := make(Selection, len(combo))
		outSel := make(Selection, len(combo))
		for i, pick := range combo {
			p := perDim[i][pick]
			coord[i] = p.chunkIdx
			subSel[i] = [2]int{p.chunkStart, p.chunkStop}
			outSel[i] = [2]int{p.outStart, p.outStop}
		}
		out = append(out, SubChunkWork{Coord: coord, SubSel: subSel, OutSel: outSel})
	})
	return out, nil
}

// CoversWholeGrid reports whether the set of coordinates in work touches
// every coordinate of a grid shaped chunksPerShard — used by decode_partial
// to decide between a full-shard load and an index-only load (spec §4.3).
func CoversWholeGrid(work []SubChunkWork, chunksPerShard []int) bool {
	want := productInts(chunksPerShard)
	seen := make(map[string]struct{}, len(work))
	for _, w := range work {
		seen[coordKey(w.Coord)] = struct{}{}
	}
	return len(seen) >= want
}

func coordKey(coord []int) string {
	b := make([]byte, 0, len(coord)*5)
	for i, c := range coord {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendInt(b, c)
	}
	return string(b)
}

func appendInt(b []byte, v int) []byte {
	if v == 0 {
		return append(b, '0')
	}
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	start := len(b)
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
