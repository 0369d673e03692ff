package shard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faithful-data/shardcodec/store"
	"github.com/faithful-data/shardcodec/store/localstore"
)

func u8Array(t *testing.T, shape []int, fill byte, values func(coords []int) byte) *Array {
	t.Helper()
	spec := ArraySpec{Shape: shape, ItemSize: 1, FillValue: []byte{fill}, Order: OrderC}
	arr, err := NewFilledArray(spec)
	require.NoError(t, err)
	strd := strides(shape, OrderC, 1)
	eachIndex(shape, func(idx []int) {
		off := flatByteOffset(idx, strd)
		arr.Data[off] = values(idx)
	})
	return arr
}

func zerosArray(shape []int) *Array {
	spec := ArraySpec{Shape: shape, ItemSize: 1, FillValue: []byte{0}, Order: OrderC}
	arr, _ := NewFilledArray(spec)
	return arr
}

func arraysEqual(t *testing.T, a, b *Array) {
	t.Helper()
	require.Equal(t, a.Spec.Shape, b.Spec.Shape)
	require.Equal(t, a.Data, b.Data)
}

// S1: shard_shape=(4,4), chunk_shape=(2,2), index_location=end, u8,
// fill_value=0. Encode A = [[1..16]]. Expect 4 dense entries of length 4.
func TestScenarioS1DenseEncode(t *testing.T) {
	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	n := byte(1)
	a := u8Array(t, []int{4, 4}, 0, func(idx []int) byte { v := n; n++; return v })

	out, err := c.Encode(context.Background(), a, 4)
	require.NoError(t, err)
	require.NotNil(t, out)

	proxy, err := ParseShardProxy(out, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
	require.NoError(t, err)
	require.True(t, proxy.Index.IsDense(4))

	seenOffsets := map[uint64]bool{}
	for _, coord := range EnumerateGrid(c.chunksPerShard) {
		start, end, ok := proxy.Index.Get(coord)
		require.True(t, ok)
		require.EqualValues(t, 4, end-start)
		seenOffsets[start] = true
	}
	require.Len(t, seenOffsets, 4)
	for _, want := range []uint64{0, 4, 8, 12} {
		require.True(t, seenOffsets[want], "missing offset %d", want)
	}
}

// S2: encoding an all-fill-value array yields None (a nil byte slice).
func TestScenarioS2AllFillEncodesToNone(t *testing.T) {
	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	zeros := zerosArray([]int{4, 4})
	out, err := c.Encode(context.Background(), zeros, 4)
	require.NoError(t, err)
	require.Nil(t, out)
}

// S3: encode_partial on a fresh key writing A[0:2,0:2]=ones produces a
// single non-empty sub-chunk at coord (0,0).
func TestScenarioS3EncodePartialFreshShard(t *testing.T) {
	dir := t.TempDir()
	st, err := localstore.New(dir)
	require.NoError(t, err)

	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	ones := u8Array(t, []int{2, 2}, 0, func([]int) byte { return 1 })
	ctx := context.Background()
	err = c.EncodePartial(ctx, st, "shard-s3", ones, Selection{{0, 2}, {0, 2}}, 4)
	require.NoError(t, err)

	data, err := st.Get(ctx, "shard-s3", store.FullRange())
	require.NoError(t, err)
	proxy, err := ParseShardProxy(data, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
	require.NoError(t, err)

	for _, coord := range EnumerateGrid(c.chunksPerShard) {
		_, _, ok := proxy.Index.Get(coord)
		if coord[0] == 0 && coord[1] == 0 {
			require.True(t, ok)
		} else {
			require.False(t, ok, "coord %v should be sentinel", coord)
		}
	}
}

// S4: overwriting one of four populated sub-chunks with zeros removes it
// and leaves the survivors ordered by offset in Morton order.
func TestScenarioS4MortonLayoutAfterPartialWrite(t *testing.T) {
	dir := t.TempDir()
	st, err := localstore.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := New([]int{8, 8}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	// populate only sub-chunks (0,0),(0,1),(1,0),(1,1): elements [0,4)x[0,4).
	full := u8Array(t, []int{8, 8}, 0, func(idx []int) byte {
		if idx[0] < 4 && idx[1] < 4 {
			return byte(1 + idx[0] + idx[1])
		}
		return 0
	})
	encoded, err := c.Encode(ctx, full, 4)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "shard-s4", encoded))

	zeros := zerosArray([]int{2, 2})
	err = c.EncodePartial(ctx, st, "shard-s4", zeros, Selection{{0, 2}, {2, 4}}, 4)
	require.NoError(t, err)

	data, err := st.Get(ctx, "shard-s4", store.FullRange())
	require.NoError(t, err)
	proxy, err := ParseShardProxy(data, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
	require.NoError(t, err)

	_, _, ok := proxy.Index.Get([]int{0, 1})
	require.False(t, ok, "(0,1) should have been tombstoned")

	type entry struct {
		coord []int
		start uint64
	}
	var entries []entry
	for _, coord := range EnumerateGrid(c.chunksPerShard) {
		start, _, ok := proxy.Index.Get(coord)
		if ok {
			entries = append(entries, entry{coord: coord, start: start})
		}
	}
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].start, entries[i].start)
	}

	order := MortonOrderedCoords(c.chunksPerShard)
	pos := map[[2]int]int{}
	for i, co := range order {
		pos[[2]int{co[0], co[1]}] = i
	}
	for i := 1; i < len(entries); i++ {
		prev := pos[[2]int{entries[i-1].coord[0], entries[i-1].coord[1]}]
		cur := pos[[2]int{entries[i].coord[0], entries[i].coord[1]}]
		require.Less(t, prev, cur, "offsets must be in Morton order")
	}
}

// S5: index_location=start. The first 16*prod(chunks_per_shard)+4 bytes
// (indexByteSize) parse as a valid index and every non-empty offset is at
// least that large.
func TestScenarioS5IndexAtStart(t *testing.T) {
	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}), WithIndexLocation(IndexAtStart))
	require.NoError(t, err)

	n := byte(1)
	a := u8Array(t, []int{4, 4}, 0, func(idx []int) byte { v := n; n++; return v })
	out, err := c.Encode(context.Background(), a, 4)
	require.NoError(t, err)

	indexSize, err := indexByteSize(c.chunksPerShard, c.cfg.IndexCodecs)
	require.NoError(t, err)

	proxy, err := ParseShardProxy(out, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
	require.NoError(t, err)
	for _, coord := range EnumerateGrid(c.chunksPerShard) {
		start, _, ok := proxy.Index.Get(coord)
		require.True(t, ok)
		require.GreaterOrEqual(t, start, uint64(indexSize))
	}
}

// S6: decode_partial against a key missing from the store returns
// fill_value everywhere.
func TestScenarioS6DecodePartialMissingKey(t *testing.T) {
	dir := t.TempDir()
	st, err := localstore.New(dir)
	require.NoError(t, err)

	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	out, err := c.DecodePartial(context.Background(), st, "does-not-exist", FullSelection([]int{4, 4}), 1, []byte{7}, 4)
	require.NoError(t, err)
	want := zerosArray([]int{4, 4})
	want.Spec.FillValue = []byte{7}
	want.FillWithFillValue()
	arraysEqual(t, want, out)
}

// Property 1: full round-trip.
func TestRoundTripFullShard(t *testing.T) {
	c, err := New([]int{6, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	n := byte(1)
	a := u8Array(t, []int{6, 4}, 0, func(idx []int) byte { v := n; n++; return v })
	ctx := context.Background()
	out, err := c.Encode(ctx, a, 4)
	require.NoError(t, err)
	require.NotNil(t, out)

	decoded, err := c.Decode(ctx, out, a.Spec, 4)
	require.NoError(t, err)
	arraysEqual(t, a, decoded)
}

// Property 2: partial-read round-trip.
func TestRoundTripPartialRead(t *testing.T) {
	dir := t.TempDir()
	st, err := localstore.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := New([]int{6, 6}, WithChunkShape([]int{2, 3}))
	require.NoError(t, err)

	n := byte(1)
	a := u8Array(t, []int{6, 6}, 0, func(idx []int) byte { v := n; n++; return v })
	out, err := c.Encode(ctx, a, 4)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "shard-roundtrip", out))

	sel := Selection{{2, 6}, {0, 3}}
	partial, err := c.DecodePartial(ctx, st, "shard-roundtrip", sel, 1, []byte{0}, 4)
	require.NoError(t, err)

	want, err := NewArray(ArraySpec{Shape: sel.Shape(), ItemSize: 1, FillValue: []byte{0}, Order: OrderC})
	require.NoError(t, err)
	require.NoError(t, CopyRegion(want, FullSelection(sel.Shape()), a, sel))
	arraysEqual(t, want, partial)
}

// Property 3: empty-shard equivalence.
func TestEmptyShardEquivalence(t *testing.T) {
	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	fillSpec := ArraySpec{Shape: []int{4, 4}, ItemSize: 1, FillValue: []byte{9}, Order: OrderC}
	zeros, err := NewFilledArray(fillSpec)
	require.NoError(t, err)

	ctx := context.Background()
	out, err := c.Encode(ctx, zeros, 4)
	require.NoError(t, err)
	require.Nil(t, out)

	proxy := CreateEmptyIndex(c.chunksPerShard)
	require.True(t, proxy.IsAllEmpty())
}

// Property 4: partial-write idempotence.
func TestEncodePartialIdempotent(t *testing.T) {
	dir := t.TempDir()
	st, err := localstore.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := New([]int{6, 6}, WithChunkShape([]int{2, 3}))
	require.NoError(t, err)

	v := u8Array(t, []int{2, 3}, 0, func(idx []int) byte { return byte(5 + idx[1]) })
	sel := Selection{{0, 2}, {0, 3}}

	require.NoError(t, c.EncodePartial(ctx, st, "shard-idem", v, sel, 4))
	first, err := st.Get(ctx, "shard-idem", store.FullRange())
	require.NoError(t, err)

	require.NoError(t, c.EncodePartial(ctx, st, "shard-idem", v, sel, 4))
	second, err := st.Get(ctx, "shard-idem", store.FullRange())
	require.NoError(t, err)

	require.Equal(t, first, second)
}

// Property 6: dense-shard packing, fixed-length inner codec.
func TestDenseShardPacking(t *testing.T) {
	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	n := byte(1)
	a := u8Array(t, []int{4, 4}, 0, func(idx []int) byte { v := n; n++; return v })
	out, err := c.Encode(context.Background(), a, 4)
	require.NoError(t, err)

	proxy, err := ParseShardProxy(out, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
	require.NoError(t, err)
	require.True(t, proxy.Index.IsDense(4))
}

// Property 7: corrupt-shard rejection on overlapping ranges.
func TestDecodeRejectsOverlappingIndex(t *testing.T) {
	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	idx := CreateEmptyIndex(c.chunksPerShard)
	idx.Set([]int{0, 0}, &Slice{Start: 0, Length: 10})
	idx.Set([]int{0, 1}, &Slice{Start: 5, Length: 10})
	encodedIdx, err := idx.Encode(c.cfg.IndexCodecs)
	require.NoError(t, err)

	payload := make([]byte, 15)
	shardBytes := append(append([]byte(nil), payload...), encodedIdx...)

	_, err = c.Decode(context.Background(), shardBytes, ArraySpec{Shape: []int{4, 4}, ItemSize: 1, FillValue: []byte{0}, Order: OrderC}, 4)
	require.Error(t, err)
	var corrupt *CorruptShardError
	require.ErrorAs(t, err, &corrupt)
}

// Property 8: sentinel parse equivalence (zero-byte object vs. absent key).
func TestZeroByteAndAbsentKeyParseEquivalently(t *testing.T) {
	dir := t.TempDir()
	st, err := localstore.New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	c, err := New([]int{4, 4}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	absent, err := c.DecodePartial(ctx, st, "absent", FullSelection([]int{4, 4}), 1, []byte{3}, 4)
	require.NoError(t, err)

	empty, err := c.Encode(ctx, zerosArray([]int{4, 4}), 4)
	require.NoError(t, err)
	require.Nil(t, empty)

	decodedEmpty, err := c.Decode(ctx, nil, ArraySpec{Shape: []int{4, 4}, ItemSize: 1, FillValue: []byte{3}, Order: OrderC}, 4)
	require.NoError(t, err)

	arraysEqual(t, absent, decodedEmpty)
}

func TestConcurrencyUnboundedStillDeterministic(t *testing.T) {
	c, err := New([]int{8, 8}, WithChunkShape([]int{2, 2}))
	require.NoError(t, err)

	n := byte(1)
	a := u8Array(t, []int{8, 8}, 0, func(idx []int) byte { v := n; n++; return v })
	ctx := context.Background()

	out1, err := c.Encode(ctx, a, 0)
	require.NoError(t, err)
	out2, err := c.Encode(ctx, a, 1)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}

