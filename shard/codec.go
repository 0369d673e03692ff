// Package shard implements the sharding storage codec: a binary container
// that packs many sub-chunks into one physical store object, with a fixed
// index, concurrent encode/decode, and a Morton-order partial-write merge.
package shard

import (
	"context"
	"errors"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/faithful-data/shardcodec/codec"
	"github.com/faithful-data/shardcodec/internal/continuity"
	"github.com/faithful-data/shardcodec/internal/fanout"
	"github.com/faithful-data/shardcodec/store"
)

// keyFingerprint compactly identifies a shard key in log lines without
// printing the full (potentially long) store path.
func keyFingerprint(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Codec is the sharding storage codec (spec §4.3, "SharShardingCodec").
// It is a pure transform: it owns no state between calls.
type Codec struct {
	cfg            Config
	shardShape     []int
	chunksPerShard []int
}

// New validates cfg against shardShape and returns a ready-to-use Codec.
// Configuration errors (spec §7.1) are returned immediately, never
// deferred to first use.
func New(shardShape []int, opts ...Option) (*Codec, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	chunksPerShard, err := ChunksPerShard(shardShape, cfg.ChunkShape)
	if err != nil {
		return nil, err
	}
	return &Codec{
		cfg:            cfg,
		shardShape:     append([]int(nil), shardShape...),
		chunksPerShard: chunksPerShard,
	}, nil
}

// ChunksPerShard returns the sub-chunk grid shape this Codec was
// constructed with, for callers (e.g. cmd/shardctl) that need to parse a
// ShardProxy directly.
func (c *Codec) ChunksPerShard() []int { return append([]int(nil), c.chunksPerShard...) }

// IndexCodecs returns the configured index codec pipeline.
func (c *Codec) IndexCodecs() *codec.Pipeline { return c.cfg.IndexCodecs }

// IndexLocation returns the configured index placement.
func (c *Codec) IndexLocation() IndexLocation { return c.cfg.IndexLocation }

func (c *Codec) innerSpec(itemSize int, fillValue []byte) ArraySpec {
	return ArraySpec{Shape: c.cfg.ChunkShape, ItemSize: itemSize, FillValue: fillValue, Order: OrderC}
}

// Encode implements spec §4.3 "encode(shard_array, shard_spec) ->
// Optional<bytes>". shardArray must have shape equal to the shard shape
// this Codec was constructed with.
func (c *Codec) Encode(ctx context.Context, shardArray *Array, concurrency int) ([]byte, error) {
	coords := EnumerateGrid(c.chunksPerShard)
	innerSpec := c.innerSpec(shardArray.Spec.ItemSize, shardArray.Spec.FillValue)

	encoded, err := fanout.Map(ctx, coords, concurrency, func(_ context.Context, _ int, coord []int) ([]byte, error) {
		inner, err := NewArray(innerSpec)
		if err != nil {
			return nil, err
		}
		sel := make(Selection, len(coord))
		for d, co := range coord {
			sel[d] = [2]int{co * c.cfg.ChunkShape[d], (co + 1) * c.cfg.ChunkShape[d]}
		}
		if err := CopyRegion(inner, FullSelection(c.cfg.ChunkShape), shardArray, sel); err != nil {
			return nil, err
		}
		if inner.IsAllFillValue() {
			return nil, nil
		}
		out, err := c.cfg.Codecs.Encode(inner.Data, codec.Spec{DecodedSize: len(inner.Data)})
		if err != nil {
			return nil, wrapInnerCodecError(err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	builder := NewShardBuilder(c.chunksPerShard)
	for i, coord := range coords {
		if encoded[i] != nil {
			builder.Append(coord, encoded[i])
		}
	}
	if builder.IsAllEmpty() {
		klog.V(4).Infof("shard: encode produced an all-empty shard, omitting object")
		return nil, nil
	}
	out, err := builder.Finalize(c.cfg.IndexLocation, c.cfg.IndexCodecs)
	if err != nil {
		return nil, err
	}
	klog.V(4).Infof("shard: encoded shard (%s, %d sub-chunks)", humanize.Bytes(uint64(len(out))), len(coords))
	return out, nil
}

// Decode implements spec §4.3 "decode(shard_bytes, shard_spec) -> array".
func (c *Codec) Decode(ctx context.Context, shardBytes []byte, spec ArraySpec, concurrency int) (*Array, error) {
	out, err := NewFilledArray(spec)
	if err != nil {
		return nil, err
	}
	proxy, err := ParseShardProxy(shardBytes, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
	if err != nil {
		return nil, err
	}
	if proxy.Index.IsAllEmpty() {
		return out, nil
	}

	work, err := DecomposeSelection(c.cfg.ChunkShape, FullSelection(spec.Shape))
	if err != nil {
		return nil, err
	}
	innerSpec := c.innerSpec(spec.ItemSize, spec.FillValue)

	if err := fanout.Each(ctx, work, concurrency, func(_ context.Context, _ int, w SubChunkWork) error {
		data, ok := proxy.Get(w.Coord)
		if !ok {
			FillRegion(out, w.OutSel, spec.FillValue)
			return nil
		}
		decoded, err := c.cfg.Codecs.Decode(data, codec.Spec{})
		if err != nil {
			return wrapInnerCodecError(err)
		}
		inner := &Array{Spec: innerSpec, Data: decoded}
		return CopyRegion(out, w.OutSel, inner, w.SubSel)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodePartial implements spec §4.3 "decode_partial(store_path,
// selection, shard_spec) -> Optional<array>". sel is expressed in
// shard-shape coordinates; the returned array has shape sel.Shape().
func (c *Codec) DecodePartial(ctx context.Context, st store.Store, key string, sel Selection, itemSize int, fillValue []byte, concurrency int) (*Array, error) {
	work, err := DecomposeSelection(c.cfg.ChunkShape, sel)
	if err != nil {
		return nil, err
	}
	outSpec := ArraySpec{Shape: sel.Shape(), ItemSize: itemSize, FillValue: fillValue, Order: OrderC}
	out, err := NewFilledArray(outSpec)
	if err != nil {
		return nil, err
	}
	innerSpec := c.innerSpec(itemSize, fillValue)

	if CoversWholeGrid(work, c.chunksPerShard) {
		data, err := st.Get(ctx, key, store.FullRange())
		if errors.Is(err, store.ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, wrapStoreError(err)
		}
		proxy, err := ParseShardProxy(data, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
		if err != nil {
			return nil, err
		}
		err = fanout.Each(ctx, work, concurrency, func(_ context.Context, _ int, w SubChunkWork) error {
			raw, ok := proxy.Get(w.Coord)
			if !ok {
				FillRegion(out, w.OutSel, fillValue)
				return nil
			}
			decoded, err := c.cfg.Codecs.Decode(raw, codec.Spec{})
			if err != nil {
				return wrapInnerCodecError(err)
			}
			return CopyRegion(out, w.OutSel, &Array{Spec: innerSpec, Data: decoded}, w.SubSel)
		})
		return out, err
	}

	idx, exists, err := c.loadIndexOnly(ctx, st, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return out, nil
	}
	err = fanout.Each(ctx, work, concurrency, func(ctx context.Context, _ int, w SubChunkWork) error {
		start, end, ok := idx.Get(w.Coord)
		if !ok {
			FillRegion(out, w.OutSel, fillValue)
			return nil
		}
		raw, err := st.Get(ctx, key, store.Range{Offset: int64(start), Length: int64(end - start)})
		if err != nil {
			return wrapStoreError(err)
		}
		decoded, err := c.cfg.Codecs.Decode(raw, codec.Spec{})
		if err != nil {
			return wrapInnerCodecError(err)
		}
		return CopyRegion(out, w.OutSel, &Array{Spec: innerSpec, Data: decoded}, w.SubSel)
	})
	return out, err
}

// loadIndexOnly range-reads just the index of key (head or tail per
// configuration) without fetching the payload (spec §4.3
// "_load_shard_index").
func (c *Codec) loadIndexOnly(ctx context.Context, st store.Store, key string) (*ShardIndex, bool, error) {
	indexSize, err := indexByteSize(c.chunksPerShard, c.cfg.IndexCodecs)
	if err != nil {
		return nil, false, err
	}
	var rng store.Range
	if c.cfg.IndexLocation == IndexAtStart {
		rng = store.HeadRange(int64(indexSize))
	} else {
		rng = store.TailRange(int64(indexSize))
	}
	indexBytes, err := st.Get(ctx, key, rng)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStoreError(err)
	}
	raw, err := c.cfg.IndexCodecs.Decode(indexBytes, codec.Spec{})
	if err != nil {
		return nil, false, wrapInnerCodecError(err)
	}
	idx, err := decodeIndexTable(raw, c.chunksPerShard)
	if err != nil {
		return nil, false, err
	}
	minOffset := uint64(0)
	if c.cfg.IndexLocation == IndexAtStart {
		minOffset = uint64(indexSize)
	}
	for i := range idx.offsets {
		if idx.offsets[i] == sentinel && idx.lengths[i] == sentinel {
			continue
		}
		if idx.offsets[i] < minOffset {
			return nil, false, newCorruptShardError("entry starts at %d, before the payload region (min %d)", idx.offsets[i], minOffset)
		}
	}
	return idx, true, nil
}

func isFullInnerCoverage(subSel Selection, chunkShape []int) bool {
	for d, r := range subSel {
		if r[0] != 0 || r[1] != chunkShape[d] {
			return false
		}
	}
	return true
}

type subChunkResult struct {
	coord     []int
	bytes     []byte
	tombstone bool
}

// EncodePartial implements spec §4.3 "encode_partial(store_path,
// shard_array, selection, shard_spec)". newData has shape sel.Shape() and
// holds the values being written at sel.
func (c *Codec) EncodePartial(ctx context.Context, st store.Store, key string, newData *Array, sel Selection, concurrency int) error {
	work, err := DecomposeSelection(c.cfg.ChunkShape, sel)
	if err != nil {
		return err
	}

	var oldProxy *ShardProxy
	existingBytes, err := st.Get(ctx, key, store.FullRange())
	switch {
	case errors.Is(err, store.ErrNotFound):
		// fresh shard (spec §7.5): nothing to merge against.
	case err != nil:
		return wrapStoreError(err)
	default:
		oldProxy, err = ParseShardProxy(existingBytes, c.chunksPerShard, c.cfg.IndexCodecs, c.cfg.IndexLocation)
		if err != nil {
			return err
		}
	}

	innerSpec := c.innerSpec(newData.Spec.ItemSize, newData.Spec.FillValue)

	results, err := fanout.Map(ctx, work, concurrency, func(_ context.Context, _ int, w SubChunkWork) (subChunkResult, error) {
		full := isFullInnerCoverage(w.SubSel, c.cfg.ChunkShape)
		var base *Array
		var berr error
		switch {
		case full:
			base, berr = NewArray(innerSpec)
		case oldProxy != nil:
			if raw, ok := oldProxy.Get(w.Coord); ok {
				decoded, derr := c.cfg.Codecs.Decode(raw, codec.Spec{})
				if derr != nil {
					return subChunkResult{}, wrapInnerCodecError(derr)
				}
				base = &Array{Spec: innerSpec, Data: append([]byte(nil), decoded...)}
			} else {
				base, berr = NewFilledArray(innerSpec)
			}
		default:
			base, berr = NewFilledArray(innerSpec)
		}
		if berr != nil {
			return subChunkResult{}, berr
		}
		if err := CopyRegion(base, w.SubSel, newData, w.OutSel); err != nil {
			return subChunkResult{}, err
		}
		if base.IsAllFillValue() {
			return subChunkResult{coord: w.Coord, tombstone: true}, nil
		}
		encoded, err := c.cfg.Codecs.Encode(base.Data, codec.Spec{DecodedSize: len(base.Data)})
		if err != nil {
			return subChunkResult{}, wrapInnerCodecError(err)
		}
		return subChunkResult{coord: w.Coord, bytes: encoded}, nil
	})
	if err != nil {
		return err
	}

	tombstones := make(map[string]struct{}, len(results))
	newEntries := make(map[string][]byte, len(results))
	for _, r := range results {
		if r.tombstone {
			tombstones[coordKey(r.coord)] = struct{}{}
		} else {
			newEntries[coordKey(r.coord)] = r.bytes
		}
	}

	// Merge into a fresh builder in Morton order (spec §4.3 step 3): this
	// both reclaims space from overwritten sub-chunks and makes the
	// on-disk layout independent of write history.
	builder := NewShardBuilder(c.chunksPerShard)
	for _, coord := range MortonOrderedCoords(c.chunksPerShard) {
		ck := coordKey(coord)
		if _, dead := tombstones[ck]; dead {
			continue
		}
		if data, ok := newEntries[ck]; ok {
			builder.Append(coord, data)
			continue
		}
		if oldProxy != nil {
			if data, ok := oldProxy.Get(coord); ok {
				builder.Append(coord, data)
			}
		}
	}

	// Assemble the finalized bytes entirely in memory before touching the
	// store: a cancelled encode_partial must leave the stored object
	// untouched (spec §5 "Cancellation & timeouts").
	var finalized []byte
	chainErr := continuity.New().
		Thenf("finalize shard bytes", func() error {
			var ferr error
			finalized, ferr = builder.Finalize(c.cfg.IndexLocation, c.cfg.IndexCodecs)
			return ferr
		}).
		Err()
	if chainErr != nil {
		return chainErr
	}

	if builder.IsAllEmpty() {
		if err := st.Delete(ctx, key); err != nil {
			return wrapStoreError(err)
		}
		klog.V(4).Infof("shard: encode_partial emptied shard %#x, deleted object", keyFingerprint(key))
		return nil
	}
	if err := st.Set(ctx, key, finalized); err != nil {
		return wrapStoreError(err)
	}
	klog.V(4).Infof("shard: encode_partial wrote shard %#x (%s)", keyFingerprint(key), humanize.Bytes(uint64(len(finalized))))
	return nil
}

