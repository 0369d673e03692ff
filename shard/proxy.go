package shard

import (
	"github.com/faithful-data/shardcodec/codec"
)

// IndexLocation selects where the index lives within a shard's bytes
// (spec §3, §6: "start" or "end").
type IndexLocation int

const (
	IndexAtEnd IndexLocation = iota
	IndexAtStart
)

// ShardProxy is an immutable view over a shard's bytes, wrapping a parsed
// ShardIndex and the byte slice its offsets index into (spec §4.2).
type ShardProxy struct {
	Index *ShardIndex
	raw   []byte
}

// indexByteSize returns the deterministic encoded size of an index for
// chunksPerShard under pipeline (spec §3: "index_codec.encoded_size(16 *
// prod(chunks_per_shard))").
func indexByteSize(chunksPerShard []int, pipeline *codec.Pipeline) (int, error) {
	raw := productInts(chunksPerShard) * entryWidth
	size, err := pipeline.ComputeEncodedSize(raw, codec.Spec{DecodedSize: raw})
	if err != nil {
		return 0, newConfigurationError("index codec pipeline is not fixed-size: %v", err)
	}
	return size, nil
}

// ParseShardProxy parses shardBytes into a ShardProxy, reading the index
// from the head or tail per location (spec §4.3 decode step 1).
func ParseShardProxy(shardBytes []byte, chunksPerShard []int, indexPipeline *codec.Pipeline, location IndexLocation) (*ShardProxy, error) {
	// spec §8 testable property 8: a zero-byte shard object parses as an
	// all-empty shard, on equal footing with an absent key.
	if len(shardBytes) == 0 {
		return &ShardProxy{Index: CreateEmptyIndex(chunksPerShard), raw: nil}, nil
	}

	indexSize, err := indexByteSize(chunksPerShard, indexPipeline)
	if err != nil {
		return nil, err
	}
	if len(shardBytes) < indexSize {
		return nil, newCorruptShardError("shard is %d bytes, smaller than its %d-byte index", len(shardBytes), indexSize)
	}

	var indexBytes, raw []byte
	var minOffset uint64
	if location == IndexAtStart {
		indexBytes = shardBytes[:indexSize]
		raw = shardBytes
		minOffset = uint64(indexSize)
	} else {
		raw = shardBytes[:len(shardBytes)-indexSize]
		indexBytes = shardBytes[len(shardBytes)-indexSize:]
		minOffset = 0
	}

	rawIndex, err := indexPipeline.Decode(indexBytes, codec.Spec{})
	if err != nil {
		return nil, wrapInnerCodecError(err)
	}
	idx, err := decodeIndexTable(rawIndex, chunksPerShard)
	if err != nil {
		return nil, err
	}
	if err := idx.validateBounds(uint64(len(raw)), minOffset); err != nil {
		return nil, err
	}
	return &ShardProxy{Index: idx, raw: raw}, nil
}

// Get returns the byte slice for coords, or ok=false if it is empty.
func (p *ShardProxy) Get(coords []int) ([]byte, bool) {
	start, end, ok := p.Index.Get(coords)
	if !ok {
		return nil, false
	}
	return p.raw[start:end], true
}

// AllCoords returns every coordinate of the sub-chunk grid, in row-major
// order (spec §4.2: "iteration over all coordinates of the sub-chunk
// grid").
func (p *ShardProxy) AllCoords() [][]int {
	return EnumerateGrid(p.Index.Shape())
}

// ShardBuilder owns a growable byte buffer and a mutable index, used to
// assemble a shard during encode and encode_partial (spec §4.2).
type ShardBuilder struct {
	index *ShardIndex
	buf   []byte
}

// NewShardBuilder starts an empty builder for a grid of shape
// chunksPerShard.
func NewShardBuilder(chunksPerShard []int) *ShardBuilder {
	return &ShardBuilder{index: CreateEmptyIndex(chunksPerShard)}
}

// Append sets index[coords] = (current_len, len(data)) and extends the
// buffer (spec §4.2 "append(coords, bytes)").
func (b *ShardBuilder) Append(coords []int, data []byte) {
	offset := uint64(len(b.buf))
	b.buf = append(b.buf, data...)
	b.index.Set(coords, &Slice{Start: offset, Length: uint64(len(data))})
}

// IsAllEmpty reports whether nothing has been appended (every coordinate
// is still the empty sentinel).
func (b *ShardBuilder) IsAllEmpty() bool {
	return b.index.IsAllEmpty()
}

// Finalize encodes the index and concatenates it with the payload per
// location, performing the two-pass encode described in spec §4.2 when
// location is IndexAtStart.
func (b *ShardBuilder) Finalize(location IndexLocation, indexPipeline *codec.Pipeline) ([]byte, error) {
	if location == IndexAtEnd {
		encodedIndex, err := b.index.Encode(indexPipeline)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(b.buf)+len(encodedIndex))
		out = append(out, b.buf...)
		out = append(out, encodedIndex...)
		return out, nil
	}

	// IndexAtStart: a throwaway first encode learns index_size, then every
	// non-empty offset is shifted by it and the index is re-encoded. The
	// index codec pipeline is required to be fixed-size on fixed-size
	// input, so the second encode has the same length as the first.
	firstPass, err := b.index.Encode(indexPipeline)
	if err != nil {
		return nil, err
	}
	shifted := b.index.Clone()
	shifted.ShiftOffsets(uint64(len(firstPass)))
	secondPass, err := shifted.Encode(indexPipeline)
	if err != nil {
		return nil, err
	}
	if len(secondPass) != len(firstPass) {
		return nil, newConfigurationError(
			"index codec pipeline is not fixed-size: first pass produced %d bytes, second pass produced %d bytes",
			len(firstPass), len(secondPass))
	}
	out := make([]byte, 0, len(secondPass)+len(b.buf))
	out = append(out, secondPass...)
	out = append(out, b.buf...)
	return out, nil
}
