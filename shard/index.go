package shard

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/faithful-data/shardcodec/codec"
)

// sentinel, in both the offset and the length field, marks an empty
// sub-chunk entry (spec §3:
// "the pair (2^64-1, 2^64-1) marks an empty sub-chunk").
const sentinel = uint64(math.MaxUint64)

// entryWidth is the on-disk width, in bytes, of one (offset, length) pair
// (spec §6: "Entry width: 16 bytes per sub-chunk").
const entryWidth = 16

// ShardIndex is the fixed-shape table mapping a sub-chunk grid coordinate
// to its (offset, length) within the shard payload (spec §4.1).
type ShardIndex struct {
	shape   []int // chunksPerShard
	offsets []uint64
	lengths []uint64
}

// CreateEmptyIndex returns an index of the given shape filled with the
// empty sentinel, per spec §4.1 "create_empty(chunks_per_shard)".
func CreateEmptyIndex(chunksPerShard []int) *ShardIndex {
	n := productInts(chunksPerShard)
	idx := &ShardIndex{
		shape:   append([]int(nil), chunksPerShard...),
		offsets: make([]uint64, n),
		lengths: make([]uint64, n),
	}
	for i := range idx.offsets {
		idx.offsets[i] = sentinel
		idx.lengths[i] = sentinel
	}
	return idx
}

// Shape returns the chunks-per-shard shape this index is sized for.
func (idx *ShardIndex) Shape() []int {
	return append([]int(nil), idx.shape...)
}

func (idx *ShardIndex) flatIndex(coords []int) int {
	i := 0
	for d, c := range coords {
		i = i*idx.shape[d] + c
	}
	return i
}

// Get returns the (start, end) byte range of coords, or ok=false if the
// entry is the empty sentinel (spec §4.1 "get(coords) -> Option<(start,
// end)>").
func (idx *ShardIndex) Get(coords []int) (start, end uint64, ok bool) {
	i := idx.flatIndex(coords)
	if idx.offsets[i] == sentinel && idx.lengths[i] == sentinel {
		return 0, 0, false
	}
	return idx.offsets[i], idx.offsets[i] + idx.lengths[i], true
}

// Slice is an occupied index entry: a byte range of (Start, Start+Length).
type Slice struct {
	Start  uint64
	Length uint64
}

// Set assigns coords to slice, or clears it to the empty sentinel when
// slice is nil (spec §4.1 "set(coords, Option<slice>)").
func (idx *ShardIndex) Set(coords []int, slice *Slice) {
	i := idx.flatIndex(coords)
	if slice == nil {
		idx.offsets[i] = sentinel
		idx.lengths[i] = sentinel
		return
	}
	idx.offsets[i] = slice.Start
	idx.lengths[i] = slice.Length
}

// IsAllEmpty reports whether every entry is the empty sentinel.
func (idx *ShardIndex) IsAllEmpty() bool {
	for i := range idx.offsets {
		if idx.offsets[i] != sentinel || idx.lengths[i] != sentinel {
			return false
		}
	}
	return true
}

// IsDense reports whether every non-empty entry is exactly innerChunkSize
// bytes long, starts at a multiple of innerChunkSize, and all offsets are
// unique (spec §4.1 "is_dense(inner_chunk_size)").
func (idx *ShardIndex) IsDense(innerChunkSize uint64) bool {
	seen := make(map[uint64]struct{}, len(idx.offsets))
	for i := range idx.offsets {
		if idx.offsets[i] == sentinel && idx.lengths[i] == sentinel {
			continue
		}
		if idx.lengths[i] != innerChunkSize {
			return false
		}
		if innerChunkSize != 0 && idx.offsets[i]%innerChunkSize != 0 {
			return false
		}
		if _, dup := seen[idx.offsets[i]]; dup {
			return false
		}
		seen[idx.offsets[i]] = struct{}{}
	}
	return true
}

// Clone returns a deep copy of idx.
func (idx *ShardIndex) Clone() *ShardIndex {
	return &ShardIndex{
		shape:   append([]int(nil), idx.shape...),
		offsets: append([]uint64(nil), idx.offsets...),
		lengths: append([]uint64(nil), idx.lengths...),
	}
}

// ShiftOffsets adds delta to every non-empty entry's offset. Used by
// ShardBuilder.Finalize when the index is placed at the start of the
// shard (spec §4.2 two-pass finalize).
func (idx *ShardIndex) ShiftOffsets(delta uint64) {
	for i := range idx.offsets {
		if idx.offsets[i] == sentinel && idx.lengths[i] == sentinel {
			continue
		}
		idx.offsets[i] += delta
	}
}

// rawBytes serializes the index table to its pre-pipeline byte
// representation: fixed-width little-endian u64s, row-major, shape
// chunksPerShard + (2,) (spec §4.1 "encode/decode").
func (idx *ShardIndex) rawBytes() []byte {
	n := len(idx.offsets)
	buf := make([]byte, n*entryWidth)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[i*entryWidth:], idx.offsets[i])
		binary.LittleEndian.PutUint64(buf[i*entryWidth+8:], idx.lengths[i])
	}
	return buf
}

// Encode serializes idx through the index codec pipeline.
func (idx *ShardIndex) Encode(pipeline *codec.Pipeline) ([]byte, error) {
	raw := idx.rawBytes()
	out, err := pipeline.Encode(raw, codec.Spec{DecodedSize: len(raw)})
	if err != nil {
		return nil, wrapInnerCodecError(err)
	}
	return out, nil
}

// decodeIndexTable parses a raw (post-pipeline-decode) byte buffer into a
// ShardIndex of the given shape, validating its dimensions and internal
// consistency (spec §3 invariant 4 is checked by the caller once the
// payload size is known; decodeIndexTable only validates shape/size and
// rejects entries where just one of offset and length is the sentinel).
func decodeIndexTable(raw []byte, chunksPerShard []int) (*ShardIndex, error) {
	n := productInts(chunksPerShard)
	want := n * entryWidth
	if len(raw) != want {
		return nil, newCorruptShardError("index table is %d bytes, expected %d for shape %v", len(raw), want, chunksPerShard)
	}
	idx := &ShardIndex{
		shape:   append([]int(nil), chunksPerShard...),
		offsets: make([]uint64, n),
		lengths: make([]uint64, n),
	}
	for i := 0; i < n; i++ {
		idx.offsets[i] = binary.LittleEndian.Uint64(raw[i*entryWidth:])
		idx.lengths[i] = binary.LittleEndian.Uint64(raw[i*entryWidth+8:])
		occupied := !(idx.offsets[i] == sentinel && idx.lengths[i] == sentinel)
		if occupied && (idx.offsets[i] == sentinel || idx.lengths[i] == sentinel) {
			return nil, newCorruptShardError("entry %d has a partial sentinel (offset=%d, length=%d)", i, idx.offsets[i], idx.lengths[i])
		}
	}
	return idx, nil
}

// validateBounds enforces spec §3 invariants 3 and 4, and testable
// property 7 (overlapping non-empty byte ranges are rejected), against a
// known payload size and the minimum legal offset (indexSize when the
// index is at the start of the shard, 0 when at the end).
func (idx *ShardIndex) validateBounds(rawSize, minOffset uint64) error {
	type span struct {
		start, end uint64
		entry      int
	}
	var spans []span
	seen := make(map[uint64]struct{}, len(idx.offsets))
	for i := range idx.offsets {
		if idx.offsets[i] == sentinel && idx.lengths[i] == sentinel {
			continue
		}
		start, length := idx.offsets[i], idx.lengths[i]
		if start < minOffset {
			return newCorruptShardError("entry %d starts at %d, before the payload region (min %d)", i, start, minOffset)
		}
		end := start + length
		if end < start {
			return newCorruptShardError("entry %d has an overflowing byte range (start=%d, length=%d)", i, start, length)
		}
		if end > rawSize {
			return newCorruptShardError("entry %d ends at %d, past the end of the shard (%d bytes)", i, end, rawSize)
		}
		if _, dup := seen[start]; dup {
			return newCorruptShardError("entry %d duplicates offset %d of another entry", i, start)
		}
		seen[start] = struct{}{}
		spans = append(spans, span{start: start, end: end, entry: i})
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return newCorruptShardError("entry %d (%d-%d) overlaps entry %d (%d-%d)",
				spans[i].entry, spans[i].start, spans[i].end, spans[i-1].entry, spans[i-1].start, spans[i-1].end)
		}
	}
	return nil
}
