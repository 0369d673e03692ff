package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	zstdpool "github.com/mostynb/zstdpool-freelist"
)

// zstd encoder/decoder pools, shared across all Zstd codec instances the
// way gsfa/linkedlog pools its (de)compressors for repeated small payloads
// instead of paying zstd's setup cost per sub-chunk.
var (
	zstdDecoderPool = zstdpool.NewDecoderPool()
	zstdEncoderPool = zstdpool.NewEncoderPool(
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
)

// Zstd is a variable-size inner codec for sub-chunk bytes (spec §6
// `codecs` list). It is never legal in an index codec pipeline: its
// output length depends on the input contents, not just the input length,
// so ComputeEncodedSize always errors.
type Zstd struct{}

var _ ByteCodec = Zstd{}

func (Zstd) Name() string { return "zstd" }

func (Zstd) Encode(input []byte, _ Spec) ([]byte, error) {
	enc, err := zstdEncoderPool.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: get encoder: %w", err)
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(input, nil), nil
}

func (Zstd) Decode(input []byte, _ Spec) ([]byte, error) {
	dec, err := zstdDecoderPool.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: get decoder: %w", err)
	}
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: decompress: %w", err)
	}
	return out, nil
}

func (Zstd) ComputeEncodedSize(int, Spec) (int, error) {
	return 0, fmt.Errorf("zstd: not fixed-size")
}

func (c Zstd) Evolve(_ Spec) ByteCodec { return c }
