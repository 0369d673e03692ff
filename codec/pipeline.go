// Package codec defines the inner/index codec pipeline contract consumed by
// the sharding codec (spec §4.4) and the concrete byte codecs shipped with
// this module (identity, crc32c, zstd).
package codec

import "fmt"

// Spec carries the shape information a codec may need to size or adapt its
// output. It mirrors the "plain data record" described in spec §9: no
// runtime type dispatch beyond a byte-length and an evolution hint.
type Spec struct {
	// DecodedSize is the length, in bytes, of the uncompressed/unencoded
	// input. It is 0 when unknown (e.g. a bytes-to-bytes codec operating
	// on variable-length sub-chunk output).
	DecodedSize int
	// ByteOrder is an evolution hint consumed by Evolve; "" means
	// "no preference, keep current".
	ByteOrder string
}

// ByteCodec is the capability set a sharding codec requires from its inner
// and index codec pipelines: Encode, Decode, ComputeEncodedSize and Evolve
// (spec §4.4, §9 "cyclic graphs / inheritance").
type ByteCodec interface {
	// Name identifies the codec for logging and configuration round-trips.
	Name() string
	// Encode transforms input into its encoded form. A nil return with a
	// nil error means "encodes to nothing" (only meaningful for sub-chunk
	// bodies, never for the index).
	Encode(input []byte, spec Spec) ([]byte, error)
	// Decode reverses Encode.
	Decode(input []byte, spec Spec) ([]byte, error)
	// ComputeEncodedSize returns the output length this codec produces for
	// a given input length, or an error if the codec is not fixed-size.
	ComputeEncodedSize(inputLen int, spec Spec) (int, error)
	// Evolve returns a codec adapted to spec, leaving the receiver
	// untouched. Most codecs return themselves.
	Evolve(spec Spec) ByteCodec
}

// FixedSize reports whether codec is fixed-size *given* a fixed input
// length, by probing ComputeEncodedSize once with probeLen and checking the
// codec doesn't error. The index codec pipeline (spec §3 invariant 6, §9
// "two-pass finalize") is required to satisfy this.
func FixedSize(c ByteCodec, probeLen int) bool {
	_, err := c.ComputeEncodedSize(probeLen, Spec{DecodedSize: probeLen})
	return err == nil
}

// Pipeline is an ordered chain of ByteCodecs applied left-to-right on
// encode and right-to-left on decode, matching the "ordered codec list"
// configuration surface in spec §6.
type Pipeline struct {
	codecs []ByteCodec
}

// NewPipeline builds a Pipeline from an ordered codec list. An empty list is
// rejected: the sharding codec always has at least one codec configured for
// sub-chunk bytes and one for the index (spec §6 defaults).
func NewPipeline(codecs ...ByteCodec) (*Pipeline, error) {
	if len(codecs) == 0 {
		return nil, fmt.Errorf("codec: pipeline must have at least one codec")
	}
	return &Pipeline{codecs: append([]ByteCodec(nil), codecs...)}, nil
}

// Codecs returns the ordered list of codecs in the pipeline.
func (p *Pipeline) Codecs() []ByteCodec {
	return append([]ByteCodec(nil), p.codecs...)
}

// Encode runs input through every codec in order.
func (p *Pipeline) Encode(input []byte, spec Spec) ([]byte, error) {
	cur := input
	for _, c := range p.codecs {
		out, err := c.Encode(cur, spec)
		if err != nil {
			return nil, fmt.Errorf("codec: %s: encode: %w", c.Name(), err)
		}
		if out == nil {
			return nil, nil
		}
		cur = out
	}
	return cur, nil
}

// Decode runs input through every codec in reverse order.
func (p *Pipeline) Decode(input []byte, spec Spec) ([]byte, error) {
	cur := input
	for i := len(p.codecs) - 1; i >= 0; i-- {
		c := p.codecs[i]
		out, err := c.Decode(cur, spec)
		if err != nil {
			return nil, fmt.Errorf("codec: %s: decode: %w", c.Name(), err)
		}
		cur = out
	}
	return cur, nil
}

// ComputeEncodedSize chains ComputeEncodedSize across the pipeline. It fails
// if any stage is not fixed-size for the given input length.
func (p *Pipeline) ComputeEncodedSize(inputLen int, spec Spec) (int, error) {
	cur := inputLen
	for _, c := range p.codecs {
		size, err := c.ComputeEncodedSize(cur, spec)
		if err != nil {
			return 0, fmt.Errorf("codec: %s: not fixed-size: %w", c.Name(), err)
		}
		cur = size
	}
	return cur, nil
}

// IsFixedSize reports whether every stage of the pipeline is fixed-size for
// the given probe input length (spec §9's required validation for the
// index codec pipeline).
func (p *Pipeline) IsFixedSize(probeLen int) bool {
	_, err := p.ComputeEncodedSize(probeLen, Spec{DecodedSize: probeLen})
	return err == nil
}

// Evolve adapts every codec in the pipeline to spec and returns a new,
// independently-usable Pipeline (spec §4.4 "evolve(spec) -> pipeline").
func (p *Pipeline) Evolve(spec Spec) *Pipeline {
	evolved := make([]ByteCodec, len(p.codecs))
	for i, c := range p.codecs {
		evolved[i] = c.Evolve(spec)
	}
	return &Pipeline{codecs: evolved}
}
