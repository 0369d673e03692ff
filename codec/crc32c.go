package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C appends (on Encode) or verifies-and-strips (on Decode) a 4-byte
// little-endian CRC32C trailer. It is the second stage of the default
// index codec pipeline (spec §6: `index_codecs: default [bytes, crc32c]`)
// and is fixed-size on fixed-size input (input+4), satisfying the
// requirement in spec §3 invariant 6 and §9.
type CRC32C struct{}

var _ ByteCodec = CRC32C{}

func (CRC32C) Name() string { return "crc32c" }

func (CRC32C) Encode(input []byte, _ Spec) ([]byte, error) {
	sum := crc32.Checksum(input, castagnoli)
	out := make([]byte, len(input)+4)
	copy(out, input)
	binary.LittleEndian.PutUint32(out[len(input):], sum)
	return out, nil
}

func (CRC32C) Decode(input []byte, _ Spec) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("crc32c: input too short (%d bytes)", len(input))
	}
	body, trailer := input[:len(input)-4], input[len(input)-4:]
	want := binary.LittleEndian.Uint32(trailer)
	got := crc32.Checksum(body, castagnoli)
	if want != got {
		return nil, fmt.Errorf("crc32c: checksum mismatch: got %08x, want %08x", got, want)
	}
	return body, nil
}

func (CRC32C) ComputeEncodedSize(inputLen int, _ Spec) (int, error) {
	return inputLen + 4, nil
}

func (c CRC32C) Evolve(_ Spec) ByteCodec { return c }
