package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/faithful-data/shardcodec/codec"
	"github.com/faithful-data/shardcodec/shard"
)

// FlagShardShape and FlagChunkShape take comma-separated dimension lists
// (e.g. "-shard-shape 8,8 -chunk-shape 2,2"); shardctl treats every shard as
// a flat byte array, one item per byte, for manual inspection.
var (
	FlagShardShape = &cli.IntSliceFlag{
		Name:     "shard-shape",
		Usage:    "shard shape, one integer per dimension (e.g. --shard-shape 8 --shard-shape 8)",
		Required: true,
	}
	FlagChunkShape = &cli.IntSliceFlag{
		Name:     "chunk-shape",
		Usage:    "inner chunk shape, one integer per dimension",
		Required: true,
	}
	FlagFill = &cli.IntFlag{
		Name:  "fill",
		Usage: "fill byte value for empty sub-chunks",
		Value: 0,
	}
	FlagIndexLocation = &cli.StringFlag{
		Name:  "index-location",
		Usage: "where the index lives within the shard: start or end",
		Value: "end",
	}
	FlagCodec = &cli.StringFlag{
		Name:  "codec",
		Usage: "inner sub-chunk codec: identity or zstd",
		Value: "identity",
	}
	FlagConcurrency = &cli.IntFlag{
		Name:  "concurrency",
		Usage: "max in-flight sub-chunk operations",
		Value: 8,
	}
)

func buildCodec(c *cli.Context) (*shard.Codec, error) {
	shardShape := c.IntSlice("shard-shape")
	chunkShape := c.IntSlice("chunk-shape")
	if len(shardShape) != len(chunkShape) {
		return nil, fmt.Errorf("shard-shape has %d dimensions, chunk-shape has %d", len(shardShape), len(chunkShape))
	}

	opts := []shard.Option{shard.WithChunkShape(chunkShape)}

	switch c.String("index-location") {
	case "start":
		opts = append(opts, shard.WithIndexLocation(shard.IndexAtStart))
	case "end":
		opts = append(opts, shard.WithIndexLocation(shard.IndexAtEnd))
	default:
		return nil, fmt.Errorf("index-location must be start or end, got %q", c.String("index-location"))
	}

	var innerCodec codec.ByteCodec
	switch c.String("codec") {
	case "identity":
		innerCodec = codec.Identity{}
	case "zstd":
		innerCodec = codec.Zstd{}
	default:
		return nil, fmt.Errorf("codec must be identity or zstd, got %q", c.String("codec"))
	}
	pipeline, err := codec.NewPipeline(innerCodec)
	if err != nil {
		return nil, err
	}
	opts = append(opts, shard.WithCodecs(pipeline))

	return shard.New(shardShape, opts...)
}

func fillValue(c *cli.Context) []byte {
	return []byte{byte(c.Int("fill"))}
}
