package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/faithful-data/shardcodec/shard"
	"github.com/faithful-data/shardcodec/store/localstore"
)

func newCmd_Encode() *cli.Command {
	return &cli.Command{
		Name:        "encode",
		Description: "Encode a raw binary file as a shard and store it under the given key.",
		ArgsUsage:   "<key> <input-file>",
		Flags: []cli.Flag{
			FlagShardShape,
			FlagChunkShape,
			FlagFill,
			FlagIndexLocation,
			FlagCodec,
			FlagConcurrency,
		},
		Action: func(c *cli.Context) error {
			key := c.Args().Get(0)
			inputPath := c.Args().Get(1)
			if key == "" || inputPath == "" {
				return fmt.Errorf("usage: shardctl encode <key> <input-file>")
			}

			sc, err := buildCodec(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			st, err := localstore.New(c.String("store-dir"))
			if err != nil {
				return cli.Exit(err, 1)
			}

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return cli.Exit(err, 1)
			}
			shardShape := c.IntSlice("shard-shape")
			spec := shard.ArraySpec{Shape: shardShape, ItemSize: 1, FillValue: fillValue(c), Order: shard.OrderC}
			if spec.NumBytes() != len(data) {
				return cli.Exit(fmt.Errorf("input file is %d bytes, shard shape requires %d", len(data), spec.NumBytes()), 1)
			}
			arr := &shard.Array{Spec: spec, Data: data}

			startedAt := time.Now()
			out, err := sc.Encode(c.Context, arr, c.Int("concurrency"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			if out == nil {
				klog.Infof("shard %q is entirely fill value, deleting any existing object", key)
				return st.Delete(c.Context, key)
			}
			if err := st.Set(c.Context, key, out); err != nil {
				return cli.Exit(err, 1)
			}
			klog.Infof("encoded shard %q (%d bytes) in %s", key, len(out), time.Since(startedAt))
			return nil
		},
	}
}
