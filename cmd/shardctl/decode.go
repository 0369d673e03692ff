package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/faithful-data/shardcodec/shard"
	"github.com/faithful-data/shardcodec/store"
	"github.com/faithful-data/shardcodec/store/localstore"
)

func newCmd_Decode() *cli.Command {
	return &cli.Command{
		Name:        "decode",
		Description: "Decode a stored shard back to a raw binary file.",
		ArgsUsage:   "<key> <output-file>",
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
			outputPath := c.Args().Get(1)
			if key == "" || outputPath == "" {
				return fmt.Errorf("usage: shardctl decode <key> <output-file>")
			}

			sc, err := buildCodec(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			st, err := localstore.New(c.String("store-dir"))
			if err != nil {
				return cli.Exit(err, 1)
			}

			shardShape := c.IntSlice("shard-shape")
			spec := shard.ArraySpec{Shape: shardShape, ItemSize: 1, FillValue: fillValue(c), Order: shard.OrderC}

			startedAt := time.Now()
			data, err := st.Get(c.Context, key, store.FullRange())
			if errors.Is(err, store.ErrNotFound) {
				klog.Infof("shard %q is absent, writing %d fill-value bytes", key, spec.NumBytes())
				data = nil
			} else if err != nil {
				return cli.Exit(err, 1)
			}

			arr, err := sc.Decode(c.Context, data, spec, c.Int("concurrency"))
			if err != nil {
				return cli.Exit(err, 1)
			}
			if err := os.WriteFile(outputPath, arr.Data, 0o644); err != nil {
				return cli.Exit(err, 1)
			}
			klog.Infof("decoded shard %q (%d bytes) in %s", key, len(arr.Data), time.Since(startedAt))
			return nil
		},
	}
}
