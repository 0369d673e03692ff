package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/faithful-data/shardcodec/shard"
	"github.com/faithful-data/shardcodec/store"
	"github.com/faithful-data/shardcodec/store/localstore"
)

func newCmd_Inspect() *cli.Command {
	return &cli.Command{
		Name:        "inspect",
		Description: "Print the index of a stored shard: one line per non-empty sub-chunk.",
		ArgsUsage:   "<key>",
		Flags: []cli.Flag{
			FlagShardShape,
			FlagChunkShape,
			FlagIndexLocation,
			FlagCodec,
		},
		Action: func(c *cli.Context) error {
			key := c.Args().Get(0)
			if key == "" {
				return fmt.Errorf("usage: shardctl inspect <key>")
			}

			sc, err := buildCodec(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			st, err := localstore.New(c.String("store-dir"))
			if err != nil {
				return cli.Exit(err, 1)
			}

			data, err := st.Get(c.Context, key, store.FullRange())
			if err != nil {
				return cli.Exit(err, 1)
			}
			proxy, err := shard.ParseShardProxy(data, sc.ChunksPerShard(), sc.IndexCodecs(), sc.IndexLocation())
			if err != nil {
				return cli.Exit(err, 1)
			}

			fmt.Printf("shard %q: %s, chunks_per_shard=%v\n", key, humanize.Bytes(uint64(len(data))), sc.ChunksPerShard())
			for _, coord := range proxy.AllCoords() {
				start, end, ok := proxy.Index.Get(coord)
				if !ok {
					continue
				}
				fmt.Printf("  %v: [%d, %d) (%s)\n", coord, start, end, humanize.Bytes(end-start))
			}
			return nil
		},
	}
}
