// Command shardctl encodes and decodes shard objects against a local-disk
// store, for manual inspection of the sharding storage codec.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "shardctl",
		Version:     gitCommitSHA,
		Description: "Encode, decode, and inspect sharding-codec objects against a local-disk store.",
		Flags: []cli.Flag{
			FlagStoreDir,
		},
		Commands: []*cli.Command{
			newCmd_Encode(),
			newCmd_Decode(),
			newCmd_Inspect(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}

// FlagStoreDir is the local-disk directory backing store.Store for every
// subcommand (shared the way the teacher's FlagVerbose/FlagVeryVerbose are
// declared once in main.go and reused across commands).
var FlagStoreDir = &cli.StringFlag{
	Name:  "store-dir",
	Usage: "local directory to use as the object store",
	Value: "./shardstore",
}
