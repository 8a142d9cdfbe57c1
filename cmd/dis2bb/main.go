// dis2bb reads Ethereum disasm-format text on stdin and prints each basic
// block's entry/exit stack depth and delta (spec.md §6), after running the
// decompile pipeline (including jump resolution) over that input.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/evmtac/decompiler/internal/cfg"
	"github.com/evmtac/decompiler/internal/decompile"
	"github.com/evmtac/decompiler/log"
	"github.com/evmtac/decompiler/params"
)

func main() {
	app := &cli.App{
		Name:      "dis2bb",
		Usage:     "print basic blocks and stack depths for disasm-format EVM input",
		UsageText: "dis2bb < contract.disasm",
		Version:   params.VersionWithCommit(params.GitCommit, ""),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn, error"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dis2bb: %v\n", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	log.Init(log.FileConfig{Level: cctx.String("log-level")})
	dctx := decompile.NewContext("stdin")

	cfgOpts := decompile.DefaultConfig()
	cfgOpts.Strict = false

	res, err := decompile.Run(context.Background(), dctx, decompile.FromDisasm(os.Stdin), cfgOpts)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	ids := make([]cfg.BlockID, 0, len(res.CFG.Blocks))
	for id := range res.CFG.Blocks {
		ids = append(ids, id)
	}
	sortBlockIDsByEntryPC(res.CFG, ids)

	for _, id := range ids {
		b := res.CFG.Blocks[id]
		if len(b.Ops) == 0 {
			continue
		}
		fmt.Fprintf(out, "block %#x..%#x: entry=%s exit=%s delta=%d preds=%d succs=%d unresolved=%v\n",
			b.EntryPC(), b.LastOp().PC, res.StackSize.Entry[id], res.StackSize.Exit[id],
			blockDelta(b), len(b.Preds), len(b.Succs), b.HasUnresolvedJump)
	}

	os.Exit(dctx.ExitCode())
	return nil
}

func blockDelta(b *cfg.EVMBasicBlock) int {
	delta := 0
	for _, op := range b.Ops {
		delta += op.Op.StackDelta()
	}
	return delta
}

func sortBlockIDsByEntryPC(c *cfg.CFG, ids []cfg.BlockID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := c.Blocks[ids[j-1]], c.Blocks[ids[j]]
			if a.EntryPC() <= b.EntryPC() {
				break
			}
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
