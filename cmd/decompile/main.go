// decompile reads EVM bytecode and writes the full TAC fact-file family to
// an output directory (spec.md §6).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/evmtac/decompiler/internal/decompile"
	"github.com/evmtac/decompiler/log"
	"github.com/evmtac/decompiler/params"
)

func main() {
	app := &cli.App{
		Name:      "decompile",
		Usage:     "decompile EVM bytecode into a TAC fact directory",
		UsageText: "decompile --out OUTDIR [flags] [BYTECODE_FILE | -]",
		Version:   params.VersionWithCommit(params.GitCommit, ""),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "output directory for fact files", Required: true},
			&cli.BoolFlag{Name: "strict", Usage: "reject unknown opcodes instead of recovering"},
			&cli.IntFlag{Name: "max-iter", Usage: "maximum resolve-loop iterations (0 = default)"},
			&cli.Float64Flag{Name: "bailout-seconds", Value: 30, Usage: "wall-clock bound on the resolve loop"},
			&cli.BoolFlag{Name: "dominators", Usage: "also emit dom/imdom/pdom/impdom relations"},
			&cli.StringFlag{Name: "out-opcodes", Usage: "comma-separated mnemonic allowlist for per-opcode facts"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn, error"},
			&cli.StringFlag{Name: "log-file", Usage: "optional rotated log file path"},
			&cli.BoolFlag{Name: "disasm", Usage: "treat input as Ethereum disasm-format text, not raw bytecode"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "decompile: %v\n", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	log.Init(log.FileConfig{Path: cctx.String("log-file"), Level: cctx.String("log-level"), Console: true})

	cfgOpts := decompile.DefaultConfig()
	cfgOpts.Strict = cctx.Bool("strict")
	cfgOpts.MaxIterations = cctx.Int("max-iter")
	cfgOpts.BailoutSeconds = cctx.Float64("bailout-seconds")
	cfgOpts.Dominators = cctx.Bool("dominators")
	if list := cctx.String("out-opcodes"); list != "" {
		cfgOpts.OutOpcodes = strings.Split(list, ",")
	}

	input, name, err := readInput(cctx)
	if err != nil {
		return err
	}

	dctx := decompile.NewContext(name)

	var src decompile.Source
	if cctx.Bool("disasm") {
		src = decompile.FromDisasm(strings.NewReader(input))
	} else {
		src = decompile.FromHex(input)
	}

	res, err := decompile.Run(context.Background(), dctx, src, cfgOpts)
	if err != nil {
		return err
	}
	if err := decompile.Export(res, cctx.String("out"), cfgOpts); err != nil {
		return err
	}

	dctx.Info("decompilation complete",
		"blocks", len(res.CFG.Blocks), "variables", res.Arena.Len(), "iterations", res.Resolve.Iterations)

	os.Exit(dctx.ExitCode())
	return nil
}

// readInput returns the bytecode text (hex or disasm, per --disasm) from
// either a named file argument or stdin ("-" or no argument), plus a short
// label used for log messages.
func readInput(cctx *cli.Context) (string, string, error) {
	arg := cctx.Args().First()
	if arg == "" || arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", "", err
	}
	return string(data), arg, nil
}
