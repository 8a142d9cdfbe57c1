package decompile

import (
	"context"

	"github.com/evmtac/decompiler/internal/cfg"
	"github.com/evmtac/decompiler/internal/disasm"
	"github.com/evmtac/decompiler/internal/ssa"
	"github.com/evmtac/decompiler/internal/tac"
	decerrors "github.com/evmtac/decompiler/pkg/errors"
)

// Result is everything one decompilation run produces, handed to Export or
// inspected directly by the dis2bb CLI.
type Result struct {
	Ops           []disasm.EVMOp
	CFG           *cfg.CFG
	Arena         *ssa.Arena
	TAC           map[cfg.BlockID]*tac.Block
	StackSize     cfg.StackSizeReport
	Resolve       *cfg.RunResult
	ParseWarnings []disasm.Warning
}

// Run executes the full pipeline of spec.md §2: parse -> build blocks ->
// resolve fixed point -> lower to TAC -> (diagnostic) stack-size analysis.
// It never returns a fatal error for a recoverable condition (unresolved
// jumps, analysis bailout); those surface as fields on Result and as
// warnings through dctx. A ParseError in strict mode, or any
// InternalInvariant violation, aborts the run and returns a non-nil error
// (spec.md §7: "fatal errors abort the single contract").
func Run(ctx context.Context, dctx *Context, src Source, cfgOpts Config) (*Result, error) {
	parseOpts := disasm.Options{
		Strict:              cfgOpts.Strict,
		TrimTrailingZeroPad: cfgOpts.TrimTrailingZeroPad,
	}

	parsed, err := src.parse(parseOpts)
	if err != nil {
		return nil, err
	}
	for _, w := range parsed.Warnings {
		dctx.Warn(w.String())
	}

	graph := cfg.BuildBlocks(parsed.Ops)
	arena := ssa.NewArena()

	runCtx := ctx
	if d := cfgOpts.bailoutDuration(); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	runConfig := cfg.DefaultRunConfig()
	if cfgOpts.MaxIterations > 0 {
		runConfig.MaxIterations = cfgOpts.MaxIterations
	}
	if cfgOpts.MaxCloneDepth > 0 {
		runConfig.MaxCloneDepth = cfgOpts.MaxCloneDepth
	}
	runConfig.LatticeConfig = cfgOpts.LatticeConfig

	resolveResult, err := cfg.Resolve(runCtx, graph, arena, runConfig)
	if err != nil {
		return nil, err
	}
	if resolveResult.BailedOut {
		dctx.Warn("analysis bailed out before reaching a fixed point",
			"iterations", resolveResult.Iterations, "cause", resolveResult.BailoutCause)
	}
	if err := verifyInvariants(graph); err != nil {
		return nil, err
	}

	for _, b := range graph.Blocks {
		if b.HasUnresolvedJump {
			dctx.Warn("unresolved jump", "block_entry_pc", b.EntryPC())
		}
	}

	stackReport := cfg.AnalyzeStackSize(graph)
	tacBlocks := tac.LowerCFG(graph)

	return &Result{
		Ops:           parsed.Ops,
		CFG:           graph,
		Arena:         arena,
		TAC:           tacBlocks,
		StackSize:     stackReport,
		Resolve:       resolveResult,
		ParseWarnings: parsed.Warnings,
	}, nil
}

// verifyInvariants checks preds/succs symmetry after every run: each
// successor a block lists must exist and must list that block back as a
// predecessor. Stack depth is not checked here. A violation is a fatal bug
// in the pipeline itself, never a property of the input contract.
func verifyInvariants(c *cfg.CFG) error {
	for id, b := range c.Blocks {
		for _, succID := range b.Succs {
			succ, ok := c.Blocks[succID]
			if !ok {
				return decerrors.NewInternalInvariant("successor block missing from CFG")
			}
			found := false
			for _, p := range succ.Preds {
				if p == id {
					found = true
					break
				}
			}
			if !found {
				return decerrors.NewInternalInvariant("preds/succs asymmetry: successor does not list predecessor back")
			}
		}
	}
	return nil
}
