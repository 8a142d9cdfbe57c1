package decompile

import (
	"time"

	"github.com/evmtac/decompiler/internal/lattice"
)

// Config gathers every knob the `decompile` CLI surface exposes (spec.md
// §6): strictness, the fixed-point bounds, and the optional dominance pass.
type Config struct {
	// Strict rejects unknown opcode bytes / mnemonics instead of recovering
	// with the INVALID placeholder (spec.md §4.1, §6 `--strict`).
	Strict bool

	// MaxIterations bounds the outer resolve loop (spec.md §6 `--max-iter`).
	// Zero means DefaultRunConfig's generous default.
	MaxIterations int

	// MaxCloneDepth bounds path-sensitive block cloning (spec.md §4.6 Open
	// Question, SPEC_FULL.md §4.6 default 4).
	MaxCloneDepth int

	// BailoutSeconds bounds wall-clock time spent in the fixed point (spec.md
	// §6 `--bailout-seconds`, §5). Zero disables the deadline.
	BailoutSeconds float64

	// Dominators gates the optional dom/imdom/pdom/impdom relation export
	// (spec.md §6 `--dominators`).
	Dominators bool

	// OutOpcodes restricts the per-opcode `.facts` family (spec.md §6
	// `--out-opcodes`). Empty means every mnemonic present in the contract.
	OutOpcodes []string

	// TrimTrailingZeroPad is SPEC_FULL.md's supplement to spec.md §4.3,
	// following original_source/src/blockparse.py's constructor-padding
	// handling.
	TrimTrailingZeroPad bool

	LatticeConfig lattice.Config
}

// DefaultConfig returns the configuration the CLI entrypoints start from
// before applying flags.
func DefaultConfig() Config {
	return Config{
		MaxCloneDepth:       4,
		BailoutSeconds:      30,
		TrimTrailingZeroPad: true,
		LatticeConfig:       lattice.DefaultConfig(),
	}
}

// bailoutDuration converts BailoutSeconds into a time.Duration, zero meaning
// "no deadline" (spec.md §5: bailout_seconds is optional).
func (c Config) bailoutDuration() time.Duration {
	if c.BailoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.BailoutSeconds * float64(time.Second))
}
