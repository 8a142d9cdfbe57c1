// Package tac lowers a stable EVM-level CFG into three-address code
// (spec.md §4.7): PUSH/DUP/SWAP vanish, every value-producing op becomes a
// TACAssignOp, memory/storage writes become a lhs-less TACOp over a
// Location, and flow terminators keep their popped args.
package tac

import (
	"fmt"

	"github.com/evmtac/decompiler/internal/cfg"
	"github.com/evmtac/decompiler/internal/ssa"
)

// Instr is one TAC instruction. Exactly one of Result or Loc is set for an
// instruction that writes somewhere; neither is set for a pure terminator
// (STOP) or a no-op.
type Instr struct {
	PC     uint64
	Opcode string
	Result *ssa.Variable // lhs SSA variable, nil for memory/storage writes and terminators
	Loc    *ssa.Location // lhs Location, set only for MSTORE/SSTORE-family writes
	Args   []*ssa.Variable
}

func (i Instr) String() string {
	switch {
	case i.Result != nil:
		return fmt.Sprintf("%s = %s(%s)", i.Result, i.Opcode, argList(i.Args))
	case i.Loc != nil:
		return fmt.Sprintf("%s %s, %s", i.Opcode, i.Loc, argList(i.Args))
	default:
		return fmt.Sprintf("%s %s", i.Opcode, argList(i.Args))
	}
}

func argList(args []*ssa.Variable) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += a.String()
	}
	return out
}

// Block is a TAC-lowered basic block: PUSH/DUP/SWAP/JUMPDEST do not appear
// in Instrs, since they only existed to shuffle the abstract stack.
type Block struct {
	ID     cfg.BlockID
	Instrs []Instr
	LastOp *Instr // the last lowered instruction (the terminator when the block ends in one), nil when no instruction survives lowering
	Preds  []cfg.BlockID
	Succs  []cfg.BlockID
}

// locationKindFor maps a memory/storage mnemonic to the Location kind its
// write targets (spec.md §4.7, §3). The first popped argument (the
// address/slot/offset) becomes the Location's key.
func locationKindFor(mnemonic string) (ssa.LocationKind, bool) {
	switch mnemonic {
	case "MSTORE", "MSTORE8", "MCOPY", "CALLDATACOPY", "CODECOPY", "EXTCODECOPY", "RETURNDATACOPY":
		return ssa.LocationMemory, true
	case "SSTORE", "TSTORE":
		return ssa.LocationStorage, true
	default:
		return 0, false
	}
}

// skippedInLowering reports whether mnemonic vanishes entirely during
// lowering rather than becoming a TAC instruction (spec.md §4.7: "PUSH/DUP/
// SWAP disappear"; JUMPDEST is a pure label with no stack effect).
func skippedInLowering(mnemonic string) bool {
	switch mnemonic {
	case "JUMPDEST":
		return true
	default:
		return false
	}
}

// LowerBlock converts one EVM basic block into a TAC block (spec.md §4.7).
// It consumes b.Trace, the per-op record cfg.Resolve already captured while
// computing b's entry/exit stacks, so that every Variable a TAC instruction
// references is identical, by pointer, to the Variable the CFG resolver
// produced — never a freshly re-derived one minted by a second
// interpretation pass.
func LowerBlock(b *cfg.EVMBasicBlock) *Block {
	out := &Block{ID: b.ID, Preds: b.Preds, Succs: b.Succs}

	for _, step := range b.Trace {
		mnemonic := step.Op.Op.Mnemonic
		if step.Op.Op.IsPush || step.Op.Op.IsDup || step.Op.Op.IsSwap || skippedInLowering(mnemonic) {
			continue
		}

		var instr Instr
		if kind, ok := locationKindFor(mnemonic); ok {
			loc := &ssa.Location{Kind: kind, Key: step.Args[0]}
			instr = Instr{PC: step.Op.PC, Opcode: mnemonic, Loc: loc, Args: step.Args}
		} else {
			instr = Instr{PC: step.Op.PC, Opcode: mnemonic, Result: step.Result, Args: step.Args}
		}
		out.Instrs = append(out.Instrs, instr)
	}

	if len(out.Instrs) > 0 {
		last := out.Instrs[len(out.Instrs)-1]
		out.LastOp = &last
	}
	return out
}

// LowerCFG lowers every block of a resolved CFG (spec.md §5: "continues to
// TAC conversion" once the fixed point settles or bails out).
func LowerCFG(c *cfg.CFG) map[cfg.BlockID]*Block {
	out := make(map[cfg.BlockID]*Block, len(c.Blocks))
	for id, b := range c.Blocks {
		out[id] = LowerBlock(b)
	}
	return out
}
