package cfg

import (
	"github.com/holiman/uint256"

	"github.com/evmtac/decompiler/internal/disasm"
	"github.com/evmtac/decompiler/internal/lattice"
	"github.com/evmtac/decompiler/internal/ssa"
)

// binaryOps maps arithmetic/comparison mnemonics with two stack inputs to
// the concrete uint256 operation they lift pointwise through the lattice
// (spec.md §4.2). Populated in init() below; a handful of opcodes (BYTE,
// SIGNEXTEND) take the operand order the spec defines explicitly.
var binaryOps map[string]func(x, y *uint256.Int) uint256.Int

var unaryOps map[string]func(x *uint256.Int) uint256.Int

func boolToWord(b bool) uint256.Int {
	if b {
		return *uint256.NewInt(1)
	}
	return uint256.Int{}
}

func init() {
	binaryOps = map[string]func(x, y *uint256.Int) uint256.Int{
		"ADD": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Add(x, y); return o },
		"MUL": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Mul(x, y); return o },
		"SUB": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Sub(x, y); return o },
		"DIV": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Div(x, y); return o },
		"SDIV": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.SDiv(x, y); return o },
		"MOD": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Mod(x, y); return o },
		"SMOD": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.SMod(x, y); return o },
		"EXP": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Exp(x, y); return o },
		"AND": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.And(x, y); return o },
		"OR":  func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Or(x, y); return o },
		"XOR": func(x, y *uint256.Int) uint256.Int { var o uint256.Int; o.Xor(x, y); return o },
		"LT":  func(x, y *uint256.Int) uint256.Int { return boolToWord(x.Lt(y)) },
		"GT":  func(x, y *uint256.Int) uint256.Int { return boolToWord(x.Gt(y)) },
		"SLT": func(x, y *uint256.Int) uint256.Int { return boolToWord(x.Slt(y)) },
		"SGT": func(x, y *uint256.Int) uint256.Int { return boolToWord(x.Sgt(y)) },
		"EQ":  func(x, y *uint256.Int) uint256.Int { return boolToWord(x.Eq(y)) },
		// BYTE i, v: args in pop order (i, the top of stack, first, then v); spec.md §4.5
		// keeps the EVM's own operand order, byte index first.
		"BYTE": func(i, v *uint256.Int) uint256.Int {
			o := *v
			o.Byte(i)
			return o
		},
		"SHL": func(shift, v *uint256.Int) uint256.Int { var o uint256.Int; o.Lsh(v, uint(shift.Uint64())); return o },
		"SHR": func(shift, v *uint256.Int) uint256.Int { var o uint256.Int; o.Rsh(v, uint(shift.Uint64())); return o },
		"SAR": func(shift, v *uint256.Int) uint256.Int {
			var o uint256.Int
			o.SRsh(v, uint(shift.Uint64()))
			return o
		},
		"SIGNEXTEND": func(b, v *uint256.Int) uint256.Int { var o uint256.Int; o.ExtendSign(v, b); return o },
	}
	unaryOps = map[string]func(x *uint256.Int) uint256.Int{
		"ISZERO": func(x *uint256.Int) uint256.Int { return boolToWord(x.IsZero()) },
		"NOT":    func(x *uint256.Int) uint256.Int { var o uint256.Int; o.Not(x); return o },
	}
}

// stepResult is the outcome of interpreting one EVMOp against an
// AbstractStack.
type stepResult struct {
	stack      AbstractStack
	jumpTarget *ssa.Variable // set only for JUMP/JUMPI, the popped destination
	args       []*ssa.Variable
	result     *ssa.Variable // the Variable pushed by this op, nil if none
}

// interpretOp applies op's abstract semantics to stack (spec.md §4.5) and
// returns the resulting stack, plus the jump-destination variable for
// JUMP/JUMPI terminators.
func interpretOp(op disasm.EVMOp, stack AbstractStack, arena *ssa.Arena, latCfg lattice.Config) stepResult {
	mnemonic := op.Op.Mnemonic

	switch {
	case op.Op.IsPush:
		v := arena.New(lattice.Concrete(bigImmediate(op.Immediate)), op.PC)
		return stepResult{stack: stack.Push(v)}

	case op.Op.IsDup:
		return stepResult{stack: stack.Dup(op.Op.DupSwapIndex, arena)}

	case op.Op.IsSwap:
		return stepResult{stack: stack.Swap(op.Op.DupSwapIndex, arena)}
	}

	if mnemonic == "JUMP" || mnemonic == "JUMPI" {
		dest, rest := stack.Pop(arena)
		args := []*ssa.Variable{dest}
		s := rest
		if mnemonic == "JUMPI" {
			cond, rest2 := s.Pop(arena)
			args = append(args, cond)
			s = rest2
		}
		return stepResult{stack: s, jumpTarget: dest, args: args}
	}

	if f, ok := unaryOps[mnemonic]; ok {
		x, rest := stack.Pop(arena)
		val := lattice.Combine1(x.Value(), latCfg, f)
		v := arena.New(val, op.PC)
		return stepResult{stack: rest.Push(v), args: []*ssa.Variable{x}, result: v}
	}

	if f, ok := binaryOps[mnemonic]; ok {
		x, rest := stack.Pop(arena)
		y, rest2 := rest.Pop(arena)
		val := lattice.Combine2(x.Value(), y.Value(), latCfg, f)
		v := arena.New(val, op.PC)
		return stepResult{stack: rest2.Push(v), args: []*ssa.Variable{x, y}, result: v}
	}

	switch mnemonic {
	case "ADDMOD", "MULMOD":
		x, r1 := stack.Pop(arena)
		y, r2 := r1.Pop(arena)
		z, r3 := r2.Pop(arena)
		var f func(a, b, c *uint256.Int) uint256.Int
		if mnemonic == "ADDMOD" {
			f = func(a, b, c *uint256.Int) uint256.Int { var o uint256.Int; o.AddMod(a, b, c); return o }
		} else {
			f = func(a, b, c *uint256.Int) uint256.Int { var o uint256.Int; o.MulMod(a, b, c); return o }
		}
		val := lattice.Combine3(x.Value(), y.Value(), z.Value(), latCfg, f)
		v := arena.New(val, op.PC)
		return stepResult{stack: r3.Push(v), args: []*ssa.Variable{x, y, z}, result: v}
	}

	// Generic fall-through for every remaining opcode: pop its declared
	// operand count, push a fresh ⊤ result if it declares one (spec.md §4.5:
	// MLOAD/SLOAD/MSTORE/SSTORE/LOG/CALL-family/environment reads all land
	// here), and do nothing for pure flow terminators (STOP, RETURN, REVERT,
	// SELFDESTRUCT, INVALID, JUMPDEST, POP already handled by Pop count 1/0).
	s := stack
	args := make([]*ssa.Variable, 0, op.Op.Pop)
	for i := 0; i < op.Op.Pop; i++ {
		var v *ssa.Variable
		v, s = s.Pop(arena)
		args = append(args, v)
	}
	var result *ssa.Variable
	for i := 0; i < op.Op.Push; i++ {
		result = arena.New(lattice.TopValue(), op.PC)
		s = s.Push(result)
	}
	return stepResult{stack: s, args: args, result: result}
}

// InterpretBlock runs §4.5 over every op in block starting from entry,
// returning the resulting exit stack and, if the block ends in JUMP/JUMPI,
// the Variable holding its jump destination.
func InterpretBlock(ops []disasm.EVMOp, entry AbstractStack, arena *ssa.Arena, latCfg lattice.Config) (exit AbstractStack, jumpTarget *ssa.Variable) {
	stack := entry
	for _, op := range ops {
		res := interpretOp(op, stack, arena, latCfg)
		stack = res.stack
		if res.jumpTarget != nil {
			jumpTarget = res.jumpTarget
		}
	}
	return stack, jumpTarget
}

// TraceStep records one op's interpretation for consumption by internal/tac:
// the op itself, the Variables it popped (in pop order) and the Variable it
// pushed, if any.
type TraceStep struct {
	Op     disasm.EVMOp
	Args   []*ssa.Variable
	Result *ssa.Variable
}

// InterpretBlockTraced behaves like InterpretBlock but also returns the
// per-op trace internal/tac needs to lower the block without re-minting
// Variables (spec.md §4.7: TAC's `v` and `args` must be exactly the
// Variables the abstract interpreter already produced).
func InterpretBlockTraced(ops []disasm.EVMOp, entry AbstractStack, arena *ssa.Arena, latCfg lattice.Config) (exit AbstractStack, jumpTarget *ssa.Variable, trace []TraceStep) {
	stack := entry
	trace = make([]TraceStep, 0, len(ops))
	for _, op := range ops {
		res := interpretOp(op, stack, arena, latCfg)
		stack = res.stack
		if res.jumpTarget != nil {
			jumpTarget = res.jumpTarget
		}
		trace = append(trace, TraceStep{Op: op, Args: res.args, Result: res.result})
	}
	return stack, jumpTarget, trace
}
