package cfg

import (
	"github.com/holiman/uint256"

	"github.com/evmtac/decompiler/internal/lattice"
	"github.com/evmtac/decompiler/internal/ssa"
)

// MaxStackDepth is the modelled prefix bound, matching the EVM's own 1024
// depth limit (spec.md §3).
const MaxStackDepth = 1024

// AbstractStack is a bounded ordered sequence of Variables, top at index 0
// (spec.md §3). Accesses past the end of the explicit prefix synthesise
// fresh ⊤ variables, as if reading from a "⊤-extended bottom".
type AbstractStack struct {
	vars []*ssa.Variable
}

// NewAbstractStack returns the empty stack (used as a block's entry stack
// before any predecessor has contributed).
func NewAbstractStack() AbstractStack {
	return AbstractStack{}
}

// Depth reports the number of explicitly modelled slots.
func (s AbstractStack) Depth() int { return len(s.vars) }

// Push prepends v as the new top-of-stack. A slot pushed below
// MaxStackDepth is dropped from the explicit prefix and reads back as ⊤.
func (s AbstractStack) Push(v *ssa.Variable) AbstractStack {
	out := make([]*ssa.Variable, 0, len(s.vars)+1)
	out = append(out, v)
	out = append(out, s.vars...)
	if len(out) > MaxStackDepth {
		out = out[:MaxStackDepth]
	}
	return AbstractStack{vars: out}
}

// Pop removes and returns the top-of-stack Variable, synthesising a fresh ⊤
// variable (def-site = 0, the sentinel for "synthesized bottom slot") if the
// stack is shorter than required.
func (s AbstractStack) Pop(arena *ssa.Arena) (*ssa.Variable, AbstractStack) {
	if len(s.vars) == 0 {
		return arena.New(lattice.TopValue(), 0), s
	}
	return s.vars[0], AbstractStack{vars: s.vars[1:]}
}

// Peek returns stack[n] (0-indexed from the top) without popping,
// synthesising a ⊤ variable if n is beyond the explicit prefix.
func (s AbstractStack) Peek(n int, arena *ssa.Arena) *ssa.Variable {
	if n < len(s.vars) {
		return s.vars[n]
	}
	return arena.New(lattice.TopValue(), 0)
}

// Dup returns a new stack with stack[n-1] copied to the top, preserving
// Variable identity (spec.md §4.5: DUPn "same Variable identity — not a
// fresh copy").
func (s AbstractStack) Dup(n int, arena *ssa.Arena) AbstractStack {
	v := s.Peek(n-1, arena)
	return s.Push(v)
}

// Swap exchanges stack[0] and stack[n].
func (s AbstractStack) Swap(n int, arena *ssa.Arena) AbstractStack {
	out := make([]*ssa.Variable, len(s.vars))
	copy(out, s.vars)
	for len(out) <= n {
		out = append(out, arena.New(lattice.TopValue(), 0))
	}
	out[0], out[n] = out[n], out[0]
	return AbstractStack{vars: out}
}

// Equal reports whether two stacks carry the same variables (by identity)
// in the same order, used by the fixed-point driver to detect convergence.
func Equal(a, b AbstractStack) bool {
	if len(a.vars) != len(b.vars) {
		return false
	}
	for i := range a.vars {
		if a.vars[i] != b.vars[i] {
			return false
		}
	}
	return true
}

// Join computes the meet-over-paths join of several predecessor exit-stacks
// into one entry-stack (spec.md §4.5): pointwise Variable merge, with the
// shorter prefixes padded by fresh ⊤ variables so every input has equal
// length before merging slot-by-slot.
func Join(arena *ssa.Arena, latCfg lattice.Config, stacks ...AbstractStack) AbstractStack {
	if len(stacks) == 0 {
		return NewAbstractStack()
	}
	maxDepth := 0
	for _, s := range stacks {
		if s.Depth() > maxDepth {
			maxDepth = s.Depth()
		}
	}
	out := make([]*ssa.Variable, maxDepth)
	for i := 0; i < maxDepth; i++ {
		slot := make([]*ssa.Variable, len(stacks))
		for j, s := range stacks {
			slot[j] = s.Peek(i, arena)
		}
		out[i] = arena.Merge(latCfg, slot...)
	}
	return AbstractStack{vars: out}
}

// bigImmediate returns op's immediate, or the zero value if it carries none
// (used by opcodes that, like PUSH0, legitimately push a zero constant).
func bigImmediate(imm *uint256.Int) uint256.Int {
	if imm == nil {
		return uint256.Int{}
	}
	return *imm
}
