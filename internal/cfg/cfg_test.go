package cfg

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtac/decompiler/internal/disasm"
	"github.com/evmtac/decompiler/internal/lattice"
	"github.com/evmtac/decompiler/internal/ssa"
)

func latticeConcrete(n uint64) lattice.Value { return lattice.Concrete(*uint256.NewInt(n)) }

// buildOps parses a bytecode fixture through the real disasm parser, so
// the CFG tests exercise both packages together the way the pipeline does.
func buildOps(t *testing.T, code []byte) []disasm.EVMOp {
	t.Helper()
	res, err := disasm.ParseBytecode(code, disasm.Options{Strict: true})
	require.NoError(t, err)
	return res.Ops
}

// S1: empty contract.
func TestBuildBlocksEmpty(t *testing.T) {
	cfg := BuildBlocks(nil)
	assert.Empty(t, cfg.Blocks)
}

// S2: constant return, single block, no jumps.
func TestBuildBlocksSingleBlock(t *testing.T) {
	// PUSH1 0x00 PUSH1 0x00 RETURN
	code := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	ops := buildOps(t, code)
	graph := BuildBlocks(ops)
	require.Len(t, graph.Blocks, 1)
	entry := graph.Blocks[graph.Entry]
	assert.Empty(t, entry.Succs)
	assert.Equal(t, "RETURN", entry.LastOp().Op.Mnemonic)
}

// S3: static jump — JUMPDEST splits the stream into two blocks linked by a
// resolvable jump edge.
func TestBuildBlocksStaticJump(t *testing.T) {
	// pc0: PUSH1 0x03 (dest)
	// pc2: JUMP
	// pc3: JUMPDEST
	// pc4: STOP
	code := []byte{0x60, 0x03, 0x56, 0x5b, 0x00}
	ops := buildOps(t, code)
	graph := BuildBlocks(ops)
	require.Len(t, graph.Blocks, 2)

	arena := ssa.NewArena()
	res, err := Resolve(context.Background(), graph, arena, DefaultRunConfig())
	require.NoError(t, err)
	assert.False(t, res.BailedOut)

	entry := graph.Blocks[graph.Entry]
	require.Len(t, entry.Succs, 1)
	target := graph.Blocks[entry.Succs[0]]
	assert.Equal(t, uint64(3), target.EntryPC())
}

// S5: unresolvable jump — jump target stays ⊤ because the pushed value
// never reaches the jump (simulated by pushing an unknown SLOAD result).
func TestResolveUnresolvedJumpFlagged(t *testing.T) {
	// SLOAD pushes ⊤; JUMP consumes it with no concrete candidate.
	// PUSH1 0x00 SLOAD JUMP
	code := []byte{0x60, 0x00, 0x54, 0x56}
	ops := buildOps(t, code)
	graph := BuildBlocks(ops)
	arena := ssa.NewArena()

	res, err := Resolve(context.Background(), graph, arena, DefaultRunConfig())
	require.NoError(t, err)
	assert.False(t, res.BailedOut)

	entry := graph.Blocks[graph.Entry]
	assert.True(t, entry.HasUnresolvedJump)
	assert.Empty(t, entry.Succs)
}

// S4: dynamic jump resolved by path-sensitive cloning. Two predecessors
// each push a distinct constant jump target before reaching a shared block
// that does nothing but JUMP on that value; the shared block's entry value
// joins to a two-candidate ConcreteSet (never ⊤), which spec.md §4.6 step 2
// resolves by cloning the block once per predecessor rather than wiring
// both candidates as successors of one shared block.
func TestResolveClonesMultiCandidateJumpTarget(t *testing.T) {
	// pc0  PUSH1 0x01       (arbitrary JUMPI condition)
	// pc2  PUSH1 0x0a       (branch target: pc10)
	// pc4  JUMPI
	// pc5  PUSH1 0x14       (fallthrough path pushes B = pc20)
	// pc7  PUSH1 0x10       (merge block M = pc16)
	// pc9  JUMP
	// pc10 JUMPDEST          (branch path)
	// pc11 PUSH1 0x12       (A = pc18)
	// pc13 PUSH1 0x10       (M = pc16)
	// pc15 JUMP
	// pc16 JUMPDEST          (M: joins A/B, then jumps dynamically)
	// pc17 JUMP
	// pc18 JUMPDEST STOP    (target for A)
	// pc20 JUMPDEST STOP    (target for B)
	code := []byte{
		0x60, 0x01, // 0
		0x60, 0x0a, // 2
		0x57,       // 4 JUMPI
		0x60, 0x14, // 5
		0x60, 0x10, // 7
		0x56,       // 9 JUMP
		0x5b,       // 10 JUMPDEST
		0x60, 0x12, // 11
		0x60, 0x10, // 13
		0x56, // 15 JUMP
		0x5b, // 16 JUMPDEST
		0x56, // 17 JUMP (dynamic)
		0x5b, // 18 JUMPDEST
		0x00, // 19 STOP
		0x5b, // 20 JUMPDEST
		0x00, // 21 STOP
	}
	ops := buildOps(t, code)
	graph := BuildBlocks(ops)
	arena := ssa.NewArena()

	res, err := Resolve(context.Background(), graph, arena, DefaultRunConfig())
	require.NoError(t, err)
	assert.False(t, res.BailedOut)
	assert.Greater(t, res.ClonesMade, 0)

	var mergeCopies []*EVMBasicBlock
	for _, b := range graph.Blocks {
		if b.EntryPC() == 16 {
			mergeCopies = append(mergeCopies, b)
		}
	}
	require.Len(t, mergeCopies, 2, "the merge block must be split into one copy per predecessor")

	targets := map[uint64]bool{}
	for _, b := range mergeCopies {
		require.Len(t, b.Preds, 1, "each clone must serve exactly one predecessor")
		require.Len(t, b.Succs, 1, "each clone's jump must resolve to a single concrete target")
		assert.False(t, b.HasUnresolvedJump)
		targets[graph.Blocks[b.Succs[0]].EntryPC()] = true
	}
	assert.Equal(t, map[uint64]bool{18: true, 20: true}, targets)
}

func TestAbstractStackDupPreservesIdentity(t *testing.T) {
	arena := ssa.NewArena()
	s := NewAbstractStack()
	v := arena.New(latticeConcrete(1), 0)
	s = s.Push(v)
	dupped := s.Dup(1, arena)
	assert.Same(t, v, dupped.Peek(0, arena))
	assert.Same(t, v, dupped.Peek(1, arena))
}

func TestAbstractStackSwap(t *testing.T) {
	arena := ssa.NewArena()
	a := arena.New(latticeConcrete(1), 0)
	b := arena.New(latticeConcrete(2), 1)
	s := NewAbstractStack().Push(b).Push(a) // top=a, then b
	swapped := s.Swap(1, arena)
	assert.Same(t, b, swapped.Peek(0, arena))
	assert.Same(t, a, swapped.Peek(1, arena))
}

func TestStackSizeAnalysisSingleBlock(t *testing.T) {
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00} // push push add stop
	ops := buildOps(t, code)
	graph := BuildBlocks(ops)
	report := AnalyzeStackSize(graph)
	exit := report.Exit[graph.Entry]
	assert.Equal(t, depthKnown, exit.kind)
	assert.Equal(t, 1, exit.value) // +1 +1 -1 +0
}

func TestDominanceSimpleDiamond(t *testing.T) {
	// entry -> a, entry -> b, a -> c, b -> c  (diamond), all via JUMPI/JUMP
	// Built directly rather than via bytecode for clarity.
	graph := &CFG{Blocks: map[BlockID]*EVMBasicBlock{}}
	mk := func(id BlockID) *EVMBasicBlock { b := &EVMBasicBlock{ID: id}; graph.Blocks[id] = b; return b }
	entry, a, b, c := mk(0), mk(1), mk(2), mk(3)
	graph.Entry = entry.ID
	link := func(from, to *EVMBasicBlock) {
		from.Succs = append(from.Succs, to.ID)
		to.Preds = append(to.Preds, from.ID)
	}
	link(entry, a)
	link(entry, b)
	link(a, c)
	link(b, c)

	d := ComputeDominance(graph)
	assert.Equal(t, entry.ID, d.IDom[c.ID])
	assert.Equal(t, entry.ID, d.IDom[a.ID])
	assert.Equal(t, entry.ID, d.IDom[b.ID])
}
