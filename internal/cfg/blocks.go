// Package cfg builds the EVM-level control-flow graph: basic blocks, the
// per-block abstract stack interpreter, and the jump resolver / CFG
// refiner fixed point (spec.md §4.4–§4.6, §4.8).
package cfg

import (
	"sort"

	"github.com/google/btree"

	"github.com/evmtac/decompiler/internal/disasm"
	"github.com/evmtac/decompiler/internal/ssa"
)

// BlockID identifies one EVMBasicBlock within a CFG. IDs are dense and
// allocated in entry-pc order by the builder; clones receive fresh IDs
// above every ID the builder allocated.
type BlockID uint32

// EVMBasicBlock is a maximal straight-line run of EVMOps (spec.md §4.4).
// Resource ownership: the CFG exclusively owns its blocks, and each block
// exclusively owns its op slice (spec.md §5); Variables referenced by a
// block's stacks are shared by identity with every other block that
// references them.
type EVMBasicBlock struct {
	ID    BlockID
	Ops   []disasm.EVMOp
	Preds []BlockID
	Succs []BlockID

	EntryStack AbstractStack
	ExitStack  AbstractStack
	// JumpTarget is the popped destination Variable of a terminal
	// JUMP/JUMPI, nil otherwise.
	JumpTarget *ssa.Variable

	// Trace is the per-op record of the interpretation that produced
	// EntryStack/ExitStack, kept so internal/tac can lower the block
	// without re-interpreting it against a fresh set of arena Variables
	// (spec.md §4.7; re-deriving would mint new Variable identities that no
	// longer match the ones already folded into successors' EntryStacks).
	Trace []TraceStep

	HasUnresolvedJump bool

	// ClonedFrom is the BlockID this block was duplicated from during
	// path-sensitive jump resolution (spec.md §4.6), zero for originals.
	ClonedFrom BlockID
	IsClone    bool
	CloneDepth int
}

// EntryPC returns the program counter of the block's first op, or 0 for an
// empty block (which the builder never produces for a non-empty op stream).
func (b *EVMBasicBlock) EntryPC() uint64 {
	if len(b.Ops) == 0 {
		return 0
	}
	return b.Ops[0].PC
}

// LastOp returns the block's terminal instruction (spec.md §4.7: "The
// block's last_op is the terminator").
func (b *EVMBasicBlock) LastOp() disasm.EVMOp {
	return b.Ops[len(b.Ops)-1]
}

// blockIndexEntry is the btree payload keyed by a block's entry pc, used to
// resolve a jump target's numeric value to the block starting there
// (spec.md §4.6, §9 design note: "pc-ordered index" for O(log n) lookup
// instead of a linear scan per candidate destination).
type blockIndexEntry struct {
	pc uint64
	id BlockID
}

func blockIndexLess(a, b blockIndexEntry) bool { return a.pc < b.pc }

// CFG is the full EVM-level control-flow graph plus the indexes the
// resolver needs: a dense BlockID→block map and a pc→BlockID btree for
// JUMPDEST target lookup.
type CFG struct {
	Blocks  map[BlockID]*EVMBasicBlock
	Entry   BlockID
	nextID  BlockID
	pcIndex *btree.BTreeG[blockIndexEntry]
}

// BlockAt returns the block whose entry pc equals pc, if any — used to
// resolve a JUMP/JUMPI destination to its target block (spec.md §4.6).
func (c *CFG) BlockAt(pc uint64) (*EVMBasicBlock, bool) {
	item, ok := c.pcIndex.Get(blockIndexEntry{pc: pc})
	if !ok {
		return nil, false
	}
	return c.Blocks[item.id], true
}

func (c *CFG) indexBlock(b *EVMBasicBlock) {
	c.pcIndex.ReplaceOrInsert(blockIndexEntry{pc: b.EntryPC(), id: b.ID})
}

func (c *CFG) allocID() BlockID {
	id := c.nextID
	c.nextID++
	return id
}

// BuildBlocks partitions an ordered EVMOp stream into basic blocks
// (spec.md §4.4): a new block starts at the first op, at any JUMPDEST, and
// immediately after any flow-altering op. Fall-through edges connect a
// block ending in JUMPI, or in a non-flow-altering op, to its successor in
// program order; JUMP-only edges are left unresolved for §4.6.
func BuildBlocks(ops []disasm.EVMOp) *CFG {
	cfg := &CFG{
		Blocks:  make(map[BlockID]*EVMBasicBlock),
		pcIndex: btree.NewG(32, blockIndexLess),
	}
	if len(ops) == 0 {
		return cfg
	}

	var boundaries []int
	boundaries = append(boundaries, 0)
	for i, op := range ops {
		if i == 0 {
			continue
		}
		if op.Op.Mnemonic == "JUMPDEST" {
			boundaries = append(boundaries, i)
			continue
		}
		prev := ops[i-1]
		if prev.Op.AltersFlow {
			boundaries = append(boundaries, i)
		}
	}
	boundaries = dedupSortedInts(boundaries)

	blockForStart := make(map[int]BlockID, len(boundaries))
	for bi, start := range boundaries {
		end := len(ops)
		if bi+1 < len(boundaries) {
			end = boundaries[bi+1]
		}
		id := cfg.allocID()
		block := &EVMBasicBlock{ID: id, Ops: ops[start:end]}
		cfg.Blocks[id] = block
		cfg.indexBlock(block)
		blockForStart[start] = id
	}
	cfg.Entry = blockForStart[0]

	for bi, start := range boundaries {
		end := len(ops)
		if bi+1 < len(boundaries) {
			end = boundaries[bi+1]
		}
		id := blockForStart[start]
		block := cfg.Blocks[id]
		if end == 0 || end > len(ops) {
			continue
		}
		last := ops[end-1]
		fallsThrough := last.Op.Mnemonic == "JUMPI" || !last.Op.AltersFlow
		if fallsThrough && bi+1 < len(boundaries) {
			nextID := blockForStart[boundaries[bi+1]]
			addEdge(cfg, block.ID, nextID)
		}
	}

	return cfg
}

func addEdge(cfg *CFG, from, to BlockID) {
	fb := cfg.Blocks[from]
	tb := cfg.Blocks[to]
	for _, s := range fb.Succs {
		if s == to {
			return
		}
	}
	fb.Succs = append(fb.Succs, to)
	tb.Preds = append(tb.Preds, from)
}

func dedupSortedInts(xs []int) []int {
	sort.Ints(xs)
	out := xs[:0]
	var last int = -1
	for _, x := range xs {
		if x != last {
			out = append(out, x)
			last = x
		}
	}
	return out
}
