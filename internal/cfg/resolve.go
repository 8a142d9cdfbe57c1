package cfg

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	decerrors "github.com/evmtac/decompiler/pkg/errors"

	"github.com/evmtac/decompiler/internal/lattice"
	"github.com/evmtac/decompiler/internal/ssa"
)

// RunConfig bounds the fixed-point loop of §4.6.
type RunConfig struct {
	MaxIterations int
	MaxCloneDepth int
	LatticeConfig lattice.Config
}

// DefaultRunConfig matches SPEC_FULL.md's Open Question resolution: a
// four-deep clone bound and a generous iteration cap, relying on
// bailout_seconds (via ctx) as the real-world stop.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxIterations: 10000,
		MaxCloneDepth: 4,
		LatticeConfig: lattice.DefaultConfig(),
	}
}

// RunResult reports how the fixed point concluded.
type RunResult struct {
	Iterations   int
	BailedOut    bool
	BailoutCause error
	ClonesMade   int
}

// Resolve runs the jump-resolver / CFG-refiner fixed point of spec.md §4.6:
// abstract-interpret every dirty block, join changed exit stacks into
// successors' entry stacks, resolve concrete jump targets into edges, and
// clone blocks to split path-insensitive jump targets — until nothing
// changes or ctx / MaxIterations cuts the loop short.
func Resolve(ctx context.Context, c *CFG, arena *ssa.Arena, rc RunConfig) (*RunResult, error) {
	result := &RunResult{}
	worklist := roaring.New()
	seen := roaring.New()
	for id := range c.Blocks {
		worklist.Add(uint32(id))
	}

	for !worklist.IsEmpty() {
		if rc.MaxIterations > 0 && result.Iterations >= rc.MaxIterations {
			result.BailedOut = true
			result.BailoutCause = decerrors.NewAnalysisBailout(result.Iterations, "n/a", "max_iterations reached")
			return result, nil
		}
		select {
		case <-ctx.Done():
			result.BailedOut = true
			result.BailoutCause = decerrors.NewAnalysisBailout(result.Iterations, "n/a", ctx.Err().Error())
			return result, nil
		default:
		}
		result.Iterations++

		id := BlockID(worklist.Minimum())
		worklist.Remove(uint32(id))

		block, ok := c.Blocks[id]
		if !ok {
			continue // removed by a clone rewiring
		}

		newEntry := computeEntry(c, arena, rc.LatticeConfig, block)
		entryChanged := !Equal(block.EntryStack, newEntry)
		block.EntryStack = newEntry

		newExit, jumpTarget, trace := InterpretBlockTraced(block.Ops, block.EntryStack, arena, rc.LatticeConfig)
		exitChanged := !Equal(block.ExitStack, newExit)
		block.ExitStack = newExit
		block.JumpTarget = jumpTarget
		block.Trace = trace

		// A block's jump must be attempted at least once even when its
		// entry/exit stack happens to equal its (zero-value) prior state —
		// e.g. a block whose stack nets back to empty by its terminator.
		firstVisit := !seen.Contains(uint32(id))
		seen.Add(uint32(id))

		if entryChanged || exitChanged {
			for _, succ := range block.Succs {
				worklist.Add(uint32(succ))
			}
		}

		if jumpTarget == nil {
			continue
		}
		if !entryChanged && !exitChanged && !firstVisit {
			continue
		}
		changed := resolveJump(c, arena, rc, block, jumpTarget, result, worklist)
		if changed {
			worklist.Add(uint32(block.ID))
			for _, succ := range block.Succs {
				worklist.Add(uint32(succ))
			}
		}
	}
	return result, nil
}

func computeEntry(c *CFG, arena *ssa.Arena, latCfg lattice.Config, block *EVMBasicBlock) AbstractStack {
	if len(block.Preds) == 0 {
		if block.ID == c.Entry {
			return NewAbstractStack()
		}
		return block.EntryStack
	}
	stacks := make([]AbstractStack, 0, len(block.Preds))
	for _, p := range block.Preds {
		if pb, ok := c.Blocks[p]; ok {
			stacks = append(stacks, pb.ExitStack)
		}
	}
	return Join(arena, latCfg, stacks...)
}

// resolveJump wires edges for a resolved jump target and, when the target
// is only partially resolvable, clones the block per predecessor context
// (spec.md §4.6 step 2) so each clone's jump destination becomes concrete.
// Reports whether the CFG changed (new edge or clone produced).
func resolveJump(c *CFG, arena *ssa.Arena, rc RunConfig, block *EVMBasicBlock, jumpTarget *ssa.Variable, result *RunResult, worklist *roaring.Bitmap) bool {
	val := jumpTarget.Value()
	switch val.Kind() {
	case lattice.ConcreteSet:
		cands := val.Candidates()
		// A jump target with more than one concrete candidate, reachable
		// from more than one predecessor, is exactly spec.md §4.6's "target
		// resolves to different concrete values depending on which
		// predecessor reached this block" case: split the block per
		// predecessor rather than wiring every candidate as a successor of
		// one shared block (S4). A single predecessor can't be split any
		// further, so a multi-candidate jump with only one predecessor (or
		// one whose clone budget is exhausted) falls through to wiring every
		// candidate directly.
		if len(cands) > 1 && canClone(block, rc) {
			return cloneForEachPredecessor(c, arena, rc, block, result, worklist)
		}
		changed := false
		for _, cand := range cands {
			if target, ok := c.BlockAt(cand.Uint64()); ok {
				if addEdgeIfNew(c, block.ID, target.ID) {
					changed = true
				}
			} else {
				block.HasUnresolvedJump = true
			}
		}
		return changed
	case lattice.Top:
		// A genuinely unknown value (e.g. an MLOAD/CALL result) can't be
		// disambiguated by per-predecessor cloning, since the value itself,
		// not just its provenance, is unresolved — spec.md §4.6 still asks
		// for the attempt when predecessors differ, so try once per clone
		// budget before giving up and flagging the jump unresolved.
		if !canClone(block, rc) {
			block.HasUnresolvedJump = true
			return false
		}
		return cloneForEachPredecessor(c, arena, rc, block, result, worklist)
	default: // Bottom: unreachable so far, nothing to resolve yet
		return false
	}
}

// canClone reports whether block is a candidate for per-predecessor cloning:
// splitting a single-predecessor block can't add any path sensitivity, and
// MaxCloneDepth bounds how many times a clone may itself be re-cloned.
func canClone(block *EVMBasicBlock, rc RunConfig) bool {
	return len(block.Preds) > 1 && block.CloneDepth < rc.MaxCloneDepth
}

func addEdgeIfNew(c *CFG, from, to BlockID) bool {
	fb := c.Blocks[from]
	for _, s := range fb.Succs {
		if s == to {
			return false
		}
	}
	addEdge(c, from, to)
	return true
}

// cloneForEachPredecessor duplicates block once per incoming predecessor
// (spec.md §4.6: "clone this block per incoming predecessor context"),
// rewiring each predecessor to its own private copy so that copy's entry
// stack carries only that predecessor's exit-stack Variables — often
// enough to make the jump-target Variable concrete within that one clone.
// Every clone is added to worklist so Resolve actually interprets it (and,
// in turn, re-attempts its own jump resolution) on a later iteration.
func cloneForEachPredecessor(c *CFG, arena *ssa.Arena, rc RunConfig, block *EVMBasicBlock, result *RunResult, worklist *roaring.Bitmap) bool {
	preds := append([]BlockID(nil), block.Preds...)
	if len(preds) < 2 {
		return false
	}

	// Keep the original wired to its first predecessor; clone for the rest.
	for _, predID := range preds[1:] {
		pred, ok := c.Blocks[predID]
		if !ok {
			continue
		}
		id := c.allocID()
		clone := &EVMBasicBlock{
			ID:         id,
			Ops:        block.Ops,
			ClonedFrom: block.ID,
			IsClone:    true,
			CloneDepth: block.CloneDepth + 1,
		}
		clone.Preds = []BlockID{predID}
		clone.Succs = append([]BlockID(nil), block.Succs...)
		for _, succID := range clone.Succs {
			if succ, ok := c.Blocks[succID]; ok {
				succ.Preds = append(succ.Preds, clone.ID)
			}
		}
		c.Blocks[id] = clone
		result.ClonesMade++
		worklist.Add(uint32(id))

		// Detach predID from the original, attach it to the clone.
		removeSucc(pred, block.ID)
		pred.Succs = append(pred.Succs, clone.ID)
	}

	// The original now serves only its first predecessor.
	if len(preds) > 0 {
		block.Preds = []BlockID{preds[0]}
	}
	return true
}

func removeSucc(b *EVMBasicBlock, target BlockID) {
	out := b.Succs[:0]
	for _, s := range b.Succs {
		if s != target {
			out = append(out, s)
		}
	}
	b.Succs = out
}
