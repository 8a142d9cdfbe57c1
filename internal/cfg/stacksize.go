package cfg

import (
	"strconv"

	"github.com/RoaringBitmap/roaring"
)

// depthKind mirrors the {⊥, n∈ℤ, ⊤} lattice of spec.md §4.8, kept separate
// from internal/lattice.Value since it tracks a scalar depth, not a 256-bit
// word.
type depthKind int

const (
	depthBottom depthKind = iota
	depthKnown
	depthTop
)

type depth struct {
	kind  depthKind
	value int
}

// String renders a depth value for the dis2bb CLI (spec.md §6): "?" for an
// unreached block, "top" for a block whose depth never stabilised, or the
// known integer depth.
func (d depth) String() string {
	switch d.kind {
	case depthBottom:
		return "?"
	case depthTop:
		return "top"
	default:
		return strconv.Itoa(d.value)
	}
}

func joinDepth(a, b depth) depth {
	if a.kind == depthBottom {
		return b
	}
	if b.kind == depthBottom {
		return a
	}
	if a.kind == depthTop || b.kind == depthTop {
		return depth{kind: depthTop}
	}
	if a.value != b.value {
		return depth{kind: depthTop}
	}
	return a
}

// StackSizeReport holds the diagnostic depth analysis of spec.md §4.8 for
// one CFG: per-block entry/exit depth and the contract-wide peak.
type StackSizeReport struct {
	Entry     map[BlockID]depth
	Exit      map[BlockID]depth
	PeakDepth int
	// Pathological lists blocks whose entry depth is "known" and exceeds
	// MaxStackDepth, or whose depth never stabilised to a known value —
	// candidates the exporter colours red in the dot rendering this system
	// does not itself produce (dot output is an explicit Non-goal).
	Pathological []BlockID
}

// AnalyzeStackSize runs the scalar depth fixed point independently of the
// SSA abstract interpreter (spec.md §4.8): block delta is the sum of its
// opcodes' stack_deltas, and meet is equality-or-⊤, so it converges in at
// most one pass per CFG edge regardless of the value lattice's precision.
func AnalyzeStackSize(c *CFG) StackSizeReport {
	report := StackSizeReport{
		Entry: make(map[BlockID]depth, len(c.Blocks)),
		Exit:  make(map[BlockID]depth, len(c.Blocks)),
	}

	worklist := roaring.New()
	for id := range c.Blocks {
		worklist.Add(uint32(id))
	}

	for !worklist.IsEmpty() {
		id := BlockID(worklist.Minimum())
		worklist.Remove(uint32(id))
		block, ok := c.Blocks[id]
		if !ok {
			continue
		}

		var entry depth
		if id == c.Entry {
			entry = depth{kind: depthKnown, value: 0}
		} else {
			entry = depth{kind: depthBottom}
			for _, p := range block.Preds {
				entry = joinDepth(entry, report.Exit[p])
			}
		}

		delta := 0
		for _, op := range block.Ops {
			delta += op.Op.StackDelta()
		}
		exit := entry
		if entry.kind == depthKnown {
			exit = depth{kind: depthKnown, value: entry.value + delta}
		}

		changed := entry != report.Entry[id] || exit != report.Exit[id]
		report.Entry[id] = entry
		report.Exit[id] = exit
		if entry.kind == depthKnown && entry.value > report.PeakDepth {
			report.PeakDepth = entry.value
		}

		if changed {
			for _, s := range block.Succs {
				worklist.Add(uint32(s))
			}
		}
	}

	for id, d := range report.Entry {
		if d.kind == depthTop || (d.kind == depthKnown && d.value > MaxStackDepth) {
			report.Pathological = append(report.Pathological, id)
		}
	}
	return report
}
