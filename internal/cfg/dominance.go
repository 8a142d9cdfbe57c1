package cfg

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Dominance holds the four relations spec.md §4.9 exports optionally
// (`--dominators`): forward dominance/immediate-dominance and their
// post-dominance duals.
type Dominance struct {
	Dom   map[BlockID]mapset.Set[BlockID]
	IDom  map[BlockID]BlockID // no entry for the root
	PDom  map[BlockID]mapset.Set[BlockID]
	IPDom map[BlockID]BlockID
}

// virtualExit is a sentinel BlockID guaranteed to exceed every real block
// ID the builder or cloner ever allocates, used as the unique root of the
// post-dominance computation.
func virtualExit(c *CFG) BlockID {
	var max BlockID
	for id := range c.Blocks {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// ComputeDominance runs the classic iterative dominator fixed point
// (forward from the entry block, and again on the reversed graph from a
// synthetic exit node joining every halting/unresolved block) and derives
// immediate dominators from each node's dominator set.
func ComputeDominance(c *CFG) Dominance {
	all := allBlockIDs(c)

	dom := iterativeDominance(all, c.Entry, predsOf(c))
	idom := immediateDominators(dom, c.Entry)

	exit := virtualExit(c)
	revAll := append(append([]BlockID(nil), all...), exit)
	revPreds := reversedPreds(c, exit)
	pdom := iterativeDominance(revAll, exit, revPreds)
	ipdom := immediateDominators(pdom, exit)

	return Dominance{Dom: dom, IDom: idom, PDom: pdom, IPDom: ipdom}
}

func allBlockIDs(c *CFG) []BlockID {
	out := make([]BlockID, 0, len(c.Blocks))
	for id := range c.Blocks {
		out = append(out, id)
	}
	return out
}

func predsOf(c *CFG) func(BlockID) []BlockID {
	return func(id BlockID) []BlockID {
		if b, ok := c.Blocks[id]; ok {
			return b.Preds
		}
		return nil
	}
}

// reversedPreds returns, for the post-dominance computation, the
// "predecessors" of a node in the reversed graph: a real block's reversed
// predecessors are its Succs, and every block with no Succs (it halted, or
// its jump never resolved) is treated as flowing into the virtual exit.
func reversedPreds(c *CFG, exit BlockID) func(BlockID) []BlockID {
	return func(id BlockID) []BlockID {
		if id == exit {
			var roots []BlockID
			for bid, b := range c.Blocks {
				if len(b.Succs) == 0 {
					roots = append(roots, bid)
				}
			}
			return roots
		}
		if b, ok := c.Blocks[id]; ok {
			return b.Succs
		}
		return nil
	}
}

// iterativeDominance computes dom[n] for every n in all, given root and a
// preds function, by the standard fixed point: dom[root]={root}; for every
// other n, dom[n] = {n} ∪ (∩ dom[p] for p ∈ preds(n)), iterated to a
// fixed point. Cheap and adequate for the small CFGs this system decompiles
// (tens to low hundreds of blocks), avoiding Lengauer–Tarjan's bookkeeping.
func iterativeDominance(all []BlockID, root BlockID, preds func(BlockID) []BlockID) map[BlockID]mapset.Set[BlockID] {
	dom := make(map[BlockID]mapset.Set[BlockID], len(all))
	universe := mapset.NewThreadUnsafeSet(all...)
	for _, n := range all {
		if n == root {
			dom[n] = mapset.NewThreadUnsafeSet(root)
		} else {
			dom[n] = universe.Clone()
		}
	}

	changed := true
	for changed {
		changed = false
		for _, n := range all {
			if n == root {
				continue
			}
			ps := preds(n)
			var newDom mapset.Set[BlockID]
			for i, p := range ps {
				if _, ok := dom[p]; !ok {
					continue
				}
				if i == 0 {
					newDom = dom[p].Clone()
				} else {
					newDom = newDom.Intersect(dom[p])
				}
			}
			if newDom == nil {
				newDom = mapset.NewThreadUnsafeSet[BlockID]()
			}
			newDom.Add(n)
			if !newDom.Equal(dom[n]) {
				dom[n] = newDom
				changed = true
			}
		}
	}
	return dom
}

// immediateDominators picks, for each non-root n, the member of
// dom[n]\{n} that dominates no other member of dom[n]\{n} — the closest
// dominator to n, i.e. the unique immediate dominator.
func immediateDominators(dom map[BlockID]mapset.Set[BlockID], root BlockID) map[BlockID]BlockID {
	idom := make(map[BlockID]BlockID, len(dom))
	for n, doms := range dom {
		if n == root {
			continue
		}
		candidates := doms.Clone()
		candidates.Remove(n)
		for _, d := range candidates.ToSlice() {
			isIDom := true
			for _, other := range candidates.ToSlice() {
				if other == d {
					continue
				}
				if dom[other].Contains(d) {
					isIDom = false
					break
				}
			}
			if isIDom {
				idom[n] = d
				break
			}
		}
	}
	return idom
}
