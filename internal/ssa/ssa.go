// Package ssa holds the Variable/Location model shared by every block's
// abstract stack (spec.md §3, §9): variables are arena-allocated with a
// monotonically increasing ID and a def-site set, never compared by value.
// This mirrors the corpus's preferred answer to "cyclic preds/succs graph"
// and "shared SSA variables across blocks" (spec.md §9 design notes): stable
// integer IDs in an arena, not back-references.
package ssa

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/evmtac/decompiler/internal/lattice"
)

// VariableID is a stable, process-arena-unique identifier. Two Variables
// are equal iff their IDs match — spec.md §3's "equal iff they share
// identity, not merely value".
type VariableID uint64

// Variable is a symbolic SSA value: a lattice element plus the set of
// program counters that may have produced it.
type Variable struct {
	ID       VariableID
	value    lattice.Value
	defSites mapset.Set[uint64]
}

// Value returns the variable's current lattice element.
func (v *Variable) Value() lattice.Value { return v.value }

// DefSites returns the set of pcs that may define this variable.
func (v *Variable) DefSites() mapset.Set[uint64] { return v.defSites.Clone() }

func (v *Variable) String() string {
	return fmt.Sprintf("v%d", v.ID)
}

// LocationKind distinguishes the opaque storage classes a Location can
// reference. Locations are never SSA definitions (spec.md §3).
type LocationKind int

const (
	LocationMemory LocationKind = iota
	LocationStorage
	LocationCalldata
)

func (k LocationKind) String() string {
	switch k {
	case LocationMemory:
		return "memory"
	case LocationStorage:
		return "storage"
	case LocationCalldata:
		return "calldata"
	default:
		return "unknown"
	}
}

// Location is a typed, opaque reference into memory, storage or calldata.
// The Offset/Key variable is the symbolic address/slot computed by the
// opcode that produced it (e.g. the first MSTORE argument); it is tracked
// only so the fact exporter can emit a write-relation row, never as a
// definition site.
type Location struct {
	Kind LocationKind
	Key  *Variable
}

func (l Location) String() string {
	return fmt.Sprintf("%s[%s]", l.Kind, l.Key)
}

// Arena owns every Variable created during one decompilation run. Its
// lifetime equals the CFG's (spec.md §5): variables are shared by identity
// across every abstract stack that references them, and nothing mutates a
// Variable once TAC conversion completes.
type Arena struct {
	mu     sync.Mutex
	nextID VariableID
	vars   []*Variable
}

// NewArena returns an empty variable arena.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates a fresh Variable with the given value and a single def-site.
// Used by PUSHn, arithmetic ops, MLOAD/SLOAD and friends (spec.md §4.5),
// each of which mints a brand-new SSA value at its own pc.
func (a *Arena) New(value lattice.Value, defSite uint64) *Variable {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	v := &Variable{
		ID:       id,
		value:    value,
		defSites: mapset.NewThreadUnsafeSet(defSite),
	}
	a.vars = append(a.vars, v)
	return v
}

// Merge allocates a fresh "phi" Variable representing the meet-over-paths
// join of several variables reaching the same abstract-stack slot from
// distinct predecessors (spec.md §4.5): the new variable's value is the
// lattice join of every input's value, and its def-site set is the union of
// every input's def-sites. If all inputs are (pointer-)identical, the
// shared variable is returned unchanged rather than minting a redundant phi.
func (a *Arena) Merge(cfg lattice.Config, vars ...*Variable) *Variable {
	if len(vars) == 0 {
		return a.New(lattice.BottomValue(), 0)
	}
	allSame := true
	for _, v := range vars[1:] {
		if v != vars[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return vars[0]
	}

	value := lattice.BottomValue()
	defSites := mapset.NewThreadUnsafeSet[uint64]()
	for _, v := range vars {
		value = lattice.Join(value, v.value, cfg)
		defSites = defSites.Union(v.defSites)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	merged := &Variable{ID: id, value: value, defSites: defSites}
	a.vars = append(a.vars, merged)
	return merged
}

// Len reports how many variables the arena has allocated, for diagnostics.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.vars)
}
