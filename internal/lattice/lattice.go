// Package lattice implements the abstract value domain over 256-bit EVM
// words used by the stack interpreter (spec.md §4.2): bottom, a bounded
// concrete set, or top. Concrete values are github.com/holiman/uint256.Int,
// the corpus's 256-bit integer type throughout internal/vm and common.
// Concrete sets are backed by github.com/deckarep/golang-set/v2, whose
// Union is exactly the join this lattice needs.
package lattice

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Kind discriminates the three lattice elements.
type Kind int

const (
	Bottom Kind = iota
	ConcreteSet
	Top
)

// Config bounds the concrete-set cardinality K (spec.md §4.2 Open
// Question: "K... should be made a configuration knob").
type Config struct {
	MaxSetSize int
}

// DefaultConfig matches spec.md §4.2's example bound (K=32).
func DefaultConfig() Config {
	return Config{MaxSetSize: 32}
}

// Value is one element of the lattice: ⊥, a small concrete set, or ⊤.
type Value struct {
	kind Kind
	set  mapset.Set[uint256.Int] // populated only when kind == ConcreteSet
}

// BottomValue is the unreachable/uninitialised element.
func BottomValue() Value { return Value{kind: Bottom} }

// TopValue is the fully unknown element.
func TopValue() Value { return Value{kind: Top} }

// Concrete wraps a single known value.
func Concrete(v uint256.Int) Value {
	s := mapset.NewThreadUnsafeSet[uint256.Int]()
	s.Add(v)
	return Value{kind: ConcreteSet, set: s}
}

// ConcreteFromSet wraps an existing candidate set, used when reconstructing
// a Value whose candidates were gathered across several join steps.
func ConcreteFromSet(vs mapset.Set[uint256.Int]) Value {
	if vs == nil || vs.Cardinality() == 0 {
		return BottomValue()
	}
	return Value{kind: ConcreteSet, set: vs.Clone()}
}

func (v Value) Kind() Kind { return v.kind }

// IsConcrete reports whether v carries exactly one candidate value — the
// invariant spec.md §3 requires before a jump target can be resolved.
func (v Value) IsConcrete() bool {
	return v.kind == ConcreteSet && v.set.Cardinality() == 1
}

// SingleValue returns v's sole candidate and true, iff IsConcrete.
func (v Value) SingleValue() (uint256.Int, bool) {
	if !v.IsConcrete() {
		return uint256.Int{}, false
	}
	var out uint256.Int
	for x := range v.set.Iter() {
		out = x
		break
	}
	return out, true
}

// Candidates returns the sorted list of concrete candidates (empty for
// Bottom/Top). Sorted so callers that enumerate jump targets get
// deterministic, diffable ordering.
func (v Value) Candidates() []uint256.Int {
	if v.kind != ConcreteSet {
		return nil
	}
	out := v.set.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i].Lt(&out[j]) })
	return out
}

// Join computes the lattice meet-over-paths combinator used when merging
// predecessor exit-stacks into a block's entry-stack (spec.md §4.5): set
// union, promoted to ⊤ once the union exceeds cfg.MaxSetSize.
func Join(a, b Value, cfg Config) Value {
	if a.kind == Bottom {
		return b
	}
	if b.kind == Bottom {
		return a
	}
	if a.kind == Top || b.kind == Top {
		return TopValue()
	}
	union := a.set.Clone()
	union = union.Union(b.set)
	if union.Cardinality() > cfg.MaxSetSize {
		return TopValue()
	}
	return Value{kind: ConcreteSet, set: union}
}

// Combine1 lifts a unary concrete operation (e.g. ISZERO, NOT) pointwise
// over a.'s candidate set (spec.md §4.2: "propagated pointwise... when...
// concrete; otherwise ⊤").
func Combine1(a Value, cfg Config, f func(x *uint256.Int) uint256.Int) Value {
	if a.kind != ConcreteSet {
		return TopValue()
	}
	out := mapset.NewThreadUnsafeSet[uint256.Int]()
	for x := range a.set.Iter() {
		x := x
		out.Add(f(&x))
		if out.Cardinality() > cfg.MaxSetSize {
			return TopValue()
		}
	}
	return Value{kind: ConcreteSet, set: out}
}

// Combine2 lifts a binary concrete operation (ADD, AND, LT, ...) pointwise
// over the cartesian product of a's and b's candidate sets.
func Combine2(a, b Value, cfg Config, f func(x, y *uint256.Int) uint256.Int) Value {
	if a.kind != ConcreteSet || b.kind != ConcreteSet {
		return TopValue()
	}
	out := mapset.NewThreadUnsafeSet[uint256.Int]()
	for x := range a.set.Iter() {
		x := x
		for y := range b.set.Iter() {
			y := y
			out.Add(f(&x, &y))
			if out.Cardinality() > cfg.MaxSetSize {
				return TopValue()
			}
		}
	}
	return Value{kind: ConcreteSet, set: out}
}

// Combine3 lifts a ternary concrete operation (ADDMOD, MULMOD) pointwise.
func Combine3(a, b, c Value, cfg Config, f func(x, y, z *uint256.Int) uint256.Int) Value {
	if a.kind != ConcreteSet || b.kind != ConcreteSet || c.kind != ConcreteSet {
		return TopValue()
	}
	out := mapset.NewThreadUnsafeSet[uint256.Int]()
	for x := range a.set.Iter() {
		x := x
		for y := range b.set.Iter() {
			y := y
			for z := range c.set.Iter() {
				z := z
				out.Add(f(&x, &y, &z))
				if out.Cardinality() > cfg.MaxSetSize {
					return TopValue()
				}
			}
		}
	}
	return Value{kind: ConcreteSet, set: out}
}

// Equal reports whether two lattice elements carry the same candidate set
// (used by the fixed-point driver to detect "no change" per block).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind != ConcreteSet {
		return true
	}
	return a.set.Equal(b.set)
}
