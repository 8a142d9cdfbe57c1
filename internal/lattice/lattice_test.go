package lattice

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(n uint64) uint256.Int { return *uint256.NewInt(n) }

func TestConcreteIsSingleValued(t *testing.T) {
	v := Concrete(u(42))
	require.True(t, v.IsConcrete())
	single, ok := v.SingleValue()
	require.True(t, ok)
	assert.Equal(t, u(42), single)
}

func TestBottomJoinsToOther(t *testing.T) {
	cfg := DefaultConfig()
	v := Join(BottomValue(), Concrete(u(1)), cfg)
	assert.True(t, v.IsConcrete())
}

func TestJoinUnionsDistinctValues(t *testing.T) {
	cfg := DefaultConfig()
	joined := Join(Concrete(u(1)), Concrete(u(2)), cfg)
	assert.Equal(t, ConcreteSet, joined.Kind())
	assert.False(t, joined.IsConcrete()) // two candidates now
	assert.ElementsMatch(t, []uint256.Int{u(1), u(2)}, joined.Candidates())
}

func TestJoinPromotesToTopBeyondK(t *testing.T) {
	cfg := Config{MaxSetSize: 2}
	joined := Join(Concrete(u(1)), Concrete(u(2)), cfg)
	joined = Join(joined, Concrete(u(3)), cfg)
	assert.Equal(t, Top, joined.Kind())
}

func TestJoinWithTopIsTop(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Top, Join(TopValue(), Concrete(u(1)), cfg).Kind())
}

func TestCombine2Arithmetic(t *testing.T) {
	cfg := DefaultConfig()
	add := func(x, y *uint256.Int) uint256.Int {
		var out uint256.Int
		out.Add(x, y)
		return out
	}
	sum := Combine2(Concrete(u(3)), Concrete(u(4)), cfg, add)
	single, ok := sum.SingleValue()
	require.True(t, ok)
	assert.Equal(t, u(7), single)
}

func TestCombine2TopPropagates(t *testing.T) {
	cfg := DefaultConfig()
	add := func(x, y *uint256.Int) uint256.Int {
		var out uint256.Int
		out.Add(x, y)
		return out
	}
	result := Combine2(TopValue(), Concrete(u(4)), cfg, add)
	assert.Equal(t, Top, result.Kind())
}

func TestCombine1(t *testing.T) {
	cfg := DefaultConfig()
	notOp := func(x *uint256.Int) uint256.Int {
		var out uint256.Int
		out.Not(x)
		return out
	}
	result := Combine1(Concrete(u(0)), cfg, notOp)
	single, ok := result.SingleValue()
	require.True(t, ok)
	var want uint256.Int
	want.Not(&[1]uint256.Int{u(0)}[0])
	assert.Equal(t, want, single)
}

func TestEqual(t *testing.T) {
	a := Concrete(u(1))
	b := Concrete(u(1))
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, Concrete(u(2))))
	assert.True(t, Equal(TopValue(), TopValue()))
	assert.True(t, Equal(BottomValue(), BottomValue()))
}
