package ssa

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtac/decompiler/internal/lattice"
)

func u(n uint64) uint256.Int { return *uint256.NewInt(n) }

func TestArenaNewAssignsIncreasingIDs(t *testing.T) {
	a := NewArena()
	v1 := a.New(lattice.Concrete(u(1)), 0)
	v2 := a.New(lattice.Concrete(u(2)), 1)
	assert.NotEqual(t, v1.ID, v2.ID)
	assert.Equal(t, VariableID(0), v1.ID)
	assert.Equal(t, VariableID(1), v2.ID)
	assert.Equal(t, 2, a.Len())
}

func TestVariableDefSites(t *testing.T) {
	a := NewArena()
	v := a.New(lattice.Concrete(u(7)), 42)
	assert.True(t, v.DefSites().Contains(uint64(42)))
}

func TestMergeIdenticalReturnsSameVariable(t *testing.T) {
	a := NewArena()
	v := a.New(lattice.Concrete(u(1)), 0)
	merged := a.Merge(lattice.DefaultConfig(), v, v)
	assert.Same(t, v, merged)
}

func TestMergeDistinctMintsPhiVariable(t *testing.T) {
	a := NewArena()
	v1 := a.New(lattice.Concrete(u(1)), 10)
	v2 := a.New(lattice.Concrete(u(2)), 20)
	merged := a.Merge(lattice.DefaultConfig(), v1, v2)

	require.NotSame(t, v1, merged)
	require.NotSame(t, v2, merged)
	assert.Equal(t, lattice.ConcreteSet, merged.Value().Kind())
	assert.ElementsMatch(t, []uint256.Int{u(1), u(2)}, merged.Value().Candidates())
	assert.True(t, merged.DefSites().Contains(uint64(10)))
	assert.True(t, merged.DefSites().Contains(uint64(20)))
}

func TestMergeEmptyReturnsBottom(t *testing.T) {
	a := NewArena()
	merged := a.Merge(lattice.DefaultConfig())
	assert.Equal(t, lattice.Bottom, merged.Value().Kind())
}

func TestLocationString(t *testing.T) {
	a := NewArena()
	key := a.New(lattice.Concrete(u(64)), 0)
	loc := Location{Kind: LocationMemory, Key: key}
	assert.Contains(t, loc.String(), "memory")
}

func TestVariableStringIsStable(t *testing.T) {
	a := NewArena()
	v := a.New(lattice.Concrete(u(1)), 0)
	assert.Equal(t, v.String(), v.String())
}
