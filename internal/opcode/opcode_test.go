package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Arity and stack-delta tests
// =============================================================================

func TestStackDelta(t *testing.T) {
	tests := []struct {
		mnemonic string
		want     int
	}{
		{"ADD", -1},  // pop 2, push 1
		{"POP", -1},  // pop 1, push 0
		{"PUSH1", 1}, // pop 0, push 1
		{"DUP1", 1},  // pop 1, push 2
		{"SWAP1", 0}, // pop 2, push 2
		{"STOP", 0},
		{"JUMPDEST", 0},
	}
	for _, tt := range tests {
		op := MustByMnemonic(tt.mnemonic)
		assert.Equalf(t, tt.want, op.StackDelta(), "stack delta for %s", tt.mnemonic)
	}
}

func TestPushFamily(t *testing.T) {
	for n := 1; n <= 32; n++ {
		op, ok := ByMnemonic(pushMnemonic(n))
		require.Truef(t, ok, "PUSH%d missing", n)
		assert.True(t, op.IsPush)
		assert.Equal(t, n, op.ImmediateWidth)
		assert.Equal(t, 0, op.Pop)
		assert.Equal(t, 1, op.Push)
	}
	push0, ok := ByMnemonic("PUSH0")
	require.True(t, ok)
	assert.Equal(t, 0, push0.ImmediateWidth)
}

func TestDupSwapFamilies(t *testing.T) {
	for n := 1; n <= 16; n++ {
		dup, ok := ByMnemonic(dupMnemonic(n))
		require.True(t, ok)
		assert.True(t, dup.IsDup)
		assert.Equal(t, n, dup.DupSwapIndex)
		assert.Equal(t, n, dup.Pop)
		assert.Equal(t, n+1, dup.Push)

		swap, ok := ByMnemonic(swapMnemonic(n))
		require.True(t, ok)
		assert.True(t, swap.IsSwap)
		assert.Equal(t, n, swap.DupSwapIndex)
		assert.Equal(t, 0, swap.StackDelta())
	}
}

func TestLogFamily(t *testing.T) {
	for n := 0; n <= 4; n++ {
		op, ok := ByMnemonic(logMnemonic(n))
		require.True(t, ok)
		assert.True(t, op.IsLog)
		assert.Equal(t, n, op.TopicCount)
		assert.Equal(t, n+2, op.Pop)
	}
}

// =============================================================================
// Category predicate tests
// =============================================================================

func TestCategoryPredicates(t *testing.T) {
	jump := MustByMnemonic("JUMP")
	assert.True(t, jump.AltersFlow)
	assert.False(t, jump.Halts)

	ret := MustByMnemonic("RETURN")
	assert.True(t, ret.Halts)
	assert.True(t, ret.AltersFlow)

	sload := MustByMnemonic("SLOAD")
	assert.True(t, sload.IsStorage)

	mstore := MustByMnemonic("MSTORE")
	assert.True(t, mstore.IsMemory)

	call := MustByMnemonic("CALL")
	assert.True(t, call.IsCall)
}

// =============================================================================
// ByValue / strict-mode tests
// =============================================================================

func TestByValueKnown(t *testing.T) {
	op, err := ByValue(0x01, true)
	require.NoError(t, err)
	assert.Equal(t, "ADD", op.Mnemonic)
}

func TestByValueUnknownStrict(t *testing.T) {
	_, err := ByValue(0x0c, true)
	require.Error(t, err)
	var unknown UnknownOpcodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, byte(0x0c), unknown.Byte)
}

func TestByValueUnknownPermissive(t *testing.T) {
	op, err := ByValue(0x0c, false)
	require.NoError(t, err)
	assert.True(t, op.Invalid)
	assert.True(t, op.Halts)
	assert.True(t, op.AltersFlow)
	assert.Equal(t, 0, op.StackDelta())
}

func TestByteValueRoundTrip(t *testing.T) {
	for _, mnemonic := range []string{"ADD", "PUSH1", "PUSH32", "DUP16", "SWAP16", "LOG4", "JUMPDEST"} {
		op := MustByMnemonic(mnemonic)
		fromByte, err := ByValue(op.Value, true)
		require.NoError(t, err)
		assert.Equal(t, mnemonic, fromByte.Mnemonic)
	}
}
