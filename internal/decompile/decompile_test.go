package decompile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1: empty contract.
func TestRunEmptyContract(t *testing.T) {
	dctx := NewContext("s1")
	res, err := Run(context.Background(), dctx, FromBytes(nil), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, res.CFG.Blocks)
	assert.Equal(t, 0, dctx.ExitCode())

	dir := t.TempDir()
	require.NoError(t, Export(res, dir, DefaultConfig()))
	data, err := os.ReadFile(filepath.Join(dir, "op.facts"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

// S2: constant return.
func TestRunConstantReturn(t *testing.T) {
	// PUSH1 1; PUSH1 0; MSTORE; PUSH1 1; PUSH1 0x1f; RETURN
	code := []byte{0x60, 0x01, 0x60, 0x00, 0x52, 0x60, 0x01, 0x60, 0x1f, 0xf3}
	dctx := NewContext("s2")
	res, err := Run(context.Background(), dctx, FromBytes(code), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.CFG.Blocks, 1)
	block := res.CFG.Blocks[res.CFG.Entry]
	assert.Equal(t, "RETURN", block.LastOp().Op.Mnemonic)
	assert.Equal(t, 0, block.ExitStack.Depth())
}

// S3: static jump.
func TestRunStaticJumpNoUnresolved(t *testing.T) {
	code := []byte{0x60, 0x03, 0x56, 0x5b, 0x00} // PUSH1 3; JUMP; JUMPDEST; STOP
	dctx := NewContext("s3")
	res, err := Run(context.Background(), dctx, FromBytes(code), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.CFG.Blocks, 2)
	entry := res.CFG.Blocks[res.CFG.Entry]
	assert.False(t, entry.HasUnresolvedJump)
	assert.Equal(t, 0, dctx.ExitCode())
}

// S5: unresolvable jump flags the block and bumps the exit code.
func TestRunUnresolvableJumpWarns(t *testing.T) {
	code := []byte{0x60, 0x00, 0x54, 0x56} // PUSH1 0; SLOAD; JUMP
	dctx := NewContext("s5")
	res, err := Run(context.Background(), dctx, FromBytes(code), DefaultConfig())
	require.NoError(t, err)
	entry := res.CFG.Blocks[res.CFG.Entry]
	assert.True(t, entry.HasUnresolvedJump)
	assert.Equal(t, ExitWarn, dctx.ExitCode())
}

// S6: bailout with a pathologically low max-iter count still produces a
// consistent, exportable result and warns.
func TestRunBailoutStillExports(t *testing.T) {
	code := []byte{0x60, 0x03, 0x56, 0x5b, 0x00}
	cfgOpts := DefaultConfig()
	cfgOpts.MaxIterations = 1
	dctx := NewContext("s6")
	res, err := Run(context.Background(), dctx, FromBytes(code), cfgOpts)
	require.NoError(t, err)
	assert.Equal(t, ExitWarn, dctx.ExitCode())

	dir := t.TempDir()
	require.NoError(t, Export(res, dir, cfgOpts))
	_, err = os.Stat(filepath.Join(dir, "op.facts"))
	assert.NoError(t, err)
}

func TestRunIdempotentFactOutput(t *testing.T) {
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00}
	cfgOpts := DefaultConfig()

	run := func() []byte {
		dctx := NewContext("idempotence")
		res, err := Run(context.Background(), dctx, FromBytes(code), cfgOpts)
		require.NoError(t, err)
		dir := t.TempDir()
		require.NoError(t, Export(res, dir, cfgOpts))
		data, err := os.ReadFile(filepath.Join(dir, "op.facts"))
		require.NoError(t, err)
		return data
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestRunStrictModeRejectsUnknownOpcode(t *testing.T) {
	code := []byte{0x0c} // unassigned byte
	cfgOpts := DefaultConfig()
	cfgOpts.Strict = true
	dctx := NewContext("strict")
	_, err := Run(context.Background(), dctx, FromBytes(code), cfgOpts)
	assert.Error(t, err)
}
