package disasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytecodeSimple(t *testing.T) {
	// PUSH1 0x01 PUSH1 0x02 ADD STOP
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00}
	res, err := ParseBytecode(code, Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 4)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, uint64(0), res.Ops[0].PC)
	assert.Equal(t, "PUSH1", res.Ops[0].Op.Mnemonic)
	require.NotNil(t, res.Ops[0].Immediate)
	assert.Equal(t, uint64(1), res.Ops[0].Immediate.Uint64())

	assert.Equal(t, uint64(2), res.Ops[1].PC)
	assert.Equal(t, uint64(2), res.Ops[1].Immediate.Uint64())

	assert.Equal(t, uint64(4), res.Ops[2].PC)
	assert.Equal(t, "ADD", res.Ops[2].Op.Mnemonic)

	assert.Equal(t, uint64(5), res.Ops[3].PC)
	assert.Equal(t, "STOP", res.Ops[3].Op.Mnemonic)
}

func TestParseBytecodeTruncatedPush(t *testing.T) {
	// PUSH2 with only one byte remaining.
	code := []byte{0x61, 0xff}
	res, err := ParseBytecode(code, Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, uint64(0xff), res.Ops[0].Immediate.Uint64())
	assert.Contains(t, res.Warnings[0].Reason, "truncated")
}

func TestParseBytecodeUnknownOpcodeStrict(t *testing.T) {
	code := []byte{0x0c} // unassigned
	_, err := ParseBytecode(code, Options{Strict: true})
	require.Error(t, err)
}

func TestParseBytecodeUnknownOpcodePermissive(t *testing.T) {
	code := []byte{0x0c}
	res, err := ParseBytecode(code, Options{Strict: false})
	require.NoError(t, err)
	require.Len(t, res.Ops, 1)
	assert.True(t, res.Ops[0].Op.Invalid)
	require.Len(t, res.Warnings, 1)
}

func TestParseBytecodeTrimsTrailingZeroPad(t *testing.T) {
	// PUSH1 1; then four trailing zero bytes, each of which would otherwise
	// decode as its own STOP op.
	code := []byte{0x60, 0x01, 0x00, 0x00, 0x00, 0x00}
	res, err := ParseBytecode(code, Options{Strict: true, TrimTrailingZeroPad: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 2)
	assert.Equal(t, "STOP", res.Ops[1].Op.Mnemonic)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Reason, "trimmed")
}

func TestParseBytecodeLoneTrailingStopUntouched(t *testing.T) {
	code := []byte{0x60, 0x01, 0x00}
	res, err := ParseBytecode(code, Options{Strict: true, TrimTrailingZeroPad: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 2)
	assert.Empty(t, res.Warnings)
}

func TestParseHexWithPrefix(t *testing.T) {
	res, err := ParseHex("0x6001600101", Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 3)
	assert.Equal(t, "ADD", res.Ops[2].Op.Mnemonic)
}

func TestParseHexOddLength(t *testing.T) {
	_, err := ParseHex("0x601", Options{Strict: true})
	require.Error(t, err)
}

func TestParseDisasmSkipsFirstLine(t *testing.T) {
	input := "6001600101\n0 PUSH1 => 0x01\n2 PUSH1 => 0x02\n4 ADD\n"
	res, err := ParseDisasm(strings.NewReader(input), Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 3)
	assert.Equal(t, uint64(0), res.Ops[0].PC)
	assert.Equal(t, uint64(1), res.Ops[0].Immediate.Uint64())
	assert.Equal(t, uint64(4), res.Ops[2].PC)
	assert.Equal(t, "ADD", res.Ops[2].Op.Mnemonic)
}

func TestParseDisasmSkipsMalformedLine(t *testing.T) {
	input := "rawhex\n0 PUSH1 => 0x01\nbogus\n2 STOP\n"
	res, err := ParseDisasm(strings.NewReader(input), Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, res.Ops, 2)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Reason, "bogus")
}

func TestParseDisasmRoundTrip(t *testing.T) {
	input := "rawhex\n0 PUSH1 => 0x2a\n2 PUSH1 => 0x01\n4 ADD\n5 STOP\n"
	res, err := ParseDisasm(strings.NewReader(input), Options{Strict: true})
	require.NoError(t, err)

	var rebuilt []string
	for _, op := range res.Ops {
		rebuilt = append(rebuilt, op.String())
	}
	assert.Equal(t, "0 PUSH1 0x2a", rebuilt[0])
	assert.Equal(t, "5 STOP", rebuilt[3])
}

func TestParseDisasmUnrecognisedMnemonicPermissive(t *testing.T) {
	input := "rawhex\n0 NOTAREALOP\n"
	res, err := ParseDisasm(strings.NewReader(input), Options{Strict: false})
	require.NoError(t, err)
	require.Len(t, res.Ops, 1)
	assert.True(t, res.Ops[0].Op.Invalid)
	require.Len(t, res.Warnings, 1)
}

func TestParseDisasmUnrecognisedMnemonicStrict(t *testing.T) {
	input := "rawhex\n0 NOTAREALOP\n"
	_, err := ParseDisasm(strings.NewReader(input), Options{Strict: true})
	require.Error(t, err)
}
