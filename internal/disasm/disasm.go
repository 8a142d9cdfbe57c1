// Package disasm turns a raw bytecode stream or Ethereum disasm-format text
// into an ordered []EVMOp (spec.md §4.3). Both front-ends produce the same
// EVMOp shape; neither builds a class hierarchy for the two input shapes
// (spec.md REDESIGN FLAGS: "model as a single parser with a source variant
// {Hex, Bytes, DisasmLines}").
package disasm

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	decerrors "github.com/evmtac/decompiler/pkg/errors"

	"github.com/evmtac/decompiler/internal/opcode"
)

// EVMOp is one decoded instruction: its byte offset, its opcode, and (for
// PUSHn) the immediate it carries.
type EVMOp struct {
	PC        uint64
	Op        opcode.Opcode
	Immediate *uint256.Int // non-nil iff Op.IsPush
}

func (op EVMOp) String() string {
	if op.Immediate != nil {
		return fmt.Sprintf("%d %s %s", op.PC, op.Op.Mnemonic, op.Immediate.Hex())
	}
	return fmt.Sprintf("%d %s", op.PC, op.Op.Mnemonic)
}

// Warning records a recoverable parse anomaly: a truncated PUSH immediate,
// a skipped malformed disasm line, or (in non-strict mode) an unmapped
// opcode byte. Warnings never abort parsing; their presence sets the exit
// code to 3 at the CLI boundary (spec.md §6).
type Warning struct {
	PC     uint64
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("offset %d: %s", w.PC, w.Reason)
}

// Result is the parser's output: the decoded op stream plus any warnings
// accumulated along the way.
type Result struct {
	Ops      []EVMOp
	Warnings []Warning
}

// Options configures either front-end.
type Options struct {
	// Strict rejects unmapped opcode bytes with a ParseError instead of
	// materialising the INVALID placeholder (spec.md §4.1).
	Strict bool

	// TrimTrailingZeroPad collapses a trailing run of STOP (0x00) bytes into
	// a single STOP, with a warning, instead of emitting one EVMOp per byte
	// (SPEC_FULL.md §3, following original_source/src/blockparse.py: deployed
	// bytecode is frequently right-padded with zero bytes by the
	// constructor, and modelling each pad byte as its own STOP op only
	// inflates the block count with dead single-op blocks).
	TrimTrailingZeroPad bool

	// immediateCache memoizes the big.Int parse of repeated hex immediates
	// seen across a large contract (spec.md §9 design note: identical
	// constants such as 0x0 / selectors recur heavily). Lazily created.
	immediateCache *lru.Cache[string, uint256.Int]
}

const defaultImmediateCacheSize = 1024

func (o *Options) cache() *lru.Cache[string, uint256.Int] {
	if o.immediateCache == nil {
		c, err := lru.New[string, uint256.Int](defaultImmediateCacheSize)
		if err != nil {
			// Only fails for a non-positive size, which defaultImmediateCacheSize never is.
			panic(err)
		}
		o.immediateCache = c
	}
	return o.immediateCache
}

// ParseBytecode decodes a raw EVM bytecode buffer (spec.md §4.3 "Bytecode
// parser"): a byte-by-byte scan that, on PUSHn, consumes the next n bytes
// big-endian as the immediate, emitting a short immediate (and a warning)
// if the buffer is truncated.
func ParseBytecode(code []byte, opts Options) (Result, error) {
	var res Result
	i := 0
	for i < len(code) {
		pc := uint64(i)
		b := code[i]
		op, err := opcode.ByValue(b, opts.Strict)
		if err != nil {
			return res, decerrors.NewParseError(pc, err.Error())
		}
		i++
		if op.Invalid {
			res.Warnings = append(res.Warnings, Warning{PC: pc, Reason: fmt.Sprintf("unmapped opcode byte 0x%02x", b)})
		}

		evmOp := EVMOp{PC: pc, Op: op}
		if op.IsPush && op.ImmediateWidth > 0 {
			width := op.ImmediateWidth
			available := len(code) - i
			n := width
			truncated := false
			if available < n {
				n = available
				truncated = true
			}
			imm := new(uint256.Int).SetBytes(code[i : i+n])
			evmOp.Immediate = imm
			i += n
			if truncated {
				res.Warnings = append(res.Warnings, Warning{
					PC:     pc,
					Reason: fmt.Sprintf("%s truncated: wanted %d immediate bytes, found %d", op.Mnemonic, width, n),
				})
			}
		} else if op.IsPush {
			// PUSH0 carries no immediate bytes but still reports Immediate=0
			// per spec.md §3 ("optional immediate value, present iff PUSH").
			evmOp.Immediate = new(uint256.Int)
		}
		res.Ops = append(res.Ops, evmOp)
	}
	if opts.TrimTrailingZeroPad {
		trimTrailingZeroPad(&res, code)
	}
	return res, nil
}

// trimTrailingZeroPad collapses a trailing run of more than one STOP op
// (byte 0x00) into a single representative STOP, recording a warning at the
// pc where the padding region begins. A lone trailing STOP is left alone,
// since that is ordinary, meaningful code (spec.md §3 Open Questions note:
// "match the reference EVM's behaviour").
func trimTrailingZeroPad(res *Result, code []byte) {
	n := len(res.Ops)
	run := 0
	for n-1-run >= 0 && code[res.Ops[n-1-run].PC] == 0x00 && res.Ops[n-1-run].Op.Mnemonic == "STOP" {
		run++
	}
	if run <= 1 {
		return
	}
	keepThrough := n - run + 1
	padStart := res.Ops[keepThrough].PC
	res.Warnings = append(res.Warnings, Warning{
		PC:     padStart,
		Reason: fmt.Sprintf("trimmed %d trailing zero-pad bytes as implicit STOP padding", run-1),
	})
	res.Ops = res.Ops[:keepThrough]
}

// ParseHex decodes a hex string, with or without a "0x" prefix (spec.md §6).
func ParseHex(s string, opts Options) (Result, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 != 0 {
		return Result{}, decerrors.NewParseError(0, "hex string has odd length")
	}
	buf := make([]byte, len(s)/2)
	for i := 0; i < len(buf); i++ {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return Result{}, decerrors.NewParseError(uint64(i), fmt.Sprintf("invalid hex byte: %s", err))
		}
		buf[i] = byte(v)
	}
	return ParseBytecode(buf, opts)
}

// ParseDisasm decodes Ethereum disasm-format text (spec.md §4.3, §6): one op
// per line, tokens `<pc> <MNEMONIC> [=> 0x<hex>]`. The first line (raw hex
// dump emitted by most disassemblers ahead of the op listing) is skipped.
// Lines with fewer than two whitespace-separated tokens are skipped with a
// warning rather than aborting the parse.
func ParseDisasm(r io.Reader, opts Options) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		if lineNo == 1 {
			// The raw hex dump line precedes the op listing in most tool output.
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			res.Warnings = append(res.Warnings, Warning{PC: uint64(lineNo), Reason: fmt.Sprintf("skipped malformed disasm line %d: %q", lineNo, line)})
			continue
		}

		pc, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{PC: uint64(lineNo), Reason: fmt.Sprintf("skipped disasm line %d: invalid pc %q", lineNo, fields[0])})
			continue
		}

		mnemonic := strings.ToUpper(fields[1])
		op, ok := opcode.ByMnemonic(mnemonic)
		if !ok {
			if opts.Strict {
				return res, decerrors.NewParseError(pc, fmt.Sprintf("unrecognised mnemonic %q", mnemonic))
			}
			op = opcode.MustByMnemonic("INVALID")
			res.Warnings = append(res.Warnings, Warning{PC: pc, Reason: fmt.Sprintf("unrecognised mnemonic %q", mnemonic)})
		}

		evmOp := EVMOp{PC: pc, Op: op}
		if op.IsPush {
			imm := new(uint256.Int)
			if len(fields) >= 4 && fields[2] == "=>" {
				hexTok := strings.TrimPrefix(strings.TrimPrefix(fields[3], "0x"), "0X")
				if cached, ok := opts.cache().Get(hexTok); ok {
					v := cached
					imm = &v
				} else if hexTok != "" {
					bi, ok := new(big.Int).SetString(hexTok, 16)
					if !ok {
						res.Warnings = append(res.Warnings, Warning{PC: pc, Reason: fmt.Sprintf("invalid immediate hex %q", fields[3])})
						imm = new(uint256.Int)
					} else {
						imm = new(uint256.Int)
						imm.SetFromBig(bi)
						opts.cache().Add(hexTok, *imm)
					}
				}
			}
			evmOp.Immediate = imm
		}

		res.Ops = append(res.Ops, evmOp)
	}
	if err := scanner.Err(); err != nil {
		return res, decerrors.NewIOError("<disasm input>", err)
	}
	return res, nil
}
