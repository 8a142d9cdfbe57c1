package decompile

import (
	"io"

	"github.com/evmtac/decompiler/internal/disasm"
)

// sourceKind tags which of the two front-ends of spec.md §4.3 a Source
// carries (spec.md §9 design note: "a single parser with a source variant
// {Hex, Bytes, DisasmLines}... no subtype chain needed").
type sourceKind int

const (
	sourceBytes sourceKind = iota
	sourceHex
	sourceDisasm
)

// Source is the tagged union over the decompiler's two accepted input
// shapes (spec.md §6 External Interfaces): raw bytecode (as a byte buffer
// or a hex string) or Ethereum disasm-format text.
type Source struct {
	kind   sourceKind
	bytes  []byte
	hex    string
	disasm io.Reader
}

// FromBytes wraps a raw bytecode buffer.
func FromBytes(b []byte) Source { return Source{kind: sourceBytes, bytes: b} }

// FromHex wraps a hex string, optionally "0x"-prefixed.
func FromHex(s string) Source { return Source{kind: sourceHex, hex: s} }

// FromDisasm wraps an Ethereum disasm-format text stream.
func FromDisasm(r io.Reader) Source { return Source{kind: sourceDisasm, disasm: r} }

// parse dispatches to the matching internal/disasm front-end.
func (s Source) parse(opts disasm.Options) (disasm.Result, error) {
	switch s.kind {
	case sourceHex:
		return disasm.ParseHex(s.hex, opts)
	case sourceDisasm:
		return disasm.ParseDisasm(s.disasm, opts)
	default:
		return disasm.ParseBytecode(s.bytes, opts)
	}
}
