// Package errors defines the error-kind vocabulary used throughout the
// decompiler: ParseError, AnalysisBailout, InternalInvariant and IOError.
// This centralizes error definitions to keep behaviour (fatal vs. recovered,
// exit-code effect) consistent across packages.
package errors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ParseError is returned by internal/disasm for malformed hex or (in strict
// mode) an unrecognised opcode byte or mnemonic; for a byte it wraps
// internal/opcode's UnknownOpcodeError. A truncated PUSH immediate is
// recorded as a parser warning, not a ParseError.
type ParseError struct {
	Offset  uint64 // byte offset / pc at which the error was detected
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

// NewParseError constructs a ParseError.
func NewParseError(offset uint64, reason string) *ParseError {
	return &ParseError{Offset: offset, Reason: reason}
}

// AnalysisBailout reports that the fixed-point loop in internal/cfg did not
// converge before max_iterations or bailout_seconds elapsed. It is never
// fatal: the caller is expected to continue to TAC conversion with whatever
// blocks remain unresolved.
type AnalysisBailout struct {
	Iterations int
	Elapsed    string // human-readable wall time, formatted by the caller
	Reason     string
}

func (e *AnalysisBailout) Error() string {
	return fmt.Sprintf("analysis bailout after %d iterations (%s): %s", e.Iterations, e.Elapsed, e.Reason)
}

// NewAnalysisBailout constructs an AnalysisBailout.
func NewAnalysisBailout(iterations int, elapsed, reason string) *AnalysisBailout {
	return &AnalysisBailout{Iterations: iterations, Elapsed: elapsed, Reason: reason}
}

// InternalInvariant marks a broken invariant that the spec treats as fatal:
// predecessor/successor asymmetry, or a negative stack depth against a
// known-empty bottom. It wraps pkgerrors.WithStack so the caller gets a
// stack trace at the point the invariant was detected, not at the point it
// is eventually logged.
type InternalInvariant struct {
	cause error
}

func (e *InternalInvariant) Error() string {
	return "internal invariant violated: " + e.cause.Error()
}

func (e *InternalInvariant) Unwrap() error {
	return e.cause
}

// NewInternalInvariant wraps msg into an InternalInvariant with a captured
// stack trace.
func NewInternalInvariant(msg string) *InternalInvariant {
	return &InternalInvariant{cause: pkgerrors.WithStack(errors.New(msg))}
}

// StackTrace exposes the pkg/errors stack trace of the underlying cause, if
// any, for diagnostic logging.
func (e *InternalInvariant) StackTrace() pkgerrors.StackTrace {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// IOError marks a fatal I/O error: an unwritable output directory, a
// failure to acquire its exclusive lock, or a failure reading disasm input.
type IOError struct {
	Path   string
	cause  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error at %q: %s", e.Path, e.cause)
}

func (e *IOError) Unwrap() error {
	return e.cause
}

// NewIOError constructs an IOError.
func NewIOError(path string, cause error) *IOError {
	return &IOError{Path: path, cause: cause}
}

// =====================
// Helper Functions
// =====================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Errorf formats according to a format specifier and returns the string as a value that satisfies error.
func Errorf(format string, a ...interface{}) error {
	return fmt.Errorf(format, a...)
}
