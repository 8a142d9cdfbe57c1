// Package decompile wires internal/disasm, internal/cfg, internal/tac and
// internal/facts into the single outer pipeline driver of spec.md §2 and
// §5: parse, build blocks, run the resolve fixed point, lower to TAC,
// export. It owns the cancellation context and the warning-accumulating
// exit-code cell spec.md §9's design notes call for ("inject a context
// object carrying verbosity and an error-accumulating exit-code cell").
package decompile

import (
	"sync/atomic"

	"github.com/evmtac/decompiler/log"
)

// ExitWarn is the process exit code spec.md §6 mandates whenever any
// warning was logged during a run, whether or not the run otherwise
// succeeded.
const ExitWarn = 3

// Context carries the configured log verbosity and an exit-code cell
// through the pipeline. A single Context is shared by one decompilation
// run; the batch driver (out of scope) creates a fresh one per contract
// process.
type Context struct {
	logger   log.Logger
	exitCode int32
}

// NewContext returns a Context logging through the package-level root
// logger, identified by a short name (typically the contract address or
// file path) attached to every message it emits.
func NewContext(name string) *Context {
	return &Context{logger: log.New("contract", name)}
}

// Warn logs a warning and unconditionally bumps the exit-code cell to
// ExitWarn (spec.md §7: "any warning raises the exit code to 3 without
// aborting").
func (c *Context) Warn(msg string, ctx ...interface{}) {
	c.logger.Warn(msg, ctx...)
	atomic.StoreInt32(&c.exitCode, ExitWarn)
}

// Info logs at info level without affecting the exit code.
func (c *Context) Info(msg string, ctx ...interface{}) {
	c.logger.Info(msg, ctx...)
}

// Error logs at error level without affecting the exit code; fatal errors
// are reported to the caller as a Go error instead (spec.md §7).
func (c *Context) Error(msg string, ctx ...interface{}) {
	c.logger.Error(msg, ctx...)
}

// ExitCode returns the process exit code this run has accumulated so far:
// 0 unless a warning was logged, in which case ExitWarn.
func (c *Context) ExitCode() int {
	return int(atomic.LoadInt32(&c.exitCode))
}
