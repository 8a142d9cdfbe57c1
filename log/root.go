// Package log provides the decompiler's leveled, key/value logger. It is a
// single-process trim of the node's original log package: no background
// rotation manager, no mobile logger, no DataDir-relative file layout — just
// a logrus logger with optional lumberjack-rotated file output, which is all
// a CLI invoked once per contract by the batch driver needs.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Lvl mirrors the go-ethereum-style severity ladder used across the corpus.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlFatal
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var levelNames = map[Lvl]logrus.Level{
	LvlCrit:  logrus.FatalLevel,
	LvlFatal: logrus.FatalLevel,
	LvlError: logrus.ErrorLevel,
	LvlWarn:  logrus.WarnLevel,
	LvlInfo:  logrus.InfoLevel,
	LvlDebug: logrus.DebugLevel,
	LvlTrace: logrus.TraceLevel,
}

var terminal = logrus.New()

var root = &logger{ctx: nil}

// FileConfig configures optional rotated file output alongside the console.
type FileConfig struct {
	Path       string // empty means console-only
	Level      string // trace, debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool // also write to stdout when Path is set
	JSONFormat bool
}

// Init configures the package-level logger. Safe to call more than once
// (each call replaces the prior formatter/output); a CLI entrypoint calls it
// exactly once, early in main().
func Init(cfg FileConfig) {
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	terminal.SetLevel(lvl)

	if cfg.Path == "" {
		terminal.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		terminal.SetOutput(os.Stdout)
		return
	}

	var formatter logrus.Formatter
	if cfg.JSONFormat {
		formatter = &logrus.JSONFormatter{}
	} else {
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	terminal.SetFormatter(formatter)

	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if cfg.Console {
		terminal.SetOutput(io.MultiWriter(lj, os.Stdout))
	} else {
		terminal.SetOutput(lj)
	}
}

// A Logger writes key/value pairs to the underlying handler.
type Logger interface {
	// New returns a new Logger that has this logger's context plus the given context.
	New(ctx ...interface{}) Logger

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
}

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{ctx: append(append([]interface{}{}, l.ctx...), normalize(ctx)...)}
}

func (l *logger) write(msg string, lvl Lvl, ctx []interface{}) {
	fields := logrus.Fields{}
	all := append(append([]interface{}{}, l.ctx...), normalize(ctx)...)
	for i := 0; i+1 < len(all); i += 2 {
		key := fmt.Sprintf("%v", all[i])
		fields[key] = all[i+1]
	}
	entry := terminal.WithFields(fields)
	level, ok := levelNames[lvl]
	if !ok {
		level = logrus.InfoLevel
	}
	entry.Log(level, msg)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(msg, LvlTrace, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(msg, LvlDebug, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(msg, LvlInfo, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(msg, LvlWarn, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(msg, LvlError, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(msg, LvlCrit, ctx)
	os.Exit(1)
}

// normalize pads an odd-length context slice with a trailing nil, matching
// go-ethereum's log15 convention for mismatched key/value pairs.
func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, nil)
	}
	return ctx
}

// New returns a new logger with the given context. Convenience alias for
// Root().New.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

// Root returns the root logger.
func Root() Logger { return root }

func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }

func Tracef(format string, args ...interface{}) { root.Trace(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...interface{}) { root.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...interface{})  { root.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...interface{})  { root.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...interface{}) { root.Error(fmt.Sprintf(format, args...)) }
