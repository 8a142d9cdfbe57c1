// Package facts emits the tab-separated relation files a downstream
// Datalog analyser consumes (spec.md §4.9): fixed-arity tuples, sorted for
// reproducible diffs. Two independent families are exported from the same
// resolved CFG: ExportEVM at the instruction level and ExportTAC at the
// TAC level, matching spec.md §9's open question ("two divergent exporter
// copies" in the original) resolved by keeping both.
package facts

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	decerrors "github.com/evmtac/decompiler/pkg/errors"
)

// Writer owns one fact output directory for the duration of an export,
// holding an exclusive lock on a sentinel file so a retried batch-driver
// invocation into the same scratch directory never interleaves two
// partial writers (SPEC_FULL.md §4.9).
type Writer struct {
	dir  string
	lock *flock.Flock
}

// Open acquires the output directory, creating it if necessary, and takes
// an exclusive lock on "<dir>/.lock".
func Open(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, decerrors.NewIOError(dir, err)
	}
	lockPath := filepath.Join(dir, ".lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, decerrors.NewIOError(lockPath, err)
	}
	if !locked {
		return nil, decerrors.NewIOError(lockPath, fmt.Errorf("fact directory is locked by another writer"))
	}
	return &Writer{dir: dir, lock: fl}, nil
}

// Close releases the directory lock.
func (w *Writer) Close() error {
	return w.lock.Unlock()
}

// row is one tab-separated relation row, pre-formatted.
type row []string

// writeRelation writes rows to "<dir>/<name>.facts", one tab-separated row
// per line, in the order given — callers are expected to have already
// sorted rows by first key then second (spec.md §4.9).
func (w *Writer) writeRelation(name string, rows []row) error {
	path := filepath.Join(w.dir, name+".facts")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return decerrors.NewIOError(path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return decerrors.NewIOError(path, err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	for _, r := range rows {
		for i, field := range r {
			if i > 0 {
				if _, err := buf.WriteString("\t"); err != nil {
					return decerrors.NewIOError(path, err)
				}
			}
			if _, err := buf.WriteString(field); err != nil {
				return decerrors.NewIOError(path, err)
			}
		}
		if _, err := buf.WriteString("\n"); err != nil {
			return decerrors.NewIOError(path, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return decerrors.NewIOError(path, err)
	}
	return nil
}

func sortRows(rows []row) {
	sort.Slice(rows, func(i, j int) bool {
		for k := 0; k < len(rows[i]) && k < len(rows[j]); k++ {
			if rows[i][k] != rows[j][k] {
				return rows[i][k] < rows[j][k]
			}
		}
		return len(rows[i]) < len(rows[j])
	})
}

func hexPC(pc uint64) string {
	return fmt.Sprintf("0x%x", pc)
}
