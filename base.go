/**
 * Filename: base.go
 * Path: github.com/haibao-labs/tccmatrix
 *
 * Ambient stack: logging, run context, and small shared helpers.
 */

package tccmatrix

import (
	"fmt"
	"os"
	"strings"

	logging "github.com/op/go-logging"
)

const (
	// Version is the current version of tccmatrix
	Version = "0.1.0"
	// DefaultOutPrefix is the default output prefix when -o is not given
	DefaultOutPrefix = "matrix"
	// DefaultThreads is the default per-sample thread cap
	DefaultThreads = 1
)

var log = logging.MustGetLogger("tccmatrix")
var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05} %{shortfunc} ▶ %{level:.4s} %{color:reset} %{message}`,
)

// Backend is the default stderr output
var Backend = logging.NewLogBackend(os.Stderr, "", 0)

// BackendFormatter contains the fancy debug formatter
var BackendFormatter = logging.NewBackendFormatter(Backend, format)

// RunContext carries the flags that would otherwise be module globals
// (verbose, unmatched-output path, thread cap) explicitly through the
// pipeline, per the "no hidden globals" design note.
type RunContext struct {
	Verbose          bool
	UnmatchedPath    string
	Threads          int
	Paired           bool
	ForceLightweight bool
	FullMatrix       bool
	WriteNPY         bool
}

// ErrorAbort logs a fatal error and exits the process with status 1. Used
// only at the top of the call stack (CLI layer) for input-open failures,
// matching spec.md §7's "Input-open failure — fatal, reported with path,
// exit 1."
func ErrorAbort(err error) {
	if err == nil {
		return
	}
	log.Errorf("%v", err)
	os.Exit(1)
}

// mustOpen opens a file or aborts the program. Mirrors the calling
// convention of the teacher's (unretrieved) mustOpen helper.
func mustOpen(filename string) *os.File {
	fh, err := os.Open(filename)
	if err != nil {
		ErrorAbort(fmt.Errorf("failed to open `%s`: %w", filename, err))
	}
	return fh
}

// mustExist aborts the program unless filename can be opened for reading.
func mustExist(filename string) {
	fh, err := os.Open(filename)
	if err != nil {
		ErrorAbort(fmt.Errorf("failed to open `%s`: %w", filename, err))
	}
	fh.Close()
}

// lower lower-cases a string. All contig and transcript name comparisons in
// this package are case-insensitive, implemented by lower-casing on ingest
// (spec.md §3).
func lower(s string) string {
	return strings.ToLower(s)
}

// RemoveExt returns the substring minus the extension
func RemoveExt(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[:i]
	}
	return filename
}

// ecString is the canonical textual form of an equivalence class: ascending
// comma-separated decimal ids.
func ecString(ec []int) string {
	if len(ec) == 0 {
		return ""
	}
	parts := make([]string, len(ec))
	for i, id := range ec {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// parseCSVList splits a comma-separated flag value into its components,
// skipping empty entries. Mirrors the teacher's own parse_csv used for -g/-S/-t.
func parseCSVList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
