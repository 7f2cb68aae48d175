// Command dumpparse extracts category JSON files from a knowledge-base SQL
// dump without fetching anything. It reads the dump from a local file or
// stdin, making it the offline counterpart to kbsync.
//
// Usage (file):
//
//	dumpparse -in kb-2026-08.sql -out out/categories
//
// Usage (stdin):
//
//	zcat kb-2026-08.sql.gz | dumpparse -out out/categories
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"kbsync/internal/pipeline"
	"kbsync/internal/sink"
)

// parseRecord is the single JSON line printed to stdout when parsing ran.
// Additive changes are safe; renames or removals are breaking for scripts.
type parseRecord struct {
	Source     string   `json:"source"`
	Statements int      `json:"statements"`
	Rows       int      `json:"rows"`
	Categories int      `json:"categories"`
	Files      []string `json:"files,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is split out from main so the command can be tested without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational errors, including a dump with no categories
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dumpparse", flag.ContinueOnError)
	fs.SetOutput(stderr)

	inPath := fs.String("in", "", "Dump file to parse (default: read stdin)")
	outDir := fs.String("out", "", "Directory for category JSON files (required)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outDir == "" {
		fmt.Fprintf(stderr, "missing -out\n")
		return 2
	}

	source := "stdin"
	var (
		buf []byte
		err error
	)
	if *inPath != "" {
		source = *inPath
		buf, err = os.ReadFile(*inPath)
	} else {
		buf, err = io.ReadAll(stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "read dump: %v\n", err)
		return 1
	}

	start := time.Now()
	rec := parseRecord{Source: source}

	m, st, err := pipeline.Extract(buf)
	rec.Statements, rec.Rows, rec.Categories = st.Statements, st.Rows, st.Categories
	if err == nil {
		rec.Files, err = sink.NewWriter(*outDir).WriteAll(m)
	}
	rec.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if encErr := enc.Encode(rec); encErr != nil {
		fmt.Fprintf(stderr, "encode record: %v\n", encErr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "parse dump: %v\n", err)
		return 1
	}
	return 0
}
