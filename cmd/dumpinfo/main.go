// Command dumpinfo summarizes a knowledge-base SQL dump without syncing it:
// detected encoding, statement and row counts, tables with their columns,
// and the biggest category roots. Operators run it to decide whether a dump
// is worth feeding to kbsync.
//
// Usage:
//
//	dumpinfo -in kb-2026-08.sql
//	curl -s https://dumps.example.com/kb/latest.sql | dumpinfo
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"kbsync/internal/inspect"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is split out from main so the command can be tested without spawning
// an OS process. Inspection itself never fails, so exit 1 only covers
// read and encode errors; 2 covers usage errors.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dumpinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	inPath := fs.String("in", "", "Dump file to inspect (default: read stdin)")
	maxTables := fs.Int("tables", 0, "Max tables in the report (0 = default cap)")
	maxCategories := fs.Int("categories", 0, "Max top categories in the report (0 = default cap)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var (
		buf []byte
		err error
	)
	if *inPath != "" {
		buf, err = os.ReadFile(*inPath)
	} else {
		buf, err = io.ReadAll(stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "read dump: %v\n", err)
		return 1
	}

	rep := inspect.Inspect(buf, inspect.Options{
		MaxTables:     *maxTables,
		MaxCategories: *maxCategories,
	})

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(stderr, "encode report: %v\n", err)
		return 1
	}
	return 0
}
