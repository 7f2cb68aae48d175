// Command dumpurls discovers dump download URLs from an HTML listing page
// and prints them one per line, ready for a url_file consumed by kbsync.
//
// Usage (single page):
//
//	dumpurls -url "https://dumps.example.com/kb/" > urls.txt
//
// Usage (paginated listing, 120 entries at 25 per page):
//
//	dumpurls -url "https://dumps.example.com/kb/" -count 120 > urls.txt
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"kbsync/internal/datasource/httpds"
	"kbsync/internal/dumplinks"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is split out from main so the command can be tested without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success, including a listing with no dump links
//   - 1 when a page fetch or parse fails
//   - 2 for usage errors
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dumpurls", flag.ContinueOnError)
	fs.SetOutput(stderr)

	listURL := fs.String("url", "", "Listing page URL (required)")
	suffixesCSV := fs.String("suffixes", "", `Comma-separated dump suffixes (default ".sql,.sql.gz")`)
	count := fs.Int("count", 0, "Total listing entries; > per-page expands numbered pages")
	perPage := fs.Int("per-page", dumplinks.DefaultPerPage, "Entries per listing page")
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout per page fetch")
	maxAttempts := fs.Int("max-attempts", 3, "Fetch attempts per page")
	insecure := fs.Bool("insecure", false, "Skip TLS certificate verification")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listURL == "" {
		fmt.Fprintf(stderr, "missing -url\n")
		return 2
	}

	client := httpds.NewClient(httpds.Config{
		Timeout:            *timeout,
		MaxAttempts:        *maxAttempts,
		InsecureSkipVerify: *insecure,
		Job:                "dumpurls",
	})

	opt := dumplinks.Options{Suffixes: splitSuffixes(*suffixesCSV)}
	pages := dumplinks.PageURLs(*listURL, *count, *perPage)

	seen := make(map[string]bool)
	total := 0
	for _, page := range pages {
		body, err := client.Fetch(ctx, page)
		if err != nil {
			fmt.Fprintf(stderr, "fetch %s: %v\n", page, err)
			return 1
		}

		links, err := dumplinks.Extract(string(body), page, opt)
		if err != nil {
			fmt.Fprintf(stderr, "parse %s: %v\n", page, err)
			return 1
		}

		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			fmt.Fprintln(stdout, link)
			total++
		}
	}

	if total == 0 {
		fmt.Fprintf(stderr, "no dump links found at %s\n", *listURL)
	}
	return 0
}

// splitSuffixes parses the -suffixes CSV; empty input means the package
// defaults apply.
func splitSuffixes(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
