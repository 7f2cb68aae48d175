package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kbsync/internal/config"
	"kbsync/internal/ledger"
	"kbsync/internal/metrics"
	"kbsync/internal/metrics/datadog"
	"kbsync/internal/pipeline"

	// register all ledger backends with the factory.
	// config selects which one to use, but support for all is built in.
	_ "kbsync/internal/ledger/all"
)

// runRecord is emitted as JSONL to stdout for each finished sync run.
//
// This output is intended for machine parsing. Additive changes are safe;
// renames/removals are breaking changes for downstream log consumers.
type runRecord struct {
	Timestamp  string `json:"ts"`
	Job        string `json:"job"`
	Source     string `json:"source"`
	RunID      string `json:"run_id,omitempty"`
	Statements int    `json:"statements"`
	Rows       int    `json:"rows"`
	Categories int    `json:"categories"`
	Files      int    `json:"files"`
	Indexed    int    `json:"indexed"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// backendCloser is the minimal interface used by this command to manage a
// metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
	Now            func() time.Time
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	ConfigPath string
	Validate   bool
	Backend    string
	TagsCSV    string
	FlushEvery time.Duration
	Verbose    bool
}

func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		Now: time.Now,
	})
	os.Exit(code)
}

// run executes the sync command and returns an exit code.
//
// Exit codes:
//   - 0: every run succeeded.
//   - 1: at least one sync run failed.
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	cfgFlags, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	syncCfg, err := config.Load(cfgFlags.ConfigPath)
	if err != nil {
		fmt.Fprintf(d.Stderr, "%v\n", err)
		return 2
	}

	issues := config.ValidateSync(syncCfg)
	for _, iss := range issues {
		fmt.Fprintf(d.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fmt.Fprintf(d.Stderr, "configuration is invalid: %s\n", cfgFlags.ConfigPath)
		return 2
	}
	if cfgFlags.Validate {
		fmt.Fprintf(d.Stderr, "configuration is valid: %s\n", cfgFlags.ConfigPath)
		return 0
	}

	logger := log.New(d.Stderr, "", log.LstdFlags)

	jobName := syncCfg.Job
	if jobName == "" {
		jobName = "kbsync"
	}

	// Decide metrics backend: flag, then env, then disabled.
	backendName := cfgFlags.Backend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		tagsCSV := cfgFlags.TagsCSV
		if tagsCSV == "" {
			tagsCSV = os.Getenv("METRICS_TAGS")
		}
		tags := append(datadog.ParseTagsCSV(tagsCSV), "tool:kbsync")

		if d.BackendFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: BackendFactory is nil")
			return 2
		}
		b, err := d.BackendFactory(ctx, jobName, tags, cfgFlags.FlushEvery)
		if err != nil {
			logger.Printf("metrics: datadog init failed: %v; using nop", err)
		} else {
			if cfgFlags.Verbose {
				logger.Printf("metrics: backend=%s job=%s tags=%v", backendName, jobName, tags)
			}
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					logger.Printf("metrics: close: %v", err)
				}
			}()
		}
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		logger.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	runner := pipeline.NewRunner(syncCfg, logger)

	if syncCfg.Ledger.Kind != "" {
		store, err := ledger.New(ctx, ledger.Config{
			Kind:    syncCfg.Ledger.Kind,
			DSN:     syncCfg.Ledger.DSN,
			Table:   syncCfg.Ledger.Table,
			Options: syncCfg.Ledger.Options,
		})
		if err != nil {
			fmt.Fprintf(d.Stderr, "ledger: %v\n", err)
			return 2
		}
		defer func() { _ = store.Close() }()
		if err := store.Init(ctx); err != nil {
			fmt.Fprintf(d.Stderr, "ledger init: %v\n", err)
			return 2
		}
		runner.Ledger = store
	}

	refs, err := sourceRefs(syncCfg)
	if err != nil {
		fmt.Fprintf(d.Stderr, "%v\n", err)
		return 2
	}

	if cfgFlags.Verbose {
		logger.Printf("sync: job=%s source=%s refs=%d workers=%d",
			jobName, syncCfg.Source.Kind, len(refs), workerCount(syncCfg, len(refs)))
	}

	recCh := make(chan runRecord, 64)
	var logWG sync.WaitGroup
	logWG.Add(1)
	go func() {
		defer logWG.Done()
		writeJSONLines(d.Stdout, recCh)
	}()

	var failed atomic.Int64
	jobs := make(chan string)
	workers := workerCount(syncCfg, len(refs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for ref := range jobs {
				res, err := runner.Run(ctx, ref)
				rec := runRecord{
					Timestamp:  d.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
					Job:        jobName,
					Source:     ref,
					RunID:      res.RunID,
					Statements: res.Stats.Statements,
					Rows:       res.Stats.Rows,
					Categories: res.Stats.Categories,
					Files:      len(res.Files),
					Indexed:    res.Indexed,
					DurationMs: res.Elapsed.Milliseconds(),
				}
				if err != nil {
					rec.Error = err.Error()
					failed.Add(1)
				}
				recCh <- rec
			}
		}()
	}

	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()
	close(recCh)
	logWG.Wait()

	_ = metrics.Flush()

	if failed.Load() > 0 {
		return 1
	}
	return 0
}

// parseFlags parses command arguments into a validated runConfig.
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("kbsync", flag.ContinueOnError)

	// Capture help/usage text instead of writing to stdout.
	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var cfg runConfig
	fs.StringVar(&cfg.ConfigPath, "config", "configs/sync.json", "sync config JSON path")
	fs.BoolVar(&cfg.Validate, "validate", false, "validate the configuration and exit")
	fs.StringVar(&cfg.Backend, "metrics-backend", "", "metrics backend to use (datadog, none)")
	fs.StringVar(&cfg.TagsCSV, "dd_tags", "", "extra Datadog tags CSV (e.g. env:prod,service:kb)")
	fs.DurationVar(&cfg.FlushEvery, "metrics_flush", time.Minute, "Datadog flush interval")
	fs.BoolVar(&cfg.Verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	return cfg, nil
}

// sourceRefs resolves the list of runs this invocation performs: one local
// path, one URL, or every URL from the configured url_file.
func sourceRefs(s config.Sync) ([]string, error) {
	switch s.Source.Kind {
	case "file":
		return []string{s.Source.File.Path}, nil
	case "http":
		if s.Source.HTTP.URL != "" {
			return []string{s.Source.HTTP.URL}, nil
		}
		urls, err := readURLs(s.Source.HTTP.URLFile)
		if err != nil {
			return nil, fmt.Errorf("read url file: %w", err)
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("no URLs found in %s", s.Source.HTTP.URLFile)
		}
		return urls, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Source.Kind)
	}
}

func workerCount(s config.Sync, refs int) int {
	n := s.Runtime.Workers
	if n <= 0 {
		n = 1
	}
	if n > refs {
		n = refs
	}
	return n
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

func writeJSONLines(w io.Writer, in <-chan runRecord) {
	enc := json.NewEncoder(w)
	for rec := range in {
		_ = enc.Encode(rec)
	}
}
