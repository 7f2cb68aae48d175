package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kbsync/internal/category"
	"kbsync/internal/config"
	"kbsync/internal/datasource/file"
	"kbsync/internal/datasource/httpds"
	"kbsync/internal/ledger"
	"kbsync/internal/metrics"
	"kbsync/internal/sink"
)

// Logger is the minimal printf sink the pipeline logs through. A nil
// Logger is fine; diagnostics are then dropped.
type Logger interface {
	Printf(format string, args ...any)
}

// Source supplies one raw dump buffer per ref (a URL or a path; the
// source decides what ref means).
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Store persists one category map and reports the written file paths.
// sink.Writer is the production implementation.
type Store interface {
	WriteAll(m *category.Map) ([]string, error)
}

// Indexer pushes a category map into the vector store.
type Indexer interface {
	Index(ctx context.Context, m *category.Map) (int, error)
}

// Run stages, in execution order. Service mode reuses them as job
// statuses.
const (
	StageFetching = "fetching"
	StageParsing  = "parsing"
	StageWriting  = "writing"
	StageIndexing = "indexing"
)

// Result aggregates one finished run.
type Result struct {
	RunID   string
	Source  string
	Stats   Stats
	Files   []string
	Indexed int
	Elapsed time.Duration
}

// Runner executes sync runs: fetch, extract, write, index, then ledger.
//
// The New* fields are factory seams. NewRunner wires the production
// factories; tests replace them with fakes so no network or disk is
// touched. A Runner value may be copied to attach a per-run OnStage
// callback (service mode does this per job).
type Runner struct {
	Config config.Sync
	Log    Logger

	NewSource  func(cfg config.Sync) (Source, error)
	NewStore   func(cfg config.Sync) (Store, error)
	NewIndexer func(cfg config.Sync) (Indexer, error)

	// Ledger records finished runs when non-nil. The caller owns it and
	// closes it after the last run.
	Ledger ledger.Store

	// OnStage is invoked as each stage starts. Optional.
	OnStage func(stage string)

	// seams
	now   func() time.Time
	newID func() string
}

// NewRunner returns a Runner with the production collaborator factories.
func NewRunner(cfg config.Sync, log Logger) *Runner {
	return &Runner{
		Config:     cfg,
		Log:        log,
		NewSource:  DefaultSource,
		NewStore:   DefaultStore,
		NewIndexer: DefaultIndexer,
	}
}

// DefaultSource builds the datasource named by cfg.Source.Kind.
func DefaultSource(cfg config.Sync) (Source, error) {
	switch cfg.Source.Kind {
	case "http":
		if cfg.Source.HTTP == nil {
			return nil, errors.New("pipeline: source.http config missing")
		}
		opt := cfg.Source.HTTP.Options
		return httpSource{client: httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(opt.Int("timeout_seconds", 0)) * time.Second,
			MaxAttempts:        opt.Int("max_attempts", 0),
			MaxBytes:           int64(opt.Int("max_bytes", 0)),
			InsecureSkipVerify: opt.Bool("insecure", false),
			Job:                cfg.Job,
		})}, nil
	case "file":
		var maxBytes int64
		if cfg.Source.File != nil {
			maxBytes = cfg.Source.File.MaxBytes
		}
		return fileSource{maxBytes: maxBytes}, nil
	default:
		return nil, fmt.Errorf("pipeline: unknown source kind %q", cfg.Source.Kind)
	}
}

// DefaultStore writes category JSON files under cfg.Output.Dir.
func DefaultStore(cfg config.Sync) (Store, error) {
	if cfg.Output.Dir == "" {
		return nil, errors.New("pipeline: output.dir config missing")
	}
	return sink.NewWriter(cfg.Output.Dir), nil
}

// DefaultIndexer builds the qdrant indexer, or returns a nil Indexer when
// indexing is disabled.
func DefaultIndexer(cfg config.Sync) (Indexer, error) {
	if !cfg.Index.Enabled {
		return nil, nil
	}
	return newVecIndexer(cfg.Index)
}

type httpSource struct {
	client *httpds.Client
}

func (s httpSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return s.client.Fetch(ctx, ref)
}

type fileSource struct {
	maxBytes int64
}

func (s fileSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	src := file.NewLocal(ref)
	if s.maxBytes > 0 {
		src = src.WithMaxBytes(s.maxBytes)
	}
	return src.ReadAll(ctx)
}

// Run fetches ref through the configured source and processes it.
func (r *Runner) Run(ctx context.Context, ref string) (Result, error) {
	return r.execute(ctx, ref, func(ctx context.Context) ([]byte, error) {
		src, err := r.NewSource(r.Config)
		if err != nil {
			return nil, err
		}
		r.stage(StageFetching)
		t := r.timeNow()
		buf, err := src.Fetch(ctx, ref)
		metrics.RecordStep("fetch", err, r.timeNow().Sub(t))
		return buf, err
	})
}

// RunBuffer processes an already-fetched dump; name is recorded as the run
// source. Service uploads land here.
func (r *Runner) RunBuffer(ctx context.Context, name string, buf []byte) (Result, error) {
	return r.execute(ctx, name, func(context.Context) ([]byte, error) {
		return buf, nil
	})
}

func (r *Runner) execute(ctx context.Context, ref string, fetch func(context.Context) ([]byte, error)) (res Result, err error) {
	start := r.timeNow()
	res = Result{RunID: r.runID(), Source: ref}

	defer func() {
		res.Elapsed = r.timeNow().Sub(start)
		metrics.RecordRun(err)
		r.record(ctx, res, start, err)
	}()

	buf, err := fetch(ctx)
	if err != nil {
		return res, err
	}

	r.stage(StageParsing)
	t := r.timeNow()
	m, stats, err := Extract(buf)
	metrics.RecordStep("extract", err, r.timeNow().Sub(t))
	res.Stats = stats
	if err != nil {
		return res, err
	}
	metrics.RecordRecords("rows", stats.Rows)
	metrics.RecordRecords("categories", stats.Categories)

	r.stage(StageWriting)
	store, err := r.NewStore(r.Config)
	if err != nil {
		return res, err
	}
	t = r.timeNow()
	files, werr := store.WriteAll(m)
	metrics.RecordStep("write", werr, r.timeNow().Sub(t))
	if werr != nil {
		err = werr
		return res, err
	}
	res.Files = files
	metrics.RecordRecords("files", len(files))

	ix, err := r.NewIndexer(r.Config)
	if err != nil {
		return res, err
	}
	if ix != nil {
		r.stage(StageIndexing)
		t = r.timeNow()
		n, ierr := ix.Index(ctx, m)
		metrics.RecordStep("index", ierr, r.timeNow().Sub(t))
		res.Indexed = n
		if ierr != nil {
			err = ierr
			return res, err
		}
		metrics.RecordRecords("points", n)
	}

	r.logf("run %s: source=%s statements=%d rows=%d categories=%d files=%d indexed=%d",
		res.RunID, ref, stats.Statements, stats.Rows, stats.Categories, len(res.Files), res.Indexed)
	return res, nil
}

// record writes the ledger row for a finished run. Failures here are
// logged, not returned: the sync itself already succeeded or failed on its
// own terms.
func (r *Runner) record(ctx context.Context, res Result, start time.Time, runErr error) {
	if r.Ledger == nil {
		return
	}

	run := ledger.Run{
		ID:         res.RunID,
		Job:        r.Config.Job,
		Source:     res.Source,
		Statements: res.Stats.Statements,
		Rows:       res.Stats.Rows,
		Categories: res.Stats.Categories,
		Files:      len(res.Files),
		Status:     ledger.StatusCompleted,
		StartedAt:  start.UTC(),
		FinishedAt: r.timeNow().UTC(),
	}
	if runErr != nil {
		run.Status = ledger.StatusFailed
		run.Error = runErr.Error()
	}

	// Record even when the run was canceled; the row is the audit trail.
	t := r.timeNow()
	err := r.Ledger.RecordRun(context.WithoutCancel(ctx), run)
	metrics.RecordStep("ledger", err, r.timeNow().Sub(t))
	if err != nil {
		r.logf("ledger: record run %s: %v", run.ID, err)
	}
}

func (r *Runner) stage(s string) {
	if r.OnStage != nil {
		r.OnStage(s)
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	}
}

func (r *Runner) timeNow() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Runner) runID() string {
	if r.newID != nil {
		return r.newID()
	}
	return uuid.NewString()
}
