// Package sqlite implements the run ledger on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"kbsync/internal/ledger"
)

// Store keeps runs in a single SQLite table.
//
// SQLite has no timestamp type worth relying on; modernc.org/sqlite stores
// whatever affinity the column declares. Timestamps are therefore stored as
// RFC3339Nano strings, which round-trip reliably and stay debuggable.
type Store struct {
	db    *sql.DB
	table string
}

func init() {
	ledger.Register("sqlite", New)
}

// New opens (or creates) the database at cfg.DSN.
func New(ctx context.Context, cfg ledger.Config) (ledger.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger/sqlite: ping: %w", err)
	}
	// Single writer: extra connections would just queue on the file lock.
	db.SetMaxOpenConns(1)
	return &Store{db: db, table: cfg.TableName()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("ledger/sqlite: create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) RecordRun(ctx context.Context, run ledger.Run) error {
	_, err := s.db.ExecContext(ctx, insertRunSQL(s.table),
		run.ID, run.Job, run.Source,
		run.Statements, run.Rows, run.Categories, run.Files,
		run.Status, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: record run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]ledger.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectRecentSQL(s.table), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: recent runs: %w", err)
	}
	defer rows.Close()

	var out []ledger.Run
	for rows.Next() {
		var (
			r                 ledger.Run
			started, finished string
		)
		if err := rows.Scan(
			&r.ID, &r.Job, &r.Source,
			&r.Statements, &r.Rows, &r.Categories, &r.Files,
			&r.Status, &r.Error, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: run %s started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("ledger/sqlite: run %s finished_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// runColumns is the canonical column order shared by insert and select.
var runColumns = []string{
	"id", "job", "source",
	"statements", "rows", "categories", "files",
	"status", "error", "started_at", "finished_at",
}

func createTableSQL(table string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (\n")
	b.WriteString("  " + sqlIdent("id") + " TEXT PRIMARY KEY,\n")
	b.WriteString("  " + sqlIdent("job") + " TEXT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("source") + " TEXT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("statements") + " INTEGER NOT NULL,\n")
	b.WriteString("  " + sqlIdent("rows") + " INTEGER NOT NULL,\n")
	b.WriteString("  " + sqlIdent("categories") + " INTEGER NOT NULL,\n")
	b.WriteString("  " + sqlIdent("files") + " INTEGER NOT NULL,\n")
	b.WriteString("  " + sqlIdent("status") + " TEXT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("error") + " TEXT NOT NULL DEFAULT '',\n")
	b.WriteString("  " + sqlIdent("started_at") + " TEXT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("finished_at") + " TEXT NOT NULL\n")
	b.WriteString(")")
	return b.String()
}

func insertRunSQL(table string) string {
	var b strings.Builder
	// OR IGNORE keeps RecordRun idempotent on the id primary key.
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range runColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range runColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}

func selectRecentSQL(table string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range runColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(" FROM ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" ORDER BY ")
	b.WriteString(sqlIdent("started_at"))
	b.WriteString(" DESC LIMIT ?")
	return b.String()
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// parseTime accepts the formats SQLite rows come back in: our own
// RFC3339Nano writes plus the space-separated forms other writers use.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	// No zone info: assume UTC.
	if t, err := time.Parse("2006-01-02 15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
