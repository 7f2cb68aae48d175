// Package postgres implements the run ledger on PostgreSQL via the pgx
// stdlib adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kbsync/internal/ledger"
)

// Store keeps runs in a single Postgres table with TIMESTAMPTZ timestamps.
type Store struct {
	db    *sql.DB
	table string
}

func init() {
	ledger.Register("postgres", New)
}

// New connects to the database at cfg.DSN (any libpq-style DSN or URL).
func New(ctx context.Context, cfg ledger.Config) (ledger.Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger/postgres: ping: %w", err)
	}
	db.SetMaxOpenConns(cfg.Options.Int("max_open_conns", 8))
	return &Store{db: db, table: cfg.TableName()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("ledger/postgres: create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) RecordRun(ctx context.Context, run ledger.Run) error {
	_, err := s.db.ExecContext(ctx, insertRunSQL(s.table),
		run.ID, run.Job, run.Source,
		run.Statements, run.Rows, run.Categories, run.Files,
		run.Status, run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("ledger/postgres: record run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]ledger.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectRecentSQL(s.table), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: recent runs: %w", err)
	}
	defer rows.Close()

	var out []ledger.Run
	for rows.Next() {
		var r ledger.Run
		if err := rows.Scan(
			&r.ID, &r.Job, &r.Source,
			&r.Statements, &r.Rows, &r.Categories, &r.Files,
			&r.Status, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger/postgres: scan run: %w", err)
		}
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

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
	b.WriteString("  " + sqlIdent("statements") + " BIGINT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("rows") + " BIGINT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("categories") + " BIGINT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("files") + " BIGINT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("status") + " TEXT NOT NULL,\n")
	b.WriteString("  " + sqlIdent("error") + " TEXT NOT NULL DEFAULT '',\n")
	b.WriteString("  " + sqlIdent("started_at") + " TIMESTAMPTZ NOT NULL,\n")
	b.WriteString("  " + sqlIdent("finished_at") + " TIMESTAMPTZ NOT NULL\n")
	b.WriteString(")")
	return b.String()
}

func insertRunSQL(table string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
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
		fmt.Fprintf(&b, "$%d", i+1)
	}
	// Idempotent on the id primary key.
	b.WriteString(") ON CONFLICT (")
	b.WriteString(sqlIdent("id"))
	b.WriteString(") DO NOTHING")
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
	b.WriteString(" DESC LIMIT $1")
	return b.String()
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
