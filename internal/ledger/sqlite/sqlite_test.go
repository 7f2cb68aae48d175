package sqlite

import (
	"strings"
	"testing"
	"time"
)

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := createTableSQL("sync_runs")
	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "sync_runs"`) {
		t.Errorf("DDL prefix wrong:\n%s", got)
	}
	for _, col := range runColumns {
		if !strings.Contains(got, `"`+col+`"`) {
			t.Errorf("DDL missing column %q:\n%s", col, got)
		}
	}
	if !strings.Contains(got, `"id" TEXT PRIMARY KEY`) {
		t.Errorf("id should be the primary key:\n%s", got)
	}
}

func TestInsertRunSQL(t *testing.T) {
	t.Parallel()

	got := insertRunSQL("sync_runs")
	if !strings.HasPrefix(got, `INSERT OR IGNORE INTO "sync_runs"`) {
		t.Errorf("insert should be OR IGNORE on the id key:\n%s", got)
	}
	if n := strings.Count(got, "?"); n != len(runColumns) {
		t.Errorf("placeholder count = %d, want %d", n, len(runColumns))
	}
}

func TestSelectRecentSQL(t *testing.T) {
	t.Parallel()

	got := selectRecentSQL("sync_runs")
	if !strings.Contains(got, `ORDER BY "started_at" DESC LIMIT ?`) {
		t.Errorf("recent runs must be newest first with a limit:\n%s", got)
	}
}

func TestSQLIdent(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"rows", `"rows"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tc := range cases {
		if got := sqlIdent(tc.in); got != tc.want {
			t.Errorf("sqlIdent(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		wantUTC string
		wantErr bool
	}{
		{name: "rfc3339nano", in: "2026-03-14T09:26:53.589793238Z", wantUTC: "2026-03-14T09:26:53.589793238Z"},
		{name: "rfc3339", in: "2026-03-14T09:26:53Z", wantUTC: "2026-03-14T09:26:53Z"},
		{name: "space_tz", in: "2026-03-14 09:26:53+00:00", wantUTC: "2026-03-14T09:26:53Z"},
		{name: "space_no_tz_assume_utc", in: "2026-03-14 09:26:53", wantUTC: "2026-03-14T09:26:53Z"},
		{name: "invalid", in: "not-a-time", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseTime(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTime(%q): %v", tc.in, err)
			}
			if got.Format(time.RFC3339Nano) != tc.wantUTC {
				t.Errorf("parseTime(%q) = %s, want %s", tc.in, got.Format(time.RFC3339Nano), tc.wantUTC)
			}
		})
	}
}
