package postgres

import (
	"strings"
	"testing"
)

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := createTableSQL("sync_runs")
	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "sync_runs"`) {
		t.Errorf("DDL prefix wrong:\n%s", got)
	}
	if !strings.Contains(got, `"started_at" TIMESTAMPTZ NOT NULL`) {
		t.Errorf("timestamps must be TIMESTAMPTZ:\n%s", got)
	}
	// "rows" is reserved-adjacent; it must come out quoted.
	if !strings.Contains(got, `"rows" BIGINT NOT NULL`) {
		t.Errorf("rows column must be quoted:\n%s", got)
	}
}

func TestInsertRunSQL(t *testing.T) {
	t.Parallel()

	got := insertRunSQL("sync_runs")
	if !strings.Contains(got, "$1") || !strings.Contains(got, "$11") {
		t.Errorf("want numbered placeholders $1..$11:\n%s", got)
	}
	if !strings.HasSuffix(got, `ON CONFLICT ("id") DO NOTHING`) {
		t.Errorf("insert must be idempotent on id:\n%s", got)
	}
}

func TestSelectRecentSQL(t *testing.T) {
	t.Parallel()

	got := selectRecentSQL("sync_runs")
	if !strings.Contains(got, `ORDER BY "started_at" DESC LIMIT $1`) {
		t.Errorf("recent runs must be newest first with a limit:\n%s", got)
	}
	for _, c := range runColumns {
		if !strings.Contains(got, `"`+c+`"`) {
			t.Errorf("select missing column %q:\n%s", c, got)
		}
	}
}
