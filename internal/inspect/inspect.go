// Package inspect summarizes a dump buffer without committing to a sync.
//
// The report is best-effort diagnostics for operators deciding whether a
// dump is worth syncing: detected encoding, statement and row counts,
// per-table columns, and the biggest category roots. Inspection never
// fails; a buffer with nothing recognizable in it just produces a
// mostly-zero report.
package inspect

import (
	"sort"
	"time"

	"kbsync/internal/category"
	"kbsync/internal/sqldump"
	"kbsync/internal/textenc"
)

// Options caps how much detail the report carries.
type Options struct {
	// MaxTables limits the per-table breakdown (default 20).
	MaxTables int
	// MaxCategories limits the top-category list (default 10).
	MaxCategories int
}

func (o Options) withDefaults() Options {
	if o.MaxTables <= 0 {
		o.MaxTables = 20
	}
	if o.MaxCategories <= 0 {
		o.MaxCategories = 10
	}
	return o
}

// TableInfo describes one INSERT target seen in the dump.
type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// CategoryCount is one category root with its item count.
type CategoryCount struct {
	Key   string `json:"key"`
	Items int    `json:"items"`
}

// Report is the inspection result, printed by cmd/dumpinfo as JSON.
//
// This output is meant for humans and scripts both; additive changes are
// safe, renames are breaking.
type Report struct {
	Bytes         int             `json:"bytes"`
	Encoding      string          `json:"encoding"`
	BOM           bool            `json:"bom"`
	Statements    int             `json:"statements"`
	Rows          int             `json:"rows"`
	Tables        []TableInfo     `json:"tables,omitempty"`
	TablesOmitted int             `json:"tables_omitted,omitempty"`
	Categories    int             `json:"categories"`
	TopCategories []CategoryCount `json:"top_categories,omitempty"`
	ElapsedMs     int64           `json:"elapsed_ms"`
}

// nowFn is an overridable clock seam for tests.
var nowFn = time.Now

// Inspect builds a Report for buf. It is best-effort and never fails.
func Inspect(buf []byte, opt Options) Report {
	opt = opt.withDefaults()
	start := nowFn()

	enc, bomLen := textenc.Detect(buf)
	rep := Report{
		Bytes:    len(buf),
		Encoding: enc.String(),
		BOM:      bomLen > 0,
	}

	text := textenc.Decode(buf)

	agg := category.NewAggregator()
	var (
		tables     []TableInfo
		tableIndex = map[string]int{}
	)

	pos := 0
	for {
		stmt, ok := sqldump.NextStatement(text, pos)
		if !ok {
			break
		}
		rep.Statements++

		ti, seen := tableIndex[stmt.Table]
		if !seen {
			tableIndex[stmt.Table] = len(tables)
			ti = len(tables)
			tables = append(tables, TableInfo{Name: stmt.Table, Columns: stmt.Columns})
		}

		pos = sqldump.TokenizeRows(text, stmt.DataStart, stmt.Columns, func(r sqldump.Record) {
			rep.Rows++
			tables[ti].Rows++
			agg.Add(r)
		})
	}

	if len(tables) > opt.MaxTables {
		rep.TablesOmitted = len(tables) - opt.MaxTables
		tables = tables[:opt.MaxTables]
	}
	rep.Tables = tables

	m := agg.Result()
	rep.Categories = m.Len()
	rep.TopCategories = topCategories(m, opt.MaxCategories)

	rep.ElapsedMs = nowFn().Sub(start).Milliseconds()
	return rep
}

// topCategories ranks roots by item count, breaking ties by first-seen
// order so the output is stable.
func topCategories(m *category.Map, limit int) []CategoryCount {
	keys := m.Keys()
	counts := make([]CategoryCount, 0, len(keys))
	for _, k := range keys {
		counts = append(counts, CategoryCount{Key: k, Items: len(m.Items(k))})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Items > counts[j].Items
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
