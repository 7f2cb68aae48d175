// Package pipeline composes the dump-parsing core with its collaborators:
// data sources, the category sink, the vector index, and the run ledger.
// The CLI drives a Runner directly; service mode queues Jobs onto an
// Orchestrator whose workers execute the same Runner.
package pipeline

import (
	"fmt"

	"kbsync/internal/category"
	"kbsync/internal/sqldump"
)

// Stats summarizes one extraction.
type Stats struct {
	Statements int `json:"statements"`
	Rows       int `json:"rows"`
	Categories int `json:"categories"`
}

// Extract decodes buf, parses every INSERT statement, and folds the rows
// into a category map. A dump yielding zero categories fails with
// category.ErrNoCategories (wrapped): either the dump is empty or its
// schema changed, and both need an operator.
func Extract(buf []byte) (*category.Map, Stats, error) {
	agg := category.NewAggregator()
	ps := sqldump.ParseBytes(buf, func(r sqldump.Record) {
		agg.Add(r)
	})

	m := agg.Result()
	st := Stats{Statements: ps.Statements, Rows: ps.Rows, Categories: m.Len()}

	if m.Len() == 0 {
		return nil, st, fmt.Errorf("extract: %d statements, %d rows: %w",
			ps.Statements, ps.Rows, category.ErrNoCategories)
	}
	return m, st, nil
}
