package sqldump

import (
	"regexp"
	"strings"
)

// insertRe matches one INSERT header up to and including the VALUES keyword
// and its trailing whitespace. Case-insensitive, whitespace-flexible; the
// table name may be backtick-quoted but itself contains no backticks, parens
// or whitespace. Group 1 is the table, group 2 the raw column list.
var insertRe = regexp.MustCompile(
	"(?i)INSERT\\s+INTO\\s+`?([^`()\\s]+)`?\\s*\\(([^)]*)\\)\\s*VALUES\\s*",
)

// Statement describes one located INSERT header.
type Statement struct {
	// Table is the target table name, backticks stripped. Diagnostic only;
	// row extraction does not depend on it.
	Table string

	// Columns are the header's column names in declared order: trimmed,
	// backticks stripped, empty entries dropped. Order defines the
	// positional mapping to row values.
	Columns []string

	// DataStart is the text offset immediately after the matched VALUES
	// keyword and its trailing whitespace, where row data begins.
	DataStart int
}

// NextStatement finds the first INSERT header at or after offset from.
// It reports ok=false when no further header exists.
func NextStatement(text string, from int) (stmt Statement, ok bool) {
	if from < 0 {
		from = 0
	}
	if from >= len(text) {
		return Statement{}, false
	}

	loc := insertRe.FindStringSubmatchIndex(text[from:])
	if loc == nil {
		return Statement{}, false
	}

	return Statement{
		Table:     text[from+loc[2] : from+loc[3]],
		Columns:   parseColumns(text[from+loc[4] : from+loc[5]]),
		DataStart: from + loc[1],
	}, true
}

// parseColumns splits a raw header column list on commas, trims whitespace,
// strips backtick quoting, and drops entries that end up empty.
func parseColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(strings.ReplaceAll(p, "`", ""))
		if name == "" {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}
