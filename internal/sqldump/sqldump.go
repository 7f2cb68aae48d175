// Package sqldump extracts row records from SQL dump text.
//
// A dump is a text file of `INSERT INTO <table> (<columns>) VALUES
// (<row>), (<row>), ...;` statements. The package locates each statement
// header with a pattern match, then walks the VALUES region with a
// character-by-character state machine that respects single-quoted string
// literals ('' is an escaped quote) and NULL tokens. It covers exactly that
// dialect: no multi-table statements, no subqueries, no function calls, and
// no literal types beyond verbatim text and NULL.
//
// The scanner is total over its input: malformed trailing content after the
// last complete row or statement is silently discarded, never an error.
package sqldump

import (
	"kbsync/internal/textenc"
)

// Record is one row reinterpreted as a mapping from column names to field
// values. Values are string, or untyped nil for SQL NULL. Columns listed in
// the statement header but missing from a short row map to nil.
type Record map[string]any

// Stats summarizes one full parse for caller diagnostics.
type Stats struct {
	Statements int
	Rows       int
}

// Parse scans text from the beginning, invoking emit for every row of every
// statement in document order. Scanning resumes after each statement's
// terminating semicolon, so overlapping headers are never double-counted.
func Parse(text string, emit func(Record)) Stats {
	var st Stats

	pos := 0
	for {
		stmt, ok := NextStatement(text, pos)
		if !ok {
			break
		}
		st.Statements++

		pos = TokenizeRows(text, stmt.DataStart, stmt.Columns, func(r Record) {
			st.Rows++
			emit(r)
		})
	}

	return st
}

// ParseBytes decodes buf (see internal/textenc) and parses the result.
func ParseBytes(buf []byte, emit func(Record)) Stats {
	return Parse(textenc.Decode(buf), emit)
}
