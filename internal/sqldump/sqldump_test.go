package sqldump

import (
	"reflect"
	"testing"
	"unicode/utf16"
)

// TestParse_MultiStatement verifies two statements for different tables are
// both parsed and scanning resumes after the first terminator.
func TestParse_MultiStatement(t *testing.T) {
	t.Parallel()

	text := "INSERT INTO qa (cat_id, question) VALUES ('1', 'Q1');\n" +
		"INSERT INTO faq (cat_id, question) VALUES ('2', 'Q2'), ('3', 'Q3');\n"

	var rows []Record
	st := Parse(text, func(r Record) { rows = append(rows, r) })

	if st.Statements != 2 {
		t.Fatalf("expected 2 statements, got %d", st.Statements)
	}
	if st.Rows != 3 || len(rows) != 3 {
		t.Fatalf("expected 3 rows, got stats=%d emitted=%d", st.Rows, len(rows))
	}
	if rows[0]["question"] != "Q1" || rows[2]["question"] != "Q3" {
		t.Fatalf("rows out of order: %v", rows)
	}
}

// TestParse_HeaderInsideLiteralNotDoubleCounted verifies that a fake header
// embedded in a quoted literal is skipped, because scanning resumes only
// after the real statement's semicolon.
func TestParse_HeaderInsideLiteralNotDoubleCounted(t *testing.T) {
	t.Parallel()

	text := "INSERT INTO qa (cat_id, note) VALUES " +
		"('1', 'INSERT INTO fake (x) VALUES (''boo'')');\n" +
		"INSERT INTO qa (cat_id, note) VALUES ('2', 'real');"

	var rows []Record
	st := Parse(text, func(r Record) { rows = append(rows, r) })

	if st.Statements != 2 {
		t.Fatalf("expected 2 statements, got %d", st.Statements)
	}
	if st.Rows != 2 {
		t.Fatalf("expected 2 rows, got %d", st.Rows)
	}
	want := Record{"cat_id": "1", "note": "INSERT INTO fake (x) VALUES ('boo')"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("row 0: expected %v, got %v", want, rows[0])
	}
}

// TestParse_NoStatements verifies a dump without any INSERT header yields
// zero stats and no rows.
func TestParse_NoStatements(t *testing.T) {
	t.Parallel()

	st := Parse("SELECT 1;\n-- nothing to see\n", func(Record) {
		t.Fatal("emit must not be called")
	})
	if st.Statements != 0 || st.Rows != 0 {
		t.Fatalf("expected zero stats, got %+v", st)
	}
}

// TestParse_Idempotent verifies two parses of the same text emit identical
// row sequences.
func TestParse_Idempotent(t *testing.T) {
	t.Parallel()

	text := "INSERT INTO qa (cat_id, q) VALUES ('1.2', 'a'), (NULL, ''), ('3', 'c');"

	run := func() []Record {
		var rows []Record
		Parse(text, func(r Record) { rows = append(rows, r) })
		return rows
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Fatal("parse is not deterministic")
	}
}

// TestParseBytes_UTF16 verifies the decode step runs before parsing: a
// BOM-less UTF-16LE dump produces the same rows as its UTF-8 equivalent.
func TestParseBytes_UTF16(t *testing.T) {
	t.Parallel()

	text := "INSERT INTO qa (cat_id, question) VALUES ('7', 'Wie?');"
	units := utf16.Encode([]rune(text))
	buf := make([]byte, 0, len(units)*2)
	for _, u := range units {
		buf = append(buf, byte(u), byte(u>>8))
	}

	var rows []Record
	st := ParseBytes(buf, func(r Record) { rows = append(rows, r) })

	if st.Statements != 1 || st.Rows != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	want := Record{"cat_id": "7", "question": "Wie?"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("expected %v, got %v", want, rows[0])
	}
}
